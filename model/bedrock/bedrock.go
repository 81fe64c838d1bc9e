//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package bedrock implements the text and image models on AWS Bedrock.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

const providerName = "bedrock"

// Client is the subset of the Bedrock runtime API used by this package.
type Client interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// throttlingCodes are the API error codes worth retrying.
var throttlingCodes = map[string]bool{
	"ThrottlingException":      true,
	"TooManyRequestsException": true,
}

// IsThrottling reports whether err is a Bedrock throttling error.
func IsThrottling(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return throttlingCodes[apiErr.ErrorCode()]
	}
	return false
}

type options struct {
	client   Client
	region   string
	endpoint string
	policy   retry.Policy
}

// Option configures a Bedrock model.
type Option func(*options)

// WithClient sets the runtime client. Mainly used by tests.
func WithClient(c Client) Option {
	return func(o *options) { o.client = c }
}

// WithRegion sets the AWS region used when the client is built from the
// default credential chain.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint overrides the runtime endpoint, for VPC endpoints and
// local gateways.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithRetryPolicy overrides the throttling retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

func newOptions(ctx context.Context, opts []Option) (*options, error) {
	o := &options{policy: retry.Default(retry.OnPredicate(IsThrottling))}
	for _, opt := range opts {
		opt(o)
	}
	if o.client != nil {
		return o, nil
	}
	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	// Throttling is retried by the policy only, so the SDK makes exactly one
	// attempt per call.
	o.client = bedrockruntime.NewFromConfig(cfg, func(bo *bedrockruntime.Options) {
		bo.Retryer = aws.NopRetryer{}
		if o.endpoint != "" {
			bo.BaseEndpoint = aws.String(o.endpoint)
		}
	})
	return o, nil
}
