//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package dynamodb provides a DynamoDB backed provenance ledger.
//
// Items have the shape {<key attribute>, locator, prompt, timestamp}; the
// key attribute defaults to "bucket_id".
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"trpc.group/trpc-go/trpc-gameasset-go/ledger"
)

// DefaultKeyAttribute is the partition key attribute name.
const DefaultKeyAttribute = "bucket_id"

var _ ledger.Service = (*Service)(nil)

// Client is the subset of the DynamoDB API used by Service.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type item struct {
	Locator   string `dynamodbav:"locator"`
	Prompt    string `dynamodbav:"prompt"`
	Timestamp string `dynamodbav:"timestamp"`
}

type options struct {
	client        Client
	region        string
	keyAttribute  string
	consistentGet bool
}

// Option configures a Service.
type Option func(*options)

// WithClient sets the DynamoDB client directly.
func WithClient(c Client) Option {
	return func(o *options) { o.client = c }
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithKeyAttribute overrides the partition key attribute name.
func WithKeyAttribute(name string) Option {
	return func(o *options) {
		if name != "" {
			o.keyAttribute = name
		}
	}
}

// WithConsistentRead makes Get use strongly consistent reads.
func WithConsistentRead(consistent bool) Option {
	return func(o *options) { o.consistentGet = consistent }
}

// Service writes provenance items to one table.
type Service struct {
	table string
	opts  options
}

// NewService creates a ledger for table.
func NewService(ctx context.Context, table string, opts ...Option) (*Service, error) {
	o := options{keyAttribute: DefaultKeyAttribute}
	for _, opt := range opts {
		opt(&o)
	}
	if table == "" {
		return nil, fmt.Errorf("dynamodb ledger: table name is required")
	}
	if o.client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("dynamodb ledger: load aws config: %w", err)
		}
		o.client = dynamodb.NewFromConfig(cfg)
	}
	return &Service{table: table, opts: o}, nil
}

// Put implements ledger.Service.
func (s *Service) Put(ctx context.Context, rec ledger.Record) error {
	rec, err := ledger.Prepare(rec)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item{
		Locator:   rec.Locator,
		Prompt:    rec.Prompt,
		Timestamp: rec.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("dynamodb ledger: marshal %s: %w", rec.Key, err)
	}
	av[s.opts.keyAttribute] = &types.AttributeValueMemberS{Value: rec.Key}
	_, err = s.opts.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamodb ledger: put %s: %w", rec.Key, err)
	}
	return nil
}

// Get implements ledger.Service.
func (s *Service) Get(ctx context.Context, key string) (*ledger.Record, error) {
	out, err := s.opts.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			s.opts.keyAttribute: &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(s.opts.consistentGet),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb ledger: get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("dynamodb ledger: unmarshal %s: %w", key, err)
	}
	rec := &ledger.Record{Key: key, Locator: it.Locator, Prompt: it.Prompt}
	if it.Timestamp != "" {
		created, err := time.Parse(time.RFC3339Nano, it.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("dynamodb ledger: parse timestamp of %s: %w", key, err)
		}
		rec.CreatedAt = created
	}
	return rec, nil
}
