//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a redis backed provenance ledger. Each record is
// a hash under {keyPrefix}{record key}.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-gameasset-go/ledger"
	istorage "trpc.group/trpc-go/trpc-gameasset-go/storage/redis"
)

const (
	defaultKeyPrefix = "gameasset:provenance:"

	fieldLocator   = "locator"
	fieldPrompt    = "prompt"
	fieldTimestamp = "timestamp"
)

var _ ledger.Service = (*Service)(nil)

// ServiceOpts is the options for the redis ledger.
type ServiceOpts struct {
	redisClient redis.UniversalClient
	instance    string
	keyPrefix   string
	expiration  time.Duration
}

// ServiceOpt is the option for the redis ledger.
type ServiceOpt func(*ServiceOpts)

// WithRedisClient sets the client directly.
func WithRedisClient(client redis.UniversalClient) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.redisClient = client
	}
}

// WithRedisInstance resolves the client from a URL or a registered instance name.
func WithRedisInstance(ref string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.instance = ref
	}
}

// WithKeyPrefix sets the prefix of record keys.
func WithKeyPrefix(prefix string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.keyPrefix = prefix
	}
}

// WithExpiration expires records after d. Zero keeps them forever.
func WithExpiration(d time.Duration) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.expiration = d
	}
}

// Service is the redis ledger.
type Service struct {
	opts ServiceOpts
}

// NewService creates a redis ledger.
func NewService(options ...ServiceOpt) (*Service, error) {
	opts := ServiceOpts{keyPrefix: defaultKeyPrefix}
	for _, option := range options {
		option(&opts)
	}
	if opts.redisClient == nil {
		if opts.instance == "" {
			return nil, errors.New("redis client is required")
		}
		client, err := istorage.NewClient(opts.instance)
		if err != nil {
			return nil, err
		}
		opts.redisClient = client
	}
	return &Service{opts: opts}, nil
}

// Put implements ledger.Service.
func (s *Service) Put(ctx context.Context, rec ledger.Record) error {
	rec, err := ledger.Prepare(rec)
	if err != nil {
		return err
	}
	key := s.opts.keyPrefix + rec.Key
	_, err = s.opts.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldLocator, rec.Locator,
			fieldPrompt, rec.Prompt,
			fieldTimestamp, rec.CreatedAt.Format(time.RFC3339Nano),
		)
		if s.opts.expiration > 0 {
			pipe.Expire(ctx, key, s.opts.expiration)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ledger: put %s: %w", rec.Key, err)
	}
	return nil
}

// Get implements ledger.Service.
func (s *Service) Get(ctx context.Context, key string) (*ledger.Record, error) {
	fields, err := s.opts.redisClient.HGetAll(ctx, s.opts.keyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ledger: get %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec := &ledger.Record{
		Key:     key,
		Locator: fields[fieldLocator],
		Prompt:  fields[fieldPrompt],
	}
	if ts := fields[fieldTimestamp]; ts != "" {
		created, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("redis ledger: parse timestamp of %s: %w", key, err)
		}
		rec.CreatedAt = created
	}
	return rec, nil
}

// Close closes the underlying client.
func (s *Service) Close() error {
	return s.opts.redisClient.Close()
}
