//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package redis manages named redis instances shared by the redis backed
// components.
package redis

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	registryMu    sync.RWMutex
	redisRegistry = map[string][]ClientBuilderOpt{}
)

// ErrNoInstance is returned when neither a URL nor a registered instance is given.
var ErrNoInstance = errors.New("redis: no url or instance configured")

type clientBuilder func(builderOpts ...ClientBuilderOpt) (redis.UniversalClient, error)

var globalBuilder clientBuilder = DefaultClientBuilder

// SetClientBuilder sets the redis client builder.
func SetClientBuilder(builder clientBuilder) {
	globalBuilder = builder
}

// GetClientBuilder gets the redis client builder.
func GetClientBuilder() clientBuilder {
	return globalBuilder
}

// DefaultClientBuilder builds a universal client from a redis URL.
// Extra addresses turn the client into a cluster or failover client.
func DefaultClientBuilder(builderOpts ...ClientBuilderOpt) (redis.UniversalClient, error) {
	o := &ClientBuilderOpts{}
	for _, opt := range builderOpts {
		opt(o)
	}
	if o.URL == "" {
		return nil, fmt.Errorf("redis: url is empty")
	}
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url %s: %w", o.URL, err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:           append([]string{opts.Addr}, o.ExtraAddrs...),
		DB:              opts.DB,
		Username:        opts.Username,
		Password:        opts.Password,
		Protocol:        opts.Protocol,
		ClientName:      opts.ClientName,
		TLSConfig:       opts.TLSConfig,
		MaxRetries:      opts.MaxRetries,
		DialTimeout:     opts.DialTimeout,
		ReadTimeout:     opts.ReadTimeout,
		WriteTimeout:    opts.WriteTimeout,
		PoolSize:        opts.PoolSize,
		MinIdleConns:    opts.MinIdleConns,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
		MasterName:      o.MasterName,
	}), nil
}

// ClientBuilderOpt is the option for the redis client.
type ClientBuilderOpt func(*ClientBuilderOpts)

// ClientBuilderOpts is the options for the redis client.
type ClientBuilderOpts struct {
	URL        string
	ExtraAddrs []string
	MasterName string
}

// WithClientBuilderURL sets the redis client url for clientBuilder.
// scheme: redis://<username>:<password>@<host>:<port>/<db>?<options>
// options: refer goredis.ParseURL
func WithClientBuilderURL(url string) ClientBuilderOpt {
	return func(opts *ClientBuilderOpts) {
		opts.URL = url
	}
}

// WithExtraAddrs adds cluster node addresses next to the URL host.
func WithExtraAddrs(addrs ...string) ClientBuilderOpt {
	return func(opts *ClientBuilderOpts) {
		opts.ExtraAddrs = append(opts.ExtraAddrs, addrs...)
	}
}

// WithMasterName selects sentinel failover for the given master.
func WithMasterName(name string) ClientBuilderOpt {
	return func(opts *ClientBuilderOpts) {
		opts.MasterName = name
	}
}

// RegisterRedisInstance registers a redis instance options.
// Registering the same name twice appends options.
func RegisterRedisInstance(name string, opts ...ClientBuilderOpt) {
	registryMu.Lock()
	defer registryMu.Unlock()
	redisRegistry[name] = append(redisRegistry[name], opts...)
}

// GetRedisInstance gets the redis instance options.
func GetRedisInstance(name string) ([]ClientBuilderOpt, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	opts, ok := redisRegistry[name]
	if !ok {
		return nil, false
	}
	return opts, true
}

// NewClient resolves ref into a client. A ref containing "://" is used as
// a URL; anything else names a registered instance.
func NewClient(ref string) (redis.UniversalClient, error) {
	if ref == "" {
		return nil, ErrNoInstance
	}
	if strings.Contains(ref, "://") {
		return globalBuilder(WithClientBuilderURL(ref))
	}
	opts, ok := GetRedisInstance(ref)
	if !ok {
		return nil, fmt.Errorf("redis: instance %q not registered", ref)
	}
	return globalBuilder(opts...)
}
