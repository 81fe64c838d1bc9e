//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory artifact store.
// It is suitable for testing and development environments.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
)

// Store is an in-memory implementation of artifact.Store.
type Store struct {
	mu        sync.RWMutex
	objects   map[string]*artifact.Artifact
	uriPrefix string
}

// Option configures a Store.
type Option func(*Store)

// WithURIPrefix sets the prefix URI prepends to keys, e.g. "s3://bucket/".
func WithURIPrefix(prefix string) Option {
	return func(s *Store) { s.uriPrefix = prefix }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{objects: make(map[string]*artifact.Artifact), uriPrefix: "mem://"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List implements artifact.Store. Keys are returned sorted.
func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Put implements artifact.Store.
func (s *Store) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = newArtifact(key, data, contentType)
	return nil
}

// PutIfAbsent implements artifact.Store.
func (s *Store) PutIfAbsent(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return artifact.ErrExists
	}
	s.objects[key] = newArtifact(key, data, contentType)
	return nil
}

// Get implements artifact.Store.
func (s *Store) Get(_ context.Context, key string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.objects[key]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return newArtifact(a.Key, a.Data, a.ContentType), nil
}

// URI implements artifact.Store.
func (s *Store) URI(key string) string {
	return s.uriPrefix + key
}

func newArtifact(key string, data []byte, contentType string) *artifact.Artifact {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &artifact.Artifact{Key: key, Data: cp, ContentType: contentType}
}
