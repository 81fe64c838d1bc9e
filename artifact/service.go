//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-gameasset-go/log"
)

const defaultMaxConflicts = 5

// Service allocates sequential keys on top of a Store.
type Service struct {
	store        Store
	maxConflicts int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxConflicts bounds how often SaveNext recounts after losing a race
// for a key.
func WithMaxConflicts(n int) ServiceOption {
	return func(s *Service) { s.maxConflicts = n }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, maxConflicts: defaultMaxConflicts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

// NextKey returns {prefix}{count+1}{ext} where count is the number of keys
// currently under prefix.
func (s *Service) NextKey(ctx context.Context, prefix, contentType string) (string, error) {
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("list artifacts under %q: %w", prefix, err)
	}
	return fmt.Sprintf("%s%d%s", prefix, len(keys)+1, Extension(contentType)), nil
}

// SaveNext stores data under the next sequential key and returns the key.
// The write is conditional, so two concurrent savers never overwrite each
// other on stores that support it; the loser recounts and tries again.
func (s *Service) SaveNext(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	attempts := s.maxConflicts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		key, err := s.NextKey(ctx, prefix, contentType)
		if err != nil {
			return "", err
		}
		err = s.store.PutIfAbsent(ctx, key, data, contentType)
		if err == nil {
			log.Infof("artifact uploaded to %s", s.store.URI(key))
			return key, nil
		}
		if !errors.Is(err, ErrExists) {
			return "", fmt.Errorf("upload artifact %s: %w", key, err)
		}
		log.Warnf("artifact key %s taken, recounting", key)
	}
	return "", fmt.Errorf("upload artifact under %q: %w after %d attempts", prefix, ErrExists, attempts)
}

// Load returns the artifact stored under key.
func (s *Service) Load(ctx context.Context, key string) (*Artifact, error) {
	return s.store.Get(ctx, key)
}

// Locator returns the external locator of key.
func (s *Service) Locator(key string) string {
	return s.store.URI(key)
}

// Extension maps a content type to the file extension used in keys.
func Extension(contentType string) string {
	switch contentType {
	case ContentTypePNG, "":
		return ".png"
	case ContentTypeJPEG:
		return ".jpg"
	default:
		return ".bin"
	}
}
