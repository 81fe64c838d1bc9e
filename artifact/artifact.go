//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact stores generated assets in an object store under
// sequential keys of the form {prefix}{n}.png.
package artifact

import (
	"context"
	"errors"
)

// Errors returned by stores.
var (
	ErrNotFound = errors.New("artifact: not found")
	ErrExists   = errors.New("artifact: key already exists")
)

// Content types used by the pipeline.
const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

// Artifact is a stored object.
type Artifact struct {
	Key         string
	Data        []byte
	ContentType string
}

// Store is a flat object store.
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns every key starting with prefix. Pagination is handled
	// by the implementation.
	List(ctx context.Context, prefix string) ([]string, error)
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PutIfAbsent writes data under key unless an object already exists,
	// in which case it returns ErrExists.
	PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (*Artifact, error)
	// URI returns the external locator of key, e.g. s3://bucket/key.
	URI(key string) string
}
