//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a Tencent Cloud Object Storage (COS) implementation of artifact.Store.
//
// Authentication:
// The store requires COS credentials which can be provided via:
// - Environment variables: COS_SECRETID and COS_SECRETKEY (recommended)
// - Option functions: WithSecretID() and WithSecretKey()
//
// Example:
//
//	store, err := cos.NewStore("https://bucket.cos.region.myqcloud.com")
package cos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultListPageSize = 1000
)

// Store is a Tencent Cloud Object Storage implementation of artifact.Store.
type Store struct {
	cosClient    client
	listPageSize int
}

// NewStore creates a COS backed store for the bucket at bucketURL.
//
// Example usage:
//
//	store, err := cos.NewStore(
//	    "https://bucket.cos.region.myqcloud.com",
//	    cos.WithSecretID("your-secret-id"),
//	    cos.WithSecretKey("your-secret-key"),
//	    cos.WithTimeout(30*time.Second),
//	)
func NewStore(bucketURL string, opts ...Option) (*Store, error) {
	c, err := globalBuilder(bucketURL, opts...)
	if err != nil {
		return nil, err
	}
	cli, ok := c.(client)
	if !ok {
		return nil, fmt.Errorf("client builder returned invalid type: expected client interface, got %T", c)
	}
	return &Store{
		cosClient:    cli,
		listPageSize: newOptions(opts...).listPageSize,
	}, nil
}

// List implements artifact.Store. It follows NextMarker until the listing
// is no longer truncated.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	marker := ""
	for {
		result, err := s.cosClient.GetBucket(ctx, prefix, marker, s.listPageSize)
		if err != nil {
			if cos.IsNotFoundError(err) {
				return keys, nil
			}
			return nil, fmt.Errorf("failed to list artifacts: %w", err)
		}
		for _, obj := range result.Contents {
			keys = append(keys, obj.Key)
		}
		if !result.IsTruncated {
			return keys, nil
		}
		next := result.NextMarker
		if next == "" && len(result.Contents) > 0 {
			next = result.Contents[len(result.Contents)-1].Key
		}
		if next == "" || next == marker {
			return keys, nil
		}
		marker = next
	}
}

// Put implements artifact.Store.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.cosClient.PutObject(ctx, key, bytes.NewReader(data), contentType, false); err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	return nil
}

// PutIfAbsent implements artifact.Store. Buckets without versioning honor
// the forbid-overwrite header; the head check covers the rest.
func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.cosClient.HeadObject(ctx, key)
	if err == nil {
		return artifact.ErrExists
	}
	if !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to check artifact: %w", err)
	}
	err = s.cosClient.PutObject(ctx, key, bytes.NewReader(data), contentType, true)
	if err == nil {
		return nil
	}
	if isConflict(err) {
		return artifact.ErrExists
	}
	return fmt.Errorf("failed to upload artifact: %w", err)
}

// Get implements artifact.Store.
func (s *Store) Get(ctx context.Context, key string) (*artifact.Artifact, error) {
	respBody, respHeader, err := s.cosClient.GetObject(ctx, key)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer respBody.Close()

	data, err := io.ReadAll(respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}
	contentType := respHeader.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &artifact.Artifact{Key: key, Data: data, ContentType: contentType}, nil
}

// URI implements artifact.Store.
func (s *Store) URI(key string) string {
	return s.cosClient.ObjectURL(key)
}

func isConflict(err error) bool {
	var e *cos.ErrorResponse
	if !errors.As(err, &e) {
		return false
	}
	if e.Response != nil && (e.Response.StatusCode == http.StatusConflict ||
		e.Response.StatusCode == http.StatusPreconditionFailed) {
		return true
	}
	return e.Code == "FileAlreadyExists"
}
