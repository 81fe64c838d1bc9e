//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
)

type object struct {
	data        []byte
	contentType string
}

// fakeS3 is an in-memory bucket that pages list results.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]object
	pageSize int
	putErr   error
	lists    int
}

func newFakeS3(pageSize int) *fakeS3 {
	return &fakeS3{objects: map[string]object{}, pageSize: pageSize}
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input,
	_ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(*in.ContinuationToken, "%d", &start)
	}
	end := start + f.pageSize
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprint(end))
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput,
	_ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.ToString(in.Key)
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := f.objects[key]; ok {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
		}
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[key] = object{data: data, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput,
	_ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: aws.String(obj.contentType),
	}, nil
}

func newTestStore(t *testing.T, fake *fakeS3) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), "game-assets", WithClient(fake))
	require.NoError(t, err)
	return s
}

func TestListPaginates(t *testing.T) {
	fake := newFakeS3(2)
	s := newTestStore(t, fake)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Put(ctx, fmt.Sprintf("character/%d.png", i), []byte{1}, artifact.ContentTypePNG))
	}
	require.NoError(t, s.Put(ctx, "obstacle/1.png", []byte{1}, artifact.ContentTypePNG))

	keys, err := s.List(ctx, "character/")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
	assert.Equal(t, 3, fake.lists)
}

func TestPutIfAbsent(t *testing.T) {
	s := newTestStore(t, newFakeS3(1000))
	ctx := context.Background()
	require.NoError(t, s.PutIfAbsent(ctx, "c/1.png", []byte("a"), artifact.ContentTypePNG))
	assert.ErrorIs(t, s.PutIfAbsent(ctx, "c/1.png", []byte("b"), artifact.ContentTypePNG), artifact.ErrExists)

	a, err := s.Get(ctx, "c/1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), a.Data)
	assert.Equal(t, artifact.ContentTypePNG, a.ContentType)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t, newFakeS3(1000))
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestPutError(t *testing.T) {
	fake := newFakeS3(1000)
	fake.putErr = errors.New("access denied")
	s := newTestStore(t, fake)
	assert.ErrorContains(t, s.Put(context.Background(), "k", nil, ""), "access denied")
	err := s.PutIfAbsent(context.Background(), "k", nil, "")
	assert.NotErrorIs(t, err, artifact.ErrExists)
	assert.ErrorContains(t, err, "access denied")
}

func TestURI(t *testing.T) {
	s := newTestStore(t, newFakeS3(1))
	assert.Equal(t, "s3://game-assets/character/1.png", s.URI("character/1.png"))
}

func TestSequencingOverS3(t *testing.T) {
	s := newTestStore(t, newFakeS3(2))
	svc := artifact.NewService(s)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		key, err := svc.SaveNext(ctx, "character/", []byte{byte(i)}, artifact.ContentTypePNG)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("character/%d.png", i), key)
	}
	assert.Equal(t, "s3://game-assets/character/3.png", svc.Locator("character/3.png"))
}
