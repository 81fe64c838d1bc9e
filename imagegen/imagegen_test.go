//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package imagegen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
	"trpc.group/trpc-go/trpc-gameasset-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
)

type fakeImageModel struct {
	data []byte
	err  error
	reqs []model.ImageRequest
}

func (f *fakeImageModel) GenerateImage(_ context.Context, req model.ImageRequest) ([]byte, error) {
	f.reqs = append(f.reqs, req)
	return f.data, f.err
}

func (f *fakeImageModel) Info() model.Info {
	return model.Info{Name: "fake-image", Provider: "test"}
}

func TestGenerate(t *testing.T) {
	m := &fakeImageModel{data: []byte("png-bytes")}
	store := inmemory.NewStore()
	g := New(m, artifact.NewService(store))
	ctx := context.Background()

	for _, want := range []string{"character/1.png", "character/2.png"} {
		key, err := g.Generate(ctx, "a cat knight")
		require.NoError(t, err)
		assert.Equal(t, want, key)
	}

	require.Len(t, m.reqs, 2)
	for _, req := range m.reqs {
		assert.Equal(t, "a cat knight", req.Prompt)
		assert.Equal(t, 512, req.Width)
		assert.Equal(t, 512, req.Height)
		assert.Equal(t, 1, req.NumberOfImages)
		assert.Equal(t, "standard", req.Quality)
		assert.GreaterOrEqual(t, req.Seed, int64(0))
		assert.LessOrEqual(t, req.Seed, int64(model.MaxImageSeed))
	}

	a, err := store.Get(ctx, "character/1.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), a.Data)
	assert.Equal(t, artifact.ContentTypePNG, a.ContentType)
}

func TestGenerateOptions(t *testing.T) {
	m := &fakeImageModel{data: []byte("x")}
	g := New(m, artifact.NewService(inmemory.NewStore()), WithPrefix("avatars/"), WithSize(1024, 768))
	key, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "avatars/1.png", key)
	assert.Equal(t, 1024, m.reqs[0].Width)
	assert.Equal(t, 768, m.reqs[0].Height)
}

func TestGenerateErrors(t *testing.T) {
	store := inmemory.NewStore()
	g := New(&fakeImageModel{err: model.ErrRateLimited}, artifact.NewService(store))
	_, err := g.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, model.ErrRateLimited)

	g = New(&fakeImageModel{}, artifact.NewService(store))
	_, err = g.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyImage)

	keys, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	g = New(&fakeImageModel{data: []byte("x")}, artifact.NewService(failingStore{store}))
	_, err = g.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "store image")
}

type failingStore struct {
	artifact.Store
}

func (failingStore) List(context.Context, string) ([]string, error) {
	return nil, errors.New("list denied")
}
