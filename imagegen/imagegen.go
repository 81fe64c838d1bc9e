//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package imagegen turns prompts into stored images using an image model.
package imagegen

import (
	"context"
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
)

const defaultPrefix = "character/"

// ErrEmptyImage is returned when the model answers without image bytes.
var ErrEmptyImage = errors.New("imagegen: model returned no image")

// Generator generates an image for a prompt and stores it under the next
// sequential key of its prefix.
type Generator struct {
	model     model.ImageModel
	artifacts *artifact.Service
	prefix    string
	width     int
	height    int
}

// Option configures a Generator.
type Option func(*Generator)

// WithPrefix sets the storage prefix, e.g. "character/".
func WithPrefix(prefix string) Option {
	return func(g *Generator) { g.prefix = prefix }
}

// WithSize overrides the 512x512 default.
func WithSize(width, height int) Option {
	return func(g *Generator) {
		g.width = width
		g.height = height
	}
}

// New creates a Generator.
func New(m model.ImageModel, artifacts *artifact.Service, opts ...Option) *Generator {
	g := &Generator{model: m, artifacts: artifacts, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate draws a fresh seed, invokes the model and stores the image.
// It returns the storage key.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := model.NewImageRequest(prompt)
	if g.width > 0 && g.height > 0 {
		req.Width, req.Height = g.width, g.height
	}
	log.Infof("imagegen: generating %dx%d image with %s (seed %d)",
		req.Width, req.Height, g.model.Info().Name, req.Seed)
	data, err := g.model.GenerateImage(ctx, req)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	key, err := g.artifacts.SaveNext(ctx, g.prefix, data, artifact.ContentTypePNG)
	if err != nil {
		return "", fmt.Errorf("imagegen: store image: %w", err)
	}
	return key, nil
}
