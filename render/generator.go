//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package render

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
)

// Renderer renders a parameterized job into an image.
type Renderer interface {
	Render(ctx context.Context, job *Job) (*Image, error)
}

// TileGrid is the grid a background is cut into.
type TileGrid struct {
	Rows int
	Cols int
}

// Generator renders asset classes from templates and stores the results.
type Generator struct {
	renderer  Renderer
	manifest  Manifest
	artifacts *artifact.Service
	prefixes  map[string]string
	tiler     *artifact.Tiler
	grid      TileGrid
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithPrefix overrides the storage prefix of class. The default is "{class}/".
func WithPrefix(class, prefix string) GeneratorOption {
	return func(g *Generator) { g.prefixes[class] = prefix }
}

// WithBackgroundTiles cuts stored backgrounds into a rows x cols grid.
func WithBackgroundTiles(tiler *artifact.Tiler, rows, cols int) GeneratorOption {
	return func(g *Generator) {
		g.tiler = tiler
		g.grid = TileGrid{Rows: rows, Cols: cols}
	}
}

// NewGenerator creates a Generator.
func NewGenerator(r Renderer, m Manifest, artifacts *artifact.Service, opts ...GeneratorOption) *Generator {
	g := &Generator{
		renderer:  r,
		manifest:  m,
		artifacts: artifacts,
		prefixes:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Asset is a stored render.
type Asset struct {
	Class   string   `json:"class"`
	Key     string   `json:"key"`
	Locator string   `json:"locator"`
	Seed    int64    `json:"seed"`
	Tiles   []string `json:"tiles,omitempty"`
}

// Generate renders prompt with the template of class and stores the image.
func (g *Generator) Generate(ctx context.Context, class, prompt string) (*Asset, error) {
	return g.generate(ctx, class, prompt, nil)
}

// GenerateFromImage is Generate for templates that take a source image.
func (g *Generator) GenerateFromImage(ctx context.Context, class, prompt string, src []byte) (*Asset, error) {
	return g.generate(ctx, class, prompt, src)
}

func (g *Generator) generate(ctx context.Context, class, prompt string, src []byte) (*Asset, error) {
	tmpl, err := g.manifest.Lookup(class)
	if err != nil {
		return nil, err
	}
	job, err := tmpl.Load()
	if err != nil {
		return nil, err
	}
	seed, err := job.SetSeed()
	if err != nil {
		return nil, err
	}
	if err := job.SetPrompt(prompt); err != nil {
		return nil, err
	}
	if src != nil {
		if err := job.SetImage(src); err != nil {
			return nil, err
		}
	}
	img, err := g.renderer.Render(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", class, err)
	}
	key, err := g.artifacts.SaveNext(ctx, g.prefix(class), img.Data, img.ContentType())
	if err != nil {
		return nil, err
	}
	asset := &Asset{Class: class, Key: key, Locator: g.artifacts.Locator(key), Seed: seed}
	if class == ClassBackground && g.tiler != nil {
		tiles, err := g.tiler.Tile(ctx, key, img.Data, g.grid.Rows, g.grid.Cols)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", key, err)
		}
		asset.Tiles = tiles
	}
	log.Infof("render: stored %s asset %s", class, key)
	return asset, nil
}

func (g *Generator) prefix(class string) string {
	if p, ok := g.prefixes[class]; ok {
		return p
	}
	return class + "/"
}

// ForClass binds the generator to one class. The result generates a
// stored key from a prompt, matching the model backed image generator.
func (g *Generator) ForClass(class string) *ClassGenerator {
	return &ClassGenerator{g: g, class: class}
}

// ClassGenerator renders a fixed asset class.
type ClassGenerator struct {
	g     *Generator
	class string
}

// Generate renders prompt and returns the stored key.
func (c *ClassGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	a, err := c.g.Generate(ctx, c.class, prompt)
	if err != nil {
		return "", err
	}
	return a.Key, nil
}
