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
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
)

const defaultTileParallelism = 4

// ErrBadGrid is returned for grids that do not fit the image.
var ErrBadGrid = errors.New("artifact: invalid tile grid")

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Tiler splits a composite image into a grid of PNG tiles and uploads
// them concurrently.
type Tiler struct {
	store       Store
	prefix      string
	parallelism int
}

// TilerOption configures a Tiler.
type TilerOption func(*Tiler)

// WithTileParallelism sets the number of concurrent uploads.
func WithTileParallelism(n int) TilerOption {
	return func(t *Tiler) { t.parallelism = n }
}

// NewTiler creates a Tiler writing tiles under prefix.
func NewTiler(store Store, prefix string, opts ...TilerOption) *Tiler {
	t := &Tiler{store: store, prefix: prefix, parallelism: defaultTileParallelism}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tile splits img into rows x cols tiles and stores tile (r, c) under
// {prefix}{base}/{r}_{c}.png, where base is the source key without its
// directory and extension. Edge tiles absorb the remainder pixels.
// The returned keys are sorted.
func (t *Tiler) Tile(ctx context.Context, sourceKey string, img []byte, rows, cols int) ([]string, error) {
	if rows < 1 || cols < 1 {
		return nil, ErrBadGrid
	}
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode composite image: %w", err)
	}
	bounds := src.Bounds()
	if bounds.Dx() < cols || bounds.Dy() < rows {
		return nil, fmt.Errorf("%w: %dx%d grid on %dx%d image", ErrBadGrid, rows, cols, bounds.Dx(), bounds.Dy())
	}
	sub, ok := src.(subImager)
	if !ok {
		return nil, fmt.Errorf("decoded image %T does not support cropping", src)
	}

	pool, err := ants.NewPool(t.parallelism)
	if err != nil {
		return nil, fmt.Errorf("create tile pool: %w", err)
	}
	defer pool.Release()

	base := baseName(sourceKey)
	tileW, tileH := bounds.Dx()/cols, bounds.Dy()/rows
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		keys  = make([]string, 0, rows*cols)
		errCh = make(chan error, rows*cols)
	)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rect := image.Rect(
				bounds.Min.X+c*tileW, bounds.Min.Y+r*tileH,
				bounds.Min.X+(c+1)*tileW, bounds.Min.Y+(r+1)*tileH,
			)
			if c == cols-1 {
				rect.Max.X = bounds.Max.X
			}
			if r == rows-1 {
				rect.Max.Y = bounds.Max.Y
			}
			key := fmt.Sprintf("%s%s/%d_%d.png", t.prefix, base, r, c)
			wg.Add(1)
			task := func() {
				defer wg.Done()
				var buf bytes.Buffer
				if err := png.Encode(&buf, sub.SubImage(rect)); err != nil {
					errCh <- fmt.Errorf("encode tile %s: %w", key, err)
					return
				}
				if err := t.store.Put(ctx, key, buf.Bytes(), ContentTypePNG); err != nil {
					errCh <- fmt.Errorf("upload tile %s: %w", key, err)
					return
				}
				mu.Lock()
				keys = append(keys, key)
				mu.Unlock()
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				errCh <- fmt.Errorf("submit tile task: %w", err)
			}
		}
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func baseName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.LastIndex(key, "."); i > 0 {
		key = key[:i]
	}
	return key
}
