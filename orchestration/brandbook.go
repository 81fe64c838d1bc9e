//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	itelemetry "trpc.group/trpc-go/trpc-gameasset-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/prompt"
	"trpc.group/trpc-go/trpc-gameasset-go/render"
	gtrace "trpc.group/trpc-go/trpc-gameasset-go/telemetry/trace"
)

// ErrNoAssetPrompts is returned when the brand book answer holds no prompt.
var ErrNoAssetPrompts = errors.New("orchestration: no asset prompts in model output")

// AssetPrompts are the per-class prompts derived from a brand book.
type AssetPrompts struct {
	Character  string `json:"character"`
	Obstacles  string `json:"obstacles"`
	Background string `json:"background"`
}

// IsZero reports whether no prompt is set.
func (p AssetPrompts) IsZero() bool {
	return p == AssetPrompts{}
}

// RenderedAssets holds one stored render per class. Classes without a
// prompt are left nil.
type RenderedAssets struct {
	Character  *render.Asset `json:"character,omitempty"`
	Obstacle   *render.Asset `json:"obstacle,omitempty"`
	Background *render.Asset `json:"background,omitempty"`
}

// Brandbook asks the text model for character, obstacle and background
// prompts matching the brand book documents. The style examples come from
// the defaults of the brandbook template. Without documents it returns zero
// prompts and makes no call.
func (c *Core) Brandbook(ctx context.Context, docs []*document.Document) (prompts AssetPrompts, err error) {
	docs = nonEmpty(docs)
	if len(docs) == 0 {
		return AssetPrompts{}, nil
	}
	ctx, span := gtrace.Tracer.Start(ctx, itelemetry.SpanNameBrandbook)
	defer func() { itelemetry.EndSpan(span, err) }()

	instruction, err := c.prompts.Render(prompt.BrandbookID, nil)
	if err != nil {
		return AssetPrompts{}, err
	}
	blocks := []model.ContentBlock{model.TextBlock(instruction)}
	for _, d := range docs {
		blocks = append(blocks, model.DocumentBlock(d))
	}
	conv := model.Conversation{model.UserTurn(blocks...)}
	// The reply is JSON, so it is parsed before any normalization.
	out, err := model.GenerateRaw(ctx, c.text, conv)
	itelemetry.TraceModelCall(span, c.text.Info(), conv, out)
	if err != nil {
		return AssetPrompts{}, fmt.Errorf("generate brandbook prompts: %w", err)
	}
	return ParseAssetPrompts(out)
}

// ParseAssetPrompts decodes the model answer. Code fences are stripped and
// keys are matched loosely, so "Obstacles prompt:" and "obstacles prompt"
// are both accepted. Prompt values are normalized after decoding.
func ParseAssetPrompts(out string) (AssetPrompts, error) {
	cleaned := strings.NewReplacer("```json", "", "```", "").Replace(out)
	cleaned = strings.TrimSpace(cleaned)
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return AssetPrompts{}, fmt.Errorf("decode asset prompts: %w", err)
	}
	var p AssetPrompts
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = model.NormalizeText(s)
		switch normalizeKey(k) {
		case "character prompt", "character":
			p.Character = s
		case "obstacles prompt", "obstacle prompt", "obstacles", "obstacle":
			p.Obstacles = s
		case "background prompt", "background":
			p.Background = s
		}
	}
	if p.IsZero() {
		return AssetPrompts{}, ErrNoAssetPrompts
	}
	return p, nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(k), ":")))
}

// RenderAssets renders character, obstacle and background in that order.
// Empty prompts are skipped; the first failure aborts.
func (c *Core) RenderAssets(ctx context.Context, prompts AssetPrompts) (assets *RenderedAssets, err error) {
	if c.renderer == nil {
		return nil, ErrNoRenderer
	}
	ctx, span := gtrace.Tracer.Start(ctx, itelemetry.SpanNameRenderAssets)
	defer func() { itelemetry.EndSpan(span, err) }()

	assets = &RenderedAssets{}
	for _, item := range []struct {
		class  string
		prompt string
		dst    **render.Asset
	}{
		{render.ClassCharacter, prompts.Character, &assets.Character},
		{render.ClassObstacle, prompts.Obstacles, &assets.Obstacle},
		{render.ClassBackground, prompts.Background, &assets.Background},
	} {
		if strings.TrimSpace(item.prompt) == "" {
			continue
		}
		err := c.step(ctx, item.class, func(ctx context.Context, span trace.Span) error {
			span.SetAttributes(attribute.String(itelemetry.KeyAssetClass, item.class))
			a, err := c.renderer.Generate(ctx, item.class, item.prompt)
			if err != nil {
				return err
			}
			itelemetry.TraceArtifact(span, a.Key, a.Locator)
			*item.dst = a
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", item.class, err)
		}
		log.Infof("orchestration: rendered %s as %s", item.class, (*item.dst).Key)
	}
	return assets, nil
}
