//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package orchestration runs the asset generation pipeline: documents are
// turned into a game guide, the guide into a character prompt, the prompt
// into a stored image, and the result is recorded in the provenance ledger.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-gameasset-go/artifact"
	"trpc.group/trpc-go/trpc-gameasset-go/document"
	itelemetry "trpc.group/trpc-go/trpc-gameasset-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-gameasset-go/ledger"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/prompt"
	"trpc.group/trpc-go/trpc-gameasset-go/render"
	gmetric "trpc.group/trpc-go/trpc-gameasset-go/telemetry/metric"
	gtrace "trpc.group/trpc-go/trpc-gameasset-go/telemetry/trace"
)

// ErrNoRenderer is returned by RenderAssets when no renderer is configured.
var ErrNoRenderer = errors.New("orchestration: no asset renderer configured")

// ImageGenerator turns a prompt into a stored artifact and returns its key.
// Both the model backed imagegen.Generator and a render.ClassGenerator
// satisfy it.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AssetRenderer renders an asset class and stores the result.
type AssetRenderer interface {
	Generate(ctx context.Context, class, prompt string) (*render.Asset, error)
}

// Request is one pipeline invocation.
type Request struct {
	// ID keys the provenance record. When empty the image locator is used.
	ID string
	// Brief is optional free text appended to the guide instruction.
	Brief     string
	Documents []*document.Document
}

// Result is the pipeline output.
type Result struct {
	Guide           string `json:"guide"`
	CharacterPrompt string `json:"character_prompt"`
	ImageLocation   string `json:"image_location"`
}

// Core wires the pipeline collaborators together.
type Core struct {
	text      model.TextModel
	images    ImageGenerator
	artifacts *artifact.Service
	ledger    ledger.Service
	prompts   *prompt.Store
	renderer  AssetRenderer

	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Core.
type Option func(*Core)

// WithLedger records provenance for every run.
func WithLedger(l ledger.Service) Option {
	return func(c *Core) { c.ledger = l }
}

// WithPrompts replaces the built-in prompt templates.
func WithPrompts(s *prompt.Store) Option {
	return func(c *Core) { c.prompts = s }
}

// WithRenderer enables RenderAssets.
func WithRenderer(r AssetRenderer) Option {
	return func(c *Core) { c.renderer = r }
}

// NewCore creates a Core. Metric instruments are taken from the global
// meter, so telemetry must be started first for them to be exported.
func NewCore(text model.TextModel, images ImageGenerator, artifacts *artifact.Service, opts ...Option) *Core {
	c := &Core{
		text:      text,
		images:    images,
		artifacts: artifacts,
		prompts:   prompt.NewStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	var err error
	if c.runs, err = gmetric.Meter.Int64Counter(itelemetry.MetricRuns,
		metric.WithDescription("Pipeline runs by outcome.")); err != nil {
		log.Warnf("orchestration: create run counter: %v", err)
	}
	if c.duration, err = gmetric.Meter.Float64Histogram(itelemetry.MetricStepDuration,
		metric.WithDescription("Pipeline step duration."), metric.WithUnit("s")); err != nil {
		log.Warnf("orchestration: create step histogram: %v", err)
	}
	return c
}

// Run executes the pipeline. The steps run strictly in order and the first
// failure aborts the run; nothing already stored is rolled back.
// Empty documents are skipped; the guide instruction alone is enough input
// to run. Only a request with no id, no brief and no non-empty documents
// yields an empty Result without making any calls.
func (c *Core) Run(ctx context.Context, req Request) (res Result, err error) {
	docs := nonEmpty(req.Documents)
	brief := strings.TrimSpace(req.Brief)
	if req.ID == "" && brief == "" && len(docs) == 0 {
		log.Infof("orchestration: request %q has no input, skipping", req.ID)
		return Result{}, nil
	}

	ctx, span := gtrace.Tracer.Start(ctx, itelemetry.SpanNameRun,
		trace.WithAttributes(attribute.String(itelemetry.KeyRequestID, req.ID)))
	defer func() {
		itelemetry.EndSpan(span, err)
		c.countRun(ctx, err)
	}()

	guideText, err := c.prompts.Render(prompt.GuideID, nil)
	if err != nil {
		return Result{}, err
	}
	blocks := []model.ContentBlock{model.TextBlock(guideText)}
	if brief != "" {
		blocks = append(blocks, model.TextBlock(brief))
	}
	for _, d := range docs {
		blocks = append(blocks, model.DocumentBlock(d))
	}
	log.Infof("orchestration: request %q with %d documents", req.ID, len(docs))

	guide, err := c.generateText(ctx, itelemetry.StepGuide, model.Conversation{model.UserTurn(blocks...)})
	if err != nil {
		return Result{}, err
	}

	instruction, err := c.prompts.Render(prompt.CharacterImageID, nil)
	if err != nil {
		return Result{}, err
	}
	characterPrompt, err := c.generateText(ctx, itelemetry.StepCharacterPrompt, model.Conversation{
		model.UserTurn(model.TextBlock(guide), model.TextBlock(instruction)),
	})
	if err != nil {
		return Result{}, err
	}

	var key string
	err = c.step(ctx, itelemetry.StepImage, func(ctx context.Context, span trace.Span) error {
		var err error
		if key, err = c.images.Generate(ctx, characterPrompt); err != nil {
			return err
		}
		itelemetry.TraceArtifact(span, key, c.artifacts.Locator(key))
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate image: %w", err)
	}
	locator := c.artifacts.Locator(key)

	if c.ledger != nil {
		recordKey := req.ID
		if recordKey == "" {
			recordKey = locator
		}
		err = c.step(ctx, itelemetry.StepProvenance, func(ctx context.Context, _ trace.Span) error {
			return c.ledger.Put(ctx, ledger.Record{Key: recordKey, Locator: locator, Prompt: characterPrompt})
		})
		if err != nil {
			return Result{}, fmt.Errorf("record provenance: %w", err)
		}
	}

	log.Infof("orchestration: request %q stored %s", req.ID, locator)
	return Result{Guide: guide, CharacterPrompt: characterPrompt, ImageLocation: locator}, nil
}

func (c *Core) generateText(ctx context.Context, step string, conv model.Conversation) (string, error) {
	var out string
	err := c.step(ctx, step, func(ctx context.Context, span trace.Span) error {
		var err error
		out, err = c.text.Generate(ctx, conv)
		itelemetry.TraceModelCall(span, c.text.Info(), conv, out)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", step, err)
	}
	return out, nil
}

// step runs fn inside a span and records its duration.
func (c *Core) step(ctx context.Context, name string, fn func(context.Context, trace.Span) error) (err error) {
	ctx, span := gtrace.Tracer.Start(ctx, itelemetry.NewStepSpanName(name),
		trace.WithAttributes(attribute.String(itelemetry.KeyStep, name)))
	start := time.Now()
	defer func() {
		itelemetry.EndSpan(span, err)
		if c.duration != nil {
			c.duration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String(itelemetry.KeyStep, name)))
		}
	}()
	return fn(ctx, span)
}

func (c *Core) countRun(ctx context.Context, err error) {
	if c.runs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.runs.Add(ctx, 1, metric.WithAttributes(attribute.String(itelemetry.KeyOutcome, outcome)))
}

func nonEmpty(docs []*document.Document) []*document.Document {
	out := make([]*document.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil && len(d.Data) > 0 {
			out = append(out, d)
		}
	}
	return out
}
