//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini implements the text model on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

const providerName = "gemini"

var errEmptyResponse = errors.New("gemini: response has no text")

// IsThrottling reports whether err is a 429 or RESOURCE_EXHAUSTED API error.
func IsThrottling(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}
	return false
}

type options struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
}

// Option configures a Gemini model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRetryPolicy overrides the throttling retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

var _ model.RawTextModel = (*TextModel)(nil)

// TextModel calls GenerateContent.
type TextModel struct {
	name   string
	gen    model.GenerationConfig
	client *genai.Client
	policy retry.Policy
}

// NewTextModel creates a Gemini text model.
func NewTextModel(ctx context.Context, name string, opts ...Option) (*TextModel, error) {
	o := &options{policy: retry.Default(retry.OnPredicate(IsThrottling))}
	for _, opt := range opts {
		opt(o)
	}
	cfg := &genai.ClientConfig{
		APIKey:     o.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &TextModel{name: name, gen: model.DefaultGenerationConfig(), client: client, policy: o.policy}, nil
}

// Info implements model.TextModel.
func (m *TextModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: providerName}
}

// Generate implements model.TextModel.
func (m *TextModel) Generate(ctx context.Context, conv model.Conversation) (string, error) {
	text, err := m.GenerateRaw(ctx, conv)
	if err != nil {
		return "", err
	}
	text = model.NormalizeText(text)
	log.Infof("gemini generate content response: %s", text)
	return text, nil
}

// GenerateRaw implements model.RawTextModel.
func (m *TextModel) GenerateRaw(ctx context.Context, conv model.Conversation) (string, error) {
	if err := conv.Validate(); err != nil {
		return "", err
	}
	contents := convertContents(conv)
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(m.gen.MaxTokens),
		Temperature:     genai.Ptr(float32(m.gen.Temperature)),
	}
	log.Infof("gemini generate content: model=%s turns=%d", m.name, len(conv))

	var text string
	err := model.Invoke(ctx, m.policy, func(ctx context.Context) error {
		rsp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
		if err != nil {
			log.Errorf("gemini generate content failed: %v", err)
			return err
		}
		text = firstText(rsp)
		if text == "" {
			return errEmptyResponse
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func convertContents(conv model.Conversation) []*genai.Content {
	contents := make([]*genai.Content, 0, len(conv))
	for _, turn := range conv {
		role := genai.RoleUser
		if turn.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		parts := make([]*genai.Part, 0, len(turn.Blocks))
		for _, b := range turn.Blocks {
			if b.Type == model.BlockDocument {
				parts = append(parts, &genai.Part{InlineData: &genai.Blob{
					MIMEType: b.Document.MIMEType(),
					Data:     b.Document.Data,
				}})
				continue
			}
			parts = append(parts, &genai.Part{Text: b.Text})
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

func firstText(rsp *genai.GenerateContentResponse) string {
	for _, cand := range rsp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.Text != "" && !p.Thought {
				return p.Text
			}
		}
	}
	return ""
}
