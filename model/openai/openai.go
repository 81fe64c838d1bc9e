//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package openai implements the text and image models on OpenAI compatible APIs.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

const providerName = "openai"

var errEmptyResponse = errors.New("openai: response has no content")

// IsThrottling reports whether err is an HTTP 429 from the API.
func IsThrottling(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

type options struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	policy        retry.Policy
	openaiOptions []openaiopt.RequestOption
}

// Option configures an OpenAI model.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL sets the API base URL, for OpenAI compatible gateways.
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

// WithOpenAIOptions appends raw openai-go request options.
func WithOpenAIOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) { o.openaiOptions = append(o.openaiOptions, opts...) }
}

func newClient(opts []Option) (openai.Client, *options) {
	o := &options{policy: retry.Default(retry.OnPredicate(IsThrottling))}
	for _, opt := range opts {
		opt(o)
	}
	// Retries are driven by the policy, not by the SDK.
	clientOpts := []openaiopt.RequestOption{openaiopt.WithMaxRetries(0)}
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(o.httpClient))
	}
	clientOpts = append(clientOpts, o.openaiOptions...)
	return openai.NewClient(clientOpts...), o
}

var _ model.RawTextModel = (*TextModel)(nil)

// TextModel calls the chat completions API.
type TextModel struct {
	name   string
	gen    model.GenerationConfig
	client openai.Client
	opts   *options
}

// NewTextModel creates a chat completions text model.
func NewTextModel(name string, opts ...Option) *TextModel {
	client, o := newClient(opts)
	return &TextModel{name: name, gen: model.DefaultGenerationConfig(), client: client, opts: o}
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
	log.Infof("openai chat completion response: %s", text)
	return text, nil
}

// GenerateRaw implements model.RawTextModel.
func (m *TextModel) GenerateRaw(ctx context.Context, conv model.Conversation) (string, error) {
	if err := conv.Validate(); err != nil {
		return "", err
	}
	messages, err := convertMessages(conv)
	if err != nil {
		return "", err
	}
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(m.name),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(m.gen.MaxTokens)),
		Temperature:         openai.Float(m.gen.Temperature),
	}
	log.Infof("openai chat completion: model=%s turns=%d", m.name, len(conv))

	var text string
	err = model.Invoke(ctx, m.opts.policy, func(ctx context.Context) error {
		rsp, err := m.client.Chat.Completions.New(ctx, params)
		if err != nil {
			log.Errorf("openai chat completion failed: %v", err)
			return err
		}
		if len(rsp.Choices) == 0 || rsp.Choices[0].Message.Content == "" {
			return errEmptyResponse
		}
		text = rsp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func convertMessages(conv model.Conversation) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, turn := range conv {
		if turn.Role == model.RoleAssistant {
			result = append(result, openai.AssistantMessage(joinText(turn)))
			continue
		}
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(turn.Blocks))
		for _, b := range turn.Blocks {
			part, err := convertBlock(b)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		result = append(result, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: parts},
			},
		})
	}
	return result, nil
}

// convertBlock sends PDFs as file parts and every other document as
// extracted text, since the API only accepts PDF files inline.
func convertBlock(b model.ContentBlock) (openai.ChatCompletionContentPartUnionParam, error) {
	if b.Type != model.BlockDocument {
		return openai.TextContentPart(b.Text), nil
	}
	doc := b.Document
	if doc.Format == "pdf" {
		return openai.ChatCompletionContentPartUnionParam{
			OfFile: &openai.ChatCompletionContentPartFileParam{
				File: openai.ChatCompletionContentPartFileFileParam{
					FileData: openai.String("data:" + doc.MIMEType() + ";base64," +
						base64.StdEncoding.EncodeToString(doc.Data)),
					Filename: openai.String(doc.Name + ".pdf"),
				},
			},
		}, nil
	}
	text, err := document.ExtractText(doc)
	if err != nil {
		return openai.ChatCompletionContentPartUnionParam{}, fmt.Errorf("openai: %w", err)
	}
	return openai.TextContentPart(fmt.Sprintf("Document %q:\n%s", doc.Name, text)), nil
}

func joinText(turn model.Turn) string {
	var s string
	for _, b := range turn.Blocks {
		if b.Type == model.BlockText {
			if s != "" {
				s += "\n"
			}
			s += b.Text
		}
	}
	return s
}
