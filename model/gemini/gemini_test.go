//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

func noSleep() retry.Policy {
	p := retry.Default(retry.OnPredicate(IsThrottling))
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestIsThrottling(t *testing.T) {
	assert.True(t, IsThrottling(genai.APIError{Code: 429}))
	assert.True(t, IsThrottling(&genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}))
	assert.False(t, IsThrottling(genai.APIError{Code: 500}))
	assert.False(t, IsThrottling(io.EOF))
}

func TestConvertContents(t *testing.T) {
	doc := &document.Document{Format: "pdf", Name: "Brand", Data: []byte("%PDF")}
	contents := convertContents(model.Conversation{
		model.UserTurn(model.TextBlock("guide"), model.DocumentBlock(doc)),
		{Role: model.RoleAssistant, Blocks: []model.ContentBlock{model.TextBlock("ok")}},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "guide", contents[0].Parts[0].Text)
	assert.Equal(t, "application/pdf", contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, doc.Data, contents[0].Parts[1].InlineData.Data)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}

func TestTextModelGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "Fox\\nguide"}]}}]}`))
	}))
	defer srv.Close()

	m, err := NewTextModel(context.Background(), "gemini-2.0-flash",
		WithAPIKey("key"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	require.NoError(t, err)
	text, err := m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	require.NoError(t, err)
	assert.Equal(t, "Fox guide", text)

	cfg := body["generationConfig"].(map[string]any)
	assert.EqualValues(t, 2048, cfg["maxOutputTokens"])
	assert.InDelta(t, 0.3, cfg["temperature"], 1e-6)
}

func TestTextModelThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	m, err := NewTextModel(context.Background(), "gemini-2.0-flash",
		WithAPIKey("key"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.EqualValues(t, 3, calls.Load())
}
