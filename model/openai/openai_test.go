//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func noSleep() retry.Policy {
	p := retry.Default(retry.OnPredicate(IsThrottling))
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestTextModelGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`A guide\nwith  \"quotes\"`))
	}))
	defer srv.Close()

	m := NewTextModel("gpt-4o", WithAPIKey("sk-test"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	assert.Equal(t, "openai", m.Info().Provider)

	pdfDoc := &document.Document{Format: "pdf", Name: "Brand", Data: []byte("%PDF-1.4")}
	txtDoc := &document.Document{Format: "txt", Name: "Notes", Filename: "notes.txt", Data: []byte("mascot is a fox")}
	text, err := m.Generate(context.Background(), model.Conversation{
		model.UserTurn(model.TextBlock("guide please"), model.DocumentBlock(pdfDoc), model.DocumentBlock(txtDoc)),
	})
	require.NoError(t, err)
	assert.Equal(t, `A guide with "quotes"`, text)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.EqualValues(t, 2048, body["max_completion_tokens"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	parts := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "guide please", parts[0].(map[string]any)["text"])
	file := parts[1].(map[string]any)["file"].(map[string]any)
	assert.Equal(t, "data:application/pdf;base64,"+base64.StdEncoding.EncodeToString(pdfDoc.Data), file["file_data"])
	assert.Equal(t, "Brand.pdf", file["filename"])
	assert.Contains(t, parts[2].(map[string]any)["text"], "mascot is a fox")
}

func TestTextModelThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	m := NewTextModel("gpt-4o", WithAPIKey("k"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	_, err := m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.EqualValues(t, 3, calls.Load())
}

func TestTextModelServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad input"}}`))
	}))
	defer srv.Close()

	m := NewTextModel("gpt-4o", WithAPIKey("k"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	_, err := m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, model.KindUnexpected, me.Kind)
	assert.EqualValues(t, 1, calls.Load())
}

func TestTextModelUnsupportedDocument(t *testing.T) {
	m := NewTextModel("gpt-4o", WithAPIKey("k"), WithBaseURL("http://127.0.0.1:0"))
	_, err := m.Generate(context.Background(), model.Conversation{model.UserTurn(
		model.DocumentBlock(&document.Document{Format: "png", Data: []byte{1}}),
	)})
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
}

func TestImageModelGenerate(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d}
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1700000000,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer srv.Close()

	m := NewImageModel("dall-e-2", WithAPIKey("k"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	img, err := m.GenerateImage(context.Background(), model.NewImageRequest("pixel fox"))
	require.NoError(t, err)
	assert.Equal(t, png, img)
	assert.Equal(t, "pixel fox", body["prompt"])
	assert.Equal(t, "512x512", body["size"])
	assert.Equal(t, "b64_json", body["response_format"])
	assert.EqualValues(t, 1, body["n"])
}

func TestImageModelEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created": 1, "data": []}`))
	}))
	defer srv.Close()

	m := NewImageModel("dall-e-2", WithAPIKey("k"), WithBaseURL(srv.URL), WithRetryPolicy(noSleep()))
	_, err := m.GenerateImage(context.Background(), model.NewImageRequest("x"))
	assert.ErrorIs(t, err, errEmptyResponse)
}
