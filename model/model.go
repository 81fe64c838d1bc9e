//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the contracts for text and image generation
// backends used by the asset pipeline.
package model

import (
	"context"
	"errors"
	"math/rand/v2"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
)

// Role is the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType distinguishes content blocks.
type BlockType string

// Content block types.
const (
	BlockText     BlockType = "text"
	BlockDocument BlockType = "document"
)

// ContentBlock is either a text block or a document block.
type ContentBlock struct {
	Type     BlockType
	Text     string
	Document *document.Document
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// DocumentBlock returns a document content block.
func DocumentBlock(doc *document.Document) ContentBlock {
	return ContentBlock{Type: BlockDocument, Document: doc}
}

// Turn is one message of a conversation.
type Turn struct {
	Role   Role
	Blocks []ContentBlock
}

// UserTurn builds a user turn from the given blocks.
func UserTurn(blocks ...ContentBlock) Turn {
	return Turn{Role: RoleUser, Blocks: blocks}
}

// Conversation is an ordered list of turns sent to a text model.
type Conversation []Turn

// ErrInvalidConversation is returned for conversations that cannot be sent.
var ErrInvalidConversation = errors.New("model: invalid conversation")

// Validate checks that every turn has at least one block and that
// document blocks carry data.
func (c Conversation) Validate() error {
	if len(c) == 0 {
		return ErrInvalidConversation
	}
	for _, turn := range c {
		if len(turn.Blocks) == 0 {
			return ErrInvalidConversation
		}
		for _, b := range turn.Blocks {
			if b.Type == BlockDocument && (b.Document == nil || len(b.Document.Data) == 0) {
				return ErrInvalidConversation
			}
		}
	}
	return nil
}

// GenerationConfig holds the sampling parameters of a text invocation.
type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultGenerationConfig returns the parameters used for every text call.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{MaxTokens: 2048, Temperature: 0.3}
}

// TextModel generates text from a conversation.
type TextModel interface {
	// Generate returns the normalized text of the first text block of the reply.
	Generate(ctx context.Context, conv Conversation) (string, error)
	// Info returns basic information about the model.
	Info() Info
}

// RawTextModel is a TextModel that can also return the reply exactly as the
// provider sent it, for callers that parse structured output such as JSON.
type RawTextModel interface {
	TextModel
	GenerateRaw(ctx context.Context, conv Conversation) (string, error)
}

// GenerateRaw returns the unnormalized reply when m implements RawTextModel
// and falls back to Generate otherwise.
func GenerateRaw(ctx context.Context, m TextModel, conv Conversation) (string, error) {
	if rm, ok := m.(RawTextModel); ok {
		return rm.GenerateRaw(ctx, conv)
	}
	return m.Generate(ctx, conv)
}

// Image generation defaults.
const (
	DefaultImageSize    = 512
	DefaultImageQuality = "standard"
	MaxImageSeed        = 858_993_460
)

// ImageRequest describes one text-to-image invocation.
type ImageRequest struct {
	Prompt         string
	Width          int
	Height         int
	NumberOfImages int
	Quality        string
	Seed           int64
}

// NewImageRequest builds the default 512x512 single image request with a
// freshly drawn seed.
func NewImageRequest(prompt string) ImageRequest {
	return ImageRequest{
		Prompt:         prompt,
		Width:          DefaultImageSize,
		Height:         DefaultImageSize,
		NumberOfImages: 1,
		Quality:        DefaultImageQuality,
		Seed:           RandomSeed(),
	}
}

// RandomSeed draws a seed uniformly from [0, MaxImageSeed].
func RandomSeed() int64 {
	return rand.Int64N(MaxImageSeed + 1)
}

// ImageModel generates images from a prompt.
type ImageModel interface {
	// GenerateImage returns the decoded bytes of the first generated image.
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about a model.
type Info struct {
	Name     string
	Provider string
}
