//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
)

var errNoText = errors.New("bedrock: response has no text content")

var _ model.RawTextModel = (*TextModel)(nil)

// TextModel calls the Converse API.
type TextModel struct {
	modelID string
	gen     model.GenerationConfig
	opts    *options
}

// NewTextModel creates a Converse based text model.
func NewTextModel(ctx context.Context, modelID string, opts ...Option) (*TextModel, error) {
	o, err := newOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &TextModel{modelID: modelID, gen: model.DefaultGenerationConfig(), opts: o}, nil
}

// Info implements model.TextModel.
func (m *TextModel) Info() model.Info {
	return model.Info{Name: m.modelID, Provider: providerName}
}

// Generate implements model.TextModel.
func (m *TextModel) Generate(ctx context.Context, conv model.Conversation) (string, error) {
	text, err := m.GenerateRaw(ctx, conv)
	if err != nil {
		return "", err
	}
	text = model.NormalizeText(text)
	log.Infof("bedrock converse response: %s", text)
	return text, nil
}

// GenerateRaw implements model.RawTextModel.
func (m *TextModel) GenerateRaw(ctx context.Context, conv model.Conversation) (string, error) {
	if err := conv.Validate(); err != nil {
		return "", err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(m.modelID),
		Messages: toMessages(conv),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(m.gen.MaxTokens)),
			Temperature: aws.Float32(float32(m.gen.Temperature)),
		},
	}
	log.Infof("bedrock converse: model=%s turns=%d", m.modelID, len(conv))

	var text string
	err := model.Invoke(ctx, m.opts.policy, func(ctx context.Context) error {
		out, err := m.opts.client.Converse(ctx, input)
		if err != nil {
			log.Errorf("bedrock converse failed: %v", err)
			return err
		}
		text, err = firstText(out)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func toMessages(conv model.Conversation) []types.Message {
	msgs := make([]types.Message, 0, len(conv))
	for _, turn := range conv {
		role := types.ConversationRoleUser
		if turn.Role == model.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		content := make([]types.ContentBlock, 0, len(turn.Blocks))
		for _, b := range turn.Blocks {
			switch b.Type {
			case model.BlockDocument:
				content = append(content, &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
					Format: types.DocumentFormat(b.Document.Format),
					Name:   aws.String(b.Document.Name),
					Source: &types.DocumentSourceMemberBytes{Value: b.Document.Data},
				}})
			default:
				content = append(content, &types.ContentBlockMemberText{Value: b.Text})
			}
		}
		msgs = append(msgs, types.Message{Role: role, Content: content})
	}
	return msgs
}

func firstText(out *bedrockruntime.ConverseOutput) (string, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock: unexpected output type %T", out.Output)
	}
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			return t.Value, nil
		}
	}
	return "", errNoText
}
