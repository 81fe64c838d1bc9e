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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
)

const taskTextImage = "TEXT_IMAGE"

type imageRequest struct {
	TaskType              string                `json:"taskType"`
	TextToImageParams     textToImageParams     `json:"textToImageParams"`
	ImageGenerationConfig imageGenerationConfig `json:"imageGenerationConfig"`
}

type textToImageParams struct {
	Text string `json:"text"`
}

type imageGenerationConfig struct {
	Seed           int64  `json:"seed"`
	Quality        string `json:"quality"`
	Height         int    `json:"height"`
	Width          int    `json:"width"`
	NumberOfImages int    `json:"numberOfImages"`
}

type imageResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// ImageModel calls a text-to-image model through InvokeModel.
type ImageModel struct {
	modelID string
	opts    *options
}

// NewImageModel creates an InvokeModel based image model.
func NewImageModel(ctx context.Context, modelID string, opts ...Option) (*ImageModel, error) {
	o, err := newOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &ImageModel{modelID: modelID, opts: o}, nil
}

// Info implements model.ImageModel.
func (m *ImageModel) Info() model.Info {
	return model.Info{Name: m.modelID, Provider: providerName}
}

// GenerateImage implements model.ImageModel.
func (m *ImageModel) GenerateImage(ctx context.Context, req model.ImageRequest) ([]byte, error) {
	body, err := json.Marshal(imageRequest{
		TaskType:          taskTextImage,
		TextToImageParams: textToImageParams{Text: req.Prompt},
		ImageGenerationConfig: imageGenerationConfig{
			Seed:           req.Seed,
			Quality:        req.Quality,
			Height:         req.Height,
			Width:          req.Width,
			NumberOfImages: req.NumberOfImages,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal image request: %w", err)
	}
	log.Infof("bedrock invoke image model: model=%s seed=%d", m.modelID, req.Seed)

	var img []byte
	err = model.Invoke(ctx, m.opts.policy, func(ctx context.Context) error {
		out, err := m.opts.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(m.modelID),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			log.Errorf("bedrock invoke image model failed: %v", err)
			return err
		}
		img, err = decodeImage(out.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infof("bedrock image generated: %d bytes", len(img))
	return img, nil
}

func decodeImage(body []byte) ([]byte, error) {
	var rsp imageResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		return nil, fmt.Errorf("bedrock: decode image response: %w", err)
	}
	if rsp.Error != "" {
		return nil, errors.New(rsp.Error)
	}
	if len(rsp.Images) == 0 {
		return nil, errors.New("bedrock: response has no images")
	}
	return base64.StdEncoding.DecodeString(rsp.Images[0])
}
