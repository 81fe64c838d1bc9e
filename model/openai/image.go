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
	"fmt"

	"github.com/openai/openai-go"

	"trpc.group/trpc-go/trpc-gameasset-go/log"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
)

// ImageModel calls the images API.
type ImageModel struct {
	name   string
	client openai.Client
	opts   *options
}

// NewImageModel creates an images API model.
func NewImageModel(name string, opts ...Option) *ImageModel {
	client, o := newClient(opts)
	return &ImageModel{name: name, client: client, opts: o}
}

// Info implements model.ImageModel.
func (m *ImageModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: providerName}
}

// GenerateImage implements model.ImageModel. The images API has no seed
// parameter, so req.Seed is only logged.
func (m *ImageModel) GenerateImage(ctx context.Context, req model.ImageRequest) ([]byte, error) {
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(m.name),
		N:              openai.Int(int64(req.NumberOfImages)),
		Size:           openai.ImageGenerateParamsSize(fmt.Sprintf("%dx%d", req.Width, req.Height)),
		Quality:        openai.ImageGenerateParamsQuality(req.Quality),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}
	log.Infof("openai image generation: model=%s seed=%d", m.name, req.Seed)

	var img []byte
	err := model.Invoke(ctx, m.opts.policy, func(ctx context.Context) error {
		rsp, err := m.client.Images.Generate(ctx, params)
		if err != nil {
			log.Errorf("openai image generation failed: %v", err)
			return err
		}
		if len(rsp.Data) == 0 || rsp.Data[0].B64JSON == "" {
			return errEmptyResponse
		}
		img, err = base64.StdEncoding.DecodeString(rsp.Data[0].B64JSON)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}
