//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"context"
	"io"
	"net/http"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// forbidOverwriteHeader makes COS reject a put onto an existing object.
const forbidOverwriteHeader = "x-cos-forbid-overwrite"

// client interface is unstable and may change in the future.
type client interface {
	GetBucket(ctx context.Context, prefix, marker string, maxKeys int) (*cos.BucketGetResult, error)
	HeadObject(ctx context.Context, name string) error
	PutObject(ctx context.Context, name string, content io.Reader, mimeType string, forbidOverwrite bool) error
	GetObject(ctx context.Context, name string) (body io.ReadCloser, header http.Header, err error)
	ObjectURL(name string) string
}

type cosClient struct {
	*cos.Client
}

func newCosClient(client *cos.Client) client {
	return &cosClient{Client: client}
}

func (c *cosClient) GetBucket(ctx context.Context, prefix, marker string, maxKeys int) (*cos.BucketGetResult, error) {
	result, _, err := c.Client.Bucket.Get(ctx, &cos.BucketGetOptions{
		Prefix:  prefix,
		Marker:  marker,
		MaxKeys: maxKeys,
	})
	return result, err
}

func (c *cosClient) HeadObject(ctx context.Context, name string) error {
	_, err := c.Client.Object.Head(ctx, name, nil)
	return err
}

func (c *cosClient) PutObject(ctx context.Context, name string, content io.Reader, mimeType string, forbidOverwrite bool) error {
	header := &cos.ObjectPutHeaderOptions{
		ContentType: mimeType,
	}
	if forbidOverwrite {
		h := make(http.Header)
		h.Set(forbidOverwriteHeader, "true")
		header.XOptionHeader = &h
	}
	_, err := c.Client.Object.Put(ctx, name, content, &cos.ObjectPutOptions{ObjectPutHeaderOptions: header})
	return err
}

func (c *cosClient) GetObject(ctx context.Context, name string) (body io.ReadCloser, header http.Header, err error) {
	resp, err := c.Client.Object.Get(ctx, name, nil)
	if err != nil {
		return nil, nil, err
	}
	return resp.Body, resp.Header, nil
}

func (c *cosClient) ObjectURL(name string) string {
	base := c.Client.BaseURL.BucketURL.String()
	return strings.TrimSuffix(base, "/") + "/" + name
}
