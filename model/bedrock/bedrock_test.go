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
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

type fakeClient struct {
	converseInputs []*bedrockruntime.ConverseInput
	invokeInputs   []*bedrockruntime.InvokeModelInput
	converse       func(n int) (*bedrockruntime.ConverseOutput, error)
	invoke         func(n int) (*bedrockruntime.InvokeModelOutput, error)
}

func (f *fakeClient) Converse(_ context.Context, in *bedrockruntime.ConverseInput,
	_ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.converseInputs = append(f.converseInputs, in)
	return f.converse(len(f.converseInputs))
}

func (f *fakeClient) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput,
	_ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.invokeInputs = append(f.invokeInputs, in)
	return f.invoke(len(f.invokeInputs))
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{Output: &types.ConverseOutputMemberMessage{Value: types.Message{
		Role:    types.ConversationRoleAssistant,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	}}}
}

func recordingPolicy(sleeps *[]time.Duration) retry.Policy {
	p := retry.Default(retry.OnPredicate(IsThrottling))
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return p
}

func TestIsThrottling(t *testing.T) {
	assert.True(t, IsThrottling(&types.ThrottlingException{Message: aws.String("slow")}))
	assert.True(t, IsThrottling(&smithy.GenericAPIError{Code: "TooManyRequestsException"}))
	assert.True(t, IsThrottling(&smithy.OperationError{
		ServiceID: "Bedrock Runtime", OperationName: "Converse",
		Err: &types.ThrottlingException{},
	}))
	assert.False(t, IsThrottling(&types.ValidationException{}))
	assert.False(t, IsThrottling(errors.New("ThrottlingException")))
}

func TestTextModelGenerate(t *testing.T) {
	fc := &fakeClient{converse: func(int) (*bedrockruntime.ConverseOutput, error) {
		return textOutput(`Game guide:\n  1. Collect \"stars\"`), nil
	}}
	m, err := NewTextModel(context.Background(), "anthropic.claude", WithClient(fc))
	require.NoError(t, err)
	assert.Equal(t, model.Info{Name: "anthropic.claude", Provider: "bedrock"}, m.Info())

	doc := &document.Document{Format: "pdf", Name: "Brand Book", Data: []byte("%PDF-1.4")}
	text, err := m.Generate(context.Background(), model.Conversation{
		model.UserTurn(model.TextBlock("make a guide"), model.DocumentBlock(doc)),
	})
	require.NoError(t, err)
	assert.Equal(t, `Game guide: 1. Collect "stars"`, text)

	require.Len(t, fc.converseInputs, 1)
	in := fc.converseInputs[0]
	assert.Equal(t, "anthropic.claude", aws.ToString(in.ModelId))
	assert.Equal(t, int32(2048), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.3, aws.ToFloat32(in.InferenceConfig.Temperature), 1e-6)
	require.Len(t, in.Messages, 1)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	require.Len(t, in.Messages[0].Content, 2)
	assert.Equal(t, "make a guide", in.Messages[0].Content[0].(*types.ContentBlockMemberText).Value)
	docBlock := in.Messages[0].Content[1].(*types.ContentBlockMemberDocument).Value
	assert.Equal(t, types.DocumentFormatPdf, docBlock.Format)
	assert.Equal(t, "Brand Book", aws.ToString(docBlock.Name))
	assert.Equal(t, doc.Data, docBlock.Source.(*types.DocumentSourceMemberBytes).Value)
}

func TestTextModelThrottlingExhausted(t *testing.T) {
	var sleeps []time.Duration
	fc := &fakeClient{converse: func(int) (*bedrockruntime.ConverseOutput, error) {
		return nil, &types.ThrottlingException{Message: aws.String("rate exceeded")}
	}}
	m, err := NewTextModel(context.Background(), "m", WithClient(fc), WithRetryPolicy(recordingPolicy(&sleeps)))
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.Len(t, fc.converseInputs, 3)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond}, sleeps)
}

func TestTextModelThrottlingRecovers(t *testing.T) {
	var sleeps []time.Duration
	fc := &fakeClient{converse: func(n int) (*bedrockruntime.ConverseOutput, error) {
		if n == 1 {
			return nil, &smithy.GenericAPIError{Code: "TooManyRequestsException"}
		}
		return textOutput("ok"), nil
	}}
	m, err := NewTextModel(context.Background(), "m", WithClient(fc), WithRetryPolicy(recordingPolicy(&sleeps)))
	require.NoError(t, err)

	text, err := m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Len(t, sleeps, 1)
}

func TestTextModelUnexpectedError(t *testing.T) {
	fc := &fakeClient{converse: func(int) (*bedrockruntime.ConverseOutput, error) {
		return nil, &types.ValidationException{Message: aws.String("bad document")}
	}}
	m, err := NewTextModel(context.Background(), "m", WithClient(fc))
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	var me *model.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, model.KindUnexpected, me.Kind)
	assert.Len(t, fc.converseInputs, 1)
}

func TestTextModelNoText(t *testing.T) {
	fc := &fakeClient{converse: func(int) (*bedrockruntime.ConverseOutput, error) {
		return &bedrockruntime.ConverseOutput{Output: &types.ConverseOutputMemberMessage{}}, nil
	}}
	m, err := NewTextModel(context.Background(), "m", WithClient(fc))
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), model.Conversation{model.UserTurn(model.TextBlock("hi"))})
	assert.ErrorIs(t, err, errNoText)
}

func TestTextModelRejectsInvalidConversation(t *testing.T) {
	m, err := NewTextModel(context.Background(), "m", WithClient(&fakeClient{}))
	require.NoError(t, err)
	_, err = m.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrInvalidConversation)
}

func TestImageModelGenerate(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	fc := &fakeClient{invoke: func(int) (*bedrockruntime.InvokeModelOutput, error) {
		body, _ := json.Marshal(map[string]any{"images": []string{base64.StdEncoding.EncodeToString(png)}})
		return &bedrockruntime.InvokeModelOutput{Body: body}, nil
	}}
	m, err := NewImageModel(context.Background(), "amazon.titan-image", WithClient(fc))
	require.NoError(t, err)

	req := model.NewImageRequest("a brave fox")
	req.Seed = 42
	img, err := m.GenerateImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, png, img)

	require.Len(t, fc.invokeInputs, 1)
	assert.JSONEq(t, `{
		"taskType": "TEXT_IMAGE",
		"textToImageParams": {"text": "a brave fox"},
		"imageGenerationConfig": {"seed": 42, "quality": "standard", "height": 512, "width": 512, "numberOfImages": 1}
	}`, string(fc.invokeInputs[0].Body))
}

func TestImageModelThrottling(t *testing.T) {
	var sleeps []time.Duration
	fc := &fakeClient{invoke: func(int) (*bedrockruntime.InvokeModelOutput, error) {
		return nil, &types.ThrottlingException{}
	}}
	m, err := NewImageModel(context.Background(), "m", WithClient(fc), WithRetryPolicy(recordingPolicy(&sleeps)))
	require.NoError(t, err)

	_, err = m.GenerateImage(context.Background(), model.NewImageRequest("x"))
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.Len(t, fc.invokeInputs, 3)
}

func TestImageModelBadResponses(t *testing.T) {
	bodies := [][]byte{
		[]byte(`not json`),
		[]byte(`{"images": []}`),
		[]byte(`{"error": "content filtered"}`),
		[]byte(`{"images": ["***"]}`),
	}
	for _, body := range bodies {
		fc := &fakeClient{invoke: func(int) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: body}, nil
		}}
		m, err := NewImageModel(context.Background(), "m", WithClient(fc))
		require.NoError(t, err)
		_, err = m.GenerateImage(context.Background(), model.NewImageRequest("x"))
		var me *model.Error
		require.ErrorAs(t, err, &me, string(body))
		assert.Equal(t, model.KindUnexpected, me.Kind)
	}
}

// throttlingServer answers every request with a Bedrock ThrottlingException.
func throttlingServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-Errortype", "ThrottlingException")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Too many requests, please wait before trying again."}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func staticCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func TestSDKClientMakesOneAttemptPerPolicyAttempt(t *testing.T) {
	staticCredentials(t)
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		var calls atomic.Int32
		srv := throttlingServer(t, &calls)
		var sleeps []time.Duration
		m, err := NewTextModel(ctx, "anthropic.claude", WithRegion("us-east-1"),
			WithEndpoint(srv.URL), WithRetryPolicy(recordingPolicy(&sleeps)))
		require.NoError(t, err)

		_, err = m.Generate(ctx, model.Conversation{model.UserTurn(model.TextBlock("hi"))})
		assert.ErrorIs(t, err, model.ErrRateLimited)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond}, sleeps)
	})

	t.Run("image", func(t *testing.T) {
		var calls atomic.Int32
		srv := throttlingServer(t, &calls)
		var sleeps []time.Duration
		m, err := NewImageModel(ctx, "amazon.titan-image", WithRegion("us-east-1"),
			WithEndpoint(srv.URL), WithRetryPolicy(recordingPolicy(&sleeps)))
		require.NoError(t, err)

		_, err = m.GenerateImage(ctx, model.NewImageRequest("x"))
		assert.ErrorIs(t, err, model.ErrRateLimited)
		assert.Equal(t, int32(3), calls.Load())
	})
}
