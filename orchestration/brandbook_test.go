//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-gameasset-go/document"
	"trpc.group/trpc-go/trpc-gameasset-go/model"
	"trpc.group/trpc-go/trpc-gameasset-go/render"
)

func TestParseAssetPrompts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want AssetPrompts
	}{
		{
			name: "fenced",
			in: "```json\n{\"Character prompt\": \"cat\", \"Obstacles prompt\": \"spires\"," +
				" \"Background prompt\": \"sky\"}\n```",
			want: AssetPrompts{Character: "cat", Obstacles: "spires", Background: "sky"},
		},
		{
			name: "colon keys and chatter",
			in:   `Here you go: {"Character prompt": "cat", "Obstacles prompt:": "spires", "Background prompt:": "sky"} enjoy`,
			want: AssetPrompts{Character: "cat", Obstacles: "spires", Background: "sky"},
		},
		{
			name: "escaped quotes and newlines",
			in:   `{"Character prompt": "a cat named \"Katty\"\n  running", "Background prompt": "sky"}`,
			want: AssetPrompts{Character: `a cat named "Katty" running`, Background: "sky"},
		},
		{
			name: "partial",
			in:   `{"character": "cat", "extra": 3}`,
			want: AssetPrompts{Character: "cat"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssetPrompts(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAssetPrompts("not json at all")
	assert.ErrorContains(t, err, "decode asset prompts")

	_, err = ParseAssetPrompts(`{"unrelated": "x"}`)
	assert.ErrorIs(t, err, ErrNoAssetPrompts)
}

func TestBrandbook(t *testing.T) {
	text := &scriptedText{answers: []string{`{"Character prompt": "cat", "Obstacles prompt": "spires", "Background prompt": "sky"}`}}
	core := NewCore(text, &stubImages{}, newArtifacts())

	got, err := core.Brandbook(context.Background(), []*document.Document{brandDoc()})
	require.NoError(t, err)
	assert.Equal(t, AssetPrompts{Character: "cat", Obstacles: "spires", Background: "sky"}, got)

	blocks := text.convs[0][0].Blocks
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0].Text, "Katty")
	assert.Contains(t, blocks[0].Text, `"Background prompt"`)

	got, err = core.Brandbook(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.Len(t, text.convs, 1)
}

// rawText answers with a fixed reply. Generate normalizes it like the real
// backends do; GenerateRaw returns it verbatim.
type rawText struct {
	reply string
	raw   int
}

func (r *rawText) Generate(context.Context, model.Conversation) (string, error) {
	return model.NormalizeText(r.reply), nil
}

func (r *rawText) GenerateRaw(context.Context, model.Conversation) (string, error) {
	r.raw++
	return r.reply, nil
}

func (*rawText) Info() model.Info { return model.Info{Name: "raw", Provider: "test"} }

func TestBrandbookEscapedQuotes(t *testing.T) {
	text := &rawText{reply: "```json\n{\"Character prompt\": \"a cat named \\\"Katty\\\" running\",\n" +
		" \"Obstacles prompt\": \"crystal spires\",\n \"Background prompt\": \"night sky\"}\n```"}
	core := NewCore(text, &stubImages{}, newArtifacts())

	got, err := core.Brandbook(context.Background(), []*document.Document{brandDoc()})
	require.NoError(t, err)
	assert.Equal(t, 1, text.raw)
	assert.Equal(t, AssetPrompts{
		Character:  `a cat named "Katty" running`,
		Obstacles:  "crystal spires",
		Background: "night sky",
	}, got)
}

type fakeRenderer struct {
	classes []string
	failOn  string
}

func (f *fakeRenderer) Generate(_ context.Context, class, _ string) (*render.Asset, error) {
	f.classes = append(f.classes, class)
	if class == f.failOn {
		return nil, errors.New("queue full")
	}
	key := class + "/1.png"
	return &render.Asset{Class: class, Key: key, Locator: "s3://game-bucket/" + key}, nil
}

func TestRenderAssets(t *testing.T) {
	r := &fakeRenderer{}
	core := NewCore(&scriptedText{}, &stubImages{}, newArtifacts(), WithRenderer(r))

	assets, err := core.RenderAssets(context.Background(), AssetPrompts{Character: "cat", Background: "sky"})
	require.NoError(t, err)
	assert.Equal(t, []string{render.ClassCharacter, render.ClassBackground}, r.classes)
	assert.Equal(t, "character/1.png", assets.Character.Key)
	assert.Nil(t, assets.Obstacle)
	assert.Equal(t, "s3://game-bucket/background/1.png", assets.Background.Locator)
}

func TestRenderAssetsErrors(t *testing.T) {
	_, err := NewCore(&scriptedText{}, &stubImages{}, newArtifacts()).RenderAssets(context.Background(), AssetPrompts{})
	assert.ErrorIs(t, err, ErrNoRenderer)

	r := &fakeRenderer{failOn: render.ClassObstacle}
	core := NewCore(&scriptedText{}, &stubImages{}, newArtifacts(), WithRenderer(r))
	_, err = core.RenderAssets(context.Background(), AssetPrompts{Character: "a", Obstacles: "b", Background: "c"})
	assert.ErrorContains(t, err, "render obstacle: queue full")
	assert.Equal(t, []string{render.ClassCharacter, render.ClassObstacle}, r.classes)
}
