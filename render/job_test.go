//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package render

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const characterWorkflow = `{
  "5": {"class_type": "CLIPTextEncode", "inputs": {"text": "placeholder", "clip": ["4", 1]}},
  "7": {"class_type": "KSampler", "inputs": {"seed": 156680208700286, "steps": 20, "cfg": 8}},
  "9": {"class_type": "SaveImageWebsocket", "inputs": {"images": ["8", 0]}},
  "11": {"class_type": "Note"}
}`

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJob(t *testing.T) {
	path := writeWorkflow(t, characterWorkflow)
	job, err := LoadJob(path, Binding{Seed: "7", Prompt: "5"})
	require.NoError(t, err)
	assert.Equal(t, StateCreated, job.State)
	assert.Equal(t, []string{"11", "5", "7", "9"}, job.NodeIDs())
	assert.Equal(t, json.Number("156680208700286"), job.Graph["7"].Inputs["seed"])
}

func TestLoadJobErrors(t *testing.T) {
	_, err := LoadJob(filepath.Join(t.TempDir(), "missing.json"), Binding{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadJob(writeWorkflow(t, `{"5": `), Binding{})
	assert.ErrorContains(t, err, "decode job graph")

	_, err = LoadJob(writeWorkflow(t, `{}`), Binding{})
	assert.ErrorIs(t, err, ErrEmptyGraph)

	_, err = LoadJob(writeWorkflow(t, characterWorkflow), Binding{Seed: "3", Prompt: "5"})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = LoadJob(writeWorkflow(t, characterWorkflow), Binding{Seed: "7", Prompt: "11"})
	assert.ErrorIs(t, err, ErrNodeInputs)
}

func TestSetters(t *testing.T) {
	job, err := ParseJob([]byte(characterWorkflow), Binding{Seed: "7", Prompt: "5"})
	require.NoError(t, err)

	require.NoError(t, job.SetPrompt("pixel art sloth"))
	assert.Equal(t, "pixel art sloth", job.Graph["5"].Inputs["text"])

	for i := 0; i < 100; i++ {
		seed, err := job.SetSeed()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, seed, MinSeed)
		assert.LessOrEqual(t, seed, MaxSeed)
		assert.Equal(t, seed, job.Graph["7"].Inputs["seed"])
	}

	assert.ErrorIs(t, job.SetImage([]byte("png")), ErrUnbound)
}

func TestSetImage(t *testing.T) {
	job, err := ParseJob([]byte(`{"14": {"class_type": "LoadImage", "inputs": {}}}`), Binding{Image: "14"})
	require.NoError(t, err)
	require.NoError(t, job.SetImage([]byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), job.Graph["14"].Inputs["image"])
}

func TestSetInputLeavesGraphUnchanged(t *testing.T) {
	job, err := ParseJob([]byte(characterWorkflow), Binding{})
	require.NoError(t, err)
	before, err := json.Marshal(job.Graph)
	require.NoError(t, err)

	assert.ErrorIs(t, job.SetInput("42", FieldText, "x"), ErrNodeNotFound)
	assert.ErrorIs(t, job.SetInput("11", FieldText, "x"), ErrNodeInputs)
	assert.ErrorIs(t, job.SetPrompt("x"), ErrUnbound)
	_, err = job.SetSeed()
	assert.ErrorIs(t, err, ErrUnbound)

	after, err := json.Marshal(job.Graph)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "state(9)", State(9).String())
}
