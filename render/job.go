//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package render drives a queue based render server: a job graph is
// loaded from a template, parameterized, submitted over HTTP and the
// rendered image is received over a websocket message channel.
package render

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
)

// Seed range accepted by the render server's samplers.
const (
	MinSeed int64 = 4_294_967_294
	MaxSeed int64 = 742_213_406_368_043
)

// Input field names written by the typed setters.
const (
	FieldSeed  = "seed"
	FieldText  = "text"
	FieldImage = "image"
)

// Errors reported by job mutation and loading.
var (
	ErrNodeNotFound = errors.New("render: node not found")
	ErrNodeInputs   = errors.New("render: node has no inputs")
	ErrUnbound      = errors.New("render: input kind not bound to a node")
	ErrEmptyGraph   = errors.New("render: empty job graph")
)

// Node is one operation of the job graph.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Graph maps node ids to nodes.
type Graph map[string]*Node

// Binding names the node that owns each kind of input in a template.
// Empty fields mean the template has no such input.
type Binding struct {
	Seed   string `json:"seed" yaml:"seed" mapstructure:"seed"`
	Prompt string `json:"prompt" yaml:"prompt" mapstructure:"prompt"`
	Image  string `json:"image" yaml:"image" mapstructure:"image"`
}

func (b Binding) nodes() []string {
	var ids []string
	for _, id := range []string{b.Seed, b.Prompt, b.Image} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// State is the lifecycle state of a job.
type State int

// Job states.
const (
	StateCreated State = iota
	StateSubmitted
	StateExecuting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Job is a parameterizable render job.
type Job struct {
	Graph    Graph
	Binding  Binding
	State    State
	PromptID string
}

// LoadJob reads the JSON job graph at path and validates it against binding.
func LoadJob(path string, binding Binding) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: load job %s: %w", path, err)
	}
	job, err := ParseJob(data, binding)
	if err != nil {
		return nil, fmt.Errorf("render: load job %s: %w", path, err)
	}
	return job, nil
}

// ParseJob decodes a job graph. Numbers are kept as json.Number so large
// integers survive a round trip unchanged.
func ParseJob(data []byte, binding Binding) (*Job, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var g Graph
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decode job graph: %w", err)
	}
	if len(g) == 0 {
		return nil, ErrEmptyGraph
	}
	job := &Job{Graph: g, Binding: binding}
	for _, id := range binding.nodes() {
		if err := job.check(id); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func (j *Job) check(nodeID string) error {
	n, ok := j.Graph[nodeID]
	if !ok || n == nil {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}
	if n.Inputs == nil {
		return fmt.Errorf("%w: %q", ErrNodeInputs, nodeID)
	}
	return nil
}

// SetInput writes value into the named input of nodeID. The graph is left
// unchanged when the node is missing or has no inputs.
func (j *Job) SetInput(nodeID, field string, value any) error {
	if err := j.check(nodeID); err != nil {
		return err
	}
	j.Graph[nodeID].Inputs[field] = value
	return nil
}

// SetPrompt writes the prompt text into the bound prompt node.
func (j *Job) SetPrompt(text string) error {
	if j.Binding.Prompt == "" {
		return fmt.Errorf("%w: prompt", ErrUnbound)
	}
	return j.SetInput(j.Binding.Prompt, FieldText, text)
}

// SetSeed draws a fresh seed and writes it into the bound seed node.
func (j *Job) SetSeed() (int64, error) {
	if j.Binding.Seed == "" {
		return 0, fmt.Errorf("%w: seed", ErrUnbound)
	}
	seed := RandomSeed()
	if err := j.SetInput(j.Binding.Seed, FieldSeed, seed); err != nil {
		return 0, err
	}
	return seed, nil
}

// SetImage writes data, base64 encoded, into the bound image node.
func (j *Job) SetImage(data []byte) error {
	if j.Binding.Image == "" {
		return fmt.Errorf("%w: image", ErrUnbound)
	}
	return j.SetInput(j.Binding.Image, FieldImage, base64.StdEncoding.EncodeToString(data))
}

// NodeIDs returns the graph's node ids in sorted order.
func (j *Job) NodeIDs() []string {
	ids := make([]string, 0, len(j.Graph))
	for id := range j.Graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RandomSeed draws a seed uniformly from [MinSeed, MaxSeed].
func RandomSeed() int64 {
	return MinSeed + rand.Int64N(MaxSeed-MinSeed+1)
}
