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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Asset classes rendered by the pipeline.
const (
	ClassCharacter  = "character"
	ClassObstacle   = "obstacle"
	ClassBackground = "background"
	ClassImg2Img    = "img2img"
)

// ErrUnknownClass is returned for classes without a template.
var ErrUnknownClass = errors.New("render: no template for asset class")

// Template pairs a workflow file with the node ids of its inputs.
type Template struct {
	Workflow string  `json:"workflow" yaml:"workflow" mapstructure:"workflow"`
	Binding  Binding `json:"binding" yaml:"binding" mapstructure:"binding"`
}

// Load reads a fresh job from the template.
func (t Template) Load() (*Job, error) {
	return LoadJob(t.Workflow, t.Binding)
}

// Validate loads the template once so that broken workflows or bindings
// fail at startup instead of at render time.
func (t Template) Validate() error {
	if t.Workflow == "" {
		return errors.New("render: template has no workflow file")
	}
	_, err := t.Load()
	return err
}

// Manifest maps asset classes to templates.
type Manifest map[string]Template

// DefaultBindings are the node ids of the stock workflows.
var DefaultBindings = map[string]Binding{
	ClassCharacter:  {Seed: "7", Prompt: "5"},
	ClassObstacle:   {Seed: "2", Prompt: "3"},
	ClassBackground: {Seed: "1", Prompt: "12"},
	ClassImg2Img:    {Seed: "3", Prompt: "6", Image: "14"},
}

type manifestFile struct {
	Templates map[string]Template `yaml:"templates"`
}

// LoadManifest reads a YAML manifest of the form
//
//	templates:
//	  character:
//	    workflow: workflows/character.json
//	    binding: {seed: "7", prompt: "5"}
//
// Relative workflow paths are resolved against the manifest directory and
// classes without a binding fall back to DefaultBindings.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: read manifest: %w", err)
	}
	var f manifestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("render: parse manifest: %w", err)
	}
	m := make(Manifest, len(f.Templates))
	dir := filepath.Dir(path)
	for class, t := range f.Templates {
		if t.Workflow != "" && !filepath.IsAbs(t.Workflow) {
			t.Workflow = filepath.Join(dir, t.Workflow)
		}
		m[class] = t.withDefaults(class)
	}
	return m, nil
}

func (t Template) withDefaults(class string) Template {
	if t.Binding == (Binding{}) {
		t.Binding = DefaultBindings[class]
	}
	return t
}

// Validate checks every template of the manifest.
func (m Manifest) Validate() error {
	var errs []error
	for _, class := range m.Classes() {
		if err := m[class].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", class, err))
		}
	}
	return errors.Join(errs...)
}

// Classes returns the asset classes in sorted order.
func (m Manifest) Classes() []string {
	classes := make([]string, 0, len(m))
	for c := range m {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// Lookup returns the template of class.
func (m Manifest) Lookup(class string) (Template, error) {
	t, ok := m[class]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return t.withDefaults(class), nil
}
