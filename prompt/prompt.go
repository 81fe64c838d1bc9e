//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package prompt stores the fixed prompt templates of the asset pipeline
// and renders them with {{variable}} substitution.
package prompt

import (
	"errors"
	"regexp"
	"strings"
)

// Template is a prompt template with optional {{variable}} placeholders.
type Template struct {
	// ID is a unique identifier for the template.
	ID string `yaml:"id" json:"id"`
	// Description explains what the template is used for.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Content is the template text.
	Content string `yaml:"content" json:"content"`
	// Variables holds metadata about the placeholders.
	Variables []Variable `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Variable describes a placeholder of a template.
type Variable struct {
	Name         string `yaml:"name" json:"name"`
	Required     bool   `yaml:"required,omitempty" json:"required,omitempty"`
	DefaultValue string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Errors returned by the prompt package.
var (
	ErrTemplateNotFound   = errors.New("prompt: template not found")
	ErrMissingRequiredVar = errors.New("prompt: missing required variable")
	ErrInvalidTemplate    = errors.New("prompt: invalid template")
)

var placeholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Render replaces every {{name}} in t with vars[name], falling back to the
// variable default. Unknown placeholders are kept verbatim. A required
// variable without value or default is an error.
func Render(t *Template, vars map[string]string) (string, error) {
	if t == nil || t.ID == "" {
		return "", ErrInvalidTemplate
	}
	for _, v := range t.Variables {
		if _, ok := vars[v.Name]; !ok && v.Required && v.DefaultValue == "" {
			return "", errors.Join(ErrMissingRequiredVar, errors.New(t.ID+"."+v.Name))
		}
	}
	return placeholder.ReplaceAllStringFunc(t.Content, func(match string) string {
		name := strings.TrimSpace(placeholder.FindStringSubmatch(match)[1])
		if val, ok := vars[name]; ok {
			return val
		}
		for _, v := range t.Variables {
			if v.Name == name && v.DefaultValue != "" {
				return v.DefaultValue
			}
		}
		return match
	}), nil
}
