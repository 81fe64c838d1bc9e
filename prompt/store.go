//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package prompt

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a thread-safe set of templates, preloaded with the built-ins.
type Store struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewStore returns a store holding the built-in templates.
func NewStore() *Store {
	s := &Store{templates: make(map[string]*Template)}
	for _, t := range builtins() {
		s.templates[t.ID] = t
	}
	return s
}

// Put adds or replaces a template.
func (s *Store) Put(t *Template) error {
	if t == nil || t.ID == "" || t.Content == "" {
		return ErrInvalidTemplate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

// Get returns a copy of the template with the given id.
func (s *Store) Get(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	cp := *t
	return &cp, nil
}

// Render renders the template with the given id.
func (s *Store) Render(id string, vars map[string]string) (string, error) {
	t, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return Render(t, vars)
}

// MustRender is like Render without variables but panics on error.
// It is meant for the built-in templates.
func (s *Store) MustRender(id string) string {
	out, err := s.Render(id, nil)
	if err != nil {
		panic(err)
	}
	return out
}

type overrideFile struct {
	Templates []*Template `yaml:"templates"`
}

// LoadFile reads a YAML file of the form
//
//	templates:
//	  - id: guide
//	    content: |
//	      ...
//
// and puts every template into the store.
func (s *Store) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	var f overrideFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse prompt file %s: %w", path, err)
	}
	for _, t := range f.Templates {
		if err := s.Put(t); err != nil {
			return fmt.Errorf("prompt file %s: %w", path, err)
		}
	}
	return nil
}
