//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory provenance ledger.
package inmemory

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-gameasset-go/ledger"
)

var _ ledger.Service = (*Service)(nil)

// Service keeps records in a map.
type Service struct {
	mu      sync.RWMutex
	records map[string]ledger.Record
}

// NewService creates an empty ledger.
func NewService() *Service {
	return &Service{records: make(map[string]ledger.Record)}
}

// Put implements ledger.Service.
func (s *Service) Put(_ context.Context, rec ledger.Record) error {
	rec, err := ledger.Prepare(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[rec.Key] = rec
	s.mu.Unlock()
	return nil
}

// Get implements ledger.Service.
func (s *Service) Get(_ context.Context, key string) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
