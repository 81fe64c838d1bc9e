//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package document

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMaxNameLength is the display name length limit in runes.
	DefaultMaxNameLength = 60
	// FallbackName is used when nothing survives sanitization.
	FallbackName = "document"
	ellipsis     = "..."
)

var (
	hexRun     = regexp.MustCompile(`[a-f0-9]{8,}`)
	digitRun   = regexp.MustCompile(`\d{6,}`)
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s\-()\[\]]`)
	spaces     = regexp.MustCompile(`\s+`)
)

type sanitizeOptions struct {
	prefix    string
	maxLength int
	fallback  string
}

// SanitizeOption configures SanitizeName.
type SanitizeOption func(*sanitizeOptions)

// WithPrefix prepends "prefix - " to the sanitized name.
func WithPrefix(prefix string) SanitizeOption {
	return func(o *sanitizeOptions) { o.prefix = prefix }
}

// WithMaxLength overrides the rune limit.
func WithMaxLength(n int) SanitizeOption {
	return func(o *sanitizeOptions) { o.maxLength = n }
}

// WithFallback sets the name returned when the result would be empty.
// Pass "" to allow empty names.
func WithFallback(name string) SanitizeOption {
	return func(o *sanitizeOptions) { o.fallback = name }
}

// SanitizeName turns an upload file name into a display name accepted by
// document-aware model APIs. The extension is dropped, hash-like hex runs
// and long digit runs are removed, underscores become spaces and anything
// outside letters, digits, whitespace, hyphens, parentheses and square
// brackets is stripped. Whitespace is collapsed and the result truncated.
func SanitizeName(filename string, opts ...SanitizeOption) string {
	o := sanitizeOptions{maxLength: DefaultMaxNameLength, fallback: FallbackName}
	for _, opt := range opts {
		opt(&o)
	}

	name := norm.NFC.String(strings.TrimSuffix(filename, filepath.Ext(filename)))
	name = hexRun.ReplaceAllString(name, "")
	name = digitRun.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "_", " ")
	name = disallowed.ReplaceAllString(name, "")
	name = strings.TrimSpace(spaces.ReplaceAllString(name, " "))

	if o.prefix != "" {
		name = strings.TrimSpace(o.prefix + " - " + name)
	}
	if name == "" {
		return o.fallback
	}
	if r := []rune(name); o.maxLength > 0 && len(r) > o.maxLength {
		name = strings.TrimRight(string(r[:o.maxLength]), " ") + ellipsis
	}
	return name
}
