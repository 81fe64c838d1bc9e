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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gonfva/docxlib"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned when no extractor handles a format.
var ErrUnsupportedFormat = errors.New("document: unsupported format")

// Extractor turns raw document bytes into plain text.
type Extractor func(data []byte) (string, error)

var (
	extractorsMu sync.RWMutex
	extractors   = map[string]Extractor{
		"pdf":  extractPDF,
		"docx": extractDOCX,
		"txt":  extractPlain,
		"md":   extractPlain,
		"csv":  extractPlain,
		"html": extractPlain,
		"json": extractPlain,
	}
)

// RegisterExtractor registers an extractor for the given formats.
func RegisterExtractor(fn Extractor, formats ...string) {
	extractorsMu.Lock()
	defer extractorsMu.Unlock()
	for _, f := range formats {
		extractors[strings.ToLower(f)] = fn
	}
}

// ExtractText returns the plain text content of doc. It is used by model
// backends that cannot accept the document natively.
func ExtractText(doc *Document) (string, error) {
	extractorsMu.RLock()
	fn, ok := extractors[doc.Format]
	extractorsMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
	text, err := fn(doc.Data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Filename, err)
	}
	return text, nil
}

func extractPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docxlib.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	var sb strings.Builder
	for _, paragraph := range doc.Paragraphs() {
		for _, child := range paragraph.Children() {
			if child.Run != nil && child.Run.Text != nil {
				writeWord(&sb, child.Run.Text.Text)
			}
			if child.Link != nil && child.Link.Run.Text != nil {
				writeWord(&sb, child.Link.Run.Text.Text)
			}
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func writeWord(sb *strings.Builder, s string) {
	if s = strings.TrimSpace(s); s != "" {
		sb.WriteString(s)
		sb.WriteString(" ")
	}
}
