//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package document reads uploaded reference documents into memory and
// prepares their metadata for the text-generation APIs.
package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Document is an uploaded reference document.
type Document struct {
	// Format is the lowercase file extension without the dot, e.g. "pdf".
	Format string
	// Name is the sanitized display name.
	Name string
	// Filename is the original file name.
	Filename string
	// Data holds the raw bytes. Never empty.
	Data []byte
}

// MIMEType returns the media type for the document format.
func (d *Document) MIMEType() string {
	return MIMEType(d.Format)
}

// Format returns the lowercase extension of filename without the dot.
// A name without a dot yields the whole name, lowercased.
func Format(filename string) string {
	idx := strings.LastIndex(filename, ".")
	return strings.ToLower(filename[idx+1:])
}

// Read reads r fully and builds a Document for filename.
// It returns nil and no error when the upload is empty.
func Read(filename string, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", filename, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &Document{
		Format:   Format(filename),
		Name:     SanitizeName(filename),
		Filename: filename,
		Data:     data,
	}, nil
}

// ReadFile reads the file at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return Read(filepath.Base(path), f)
}

// ReadFiles reads every path and drops empty files.
func ReadFiles(paths ...string) ([]*Document, error) {
	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		doc, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// MIMEType maps a document format to its media type.
func MIMEType(format string) string {
	switch format {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	case "csv":
		return "text/csv"
	case "html":
		return "text/html"
	case "md":
		return "text/markdown"
	case "txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
