//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"regexp"
	"strings"
)

var (
	escapes = strings.NewReplacer(`\n`, "\n", `\"`, `"`, `\'`, `'`)
	spaces  = regexp.MustCompile(`\s+`)
)

// NormalizeText unescapes literal \n, \" and \' sequences, collapses every
// whitespace run to a single space and trims the result.
// NormalizeText(NormalizeText(s)) == NormalizeText(s) for every s.
func NormalizeText(s string) string {
	for {
		next := strings.TrimSpace(spaces.ReplaceAllString(escapes.Replace(s), " "))
		if next == s {
			return s
		}
		s = next
	}
}
