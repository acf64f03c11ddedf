//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package sanitize cleans raw generation output into a plain answer.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// tagPattern strips XML/HTML-like markup.
	tagPattern = regexp.MustCompile(`<[^>]+>`)

	// labelPattern strips role/label echoes the generation oracle sometimes
	// repeats from its prompt.
	labelPattern = regexp.MustCompile(`(?i)\b(question|evidence|final answer|answer|output)\s*:\s*`)

	// spacePattern collapses runs of whitespace.
	spacePattern = regexp.MustCompile(`\s+`)
)

// leakPatterns detects output that is leaked prompt instructions rather than
// an answer. This is a heuristic with known false positives and negatives;
// any change to this list is a behavior change and needs regression tests.
var leakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)answer in \d`),
	regexp.MustCompile(`(?i)medically accurate sentences`),
	regexp.MustCompile(`(?i)respond without citations`),
	regexp.MustCompile(`(?i)select the answer`),
}

// Clean strips markup and label echoes, collapses whitespace, and blanks the
// result entirely when it resembles leaked instructions instead of content.
// An empty return means the generation attempt produced no usable answer.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "▃", " ")
	s = labelPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
	for _, p := range leakPatterns {
		if p.MatchString(s) {
			return ""
		}
	}
	return s
}
