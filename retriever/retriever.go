//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package retriever provides interfaces for candidate evidence retrieval
// and a hybrid retriever that fuses dense and lexical search channels.
package retriever

import (
	"context"
	"regexp"
	"strings"

	"github.com/medwhisper/medwhisper-go/evidence"
)

// Hit is one scored candidate reference returned by a search backend.
type Hit struct {
	// ID is the candidate identifier.
	ID string

	// Score is the backend's raw relevance score. Scales differ per backend;
	// higher is more relevant.
	Score float64
}

// DenseBackend is a dense-vector similarity search index.
type DenseBackend interface {
	// Search returns the topN most similar candidates for the query vector.
	Search(ctx context.Context, vector []float64, topN int) ([]Hit, error)
}

// LexicalBackend is a sparse lexical-frequency search index. Scores are on
// an unbounded scale.
type LexicalBackend interface {
	// Search returns the topN most relevant candidates for the query tokens.
	Search(ctx context.Context, tokens []string, topN int) ([]Hit, error)
}

// DocStore resolves candidate IDs to full evidence records.
type DocStore interface {
	// Lookup returns the candidate with the given ID.
	Lookup(ctx context.Context, id string) (*evidence.Candidate, error)
}

// Retriever finds candidate evidence for a query and returns it fused into
// one comparable ranking.
type Retriever interface {
	// Retrieve returns up to topN candidates with dense, lexical and fused
	// scores attached, ordered by fused score descending.
	Retrieve(ctx context.Context, query string, alpha float64, topN int) ([]evidence.Candidate, error)
}

var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// Tokenize splits text into the lowercased alphanumeric tokens the lexical
// channel is keyed on.
func Tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}
