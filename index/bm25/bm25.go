//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package bm25 provides an in-memory Okapi BM25 lexical index.
package bm25

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/medwhisper/medwhisper-go/retriever"
)

// Okapi BM25 defaults.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// errDocumentIDCannotBeEmpty is the error when the document ID is empty.
var errDocumentIDCannotBeEmpty = errors.New("document ID cannot be empty")

var _ retriever.LexicalBackend = (*Index)(nil)

// Index implements the retriever.LexicalBackend interface with Okapi BM25
// scoring over in-process postings. Scores are unbounded; normalization is
// the fusion engine's job.
type Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	docIDs    []string
	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	totalLen  int
}

// Option represents a functional option for configuring the Index.
type Option func(*Index)

// WithK1 sets the term-frequency saturation parameter.
func WithK1(k1 float64) Option {
	return func(ix *Index) {
		if k1 > 0 {
			ix.k1 = k1
		}
	}
}

// WithB sets the document-length normalization parameter.
func WithB(b float64) Option {
	return func(ix *Index) {
		if b >= 0 && b <= 1 {
			ix.b = b
		}
	}
}

// New creates an empty BM25 index with the given options.
func New(opts ...Option) *Index {
	ix := &Index{
		k1:      DefaultK1,
		b:       DefaultB,
		docFreq: make(map[string]int),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add indexes one document's text under the given ID.
func (ix *Index) Add(ctx context.Context, id, text string) error {
	if id == "" {
		return errDocumentIDCannotBeEmpty
	}
	tokens := retriever.Tokenize(text)

	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.docIDs = append(ix.docIDs, id)
	ix.termFreqs = append(ix.termFreqs, tf)
	ix.docLens = append(ix.docLens, len(tokens))
	ix.totalLen += len(tokens)
	for tok := range tf {
		ix.docFreq[tok]++
	}
	return nil
}

// Count returns the number of indexed documents.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docIDs)
}

// Search implements the retriever.LexicalBackend interface. Documents that
// match no query token are omitted; exact score ties break by ID ascending.
func (ix *Index) Search(ctx context.Context, tokens []string, topN int) ([]retriever.Hit, error) {
	if topN <= 0 || len(tokens) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docIDs)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(ix.totalLen) / float64(n)

	hits := make([]retriever.Hit, 0, topN)
	for i, tf := range ix.termFreqs {
		var score float64
		for _, tok := range tokens {
			freq, ok := tf[tok]
			if !ok {
				continue
			}
			idf := math.Log(1 + (float64(n)-float64(ix.docFreq[tok])+0.5)/(float64(ix.docFreq[tok])+0.5))
			norm := 1 - ix.b + ix.b*float64(ix.docLens[i])/avgLen
			score += idf * float64(freq) * (ix.k1 + 1) / (float64(freq) + ix.k1*norm)
		}
		if score > 0 {
			hits = append(hits, retriever.Hit{ID: ix.docIDs[i], Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}
