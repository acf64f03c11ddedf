//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory dense vector index.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/medwhisper/medwhisper-go/evidence"
	"github.com/medwhisper/medwhisper-go/retriever"
)

var (
	// errCandidateCannotBeNil is the error when the candidate is nil.
	errCandidateCannotBeNil = errors.New("candidate cannot be nil")
	// errCandidateIDCannotBeEmpty is the error when the candidate ID is empty.
	errCandidateIDCannotBeEmpty = errors.New("candidate ID cannot be empty")
	// errEmbeddingCannotBeEmpty is the error when the embedding is empty.
	errEmbeddingCannotBeEmpty = errors.New("embedding cannot be empty")
)

var (
	_ retriever.DenseBackend = (*Index)(nil)
	_ retriever.DocStore     = (*Index)(nil)
)

// Index implements a dense similarity index and candidate store backed by
// in-process maps. All shared state is read-only during serving; the lock
// only guards the load phase.
type Index struct {
	mu         sync.RWMutex
	candidates map[string]*evidence.Candidate
	embeddings map[string][]float64
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		candidates: make(map[string]*evidence.Candidate),
		embeddings: make(map[string][]float64),
	}
}

// Add stores a candidate with its embedding vector.
func (ix *Index) Add(ctx context.Context, cand *evidence.Candidate, embedding []float64) error {
	if cand == nil {
		return errCandidateCannotBeNil
	}
	if cand.ID == "" {
		return errCandidateIDCannotBeEmpty
	}
	if len(embedding) == 0 {
		return errEmbeddingCannotBeEmpty
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored := *cand
	ix.candidates[cand.ID] = &stored
	vec := make([]float64, len(embedding))
	copy(vec, embedding)
	ix.embeddings[cand.ID] = vec
	return nil
}

// Lookup implements the retriever.DocStore interface.
func (ix *Index) Lookup(ctx context.Context, id string) (*evidence.Candidate, error) {
	if id == "" {
		return nil, errCandidateIDCannotBeEmpty
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	cand, ok := ix.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate not found: %s", id)
	}
	out := *cand
	return &out, nil
}

// Search implements the retriever.DenseBackend interface. It returns the
// topN candidates by cosine similarity, higher is more similar; exact ties
// break by ID ascending.
func (ix *Index) Search(ctx context.Context, vector []float64, topN int) ([]retriever.Hit, error) {
	if len(vector) == 0 {
		return nil, errEmbeddingCannotBeEmpty
	}
	if topN <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]retriever.Hit, 0, len(ix.embeddings))
	for id, emb := range ix.embeddings {
		hits = append(hits, retriever.Hit{ID: id, Score: cosineSimilarity(vector, emb)})
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

// Count returns the number of stored candidates.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.candidates)
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched dimensions or zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
