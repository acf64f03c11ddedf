//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package retriever

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/medwhisper/medwhisper-go/embedder"
	"github.com/medwhisper/medwhisper-go/evidence"
	"github.com/medwhisper/medwhisper-go/fusion"
	"github.com/medwhisper/medwhisper-go/log"
)

// defaultChannelTopN is how many candidates each channel contributes before
// fusion when the caller does not specify an explicit value.
const defaultChannelTopN = 30

var _ Retriever = (*Hybrid)(nil)

// Hybrid queries the dense and lexical backends in parallel and fuses the
// two raw score lists into one ranked candidate list.
type Hybrid struct {
	embedder    embedder.Embedder
	dense       DenseBackend
	lexical     LexicalBackend
	docs        DocStore
	channelTopN int
}

// Option represents a functional option for configuring Hybrid.
type Option func(*Hybrid)

// WithEmbedder sets the embedder used to vectorize queries.
func WithEmbedder(e embedder.Embedder) Option {
	return func(h *Hybrid) {
		h.embedder = e
	}
}

// WithDenseBackend sets the dense-vector search backend.
func WithDenseBackend(d DenseBackend) Option {
	return func(h *Hybrid) {
		h.dense = d
	}
}

// WithLexicalBackend sets the lexical search backend.
func WithLexicalBackend(l LexicalBackend) Option {
	return func(h *Hybrid) {
		h.lexical = l
	}
}

// WithDocStore sets the store used to resolve candidate IDs.
func WithDocStore(ds DocStore) Option {
	return func(h *Hybrid) {
		h.docs = ds
	}
}

// WithChannelTopN sets how many candidates each channel contributes before
// fusion.
func WithChannelTopN(n int) Option {
	return func(h *Hybrid) {
		if n > 0 {
			h.channelTopN = n
		}
	}
}

// NewHybrid creates a hybrid retriever with the given options.
func NewHybrid(opts ...Option) *Hybrid {
	h := &Hybrid{channelTopN: defaultChannelTopN}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Retrieve implements the Retriever interface. Both channels are searched
// concurrently; either channel coming back empty is not an error, only a
// weak signal for its candidates.
func (h *Hybrid) Retrieve(ctx context.Context, query string, alpha float64, topN int) ([]evidence.Candidate, error) {
	if topN <= 0 {
		return nil, nil
	}

	vector, err := h.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var denseHits, lexicalHits []Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := h.dense.Search(gctx, vector, h.channelTopN)
		if err != nil {
			return fmt.Errorf("dense search failed: %w", err)
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := h.lexical.Search(gctx, Tokenize(query), h.channelTopN)
		if err != nil {
			return fmt.Errorf("lexical search failed: %w", err)
		}
		lexicalHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dense := make(map[string]float64, len(denseHits))
	for _, hit := range denseHits {
		dense[hit.ID] = hit.Score
	}
	lexical := make(map[string]float64, len(lexicalHits))
	for _, hit := range lexicalHits {
		lexical[hit.ID] = hit.Score
	}

	fused := fusion.Fuse(dense, lexical, alpha, topN)
	candidates := make([]evidence.Candidate, 0, len(fused))
	for _, f := range fused {
		doc, err := h.docs.Lookup(ctx, f.ID)
		if err != nil {
			// A dangling index entry should not fail the whole retrieval.
			log.Warnf("skipping candidate %s: %v", f.ID, err)
			continue
		}
		cand := *doc
		cand.Scores = evidence.ScoreSet{
			Dense:   f.Dense,
			Lexical: f.Lexical,
			Fused:   f.Score,
			Final:   f.Score,
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
