//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package reranker

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/medwhisper/medwhisper-go/evidence"
	"github.com/medwhisper/medwhisper-go/fusion"
)

const (
	// DefaultBlend trusts the oracle exclusively and ignores incoming scores.
	DefaultBlend = 1.0

	// DefaultMaxChars is the character budget per passage sent to the oracle.
	DefaultMaxChars = 1000
)

var _ Reranker = (*CrossEncoder)(nil)

// CrossEncoder reranks candidates with a pairwise relevance oracle and
// optionally blends the oracle's opinion with the incoming fused score.
type CrossEncoder struct {
	oracle   Oracle
	blend    float64
	maxChars int
	pool     *ants.Pool
}

// CrossEncoderOption represents a functional option for configuring CrossEncoder.
type CrossEncoderOption func(*CrossEncoder)

// WithBlend sets the oracle weight beta in [0,1]. 1 ignores the incoming
// fused score entirely, 0 keeps the incoming ordering.
func WithBlend(beta float64) CrossEncoderOption {
	return func(ce *CrossEncoder) {
		if beta < 0 {
			beta = 0
		} else if beta > 1 {
			beta = 1
		}
		ce.blend = beta
	}
}

// WithMaxChars sets the per-passage character budget sent to the oracle.
func WithMaxChars(maxChars int) CrossEncoderOption {
	return func(ce *CrossEncoder) {
		if maxChars > 0 {
			ce.maxChars = maxChars
		}
	}
}

// WithPool sets a worker pool used to score candidate pairs concurrently.
// Without a pool, pairs are scored sequentially.
func WithPool(pool *ants.Pool) CrossEncoderOption {
	return func(ce *CrossEncoder) {
		ce.pool = pool
	}
}

// NewCrossEncoder creates a cross-encoder reranker backed by the given oracle.
func NewCrossEncoder(oracle Oracle, opts ...CrossEncoderOption) *CrossEncoder {
	ce := &CrossEncoder{
		oracle:   oracle,
		blend:    DefaultBlend,
		maxChars: DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(ce)
	}
	return ce
}

// Rerank implements the Reranker interface. Empty input returns empty output
// without calling the oracle. A negative blend falls back to the configured
// default. The returned candidates carry both the raw oracle score and the
// blended final score; the input slice is not modified.
func (ce *CrossEncoder) Rerank(ctx context.Context, query string, candidates []evidence.Candidate, blend float64) ([]evidence.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if blend < 0 {
		blend = ce.blend
	} else if blend > 1 {
		blend = 1
	}

	raw, err := ce.scorePairs(ctx, query, candidates)
	if err != nil {
		return nil, err
	}
	oracleNorm := fusion.Normalize(raw)

	final := oracleNorm
	if blend < 1 {
		incoming := make([]float64, len(candidates))
		for i, c := range candidates {
			incoming[i] = c.Scores.Fused
		}
		incomingNorm := fusion.Normalize(incoming)
		final = make([]float64, len(candidates))
		for i := range candidates {
			final[i] = blend*oracleNorm[i] + (1-blend)*incomingNorm[i]
		}
	}

	out := make([]evidence.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = c
		out[i].Scores.Rerank = raw[i]
		out[i].Scores.Final = final[i]
	}
	evidence.SortByFinal(out)
	return out, nil
}

// scorePairs runs the oracle over every (query, passage) pair, through the
// worker pool when one is configured.
func (ce *CrossEncoder) scorePairs(ctx context.Context, query string, candidates []evidence.Candidate) ([]float64, error) {
	scores := make([]float64, len(candidates))
	if ce.pool == nil {
		for i, c := range candidates {
			s, err := ce.oracle.Score(ctx, query, evidence.TruncateText(c.Text, ce.maxChars))
			if err != nil {
				return nil, fmt.Errorf("failed to score candidate %s: %w", c.ID, err)
			}
			scores[i] = s
		}
		return scores, nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(candidates))
	for i, c := range candidates {
		wg.Add(1)
		idx, cand := i, c
		if err := ce.pool.Submit(func() {
			defer wg.Done()
			s, err := ce.oracle.Score(ctx, query, evidence.TruncateText(cand.Text, ce.maxChars))
			if err != nil {
				errCh <- fmt.Errorf("failed to score candidate %s: %w", cand.ID, err)
				return
			}
			scores[idx] = s
		}); err != nil {
			wg.Done()
			errCh <- fmt.Errorf("failed to submit scoring task: %w", err)
		}
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	return scores, nil
}
