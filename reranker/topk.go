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

	"github.com/medwhisper/medwhisper-go/evidence"
)

// Default value for top K results, indicating return all results.
const defaultTopK = -1

var _ Reranker = (*TopK)(nil)

// TopK is a trivial reranker that keeps the incoming fused order and returns
// the top K candidates. It serves deployments without a pairwise oracle.
type TopK struct {
	k int
}

// TopKOption represents a functional option for configuring TopK.
type TopKOption func(*TopK)

// WithK sets the number of top results to return.
func WithK(k int) TopKOption {
	return func(tk *TopK) {
		if k <= 0 {
			k = defaultTopK
		}
		tk.k = k
	}
}

// NewTopK creates a new top-K reranker with options.
func NewTopK(opts ...TopKOption) *TopK {
	tk := &TopK{k: defaultTopK}
	for _, opt := range opts {
		opt(tk)
	}
	return tk
}

// Rerank implements the Reranker interface by returning the top K candidates
// in their incoming order with the fused score promoted to final. The blend
// weight is ignored since there is no oracle to blend.
func (t *TopK) Rerank(ctx context.Context, query string, candidates []evidence.Candidate, blend float64) ([]evidence.Candidate, error) {
	n := len(candidates)
	if t.k > 0 && t.k < n {
		n = t.k
	}
	out := make([]evidence.Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i]
		out[i].Scores.Final = candidates[i].Scores.Fused
	}
	return out, nil
}
