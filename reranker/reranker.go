//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package reranker re-scores fused candidate sets with a pairwise
// query-passage relevance oracle.
package reranker

import (
	"context"

	"github.com/medwhisper/medwhisper-go/evidence"
)

// Oracle scores the relevance of a passage to a query. The output scale is
// not fixed; callers normalize before comparing across passages.
type Oracle interface {
	// Score returns a relevance score for the (query, passage) pair.
	Score(ctx context.Context, query, passage string) (float64, error)
}

// Reranker re-orders candidates for a query. Implementations return a new
// slice and leave the input untouched.
type Reranker interface {
	// Rerank re-scores candidates against the query and returns them ordered
	// by final score descending. blend is the per-request oracle weight in
	// [0,1]; a negative value asks for the implementation's default, and
	// implementations without an oracle ignore it.
	Rerank(ctx context.Context, query string, candidates []evidence.Candidate, blend float64) ([]evidence.Candidate, error)
}
