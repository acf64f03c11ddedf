//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Embedder maps text into a fixed-length semantic vector space. The same
// embedder must serve queries, evidence and answers so their vectors are
// comparable.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	// A system-level failure is returned as an error; an API-level failure
	// is delivered as an empty slice with a logged warning.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of the embeddings produced by
	// this embedder. Returns 0 if dimensions are not known.
	GetDimensions() int
}
