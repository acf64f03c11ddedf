//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package confidence estimates how much a generated answer can be trusted
// given the evidence it was produced from.
package confidence

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/medwhisper/medwhisper-go/embedder"
	"github.com/medwhisper/medwhisper-go/evidence"
)

// DefaultEvidenceChars is the per-candidate character budget used when
// concatenating evidence for the faithfulness embedding.
const DefaultEvidenceChars = 350

// Weights blends the three trust sub-signals. The defaults are tunable
// policy, not a law.
type Weights struct {
	Retrieval    float64
	Faithfulness float64
	Coverage     float64
}

// DefaultWeights returns the default sub-signal weights.
func DefaultWeights() Weights {
	return Weights{Retrieval: 0.5, Faithfulness: 0.3, Coverage: 0.2}
}

// Assessment is the per-answer trust estimate. Every component and the
// combined score lie in [0,1]. Assessments are created fresh per answer
// attempt and never mutated.
type Assessment struct {
	// RetrievalStrength is the softmax probability mass on the top-ranked
	// candidate; a sharply peaked score distribution scores high.
	RetrievalStrength float64 `json:"retrieval_strength"`

	// Faithfulness is the clamped cosine similarity between the answer and
	// the concatenated evidence in the shared embedding space.
	Faithfulness float64 `json:"faithfulness"`

	// Coverage is the fraction of distinct source documents in the top-k.
	Coverage float64 `json:"coverage"`

	// Confidence is the weighted combination of the three components.
	Confidence float64 `json:"confidence"`
}

// Estimator computes trust assessments using a shared semantic embedder.
type Estimator struct {
	embedder      embedder.Embedder
	weights       Weights
	evidenceChars int
}

// Option represents a functional option for configuring the Estimator.
type Option func(*Estimator)

// WithWeights overrides the sub-signal weights.
func WithWeights(w Weights) Option {
	return func(e *Estimator) {
		e.weights = w
	}
}

// WithEvidenceChars sets the per-candidate character budget for the
// faithfulness embedding.
func WithEvidenceChars(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.evidenceChars = n
		}
	}
}

// New creates an estimator backed by the given embedder.
func New(emb embedder.Embedder, opts ...Option) *Estimator {
	e := &Estimator{
		embedder:      emb,
		weights:       DefaultWeights(),
		evidenceChars: DefaultEvidenceChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assess computes the trust assessment for an answer produced from the top-k
// ranked evidence. The embedding oracle is the only fallible dependency;
// its failure is returned so the caller can degrade.
func (e *Estimator) Assess(ctx context.Context, query, answer string, ranked []evidence.Candidate, k int) (*Assessment, error) {
	use := ranked
	if k >= 0 && k < len(use) {
		use = use[:k]
	}

	a := &Assessment{
		RetrievalStrength: retrievalStrength(use),
		Coverage:          sourceCoverage(use, k),
	}

	faith, err := e.faithfulness(ctx, answer, use)
	if err != nil {
		return nil, err
	}
	a.Faithfulness = faith

	a.Confidence = clamp01(e.weights.Retrieval*a.RetrievalStrength +
		e.weights.Faithfulness*a.Faithfulness +
		e.weights.Coverage*a.Coverage)
	return a, nil
}

// retrievalStrength is the softmax probability of the best final score.
// A flat distribution means no single passage is decisively relevant and
// scores low; zero candidates score 0.
func retrievalStrength(use []evidence.Candidate) float64 {
	if len(use) == 0 {
		return 0
	}
	max := use[0].Scores.Final
	for _, c := range use[1:] {
		if c.Scores.Final > max {
			max = c.Scores.Final
		}
	}
	var sum, top float64
	for _, c := range use {
		e := math.Exp(c.Scores.Final - max)
		sum += e
		if c.Scores.Final == max {
			// Probability mass assigned to rank 1.
			if e > top {
				top = e
			}
		}
	}
	if sum == 0 {
		return 0
	}
	return top / sum
}

// faithfulness embeds the answer and the truncated, concatenated evidence
// and returns the clamped cosine similarity. There is no such thing as
// negative faithfulness.
func (e *Estimator) faithfulness(ctx context.Context, answer string, use []evidence.Candidate) (float64, error) {
	if answer == "" || len(use) == 0 {
		return 0, nil
	}
	joined := strings.Join(evidence.Texts(use, e.evidenceChars), "\n")

	answerVec, err := e.embedder.GetEmbedding(ctx, answer)
	if err != nil {
		return 0, fmt.Errorf("failed to embed answer: %w", err)
	}
	evidenceVec, err := e.embedder.GetEmbedding(ctx, joined)
	if err != nil {
		return 0, fmt.Errorf("failed to embed evidence: %w", err)
	}
	return clamp01(cosine(answerVec, evidenceVec)), nil
}

// sourceCoverage is the fraction of distinct source documents in the top-k.
func sourceCoverage(use []evidence.Candidate, k int) float64 {
	if k <= 0 {
		return 0
	}
	sources := make(map[string]struct{}, len(use))
	for _, c := range use {
		if c.SourceDocID != "" {
			sources[c.SourceDocID] = struct{}{}
		}
	}
	return clamp01(float64(len(sources)) / float64(k))
}

func cosine(a, b []float64) float64 {
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
