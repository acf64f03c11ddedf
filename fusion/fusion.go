//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package fusion blends independently-scaled relevance signals into one
// comparable score per candidate.
package fusion

import "sort"

const (
	// DefaultAlpha is the lexical weight used when the caller has no opinion.
	DefaultAlpha = 0.5

	// normEpsilon guards min-max scaling against constant distributions.
	normEpsilon = 1e-9
)

// Result is one fused candidate: raw per-channel scores plus the blended
// score the final ordering is based on.
type Result struct {
	// ID is the candidate identifier.
	ID string

	// Dense is the raw dense-channel score (0 when the candidate was absent
	// from the dense list).
	Dense float64

	// Lexical is the raw lexical-channel score (0 when absent).
	Lexical float64

	// Score is the normalized, alpha-blended relevance score.
	Score float64
}

// Normalize rescales scores to [0,1] with min-max scaling over the slice
// itself. A constant distribution maps to all 1.0 when the constant is
// positive and all 0.0 otherwise, so "all equally relevant" and "all
// irrelevant" keep their meaning instead of blowing up the division.
func Normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	mn, mx := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < mn {
			mn = s
		}
		if s > mx {
			mx = s
		}
	}
	out := make([]float64, len(scores))
	if mx-mn < normEpsilon {
		if mx > 0 {
			for i := range out {
				out[i] = 1.0
			}
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - mn) / (mx - mn)
	}
	return out
}

// Fuse unions two score lists keyed by candidate ID, normalizes each channel
// independently, blends them with weight alpha on the lexical channel and
// returns the top k results ordered by blended score descending, ID ascending
// on exact ties. Candidates present in only one channel score 0 in the other;
// absence is evidence of low relevance, not an error. A k <= 0 or two empty
// inputs yield an empty result.
func Fuse(dense, lexical map[string]float64, alpha float64, k int) []Result {
	if k <= 0 || (len(dense) == 0 && len(lexical) == 0) {
		return nil
	}
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	ids := make([]string, 0, len(dense)+len(lexical))
	seen := make(map[string]struct{}, len(dense)+len(lexical))
	for id := range dense {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for id := range lexical {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	// Map iteration order is random; fix it before normalizing so the output
	// is reproducible for identical inputs.
	sort.Strings(ids)

	denseRaw := make([]float64, len(ids))
	lexRaw := make([]float64, len(ids))
	for i, id := range ids {
		denseRaw[i] = dense[id]
		lexRaw[i] = lexical[id]
	}
	denseNorm := Normalize(denseRaw)
	lexNorm := Normalize(lexRaw)

	results := make([]Result, len(ids))
	for i, id := range ids {
		results[i] = Result{
			ID:      id,
			Dense:   denseRaw[i],
			Lexical: lexRaw[i],
			Score:   (1.0-alpha)*denseNorm[i] + alpha*lexNorm[i],
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
