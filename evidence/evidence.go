//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package evidence defines the candidate evidence unit that flows through
// the retrieval, fusion, reranking and answer-gating stages.
package evidence

import (
	"sort"
	"time"
	"unicode/utf8"
)

// Candidate is one retrievable unit of evidence. Stages never mutate a
// candidate they received; each stage returns a fresh slice with its own
// scores filled in, so candidates can be shared across concurrent requests.
type Candidate struct {
	// ID is the stable identifier, unique within one corpus.
	ID string `json:"id"`

	// Text is the evidence content.
	Text string `json:"text"`

	// SourceDocID identifies the document the chunk was cut from.
	SourceDocID string `json:"source_doc_id,omitempty"`

	// Provenance fields, present when the corpus carries them.
	PatientID   string    `json:"patient_id,omitempty"`
	EncounterID string    `json:"encounter_id,omitempty"`
	Code        string    `json:"code,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`

	// Scores holds the per-stage relevance scores. Each score is zero until
	// the stage that computes it has run.
	Scores ScoreSet `json:"scores"`
}

// ScoreSet carries the named relevance scores attached to a candidate as it
// moves through the pipeline.
type ScoreSet struct {
	// Dense is the raw dense-vector similarity score.
	Dense float64 `json:"dense_score"`

	// Lexical is the raw lexical-frequency score.
	Lexical float64 `json:"lexical_score"`

	// Fused is the normalized, alpha-blended score from the fusion engine.
	Fused float64 `json:"fused_score"`

	// Rerank is the raw pairwise-oracle output.
	Rerank float64 `json:"rerank_score"`

	// Final is the score the current ordering is based on.
	Final float64 `json:"final_score"`
}

// SortByFinal orders candidates by final score descending, breaking exact
// ties by ID ascending so the ordering is deterministic.
func SortByFinal(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Scores.Final != cands[j].Scores.Final {
			return cands[i].Scores.Final > cands[j].Scores.Final
		}
		return cands[i].ID < cands[j].ID
	})
}

// TruncateText returns s cut to at most max bytes without splitting a rune,
// so downstream oracles always receive valid UTF-8. Truncation is silent;
// it protects them from unbounded input.
func TruncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Texts returns the candidate texts, each truncated to maxChars.
func Texts(cands []Candidate, maxChars int) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = TruncateText(c.Text, maxChars)
	}
	return out
}
