//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package qa runs the question-answering pipeline: hybrid retrieval, fusion,
// reranking, grounded generation, confidence estimation and the
// confidence-gated fallback state machine.
package qa

import (
	"github.com/medwhisper/medwhisper-go/confidence"
	"github.com/medwhisper/medwhisper-go/evidence"
)

// State names a position in the answer state machine.
type State string

// States of the answer state machine. Accepted and AllFailed are terminal.
const (
	StateStart             State = "start"
	StatePrimaryAttempted  State = "primary-attempted"
	StateFallbackAttempted State = "fallback-attempted"
	StateAccepted          State = "accepted"
	StateAllFailed         State = "all-failed"
)

// Decision records which path produced the returned answer.
type Decision string

// Decisions derived from an assessment plus policy thresholds.
const (
	DecisionAcceptPrimary Decision = "accept-primary"
	DecisionRetryPrimary  Decision = "retry-primary"
	DecisionUseFallback   Decision = "use-fallback"
	DecisionAllFailed     Decision = "all-failed"
)

// RefusalMessage is the fixed safe output when every path is exhausted.
// It is the designed terminal output of the state machine, not an error.
const RefusalMessage = "I'm sorry—I can't provide a reliable medical answer right now."

// Request is one question to answer.
type Request struct {
	// Query is the user question.
	Query string `json:"q"`

	// K is how many evidence candidates back the answer.
	K int `json:"k"`

	// Alpha is the lexical channel weight for fusion, in [0,1].
	Alpha float64 `json:"alpha"`

	// BlendCE is the oracle weight for reranking, in [0,1].
	BlendCE float64 `json:"blend_ce"`

	// Role is the caller's role; the serving layer gates the payload on it.
	Role string `json:"role"`
}

// Response is the full answer decision. The serving layer decides which
// fields each role may see.
type Response struct {
	// Answer is the final natural-language answer, never empty; the refusal
	// message stands in when all paths failed.
	Answer string `json:"answer"`

	// Confidence is the trust score for the returned answer.
	Confidence float64 `json:"confidence"`

	// Citations are the reference markers for the evidence backing the answer.
	Citations []string `json:"citations"`

	// Assessment carries the confidence sub-signals for telemetry, nil when
	// no assessment ran.
	Assessment *confidence.Assessment `json:"assessment,omitempty"`

	// Evidence is the ranked evidence set used for gating.
	Evidence []evidence.Candidate `json:"evidence,omitempty"`

	// VocabCoverage is the fraction of query vocabulary found in the evidence.
	VocabCoverage float64 `json:"vocab_coverage"`

	// Decision records which path produced the answer.
	Decision Decision `json:"decision"`

	// State is the terminal state the machine stopped in.
	State State `json:"state"`
}

// Policy holds the tunable gating thresholds. The defaults reproduce the
// shipped behavior; they carry no derivation and may be retuned.
type Policy struct {
	// MinVocabCoverage is the vocabulary-coverage ratio below which the
	// primary answer is distrusted.
	MinVocabCoverage float64

	// MinConfidence is the trust score below which the primary answer is
	// distrusted.
	MinConfidence float64

	// EnableCoT adds a brief-reasoning instruction to clinician prompts.
	EnableCoT bool
}

// DefaultPolicy returns the default gating thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinVocabCoverage: 0.25,
		MinConfidence:    0.50,
	}
}
