//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package qa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/medwhisper/medwhisper-go/confidence"
	"github.com/medwhisper/medwhisper-go/evidence"
	"github.com/medwhisper/medwhisper-go/generator"
	"github.com/medwhisper/medwhisper-go/log"
	"github.com/medwhisper/medwhisper-go/reranker"
	"github.com/medwhisper/medwhisper-go/retriever"
	"github.com/medwhisper/medwhisper-go/sanitize"
	telemetry "github.com/medwhisper/medwhisper-go/telemetry/metric"
)

// defaultOverFetch is how many candidates are retrieved before rerank
// truncates to the requested k.
const defaultOverFetch = 12

// Assessor computes a trust assessment for an answer. confidence.Estimator
// is the production implementation.
type Assessor interface {
	Assess(ctx context.Context, query, answer string, ranked []evidence.Candidate, k int) (*confidence.Assessment, error)
}

// Engine executes the full answer pipeline for one request at a time.
// Engines hold only read-only handles, so one engine serves concurrent
// requests without locking.
type Engine struct {
	retriever retriever.Retriever
	reranker  reranker.Reranker
	assessor  Assessor
	primary   generator.Generator
	fallback  generator.Generator
	policy    Policy
	overFetch int

	requests  metric.Int64Counter
	decisions metric.Int64Counter
	latency   metric.Float64Histogram
}

// Option represents a functional option for configuring the Engine.
type Option func(*Engine)

// WithRetriever sets the candidate retriever.
func WithRetriever(r retriever.Retriever) Option {
	return func(e *Engine) {
		e.retriever = r
	}
}

// WithReranker sets the reranker applied to retrieved candidates.
func WithReranker(r reranker.Reranker) Option {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithAssessor sets the confidence assessor.
func WithAssessor(a Assessor) Option {
	return func(e *Engine) {
		e.assessor = a
	}
}

// WithPrimaryGenerator sets the evidence-grounded generation path.
func WithPrimaryGenerator(g generator.Generator) Option {
	return func(e *Engine) {
		e.primary = g
	}
}

// WithFallbackGenerator sets the evidence-free fallback generation path.
// Without one, the state machine skips FallbackAttempted entirely.
func WithFallbackGenerator(g generator.Generator) Option {
	return func(e *Engine) {
		e.fallback = g
	}
}

// WithPolicy overrides the gating thresholds.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithOverFetch sets the pre-rerank retrieval depth.
func WithOverFetch(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.overFetch = n
		}
	}
}

// New creates an engine with the given options. Call telemetry/metric.Start
// before New so the instruments bind to the real meter.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		policy:    DefaultPolicy(),
		overFetch: defaultOverFetch,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retriever == nil {
		return nil, fmt.Errorf("retriever not configured")
	}
	if e.reranker == nil {
		return nil, fmt.Errorf("reranker not configured")
	}
	if e.assessor == nil {
		return nil, fmt.Errorf("assessor not configured")
	}
	if e.primary == nil {
		return nil, fmt.Errorf("primary generator not configured")
	}

	var err error
	if e.requests, err = telemetry.Meter.Int64Counter("medwhisper.qa.requests"); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if e.decisions, err = telemetry.Meter.Int64Counter("medwhisper.qa.decisions"); err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}
	if e.latency, err = telemetry.Meter.Float64Histogram("medwhisper.qa.latency_ms"); err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	return e, nil
}

// Answer runs the state machine for one request. It never returns an error:
// every internal stage failure degrades to an empty result and, when all
// paths are exhausted, the fixed refusal message is the answer.
func (e *Engine) Answer(ctx context.Context, req *Request) *Response {
	start := time.Now()
	e.requests.Add(ctx, 1)

	// Start -> PrimaryAttempted.
	ranked := e.gatherEvidence(ctx, req)
	answer, decision := e.attemptPrimary(ctx, req, ranked)
	state := StatePrimaryAttempted

	cov := vocabCoverage(req.Query, ranked)
	assessment, conf := e.assess(ctx, req, answer, ranked)

	// Any single red flag is enough to distrust the primary answer.
	distrust := len(ranked) == 0 ||
		cov < e.policy.MinVocabCoverage ||
		conf < e.policy.MinConfidence ||
		answer == ""

	if distrust && e.fallback != nil {
		// PrimaryAttempted -> FallbackAttempted. The fallback answers from
		// general knowledge; confidence is recomputed against the same
		// evidence set used for gating.
		state = StateFallbackAttempted
		if fb := e.generate(ctx, e.fallback, fallbackPrompt(req.Query)); fb != "" {
			answer = fb
			decision = DecisionUseFallback
			assessment, conf = e.assess(ctx, req, answer, ranked)
		}
	}

	if answer == "" {
		answer = RefusalMessage
		state = StateAllFailed
		decision = DecisionAllFailed
		assessment, conf = nil, 0
	} else {
		state = StateAccepted
	}

	citations := make([]string, len(ranked))
	for i := range ranked {
		citations[i] = fmt.Sprintf("[%d]", i+1)
	}

	elapsed := time.Since(start)
	e.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(decision))))
	e.latency.Record(ctx, float64(elapsed.Milliseconds()))
	log.Infof("answered query in %s (state=%s decision=%s confidence=%.3f coverage=%.3f evidence=%d)",
		elapsed.Truncate(time.Millisecond), state, decision, conf, cov, len(ranked))

	return &Response{
		Answer:        answer,
		Confidence:    conf,
		Citations:     citations,
		Assessment:    assessment,
		Evidence:      ranked,
		VocabCoverage: cov,
		Decision:      decision,
		State:         state,
	}
}

// Evidence returns the reranked evidence set for a query without generating
// an answer. It backs the debug endpoint.
func (e *Engine) Evidence(ctx context.Context, req *Request) []evidence.Candidate {
	return e.gatherEvidence(ctx, req)
}

// gatherEvidence retrieves, reranks and truncates candidates. Stage failures
// degrade to an empty set; the gating logic treats that as its own signal.
func (e *Engine) gatherEvidence(ctx context.Context, req *Request) []evidence.Candidate {
	if req.K <= 0 {
		return nil
	}
	topN := req.K
	if topN < e.overFetch {
		topN = e.overFetch
	}

	candidates, err := e.retriever.Retrieve(ctx, req.Query, req.Alpha, topN)
	if err != nil {
		log.Warnf("retrieval failed, continuing without evidence: %v", err)
		return nil
	}
	ranked, err := e.reranker.Rerank(ctx, req.Query, candidates, req.BlendCE)
	if err != nil {
		log.Warnf("rerank failed, continuing without evidence: %v", err)
		return nil
	}
	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}
	return ranked
}

// attemptPrimary runs the grounded generation and, when the first completion
// sanitizes to nothing, one retry with a bare prompt.
func (e *Engine) attemptPrimary(ctx context.Context, req *Request, ranked []evidence.Candidate) (string, Decision) {
	withReasoning := e.policy.EnableCoT && isClinician(req.Role)
	answer := e.generate(ctx, e.primary, primaryPrompt(req.Query, ranked, withReasoning))
	if answer != "" {
		return answer, DecisionAcceptPrimary
	}
	answer = e.generate(ctx, e.primary, retryPrompt(req.Query))
	if answer != "" {
		return answer, DecisionRetryPrimary
	}
	return "", DecisionAcceptPrimary
}

// generate calls one generation path and sanitizes its output. Oracle errors
// degrade to an empty answer.
func (e *Engine) generate(ctx context.Context, g generator.Generator, prompt string) string {
	raw, err := g.Generate(ctx, prompt)
	if err != nil {
		log.Warnf("generation failed, treating as empty answer: %v", err)
		return ""
	}
	return sanitize.Clean(raw)
}

// assess computes the trust assessment for a non-empty answer. An empty
// answer or an embedding failure yields zero confidence.
func (e *Engine) assess(ctx context.Context, req *Request, answer string, ranked []evidence.Candidate) (*confidence.Assessment, float64) {
	if answer == "" {
		return nil, 0
	}
	assessment, err := e.assessor.Assess(ctx, req.Query, answer, ranked, req.K)
	if err != nil {
		log.Warnf("confidence estimation failed, treating as zero confidence: %v", err)
		return nil, 0
	}
	return assessment, assessment.Confidence
}

// vocabCoverage is the fraction of the query's distinct tokens that appear
// anywhere in the concatenated evidence text.
func vocabCoverage(query string, ranked []evidence.Candidate) float64 {
	queryTerms := retriever.Tokenize(query)
	if len(queryTerms) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		distinct[t] = struct{}{}
	}

	evidenceTerms := make(map[string]struct{})
	for _, c := range ranked {
		for _, t := range retriever.Tokenize(c.Text) {
			evidenceTerms[t] = struct{}{}
		}
	}

	hits := 0
	for t := range distinct {
		if _, ok := evidenceTerms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(distinct))
}

// isClinician reports whether the role gets the clinician prompt variant.
// Roles compare case-insensitively.
func isClinician(role string) bool {
	switch strings.ToLower(role) {
	case "doctor", "clinician":
		return true
	}
	return false
}
