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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwhisper/medwhisper-go/confidence"
	"github.com/medwhisper/medwhisper-go/evidence"
)

type fakeRetriever struct {
	cands []evidence.Candidate
	err   error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, alpha float64, topN int) ([]evidence.Candidate, error) {
	return f.cands, f.err
}

// passReranker keeps the incoming order and promotes fused to final.
type passReranker struct {
	err error
}

func (p *passReranker) Rerank(ctx context.Context, query string, cands []evidence.Candidate, blend float64) ([]evidence.Candidate, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]evidence.Candidate, len(cands))
	for i, c := range cands {
		out[i] = c
		out[i].Scores.Final = c.Scores.Fused
	}
	return out, nil
}

type fakeAssessor struct {
	confidences []float64
	err         error
	calls       int
}

func (f *fakeAssessor) Assess(ctx context.Context, query, answer string, ranked []evidence.Candidate, k int) (*confidence.Assessment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	conf := f.confidences[0]
	if len(f.confidences) > 1 {
		f.confidences = f.confidences[1:]
	}
	return &confidence.Assessment{Confidence: conf}, nil
}

// scriptedGenerator returns canned answers in order and records prompts.
type scriptedGenerator struct {
	answers []string
	err     error
	prompts []string
}

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.prompts) > len(s.answers) {
		return "", nil
	}
	return s.answers[len(s.prompts)-1], nil
}

func evidenceSet() []evidence.Candidate {
	return []evidence.Candidate{
		{ID: "n1", Text: "chest pain with elevated troponin", SourceDocID: "d1", Scores: evidence.ScoreSet{Fused: 0.9}},
		{ID: "n2", Text: "aspirin given on arrival", SourceDocID: "d2", Scores: evidence.ScoreSet{Fused: 0.4}},
	}
}

type engineFixture struct {
	retriever *fakeRetriever
	assessor  *fakeAssessor
	primary   *scriptedGenerator
	fallback  *scriptedGenerator
}

func newTestEngine(t *testing.T, fx *engineFixture, withFallback bool) *Engine {
	t.Helper()
	opts := []Option{
		WithRetriever(fx.retriever),
		WithReranker(&passReranker{}),
		WithAssessor(fx.assessor),
		WithPrimaryGenerator(fx.primary),
	}
	if withFallback {
		opts = append(opts, WithFallbackGenerator(fx.fallback))
	}
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func request() *Request {
	return &Request{Query: "chest pain troponin", K: 2, Alpha: 0.65, BlendCE: 1.0}
}

func TestAnswerAcceptsConfidentPrimary(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.8}},
		primary:   &scriptedGenerator{answers: []string{"Elevated troponin suggests myocardial injury."}},
		fallback:  &scriptedGenerator{answers: []string{"general answer"}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionAcceptPrimary, resp.Decision)
	assert.Equal(t, StateAccepted, resp.State)
	assert.Equal(t, "Elevated troponin suggests myocardial injury.", resp.Answer)
	assert.InDelta(t, 0.8, resp.Confidence, 1e-12)
	assert.Equal(t, []string{"[1]", "[2]"}, resp.Citations)
	assert.Len(t, resp.Evidence, 2)
	// A trusted primary answer never touches the fallback path.
	assert.Empty(t, fx.fallback.prompts)
	assert.Len(t, fx.primary.prompts, 1)
}

func TestAnswerBorderlineConfidenceStaysPrimary(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.60}},
		primary:   &scriptedGenerator{answers: []string{"Primary answer."}},
		fallback:  &scriptedGenerator{answers: []string{"general answer"}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionAcceptPrimary, resp.Decision)
	assert.Empty(t, fx.fallback.prompts)
}

func TestAnswerLowConfidenceTriggersFallback(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.4, 0.7}},
		primary:   &scriptedGenerator{answers: []string{"Shaky primary answer."}},
		fallback:  &scriptedGenerator{answers: []string{"General medical answer."}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionUseFallback, resp.Decision)
	assert.Equal(t, StateAccepted, resp.State)
	assert.Equal(t, "General medical answer.", resp.Answer)
	// Confidence is recomputed for the fallback answer.
	assert.InDelta(t, 0.7, resp.Confidence, 1e-12)
	assert.Equal(t, 2, fx.assessor.calls)
}

func TestAnswerEmptyEvidenceTriggersFallback(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: nil},
		assessor:  &fakeAssessor{confidences: []float64{0.9}},
		primary:   &scriptedGenerator{answers: []string{"Confident but unsupported."}},
		fallback:  &scriptedGenerator{answers: []string{"General medical answer."}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionUseFallback, resp.Decision)
	assert.Empty(t, resp.Evidence)
	assert.Empty(t, resp.Citations)
}

func TestAnswerLowVocabCoverageTriggersFallback(t *testing.T) {
	offTopic := []evidence.Candidate{
		{ID: "n1", Text: "routine dermatology followup", SourceDocID: "d1", Scores: evidence.ScoreSet{Fused: 0.9}},
	}
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: offTopic},
		assessor:  &fakeAssessor{confidences: []float64{0.9, 0.9}},
		primary:   &scriptedGenerator{answers: []string{"Primary answer."}},
		fallback:  &scriptedGenerator{answers: []string{"General medical answer."}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionUseFallback, resp.Decision)
	assert.Less(t, resp.VocabCoverage, 0.25)
}

func TestAnswerRetriesPrimaryOnEmptyAnswer(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.8}},
		// First completion is markup only and sanitizes to nothing.
		primary:  &scriptedGenerator{answers: []string{"<pad></pad>", "Retry succeeded."}},
		fallback: &scriptedGenerator{answers: []string{"general answer"}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionRetryPrimary, resp.Decision)
	assert.Equal(t, "Retry succeeded.", resp.Answer)
	require.Len(t, fx.primary.prompts, 2)
	assert.NotEqual(t, fx.primary.prompts[0], fx.primary.prompts[1])
	assert.Empty(t, fx.fallback.prompts)
}

func TestAnswerClinicianPromptVariantIgnoresRoleCase(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.8}},
		primary:   &scriptedGenerator{answers: []string{"Primary answer."}},
	}
	policy := DefaultPolicy()
	policy.EnableCoT = true
	e, err := New(
		WithRetriever(fx.retriever),
		WithReranker(&passReranker{}),
		WithAssessor(fx.assessor),
		WithPrimaryGenerator(fx.primary),
		WithPolicy(policy),
	)
	require.NoError(t, err)

	req := request()
	req.Role = "Clinician"
	e.Answer(context.Background(), req)

	require.Len(t, fx.primary.prompts, 1)
	assert.Contains(t, fx.primary.prompts[0], "Explain your reasoning")
}

func TestAnswerRefusesWhenEverythingFails(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.9}},
		primary:   &scriptedGenerator{},
		fallback:  &scriptedGenerator{},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, DecisionAllFailed, resp.Decision)
	assert.Equal(t, StateAllFailed, resp.State)
	assert.Equal(t, RefusalMessage, resp.Answer)
	assert.Zero(t, resp.Confidence)
	assert.Nil(t, resp.Assessment)
}

func TestAnswerRefusesWithoutFallbackConfigured(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.9}},
		primary:   &scriptedGenerator{},
		fallback:  &scriptedGenerator{answers: []string{"never called"}},
	}
	e := newTestEngine(t, fx, false)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, RefusalMessage, resp.Answer)
	assert.Equal(t, StateAllFailed, resp.State)
	assert.Empty(t, fx.fallback.prompts)
}

func TestAnswerDegradesOnPipelineErrors(t *testing.T) {
	// Retrieval failure behaves like empty evidence and routes to fallback.
	fx := &engineFixture{
		retriever: &fakeRetriever{err: errors.New("index down")},
		assessor:  &fakeAssessor{confidences: []float64{0.9}},
		primary:   &scriptedGenerator{answers: []string{"Primary answer."}},
		fallback:  &scriptedGenerator{answers: []string{"General medical answer."}},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())
	assert.Equal(t, DecisionUseFallback, resp.Decision)
	assert.Empty(t, resp.Evidence)

	// Assessor failure degrades to zero confidence instead of erroring.
	fx = &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{err: errors.New("embedding down")},
		primary:   &scriptedGenerator{answers: []string{"Primary answer.", "x"}},
	}
	e = newTestEngine(t, fx, false)

	resp = e.Answer(context.Background(), request())
	assert.Equal(t, StateAccepted, resp.State)
	assert.Zero(t, resp.Confidence)
	assert.Nil(t, resp.Assessment)
}

func TestAnswerFallbackEmptyKeepsPrimary(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.4}},
		primary:   &scriptedGenerator{answers: []string{"Shaky but present."}},
		fallback:  &scriptedGenerator{},
	}
	e := newTestEngine(t, fx, true)

	resp := e.Answer(context.Background(), request())

	assert.Equal(t, "Shaky but present.", resp.Answer)
	assert.Equal(t, DecisionAcceptPrimary, resp.Decision)
	assert.Equal(t, StateAccepted, resp.State)
	assert.NotEmpty(t, fx.fallback.prompts)
}

func TestEvidenceReturnsRankedSet(t *testing.T) {
	fx := &engineFixture{
		retriever: &fakeRetriever{cands: evidenceSet()},
		assessor:  &fakeAssessor{confidences: []float64{0.9}},
		primary:   &scriptedGenerator{answers: []string{"unused"}},
	}
	e := newTestEngine(t, fx, false)

	got := e.Evidence(context.Background(), &Request{Query: "q", K: 1, Alpha: 0.5, BlendCE: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)
}

func TestNewRequiresCoreComponents(t *testing.T) {
	_, err := New()
	require.Error(t, err)

	_, err = New(WithRetriever(&fakeRetriever{}))
	require.Error(t, err)
}
