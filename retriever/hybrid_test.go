//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package retriever

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medwhisper/medwhisper-go/evidence"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float64{1, 0}, nil
}

func (f *fakeEmbedder) GetDimensions() int { return 2 }

type fakeDense struct {
	hits []Hit
	err  error
}

func (f *fakeDense) Search(ctx context.Context, vector []float64, topN int) ([]Hit, error) {
	return f.hits, f.err
}

type fakeLexical struct {
	hits   []Hit
	err    error
	tokens []string
}

func (f *fakeLexical) Search(ctx context.Context, tokens []string, topN int) ([]Hit, error) {
	f.tokens = tokens
	return f.hits, f.err
}

type fakeDocs struct {
	docs map[string]*evidence.Candidate
}

func (f *fakeDocs) Lookup(ctx context.Context, id string) (*evidence.Candidate, error) {
	if doc, ok := f.docs[id]; ok {
		out := *doc
		return &out, nil
	}
	return nil, fmt.Errorf("candidate not found: %s", id)
}

func newTestHybrid(dense *fakeDense, lexical *fakeLexical, docs *fakeDocs) *Hybrid {
	return NewHybrid(
		WithEmbedder(&fakeEmbedder{}),
		WithDenseBackend(dense),
		WithLexicalBackend(lexical),
		WithDocStore(docs),
	)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"chest", "pain", "t2dm", "hba1c"},
		Tokenize("Chest pain? T2DM/HbA1c!"))
	assert.Empty(t, Tokenize("?!..."))
}

func TestHybridRetrieveFusesChannels(t *testing.T) {
	dense := &fakeDense{hits: []Hit{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}}}
	lexical := &fakeLexical{hits: []Hit{{ID: "b", Score: 8}, {ID: "c", Score: 2}}}
	docs := &fakeDocs{docs: map[string]*evidence.Candidate{
		"a": {ID: "a", Text: "alpha"},
		"b": {ID: "b", Text: "beta"},
		"c": {ID: "c", Text: "gamma"},
	}}
	h := newTestHybrid(dense, lexical, docs)

	got, err := h.Retrieve(context.Background(), "chest pain", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// b tops both channels combined: dense 0.5 normalized high enough plus
	// the full lexical mass.
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, []string{"chest", "pain"}, lexical.tokens)

	for _, c := range got {
		assert.Equal(t, c.Scores.Fused, c.Scores.Final)
		assert.NotEmpty(t, c.Text)
	}
}

func TestHybridRetrieveSkipsDanglingIDs(t *testing.T) {
	dense := &fakeDense{hits: []Hit{{ID: "a", Score: 0.9}, {ID: "ghost", Score: 0.8}}}
	lexical := &fakeLexical{}
	docs := &fakeDocs{docs: map[string]*evidence.Candidate{
		"a": {ID: "a", Text: "alpha"},
	}}
	h := newTestHybrid(dense, lexical, docs)

	got, err := h.Retrieve(context.Background(), "q", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestHybridRetrieveErrors(t *testing.T) {
	docs := &fakeDocs{docs: map[string]*evidence.Candidate{}}

	h := NewHybrid(
		WithEmbedder(&fakeEmbedder{err: errors.New("embed down")}),
		WithDenseBackend(&fakeDense{}),
		WithLexicalBackend(&fakeLexical{}),
		WithDocStore(docs),
	)
	_, err := h.Retrieve(context.Background(), "q", 0.5, 10)
	require.Error(t, err)

	h = newTestHybrid(&fakeDense{err: errors.New("dense down")}, &fakeLexical{}, docs)
	_, err = h.Retrieve(context.Background(), "q", 0.5, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dense search failed")

	h = newTestHybrid(&fakeDense{}, &fakeLexical{err: errors.New("lexical down")}, docs)
	_, err = h.Retrieve(context.Background(), "q", 0.5, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lexical search failed")
}

func TestHybridRetrieveNonPositiveTopN(t *testing.T) {
	h := newTestHybrid(&fakeDense{}, &fakeLexical{}, &fakeDocs{})

	got, err := h.Retrieve(context.Background(), "q", 0.5, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}
