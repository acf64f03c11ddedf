//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(envCorpusPath, "/data/corpus.jsonl")
	t.Setenv(envOpenAIKey, "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	assert.Empty(t, cfg.FallbackProvider)
	assert.False(t, cfg.EnableCoT)
	assert.InDelta(t, -1, cfg.FallbackTemperature, 1e-12)
}

func TestLoadFullEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv(envAddr, ":9999")
	t.Setenv(envMaxConcurrent, "8")
	t.Setenv(envFallbackProv, "gemini")
	t.Setenv(envFallbackModel, "gemini-2.5-flash")
	t.Setenv(envFallbackTokens, "256")
	t.Setenv(envFallbackTemp, "0.1")
	t.Setenv(envGoogleKey, "g-test")
	t.Setenv(envEnableCoT, "true")
	t.Setenv(envRerankURL, "http://rerank:8000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, "gemini", cfg.FallbackProvider)
	assert.Equal(t, 256, cfg.FallbackMaxTokens)
	assert.InDelta(t, 0.1, cfg.FallbackTemperature, 1e-12)
	assert.True(t, cfg.EnableCoT)
	assert.Equal(t, "http://rerank:8000", cfg.RerankURL)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing corpus", func(t *testing.T) {
		t.Setenv(envOpenAIKey, "sk-test")
		t.Setenv(envCorpusPath, "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), envCorpusPath)
	})

	t.Run("missing openai key", func(t *testing.T) {
		t.Setenv(envCorpusPath, "/data/corpus.jsonl")
		t.Setenv(envOpenAIKey, "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), envOpenAIKey)
	})

	t.Run("unsupported fallback provider", func(t *testing.T) {
		setRequired(t)
		t.Setenv(envFallbackProv, "claude")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("gemini without key", func(t *testing.T) {
		setRequired(t)
		t.Setenv(envFallbackProv, "gemini")
		t.Setenv(envGoogleKey, "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), envGoogleKey)
	})

	t.Run("bad integer", func(t *testing.T) {
		setRequired(t)
		t.Setenv(envMaxConcurrent, "many")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("nonpositive concurrency", func(t *testing.T) {
		setRequired(t)
		t.Setenv(envMaxConcurrent, "0")
		_, err := Load()
		require.Error(t, err)
	})
}
