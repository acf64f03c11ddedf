//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package config reads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names recognized by Load.
const (
	envAddr           = "MEDWHISPER_ADDR"
	envCorpusPath     = "MEDWHISPER_CORPUS"
	envRerankURL      = "MEDWHISPER_RERANK_URL"
	envOpenAIKey      = "OPENAI_API_KEY"
	envEmbedModel     = "OPENAI_EMBED_MODEL"
	envPrimaryModel   = "OPENAI_MODEL"
	envMaxConcurrent  = "MAX_CONCURRENT_LLM"
	envFallbackProv   = "FALLBACK_PROVIDER"
	envFallbackModel  = "FALLBACK_MODEL_ID"
	envFallbackTokens = "FALLBACK_MAX_TOKENS"
	envFallbackTemp   = "FALLBACK_TEMPERATURE"
	envGoogleKey      = "GOOGLE_API_KEY"
	envEnableCoT      = "ENABLE_COT"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAddr          = ":8080"
	DefaultMaxConcurrent = 32
)

// Config holds everything main needs to assemble the service.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// CorpusPath is the JSONL corpus to index at startup.
	CorpusPath string

	// RerankURL is the base URL of the pairwise scoring service. Empty
	// disables oracle reranking.
	RerankURL string

	// OpenAIKey authenticates the embedder and the primary generator.
	OpenAIKey string

	// EmbedModel overrides the embedding model. Empty uses the default.
	EmbedModel string

	// PrimaryModel overrides the primary generation model. Empty uses the
	// default.
	PrimaryModel string

	// MaxConcurrent caps in-flight generation calls across all requests.
	MaxConcurrent int

	// FallbackProvider selects the fallback generation path. Empty disables
	// the fallback entirely.
	FallbackProvider string

	// FallbackModel overrides the fallback model. Empty uses the provider
	// default.
	FallbackModel string

	// FallbackMaxTokens caps fallback completion length. Zero uses the
	// provider default.
	FallbackMaxTokens int

	// FallbackTemperature is the fallback sampling temperature. Negative
	// uses the provider default.
	FallbackTemperature float64

	// GoogleKey authenticates the gemini fallback provider.
	GoogleKey string

	// EnableCoT adds the brief-reasoning instruction to clinician prompts.
	EnableCoT bool
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:                getEnv(envAddr, DefaultAddr),
		CorpusPath:          os.Getenv(envCorpusPath),
		RerankURL:           os.Getenv(envRerankURL),
		OpenAIKey:           os.Getenv(envOpenAIKey),
		EmbedModel:          os.Getenv(envEmbedModel),
		PrimaryModel:        os.Getenv(envPrimaryModel),
		FallbackProvider:    os.Getenv(envFallbackProv),
		FallbackModel:       os.Getenv(envFallbackModel),
		GoogleKey:           os.Getenv(envGoogleKey),
		FallbackTemperature: -1,
	}

	var err error
	if cfg.MaxConcurrent, err = getEnvInt(envMaxConcurrent, DefaultMaxConcurrent); err != nil {
		return nil, err
	}
	if cfg.FallbackMaxTokens, err = getEnvInt(envFallbackTokens, 0); err != nil {
		return nil, err
	}
	if raw := os.Getenv(envFallbackTemp); raw != "" {
		if cfg.FallbackTemperature, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envFallbackTemp, err)
		}
	}
	if raw := os.Getenv(envEnableCoT); raw != "" {
		if cfg.EnableCoT, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envEnableCoT, err)
		}
	}

	if cfg.CorpusPath == "" {
		return nil, fmt.Errorf("%s is required", envCorpusPath)
	}
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("%s is required", envOpenAIKey)
	}
	if cfg.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("%s must be positive", envMaxConcurrent)
	}
	if cfg.FallbackProvider != "" {
		if cfg.FallbackProvider != "gemini" {
			return nil, fmt.Errorf("unsupported %s: %q", envFallbackProv, cfg.FallbackProvider)
		}
		if cfg.GoogleKey == "" {
			return nil, fmt.Errorf("%s is required when %s is gemini", envGoogleKey, envFallbackProv)
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
