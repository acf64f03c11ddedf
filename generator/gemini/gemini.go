//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a Gemini generator, used as the evidence-free
// fallback generation path.
package gemini

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/medwhisper/medwhisper-go/generator"
	"github.com/medwhisper/medwhisper-go/log"
)

var _ generator.Generator = (*Generator)(nil)

const (
	// DefaultModel is the default Gemini model.
	DefaultModel = "gemini-2.5-flash"
	// DefaultMaxTokens keeps fallback answers short.
	DefaultMaxTokens = 128
	// DefaultTemperature keeps fallback answers conservative.
	DefaultTemperature = 0.2

	// GoogleAPIKeyEnv is the environment variable name for the Google API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
)

// Generator implements the generator.Generator interface for the Gemini API.
type Generator struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	apiKey      string
}

// Option represents a functional option for configuring the Generator.
type Option func(*Generator)

// WithModel sets the Gemini model to use.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int32) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithAPIKey sets the Google API key.
// If not provided, the GOOGLE_API_KEY environment variable is used.
func WithAPIKey(apiKey string) Option {
	return func(g *Generator) {
		g.apiKey = apiKey
	}
}

// New creates a new Gemini generator with the given options.
func New(ctx context.Context, opts ...Option) (*Generator, error) {
	g := &Generator{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		apiKey:      os.Getenv(GoogleAPIKeyEnv),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("%s is not provided", GoogleAPIKeyEnv)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Generate implements the generator.Generator interface.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxTokens,
		Temperature:     genai.Ptr(g.temperature),
	}
	response, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}

	text := response.Text()
	if text == "" {
		log.Warn("received empty completion response from Gemini API")
	}
	return text, nil
}
