//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package openai provides an OpenAI chat-completion generator.
package openai

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/medwhisper/medwhisper-go/generator"
	"github.com/medwhisper/medwhisper-go/log"
)

var _ generator.Generator = (*Generator)(nil)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxTokens bounds one completion.
	DefaultMaxTokens = 512
	// DefaultTemperature keeps answers close to the evidence.
	DefaultTemperature = 0.2
)

// Generator implements the generator.Generator interface for the OpenAI API.
type Generator struct {
	client         openai.Client
	model          string
	maxTokens      int64
	temperature    float64
	apiKey         string
	baseURL        string
	requestOptions []option.RequestOption
}

// Option represents a functional option for configuring the Generator.
type Option func(*Generator)

// WithModel sets the chat model to use.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithAPIKey sets the OpenAI API key.
// If not provided, the OPENAI_API_KEY environment variable is used.
func WithAPIKey(apiKey string) Option {
	return func(g *Generator) {
		g.apiKey = apiKey
	}
}

// WithBaseURL sets the base URL, for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) Option {
	return func(g *Generator) {
		g.baseURL = baseURL
	}
}

// WithRequestOptions sets additional options for the OpenAI client requests.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(g *Generator) {
		g.requestOptions = append(g.requestOptions, opts...)
	}
}

// New creates a new OpenAI generator with the given options.
func New(opts ...Option) *Generator {
	g := &Generator{
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}

	var clientOpts []option.RequestOption
	if g.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(g.apiKey))
	}
	if g.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(g.baseURL))
	}
	g.client = openai.NewClient(clientOpts...)
	return g
}

// Generate implements the generator.Generator interface.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	request := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(g.maxTokens),
		Temperature: openai.Float(g.temperature),
	}

	response, err := g.client.Chat.Completions.New(ctx, request, g.requestOptions...)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		log.Warn("received empty completion response from OpenAI API")
		return "", nil
	}
	return response.Choices[0].Message.Content, nil
}
