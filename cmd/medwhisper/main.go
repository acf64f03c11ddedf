//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Command medwhisper serves the clinical question-answering API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/medwhisper/medwhisper-go/config"
	"github.com/medwhisper/medwhisper-go/confidence"
	"github.com/medwhisper/medwhisper-go/corpus"
	openaiembedder "github.com/medwhisper/medwhisper-go/embedder/openai"
	"github.com/medwhisper/medwhisper-go/generator"
	geminigenerator "github.com/medwhisper/medwhisper-go/generator/gemini"
	openaigenerator "github.com/medwhisper/medwhisper-go/generator/openai"
	"github.com/medwhisper/medwhisper-go/index/bm25"
	"github.com/medwhisper/medwhisper-go/index/inmemory"
	"github.com/medwhisper/medwhisper-go/log"
	"github.com/medwhisper/medwhisper-go/qa"
	"github.com/medwhisper/medwhisper-go/reranker"
	"github.com/medwhisper/medwhisper-go/retriever"
	"github.com/medwhisper/medwhisper-go/server"
	"github.com/medwhisper/medwhisper-go/telemetry/metric"
)

// primaryRateLimit bounds primary-model calls per second per process.
const (
	primaryRateLimit = rate.Limit(10)
	primaryRateBurst = 20
)

// rerankPoolSize caps concurrent pairwise oracle calls.
const rerankPoolSize = 8

func main() {
	if err := run(); err != nil {
		log.Fatalf("medwhisper failed: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	metricClean, err := metric.Start(ctx, metric.WithServiceName("medwhisper"))
	if err != nil {
		// Metrics are optional; the pipeline serves without an exporter.
		log.Warnf("metrics disabled: %v", err)
	} else {
		defer func() {
			if err := metricClean(); err != nil {
				log.Warnf("failed to shut down metrics: %v", err)
			}
		}()
	}

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(engine).Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("serving on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// buildEngine assembles the full pipeline from configuration: embedder,
// indexes, retriever, reranker, generators and the gating policy.
func buildEngine(ctx context.Context, cfg *config.Config) (*qa.Engine, func(), error) {
	cleanup := func() {}

	embedderOpts := []openaiembedder.Option{openaiembedder.WithAPIKey(cfg.OpenAIKey)}
	if cfg.EmbedModel != "" {
		embedderOpts = append(embedderOpts, openaiembedder.WithModel(cfg.EmbedModel))
	}
	emb := openaiembedder.New(embedderOpts...)

	denseIndex := inmemory.New()
	lexicalIndex := bm25.New()
	docs, err := corpus.Load(cfg.CorpusPath)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to load corpus: %w", err)
	}
	log.Infof("loaded %d documents from %s", len(docs), cfg.CorpusPath)
	if err := corpus.BuildIndexes(ctx, docs, emb, denseIndex, lexicalIndex); err != nil {
		return nil, cleanup, fmt.Errorf("failed to build indexes: %w", err)
	}

	hybrid := retriever.NewHybrid(
		retriever.WithEmbedder(emb),
		retriever.WithDenseBackend(denseIndex),
		retriever.WithLexicalBackend(lexicalIndex),
		retriever.WithDocStore(denseIndex),
	)

	var rerank reranker.Reranker
	if cfg.RerankURL != "" {
		pool, err := ants.NewPool(rerankPoolSize)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create rerank pool: %w", err)
		}
		cleanup = pool.Release
		rerank = reranker.NewCrossEncoder(
			reranker.NewRemoteOracle(cfg.RerankURL),
			reranker.WithPool(pool),
		)
	} else {
		log.Warn("no rerank service configured, using fused order")
		rerank = reranker.NewTopK()
	}

	primaryOpts := []openaigenerator.Option{openaigenerator.WithAPIKey(cfg.OpenAIKey)}
	if cfg.PrimaryModel != "" {
		primaryOpts = append(primaryOpts, openaigenerator.WithModel(cfg.PrimaryModel))
	}
	gate := generator.NewGate(cfg.MaxConcurrent)
	primary := generator.WithGate(
		generator.WithRateLimit(openaigenerator.New(primaryOpts...), primaryRateLimit, primaryRateBurst),
		gate,
	)

	var fallback generator.Generator
	if cfg.FallbackProvider == "gemini" {
		geminiOpts := []geminigenerator.Option{geminigenerator.WithAPIKey(cfg.GoogleKey)}
		if cfg.FallbackModel != "" {
			geminiOpts = append(geminiOpts, geminigenerator.WithModel(cfg.FallbackModel))
		}
		if cfg.FallbackMaxTokens > 0 {
			geminiOpts = append(geminiOpts, geminigenerator.WithMaxTokens(int32(cfg.FallbackMaxTokens)))
		}
		if cfg.FallbackTemperature >= 0 {
			geminiOpts = append(geminiOpts, geminigenerator.WithTemperature(float32(cfg.FallbackTemperature)))
		}
		gemini, err := geminigenerator.New(ctx, geminiOpts...)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create fallback generator: %w", err)
		}
		fallback = generator.WithGate(gemini, gate)
	}

	policy := qa.DefaultPolicy()
	policy.EnableCoT = cfg.EnableCoT

	engineOpts := []qa.Option{
		qa.WithRetriever(hybrid),
		qa.WithReranker(rerank),
		qa.WithAssessor(confidence.New(emb)),
		qa.WithPrimaryGenerator(primary),
		qa.WithPolicy(policy),
	}
	if fallback != nil {
		engineOpts = append(engineOpts, qa.WithFallbackGenerator(fallback))
	}
	engine, err := qa.New(engineOpts...)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, cleanup, nil
}
