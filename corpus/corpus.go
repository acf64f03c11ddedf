//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package corpus loads clinical note corpora from JSONL files and builds
// the dense and lexical indexes that serve retrieval.
package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/medwhisper/medwhisper-go/embedder"
	"github.com/medwhisper/medwhisper-go/evidence"
	"github.com/medwhisper/medwhisper-go/index/bm25"
	"github.com/medwhisper/medwhisper-go/index/inmemory"
	"github.com/medwhisper/medwhisper-go/log"
)

// maxLineBytes bounds one JSONL record. Clinical notes run long but a
// multi-megabyte line is a corrupt file, not a note.
const maxLineBytes = 4 * 1024 * 1024

// progressEvery is how many indexed documents pass between progress logs.
const progressEvery = 500

// Load reads candidates from a JSONL file, one evidence.Candidate object per
// line. Blank lines are skipped; a malformed line fails the whole load since
// serving from a partially read corpus silently degrades every answer.
func Load(path string) ([]evidence.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	var docs []evidence.Candidate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var doc evidence.Candidate
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse corpus line %d: %w", lineNo, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("corpus line %d has no id", lineNo)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	return docs, nil
}

// BuildIndexes embeds every document and populates both retrieval channels.
// Embedding is the slow part, so progress is logged as the build runs.
func BuildIndexes(
	ctx context.Context,
	docs []evidence.Candidate,
	emb embedder.Embedder,
	dense *inmemory.Index,
	lexical *bm25.Index,
) error {
	start := time.Now()
	for i := range docs {
		vec, err := emb.GetEmbedding(ctx, docs[i].Text)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", docs[i].ID, err)
		}
		if err := dense.Add(ctx, &docs[i], vec); err != nil {
			return fmt.Errorf("failed to index document %s: %w", docs[i].ID, err)
		}
		if err := lexical.Add(ctx, docs[i].ID, docs[i].Text); err != nil {
			return fmt.Errorf("failed to index document %s: %w", docs[i].ID, err)
		}
		if (i+1)%progressEvery == 0 {
			log.Infof("indexed %d/%d documents", i+1, len(docs))
		}
	}
	log.Infof("indexed %d documents in %s", len(docs), time.Since(start).Truncate(time.Millisecond))
	return nil
}
