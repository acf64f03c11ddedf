//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultScoreTimeout bounds one oracle round trip.
const defaultScoreTimeout = 20 * time.Second

var _ Oracle = (*RemoteOracle)(nil)

// RemoteOracle scores query-passage pairs against a cross-encoder model
// served over HTTP (POST {base}/score with {"query": ..., "passage": ...},
// response {"score": ...}).
type RemoteOracle struct {
	baseURL string
	client  *http.Client
}

// RemoteOption represents a functional option for configuring RemoteOracle.
type RemoteOption func(*RemoteOracle)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(r *RemoteOracle) {
		if client != nil {
			r.client = client
		}
	}
}

// NewRemoteOracle creates an oracle backed by a remote scoring service.
func NewRemoteOracle(baseURL string, opts ...RemoteOption) *RemoteOracle {
	r := &RemoteOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultScoreTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Score implements the Oracle interface.
func (r *RemoteOracle) Score(ctx context.Context, query, passage string) (float64, error) {
	body, err := json.Marshal(map[string]string{
		"query":   query,
		"passage": passage,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("score request failed: status %d", resp.StatusCode)
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode score response: %w", err)
	}
	return out.Score, nil
}
