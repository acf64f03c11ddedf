//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package generator

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

var _ Generator = (*rateLimited)(nil)

// rateLimited paces generation calls with a token bucket so sustained load
// stays within the oracle provider's request-per-second limits.
type rateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// WithRateLimit wraps a generator with a token-bucket limiter. limit is the
// sustained requests per second; burst allows short spikes above it.
func WithRateLimit(next Generator, limit rate.Limit, burst int) Generator {
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Generate waits for rate-limit permission before forwarding the call.
func (r *rateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Generate(ctx, prompt)
}
