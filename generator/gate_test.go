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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// countingGenerator tracks the number of concurrent in-flight calls.
type countingGenerator struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	block       time.Duration
}

func (c *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		max := c.maxInFlight.Load()
		if n <= max || c.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	if c.block > 0 {
		time.Sleep(c.block)
	}
	return "ok", nil
}

func TestGateBoundsConcurrency(t *testing.T) {
	inner := &countingGenerator{block: 10 * time.Millisecond}
	gate := NewGate(2)
	g := WithGate(inner, gate)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := g.Generate(context.Background(), "p")
			assert.NoError(t, err)
			assert.Equal(t, "ok", out)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, inner.maxInFlight.Load(), int32(2))
}

func TestGateAcquireHonorsContext(t *testing.T) {
	gate := NewGate(1)
	require.NoError(t, gate.Acquire(context.Background()))
	defer gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewGateNonPositiveLimit(t *testing.T) {
	gate := NewGate(0)
	for i := 0; i < DefaultGateLimit; i++ {
		require.NoError(t, gate.Acquire(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.Error(t, gate.Acquire(ctx))
}

func TestWithRateLimitPacesCalls(t *testing.T) {
	inner := &countingGenerator{}
	// 1 token up front, then one every 50ms.
	g := WithRateLimit(inner, rate.Every(50*time.Millisecond), 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWithRateLimitHonorsContext(t *testing.T) {
	inner := &countingGenerator{}
	g := WithRateLimit(inner, rate.Every(time.Hour), 1)

	_, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, "p")
	assert.Error(t, err)
}
