//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package generator

import "context"

// DefaultGateLimit caps simultaneous generation-oracle calls process-wide.
const DefaultGateLimit = 32

// Gate bounds how many generation calls are in flight at once. Requests
// beyond the limit queue on the channel rather than fail. One gate is
// created at process start and shared by every generator that talks to a
// rate-limited oracle.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate with the given limit. A limit <= 0 falls back to
// DefaultGateLimit.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultGateLimit
	}
	return &Gate{slots: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired with Acquire.
func (g *Gate) Release() {
	<-g.slots
}

var _ Generator = (*gated)(nil)

type gated struct {
	next Generator
	gate *Gate
}

// WithGate wraps a generator so every call holds a gate slot for its
// duration.
func WithGate(next Generator, gate *Gate) Generator {
	return &gated{next: next, gate: gate}
}

// Generate implements the Generator interface.
func (g *gated) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer g.gate.Release()
	return g.next.Generate(ctx, prompt)
}
