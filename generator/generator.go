//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

// Package generator provides the generation oracle interface and the
// concurrency adapters wrapped around it at startup.
package generator

import "context"

// Generator turns a prompt into text. Implementations block until the
// oracle responds or ctx is done; callers treat errors as empty output.
type Generator interface {
	// Generate returns the oracle's completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}
