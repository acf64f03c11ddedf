//
// Tencent is pleased to support the open source community by making medwhisper available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// medwhisper is licensed under the Apache License Version 2.0.
//
//

package qa

import (
	"fmt"
	"strings"

	"github.com/medwhisper/medwhisper-go/evidence"
)

// evidenceChars is the per-candidate character budget inside the prompt.
const evidenceChars = 350

const systemInstruction = "You are MedWhisper, a concise and medically accurate assistant.\n" +
	"Use ONLY the evidence below if it is relevant. If evidence is insufficient, rely on general medical knowledge cautiously.\n" +
	"RULES: Output ONLY the final answer as plain text. No preamble. No labels. No citations. 2-4 sentences."

const reasoningInstruction = "Explain your reasoning briefly (1-2 sentences) before giving the final answer."

// primaryPrompt builds the evidence-grounded prompt for the primary path.
// Clinician roles get the brief-reasoning variant when chain-of-thought is
// enabled.
func primaryPrompt(query string, ranked []evidence.Candidate, withReasoning bool) string {
	var b strings.Builder
	for i, c := range ranked {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, evidence.TruncateText(c.Text, evidenceChars))
	}

	if withReasoning {
		return fmt.Sprintf("%s\n\n%s\n\nEVIDENCE:\n%s\n\nQUESTION: %s\n\nFINAL ANSWER:",
			systemInstruction, reasoningInstruction, b.String(), query)
	}
	return fmt.Sprintf("%s\n\nEVIDENCE:\n%s\n\nQUESTION: %s\n\nFINAL ANSWER:",
		systemInstruction, b.String(), query)
}

// retryPrompt is the bare second-chance prompt used when the first primary
// completion sanitized to nothing.
func retryPrompt(query string) string {
	return fmt.Sprintf("Answer concisely (2-4 sentences), no labels/citations. Question: %s\nAnswer:", query)
}

// fallbackPrompt asks the evidence-free fallback path for a short answer
// from general knowledge.
func fallbackPrompt(query string) string {
	return "Answer concisely (2-4 sentences). Use medically sound language. " +
		"Do NOT include citations or labels. If uncertain, say so briefly.\n" +
		fmt.Sprintf("Question: %s\nAnswer:", query)
}
