// Package summary compresses older conversation messages into a running
// summary while keeping a fixed tail verbatim.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Summarizer merges a chunk of messages into an existing summary.
type Summarizer interface {
	SummarizeChunk(ctx context.Context, existingSummary string, chunk []memory.Message) (string, error)
}

const summarizerInstruction = `You compress chat history.
Return a concise summary.
Keep: user goals, constraints, decisions, entities, open questions.
Do NOT include code blocks. Use bullet points.
If existing summary is provided, update it (merge).`

// SummaryMaxTokens caps the summarizer's reply.
const SummaryMaxTokens = 250

// LLMSummarizer asks a completion service to merge the chunk.
type LLMSummarizer struct {
	completer llm.Completer
}

// NewLLMSummarizer creates a summarizer backed by c.
func NewLLMSummarizer(c llm.Completer) *LLMSummarizer {
	return &LLMSummarizer{completer: c}
}

// SummarizeChunk implements Summarizer.
func (s *LLMSummarizer) SummarizeChunk(ctx context.Context, existingSummary string, chunk []memory.Message) (string, error) {
	prompt := []memory.Message{
		memory.NewMessage(memory.RoleSystem, summarizerInstruction),
		memory.NewMessage(memory.RoleUser, renderChunk(existingSummary, chunk)),
	}

	res, err := s.completer.Ask(ctx, prompt, llm.WithMaxTokens(SummaryMaxTokens))
	if err != nil {
		return "", fmt.Errorf("summarize chunk: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}

func renderChunk(existingSummary string, chunk []memory.Message) string {
	var b strings.Builder

	b.WriteString("EXISTING SUMMARY:\n")
	if strings.TrimSpace(existingSummary) == "" {
		b.WriteString("(none)")
	} else {
		b.WriteString(existingSummary)
	}
	b.WriteString("\n\nNEW CHUNK TO MERGE:\n")
	for _, m := range chunk {
		role := "Assistant"
		if m.Role == memory.RoleUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("\nReturn UPDATED SUMMARY only.\n")

	return b.String()
}
