// Package facts keeps the sticky key-value memory blob up to date.
package facts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aixgo-dev/chatcore/internal/llm/parser"
	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Updater folds a new user message into the facts blob.
type Updater interface {
	UpdateFacts(ctx context.Context, existingFactsJSON, userMessage string) (string, error)
}

// EmptyFacts is sent in place of a blank facts blob.
const EmptyFacts = `{"goal":"","constraints":[],"preferences":[],"decisions":[],"open_questions":[],"entities":{},"conflicts":[]}`

// FactsMaxTokens caps the updater's reply.
const FactsMaxTokens = 250

const updaterInstruction = `You are a memory updater for a chat assistant.
Update FACTS JSON based ONLY on the NEW_USER_MESSAGE.
Do NOT invent facts. Keep values short.
If user contradicts a fact, overwrite it and add a short note into "conflicts".
Return ONLY valid JSON (no markdown).
Allowed keys:
goal (string), constraints (array), preferences (array), decisions (array),
open_questions (array), entities (object), conflicts (array).
If a key is missing, keep it.`

// LLMUpdater asks a completion service to rewrite the facts blob. The reply
// is returned verbatim after trimming; it is not parsed.
type LLMUpdater struct {
	completer llm.Completer
	logger    *slog.Logger
}

// NewLLMUpdater creates an updater backed by c. A nil logger uses slog.Default.
func NewLLMUpdater(c llm.Completer, logger *slog.Logger) *LLMUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMUpdater{completer: c, logger: logger}
}

// UpdateFacts implements Updater.
func (u *LLMUpdater) UpdateFacts(ctx context.Context, existingFactsJSON, userMessage string) (string, error) {
	existing := existingFactsJSON
	if strings.TrimSpace(existing) == "" {
		existing = EmptyFacts
	}

	var b strings.Builder
	b.WriteString("EXISTING_FACTS_JSON:\n")
	b.WriteString(existing)
	b.WriteString("\n\nNEW_USER_MESSAGE:\n")
	b.WriteString(userMessage)
	b.WriteString("\n")

	prompt := []memory.Message{
		memory.NewMessage(memory.RoleSystem, updaterInstruction),
		memory.NewMessage(memory.RoleUser, b.String()),
	}

	res, err := u.completer.Ask(ctx, prompt, llm.WithMaxTokens(FactsMaxTokens))
	if err != nil {
		return "", fmt.Errorf("update facts: %w", err)
	}

	updated := strings.TrimSpace(res.Text)
	if !gjson.Valid(updated) {
		_, recoverable := parser.ExtractObject(updated)
		u.logger.Warn("facts updater returned invalid JSON, storing as-is",
			"length", len(updated),
			"recoverable", recoverable)
	}
	return updated, nil
}
