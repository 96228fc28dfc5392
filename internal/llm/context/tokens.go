// Package context estimates prompt sizes and guards the model's context window.
package context

import (
	"strings"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// TokenEstimator estimates token counts without calling the model.
type TokenEstimator interface {
	EstimateTokens(text string) int
	EstimateMessages(messages []memory.Message) int
}

const (
	// Per-rune weights in tenths of a token: 0.3 for ASCII, 0.6 otherwise.
	asciiTenths    = 3
	nonASCIITenths = 6

	// textOverhead is added to every non-blank text.
	textOverhead = 4
	// messageOverhead is added per message for role and separators.
	messageOverhead = 2
	// listOverhead is added once per message list.
	listOverhead = 6
)

// CharClassEstimator weighs ASCII runes lighter than non-ASCII ones, which
// tend to split into more sub-word tokens. It is a heuristic, not a
// tokenizer, but it is deterministic and monotonic in text length.
type CharClassEstimator struct{}

// EstimateTokens returns 0 for blank text, otherwise the rounded-up weighted
// rune count plus a fixed overhead.
func (CharClassEstimator) EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	var tenths int
	for _, r := range text {
		if r <= 0x7f {
			tenths += asciiTenths
		} else {
			tenths += nonASCIITenths
		}
	}
	return (tenths+9)/10 + textOverhead
}

// EstimateMessages returns the list overhead plus, per message, its content
// estimate and the per-message overhead.
func (e CharClassEstimator) EstimateMessages(messages []memory.Message) int {
	sum := listOverhead
	for _, m := range messages {
		sum += e.EstimateTokens(m.Content) + messageOverhead
	}
	return sum
}

// DefaultEstimator is the estimator used when none is configured.
var DefaultEstimator TokenEstimator = CharClassEstimator{}
