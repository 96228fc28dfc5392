package agent

import (
	"fmt"
	"strconv"

	"github.com/aixgo-dev/chatcore/internal/llm/cost"
	"github.com/aixgo-dev/chatcore/pkg/llm"
)

// Reply is the result of one turn.
type Reply struct {
	Text    string
	Metrics TurnMetrics
	// DebugLabel describes how the prompt was assembled.
	DebugLabel string
}

// TurnMetrics reports estimated and actual token usage for a turn. Actual
// values and the cost are nil when the endpoint reported no usage.
type TurnMetrics struct {
	TurnID string

	EstimatedUserTokens    int
	EstimatedHistoryTokens int
	EstimatedPromptTokens  int

	ActualPromptTokens     *int
	ActualCompletionTokens *int
	ActualTotalTokens      *int

	EstimatedCostUSD *float64
}

func (m *TurnMetrics) setUsage(u *llm.Usage, costs *cost.Estimator) {
	if u == nil {
		return
	}
	prompt, completion, total := u.PromptTokens, u.CompletionTokens, u.TotalTokens
	m.ActualPromptTokens = &prompt
	m.ActualCompletionTokens = &completion
	m.ActualTotalTokens = &total

	usd := costs.EstimateUSD(prompt, completion)
	m.EstimatedCostUSD = &usd
}

// String renders the metrics as a single status line.
func (m TurnMetrics) String() string {
	costStr := "—"
	if m.EstimatedCostUSD != nil {
		costStr = strconv.FormatFloat(*m.EstimatedCostUSD, 'f', 6, 64)
	}
	return fmt.Sprintf("Tokens: user≈%d, history≈%d, prompt≈%d | actual prompt=%s, completion=%s | cost≈$%s",
		m.EstimatedUserTokens, m.EstimatedHistoryTokens, m.EstimatedPromptTokens,
		optInt(m.ActualPromptTokens), optInt(m.ActualCompletionTokens), costStr)
}

func optInt(v *int) string {
	if v == nil {
		return "—"
	}
	return strconv.Itoa(*v)
}

func costOf(m TurnMetrics) float64 {
	if m.EstimatedCostUSD == nil {
		return 0
	}
	return *m.EstimatedCostUSD
}
