package summary

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Defaults for Manager.
const (
	DefaultKeepLast  = 12
	DefaultBatchSize = 10
)

// Plan is the compression output for one turn.
type Plan struct {
	Summary string
	// Tail holds at most KeepLast non-system messages, sent verbatim.
	Tail []memory.Message
	// Updated is non-nil only when a batch was folded into the summary and
	// the snapshot must be persisted.
	Updated *memory.Snapshot
}

// Manager folds the oldest pending messages into the summary in
// fixed-size batches, one batch per call at most.
type Manager struct {
	summarizer Summarizer
	keepLast   int
	batchSize  int
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeepLast sets the verbatim tail size.
func WithKeepLast(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keepLast = n
		}
	}
}

// WithBatchSize sets how many pending messages trigger one compression.
func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager using s.
func NewManager(s Summarizer, opts ...Option) *Manager {
	m := &Manager{
		summarizer: s,
		keepLast:   DefaultKeepLast,
		batchSize:  DefaultBatchSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// KeepLast returns the configured tail size.
func (m *Manager) KeepLast() int { return m.keepLast }

// BatchSize returns the configured batch size.
func (m *Manager) BatchSize() int { return m.batchSize }

// Prepare computes the summary and tail for snap. The snapshot is never
// modified; a summarizer failure is returned unchanged in kind.
func (m *Manager) Prepare(ctx context.Context, snap memory.Snapshot) (Plan, error) {
	all := memory.NonSystem(snap.Messages)

	tail := memory.TakeLast(all, m.keepLast)
	compressible := all[:len(all)-len(tail)]

	done := min(max(snap.SummarizedCount, 0), len(compressible))
	pending := compressible[done:]

	if len(pending) < m.batchSize {
		return Plan{Summary: snap.Summary, Tail: tail}, nil
	}

	chunk := pending[:m.batchSize]
	summary, err := m.summarizer.SummarizeChunk(ctx, snap.Summary, chunk)
	if err != nil {
		return Plan{}, fmt.Errorf("compress history: %w", err)
	}

	updated := snap.Clone()
	updated.Summary = summary
	updated.SummarizedCount = snap.SummarizedCount + len(chunk)

	m.logger.Debug("history compressed",
		"batch", len(chunk),
		"summarized_count", updated.SummarizedCount,
		"pending", len(pending)-len(chunk))

	return Plan{Summary: summary, Tail: tail, Updated: &updated}, nil
}
