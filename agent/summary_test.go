package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/chatcore/internal/summary"
	"github.com/aixgo-dev/chatcore/pkg/llm"
	"github.com/aixgo-dev/chatcore/pkg/memory"
	"github.com/aixgo-dev/chatcore/pkg/observability"
	"github.com/aixgo-dev/chatcore/pkg/session"
)

type fakeSummarizer struct {
	calls int
	err   error
}

func (s *fakeSummarizer) SummarizeChunk(ctx context.Context, existing string, chunk []memory.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.calls++
	return fmt.Sprintf("summary#%d(%s..%s)", s.calls, chunk[0].Content, chunk[len(chunk)-1].Content), nil
}

func newSummaryAgent(t *testing.T, sum summary.Summarizer, opts ...Option) (*SummaryAgent, *llm.MockCompleter, *session.SnapshotStore) {
	t.Helper()
	store := session.NewSnapshotStore(session.NewMemoryBackend(), session.DefaultSnapshotKey)
	mock := llm.NewMockCompleter()
	mgr := summary.NewManager(sum, summary.WithKeepLast(4), summary.WithBatchSize(2))
	return NewSummaryAgent(mock, store, mgr, opts...), mock, store
}

func TestSummaryAgent_CompressesInBatches(t *testing.T) {
	ctx := context.Background()
	sum := &fakeSummarizer{}
	rec := &recordingRecorder{}
	a, mock, store := newSummaryAgent(t, sum, WithMetrics(rec))

	// keepLast=4, batch=2: the fourth user message leaves 3 messages
	// outside the tail, enough for one batch.
	for i := 0; i < 4; i++ {
		mock.AddResponse(fmt.Sprintf("a%d", i), nil)
		_, err := a.HandleUserMessage(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, sum.calls)
	assert.Equal(t, 1, rec.compressions)

	text, count, err := a.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "summary#1(u0..a0)", text)
	assert.Equal(t, 2, count)

	prompt := mock.Calls()[3].Messages
	require.Len(t, prompt, 6)
	assert.Equal(t, DefaultSystemPrompt, prompt[0].Content)
	assert.Equal(t, SummaryPrefix+"summary#1(u0..a0)", prompt[1].Content)
	assert.Equal(t, []string{"a1", "u2", "a2", "u3"}, contents(prompt[2:]))

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, persisted.SummarizedCount)
	assert.Len(t, persisted.Messages, 8)

	msgs, err := a.Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 8)
}

func TestSummaryAgent_NoSummaryMessageUntilCompression(t *testing.T) {
	a, mock, _ := newSummaryAgent(t, &fakeSummarizer{})
	mock.AddResponse("hello", nil)

	reply, err := a.HandleUserMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Text)
	assert.True(t, strings.HasPrefix(reply.DebugLabel, "Summary("))

	prompt := mock.Calls()[0].Messages
	require.Len(t, prompt, 2)
	assert.Equal(t, memory.RoleSystem, prompt[0].Role)
	assert.Equal(t, "hi", prompt[1].Content)
}

func TestSummaryAgent_FailureKeepsNothing(t *testing.T) {
	ctx := context.Background()
	sum := &fakeSummarizer{}
	a, mock, store := newSummaryAgent(t, sum)

	for i := 0; i < 3; i++ {
		mock.AddResponse(fmt.Sprintf("a%d", i), nil)
		_, err := a.HandleUserMessage(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 0, sum.calls)

	mock.AddError(errors.New("upstream"))
	_, err := a.HandleUserMessage(ctx, "u3")
	require.Error(t, err)
	assert.Equal(t, 1, sum.calls, "compression ran before the failed completion")

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted.Messages, 6)
	assert.Zero(t, persisted.SummarizedCount)
	assert.Empty(t, persisted.Summary)
}

func TestSummaryAgent_SummarizerFailure(t *testing.T) {
	ctx := context.Background()
	store := session.NewSnapshotStore(session.NewMemoryBackend(), session.DefaultSnapshotKey)
	boom := errors.New("summarizer down")
	mgr := summary.NewManager(&fakeSummarizer{err: boom}, summary.WithKeepLast(1), summary.WithBatchSize(1))
	mock := llm.NewMockCompleter()
	a := NewSummaryAgent(mock, store, mgr)

	mock.AddResponse("a0", nil)
	_, err := a.HandleUserMessage(ctx, "u0")
	require.NoError(t, err)

	_, err = a.HandleUserMessage(ctx, "u1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mock.CallCount())

	msgs, err := a.Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSummaryAgent_EmptyInputAndReset(t *testing.T) {
	ctx := context.Background()
	rec := &recordingRecorder{}
	a, mock, store := newSummaryAgent(t, &fakeSummarizer{}, WithMetrics(rec))

	reply, err := a.HandleUserMessage(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, &Reply{}, reply)
	assert.Zero(t, mock.CallCount())
	assert.Equal(t, observability.StatusEmpty, rec.turns[0].Status)

	mock.AddResponse("a", nil)
	_, err = a.HandleUserMessage(ctx, "u")
	require.NoError(t, err)

	require.NoError(t, a.Reset(ctx))
	msgs, err := a.Messages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, memory.Snapshot{}, persisted)
}

func TestSummaryAgent_DefaultManager(t *testing.T) {
	store := session.NewSnapshotStore(session.NewMemoryBackend(), session.DefaultSnapshotKey)
	a := NewSummaryAgent(llm.NewMockCompleter(), store, nil)
	assert.Equal(t, summary.DefaultKeepLast, a.manager.KeepLast())
	assert.Equal(t, summary.DefaultBatchSize, a.manager.BatchSize())
}
