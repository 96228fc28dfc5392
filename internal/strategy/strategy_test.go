package strategy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

func conversation(n int, prefix string) []memory.Message {
	out := make([]memory.Message, 0, n)
	for i := 0; i < n; i++ {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		out = append(out, memory.NewMessage(role, fmt.Sprintf("%s%d", prefix, i)))
	}
	return out
}

func contents(msgs []memory.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestSlidingWindow_TailOfFive(t *testing.T) {
	state := memory.State{History: conversation(5, "h")}

	plan := SlidingWindow{}.Build(state, SlidingWindowConfig{Tail: 3})

	assert.Equal(t, []string{"h2", "h3", "h4"}, contents(plan.Messages))
	assert.Equal(t, "SlidingWindow(tail=3)", plan.DebugLabel)
}

func TestSlidingWindow_SkipsSystemAndDoesNotMutate(t *testing.T) {
	history := append([]memory.Message{memory.NewMessage(memory.RoleSystem, "sys")}, conversation(2, "h")...)
	state := memory.State{History: history}

	plan := SlidingWindow{}.Build(state, SlidingWindowConfig{Tail: 10})
	require.Len(t, plan.Messages, 2)

	plan.Messages[0].Content = "mutated"
	assert.Equal(t, "h0", state.History[1].Content)
}

func TestStickyFacts(t *testing.T) {
	state := memory.State{
		History:   conversation(2, "h"),
		FactsJSON: `{"goal":"x"}`,
	}

	plan := StickyFacts{}.Build(state, StickyFactsConfig{Tail: 2})

	require.Len(t, plan.Messages, 3)
	assert.Equal(t, memory.RoleSystem, plan.Messages[0].Role)
	assert.Equal(t, "FACTS (key-value memory, JSON):\n{\"goal\":\"x\"}", plan.Messages[0].Content)
	assert.Equal(t, []string{"h0", "h1"}, contents(plan.Messages[1:]))
	assert.Equal(t, "StickyFacts(tail=2, facts=true)", plan.DebugLabel)
}

func TestStickyFacts_BlankFactsOmitted(t *testing.T) {
	state := memory.State{History: conversation(3, "h"), FactsJSON: "  \n"}

	plan := StickyFacts{}.Build(state, StickyFactsConfig{Tail: 2})

	assert.Equal(t, []string{"h1", "h2"}, contents(plan.Messages))
	assert.Equal(t, "StickyFacts(tail=2, facts=false)", plan.DebugLabel)
}

func TestBranching_NoCheckpoint(t *testing.T) {
	state := memory.State{History: conversation(6, "h")}

	plan := Branching{}.Build(state, BranchingConfig{BranchID: "A", Tail: 4})

	assert.Equal(t, []string{"h2", "h3", "h4", "h5"}, contents(plan.Messages))
	assert.Equal(t, "Branching(no-checkpoint → tail=4, hist=6)", plan.DebugLabel)
}

func TestBranching_BaseAndBranchTail(t *testing.T) {
	state := memory.State{History: conversation(4, "base")}
	state.SetCheckpoint(4)
	state.SetActiveBranch("A")
	for _, m := range conversation(4, "a") {
		state.AppendToBranch("A", m)
	}

	plan := Branching{}.Build(state, BranchingConfig{BranchID: "A", Tail: DefaultBranchingTail})
	assert.Equal(t,
		[]string{"base0", "base1", "base2", "base3", "a0", "a1", "a2", "a3"},
		contents(plan.Messages))
	assert.Equal(t, "Branching(branch=A, base=4, branchTail=4, tail=50)", plan.DebugLabel)

	plan = Branching{}.Build(state, BranchingConfig{BranchID: "B", Tail: DefaultBranchingTail})
	assert.Equal(t, []string{"base0", "base1", "base2", "base3"}, contents(plan.Messages))
	assert.Equal(t, "Branching(branch=B, base=4, branchTail=0, tail=50)", plan.DebugLabel)
}

func TestBranching_TailLimitsBranchOnly(t *testing.T) {
	state := memory.State{History: conversation(6, "base")}
	state.SetCheckpoint(2)
	for _, m := range conversation(5, "a") {
		state.AppendToBranch("A", m)
	}

	plan := Branching{}.Build(state, BranchingConfig{BranchID: "A", Tail: 2})

	assert.Equal(t, []string{"base0", "base1", "a3", "a4"}, contents(plan.Messages))
}

func TestStrategies_PanicOnMismatchedConfig(t *testing.T) {
	var state memory.State

	assert.Panics(t, func() { SlidingWindow{}.Build(state, StickyFactsConfig{Tail: 1}) })
	assert.Panics(t, func() { StickyFacts{}.Build(state, BranchingConfig{Tail: 1}) })
	assert.Panics(t, func() { Branching{}.Build(state, SlidingWindowConfig{Tail: 1}) })
}

func TestSelector(t *testing.T) {
	s := NewSelector()

	assert.IsType(t, SlidingWindow{}, s.Select(SlidingWindowConfig{}))
	assert.IsType(t, StickyFacts{}, s.Select(StickyFactsConfig{}))
	assert.IsType(t, Branching{}, s.Select(BranchingConfig{}))

	plan := s.Build(memory.State{History: conversation(5, "h")}, SlidingWindowConfig{Tail: 3})
	assert.Len(t, plan.Messages, 3)
}

func TestNewSelectorWith_RejectsIncompleteTable(t *testing.T) {
	assert.Panics(t, func() {
		NewSelectorWith(map[Kind]Strategy{KindSlidingWindow: SlidingWindow{}})
	})
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"sliding_window", KindSlidingWindow, false},
		{"Sticky-Facts", KindStickyFacts, false},
		{" branching ", KindBranching, false},
		{"summary", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(KindSlidingWindow, 0, "")
	require.NoError(t, err)
	assert.Equal(t, SlidingWindowConfig{Tail: 12}, cfg)

	cfg, err = NewConfig(KindStickyFacts, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TailMessageCount())

	cfg, err = NewConfig(KindBranching, 0, "")
	require.NoError(t, err)
	assert.Equal(t, BranchingConfig{BranchID: "A", Tail: 50}, cfg)

	_, err = NewConfig(Kind(42), 1, "")
	assert.Error(t, err)
}
