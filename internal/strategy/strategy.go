// Package strategy maps persisted conversation memory to the bounded list
// of messages sent with each completion request.
//
// Strategies are pure: they perform no I/O and never mutate the state they
// are given. A strategy handed a configuration of the wrong kind panics.
package strategy

import (
	"fmt"
	"strings"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Kind tags a strategy configuration.
type Kind int

const (
	KindSlidingWindow Kind = iota + 1
	KindStickyFacts
	KindBranching
)

// Default tail sizes.
const (
	DefaultSlidingWindowTail = 12
	DefaultStickyFactsTail   = 12
	DefaultBranchingTail     = 50
)

var kindNames = map[Kind]string{
	KindSlidingWindow: "sliding_window",
	KindStickyFacts:   "sticky_facts",
	KindBranching:     "branching",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configuration name to its Kind.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "_")
	for k, v := range kindNames {
		if v == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown context strategy %q", name)
}

// Config is the closed set of strategy configurations. Only the types in
// this package implement it.
type Config interface {
	Kind() Kind
	// TailMessageCount is the number of recent messages kept verbatim.
	TailMessageCount() int
	sealed()
}

// SlidingWindowConfig keeps the last Tail non-system history messages.
type SlidingWindowConfig struct {
	Tail int
}

// StickyFactsConfig is a sliding window prefixed by the facts blob.
type StickyFactsConfig struct {
	Tail int
}

// BranchingConfig builds from the checkpoint base plus a branch's tail.
type BranchingConfig struct {
	BranchID string
	Tail     int
}

func (SlidingWindowConfig) Kind() Kind { return KindSlidingWindow }
func (StickyFactsConfig) Kind() Kind   { return KindStickyFacts }
func (BranchingConfig) Kind() Kind     { return KindBranching }

func (c SlidingWindowConfig) TailMessageCount() int { return c.Tail }
func (c StickyFactsConfig) TailMessageCount() int   { return c.Tail }
func (c BranchingConfig) TailMessageCount() int     { return c.Tail }

func (SlidingWindowConfig) sealed() {}
func (StickyFactsConfig) sealed()   {}
func (BranchingConfig) sealed()     {}

// NewConfig returns the configuration for kind with the given tail size.
// A non-positive tail selects the kind's default.
func NewConfig(kind Kind, tail int, branchID string) (Config, error) {
	switch kind {
	case KindSlidingWindow:
		if tail <= 0 {
			tail = DefaultSlidingWindowTail
		}
		return SlidingWindowConfig{Tail: tail}, nil
	case KindStickyFacts:
		if tail <= 0 {
			tail = DefaultStickyFactsTail
		}
		return StickyFactsConfig{Tail: tail}, nil
	case KindBranching:
		if tail <= 0 {
			tail = DefaultBranchingTail
		}
		if branchID == "" {
			branchID = "A"
		}
		return BranchingConfig{BranchID: branchID, Tail: tail}, nil
	default:
		return nil, fmt.Errorf("unknown context strategy %v", kind)
	}
}

// Plan is the output of a strategy: the prompt messages, excluding the
// system preamble, and a short label for debugging.
type Plan struct {
	Messages   []memory.Message
	DebugLabel string
}

// Strategy builds a prompt plan from memory.
type Strategy interface {
	Build(state memory.State, cfg Config) Plan
}

func mismatch(strategy string, want Kind, got Config) string {
	return fmt.Sprintf("strategy: %s requires a %v config, got %T", strategy, want, got)
}
