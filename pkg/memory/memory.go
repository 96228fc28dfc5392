// Package memory defines the persisted conversation data model: the linear
// history, the sticky facts blob, branching state, and the summary snapshot
// used by the compression variant.
package memory

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single immutable conversation entry. Messages are ordered by
// append sequence; CreatedAt may collide and is never used for ordering.
type Message struct {
	Role      Role      `json:"role" cbor:"role"`
	Content   string    `json:"content" cbor:"content"`
	CreatedAt time.Time `json:"ts" cbor:"ts"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Branch is a named continuation of the conversation after the checkpoint.
type Branch struct {
	Messages []Message `json:"messages" cbor:"messages"`
}

// BranchingState holds the checkpoint and the per-branch message sequences.
type BranchingState struct {
	// CheckpointIndex is the non-system history length at which branching began.
	CheckpointIndex *int `json:"checkpointIndex" cbor:"checkpointIndex"`
	// Branches maps a case-sensitive branch ID to its messages.
	Branches map[string]Branch `json:"branches" cbor:"branches"`
	// ActiveBranchID must key an entry in Branches when set.
	ActiveBranchID *string `json:"activeBranchId" cbor:"activeBranchId"`
}

// State is the durable memory of one conversation.
type State struct {
	History   []Message      `json:"history" cbor:"history"`
	FactsJSON string         `json:"factsJson" cbor:"factsJson"`
	Branching BranchingState `json:"branching" cbor:"branching"`
}

// Snapshot is the memory shape used by the summarization variant.
type Snapshot struct {
	Summary  string    `json:"summary" cbor:"summary"`
	Messages []Message `json:"messages" cbor:"messages"`
	// SummarizedCount is the number of non-system messages already folded
	// into Summary. It only grows.
	SummarizedCount int `json:"summarizedCount" cbor:"summarizedCount"`
}

// HasCheckpoint reports whether branching has been activated.
func (s *State) HasCheckpoint() bool {
	return s.Branching.CheckpointIndex != nil
}

// ActiveBranch returns the active branch ID, or "" if none is active.
func (s *State) ActiveBranch() string {
	if s.Branching.ActiveBranchID == nil {
		return ""
	}
	return *s.Branching.ActiveBranchID
}

// SetActiveBranch marks id as active, creating an empty branch if needed.
func (s *State) SetActiveBranch(id string) {
	s.EnsureBranch(id)
	s.Branching.ActiveBranchID = &id
}

// EnsureBranch creates an empty branch for id if it does not exist yet.
// It reports whether a branch was created.
func (s *State) EnsureBranch(id string) bool {
	if s.Branching.Branches == nil {
		s.Branching.Branches = make(map[string]Branch)
	}
	if _, ok := s.Branching.Branches[id]; ok {
		return false
	}
	s.Branching.Branches[id] = Branch{Messages: []Message{}}
	return true
}

// AppendToBranch appends msg to branch id, creating the branch if needed.
// System messages are dropped: they never live inside branches.
func (s *State) AppendToBranch(id string, msg Message) {
	if msg.Role == RoleSystem {
		return
	}
	s.EnsureBranch(id)
	b := s.Branching.Branches[id]
	b.Messages = append(b.Messages, msg)
	s.Branching.Branches[id] = b
}

// SetCheckpoint records idx as the branching checkpoint.
func (s *State) SetCheckpoint(idx int) {
	s.Branching.CheckpointIndex = &idx
}

// Repair restores the active-branch invariant by inserting an empty branch
// when ActiveBranchID points at a missing entry. It reports whether the
// state was changed.
func (s *State) Repair() bool {
	if s.Branching.ActiveBranchID == nil {
		return false
	}
	return s.EnsureBranch(*s.Branching.ActiveBranchID)
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		History:   cloneMessages(s.History),
		FactsJSON: s.FactsJSON,
	}
	if s.Branching.CheckpointIndex != nil {
		idx := *s.Branching.CheckpointIndex
		out.Branching.CheckpointIndex = &idx
	}
	if s.Branching.ActiveBranchID != nil {
		id := *s.Branching.ActiveBranchID
		out.Branching.ActiveBranchID = &id
	}
	if s.Branching.Branches != nil {
		out.Branching.Branches = make(map[string]Branch, len(s.Branching.Branches))
		for id, b := range s.Branching.Branches {
			out.Branching.Branches[id] = Branch{Messages: cloneMessages(b.Messages)}
		}
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Summary:         s.Summary,
		Messages:        cloneMessages(s.Messages),
		SummarizedCount: s.SummarizedCount,
	}
}

// NonSystem returns msgs without system-role entries, preserving order.
func NonSystem(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// TakeLast returns the last n messages of msgs (all of them if n >= len).
// A non-positive n yields an empty slice.
func TakeLast(msgs []Message, n int) []Message {
	if n <= 0 {
		return []Message{}
	}
	if n >= len(msgs) {
		return cloneMessages(msgs)
	}
	return cloneMessages(msgs[len(msgs)-n:])
}

// TakeFirst returns the first n messages of msgs (all of them if n >= len).
func TakeFirst(msgs []Message, n int) []Message {
	if n <= 0 {
		return []Message{}
	}
	if n >= len(msgs) {
		return cloneMessages(msgs)
	}
	return cloneMessages(msgs[:n])
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
