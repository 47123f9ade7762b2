package models

import (
	"fmt"
	"strings"
	"time"
)

// VoteState is the stance a user holds on one item.
type VoteState string

const (
	VoteNone VoteState = "none"
	VoteUp   VoteState = "up"
	VoteDown VoteState = "down"
)

// ParseDirection validates a castVote direction; only up and down are
// directions, none is a state.
func ParseDirection(raw string) (VoteState, error) {
	switch VoteState(strings.ToLower(strings.TrimSpace(raw))) {
	case VoteUp:
		return VoteUp, nil
	case VoteDown:
		return VoteDown, nil
	}
	return "", NewValidationError(fmt.Sprintf("Unknown vote direction %q", raw))
}

// ParseVoteState validates a setVote target state.
func ParseVoteState(raw string) (VoteState, error) {
	if VoteState(strings.ToLower(strings.TrimSpace(raw))) == VoteNone {
		return VoteNone, nil
	}
	return ParseDirection(raw)
}

// Vote is the single record a user may hold on an item. The composite
// primary key makes a second row for the same pair impossible.
type Vote struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ItemKind  ItemKind  `gorm:"primaryKey;size:16;index:idx_vote_item,priority:1" json:"item_kind"`
	ItemID    uint      `gorm:"primaryKey;autoIncrement:false;index:idx_vote_item,priority:2" json:"item_id"`
	Direction VoteState `gorm:"size:8;not null;index:idx_vote_item,priority:3" json:"direction"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the item the vote points at.
func (v *Vote) Ref() ItemRef {
	return ItemRef{Kind: v.ItemKind, ID: v.ItemID}
}

// Toggle returns the state a castVote in direction dir moves prev to:
// repeating the recorded direction retracts it.
func Toggle(prev, dir VoteState) VoteState {
	if prev == dir {
		return VoteNone
	}
	return dir
}

// Transition is one move of a (user, item) pair between vote states.
type Transition struct {
	From VoteState
	To   VoteState
}

func (t Transition) String() string {
	return fmt.Sprintf("%s->%s", t.From, t.To)
}

// Noop reports whether the transition changes nothing.
func (t Transition) Noop() bool {
	return t.From == t.To
}

// CounterDelta returns the change to the item's up and down counters.
func (t Transition) CounterDelta() (up, down int) {
	return indicator(t.To, VoteUp) - indicator(t.From, VoteUp),
		indicator(t.To, VoteDown) - indicator(t.From, VoteDown)
}

func indicator(s, want VoteState) int {
	if s == want {
		return 1
	}
	return 0
}

// VoteResult is what the ledger hands back after a committed vote: the
// canonical post-commit counters so callers never need a second read.
type VoteResult struct {
	Item         ItemRef   `json:"item"`
	Previous     VoteState `json:"previous"`
	State        VoteState `json:"state"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	CommentCount *int      `json:"comment_count,omitempty"`
	AuthorXP     int       `json:"author_xp"`
	AuthorBadge  Badge     `json:"author_badge"`
	XPDelta      int       `json:"xp_delta"`
	AuthorID     uint      `json:"-"`
	Attempts     int       `json:"-"`
}
