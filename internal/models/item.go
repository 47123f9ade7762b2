package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemKind names the votable item types.
type ItemKind string

const (
	ItemPost    ItemKind = "post"
	ItemComment ItemKind = "comment"
)

// ParseItemKind validates a kind coming from a caller.
func ParseItemKind(raw string) (ItemKind, error) {
	switch ItemKind(strings.ToLower(strings.TrimSpace(raw))) {
	case ItemPost:
		return ItemPost, nil
	case ItemComment:
		return ItemComment, nil
	}
	return "", NewValidationError(fmt.Sprintf("Unknown item kind %q", raw))
}

// ItemRef identifies one votable item.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   uint     `json:"id"`
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Item is the kind-independent view of a post or comment the ledger works
// on. CommentCount is only meaningful for posts.
type Item struct {
	Ref          ItemRef
	AuthorID     uint
	Upvotes      int
	Downvotes    int
	CommentCount int
}

// ItemFromPost projects a post onto the ledger's item view.
func ItemFromPost(p *Post) *Item {
	return &Item{
		Ref:          p.Ref(),
		AuthorID:     p.UserID,
		Upvotes:      p.Upvotes,
		Downvotes:    p.Downvotes,
		CommentCount: p.CommentCount,
	}
}

// ItemFromComment projects a comment onto the ledger's item view.
func ItemFromComment(c *Comment) *Item {
	return &Item{
		Ref:       c.Ref(),
		AuthorID:  c.UserID,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
	}
}

// CounterDrift is one item whose stored counters disagree with its live
// vote or comment rows.
type CounterDrift struct {
	Ref              ItemRef `json:"ref"`
	Upvotes          int     `json:"upvotes"`
	LiveUpvotes      int     `json:"live_upvotes"`
	Downvotes        int     `json:"downvotes"`
	LiveDownvotes    int     `json:"live_downvotes"`
	CommentCount     int     `json:"comment_count"`
	LiveCommentCount int     `json:"live_comment_count"`
}

// CounterEvent announces an item's counters after a committed change.
type CounterEvent struct {
	Item         ItemRef   `json:"item"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	CommentCount *int      `json:"comment_count,omitempty"`
	At           time.Time `json:"at"`
}
