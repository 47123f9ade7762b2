package models

import (
	"time"
)

// Post is a short anonymous writing. Counters are owned by the ledger and
// only change inside its atomic scopes.
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"-"`
	Topic        string    `gorm:"size:32;index" json:"topic"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Upvotes      int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes    int       `gorm:"not null;default:0" json:"downvotes"`
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ref returns the ledger reference for the post.
func (p *Post) Ref() ItemRef {
	return ItemRef{Kind: ItemPost, ID: p.ID}
}

// PostView is a post as rendered for a particular viewer.
type PostView struct {
	ID           uint      `json:"id"`
	Topic        string    `json:"topic"`
	Content      string    `json:"content"`
	Alias        string    `json:"alias"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	CommentCount int       `json:"comment_count"`
	ViewerVote   VoteState `json:"viewer_vote"`
	Mine         bool      `json:"mine"`
	CreatedAt    time.Time `json:"created_at"`
}

// Post sort orders for the feed.
const (
	SortNew = "new"
	SortTop = "top"
)
