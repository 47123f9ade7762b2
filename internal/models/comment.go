package models

import (
	"time"
)

// Comment is a reply to a post. Creating one bumps the parent's
// CommentCount inside the same atomic scope.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Upvotes   int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the ledger reference for the comment.
func (c *Comment) Ref() ItemRef {
	return ItemRef{Kind: ItemComment, ID: c.ID}
}

// CommentView is a comment as rendered for a particular viewer.
type CommentView struct {
	ID         uint      `json:"id"`
	PostID     uint      `json:"post_id"`
	Content    string    `json:"content"`
	Alias      string    `json:"alias"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
	ViewerVote VoteState `json:"viewer_vote"`
	Mine       bool      `json:"mine"`
	CreatedAt  time.Time `json:"created_at"`
}
