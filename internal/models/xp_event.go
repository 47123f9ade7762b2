package models

import (
	"time"
)

// XP event reasons.
const (
	XPReasonPostCreated    = "post_created"
	XPReasonCommentCreated = "comment_created"
	XPReasonVote           = "vote"
)

// XPEvent records one signed XP delta applied to a user, written in the same
// atomic scope as the balance change it explains.
type XPEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"-"`
	Delta        int       `gorm:"not null" json:"delta"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	Reason       string    `gorm:"size:32;not null" json:"reason"`
	Detail       string    `gorm:"size:32" json:"detail,omitempty"`
	ItemKind     ItemKind  `gorm:"size:16" json:"item_kind,omitempty"`
	ItemID       uint      `json:"item_id,omitempty"`
	ActorID      uint      `json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
