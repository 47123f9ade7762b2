// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User is an account. Handle only appears on the profile and leaderboard;
// posts and comments carry per-thread pseudonyms instead.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Handle    string    `gorm:"uniqueIndex;size:64;not null" json:"handle"`
	XP        int       `gorm:"not null;default:0;index" json:"xp"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the owner's view of their account.
type Profile struct {
	ID     uint   `json:"id"`
	Handle string `json:"handle"`
	XP     int    `json:"xp"`
	Badge  Badge  `json:"badge"`
	Next   *Badge `json:"next_badge,omitempty"`
}

// LeaderboardEntry is one ranked row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Handle string `json:"handle"`
	XP     int    `json:"xp"`
	Badge  Badge  `json:"badge"`
}
