package ledger

import (
	"time"

	"hushfeed/internal/config"
	"hushfeed/internal/models"
)

// Policy sets the XP each event is worth. A vote's XP weight is what it is
// worth to the author while it stands; retracting or switching a vote
// removes its weight again.
type Policy struct {
	UpvoteXP   int
	DownvoteXP int
	PostXP     int
	CommentXP  int
}

// DefaultPolicy rewards upvotes and leaves downvotes unpenalised.
func DefaultPolicy() Policy {
	return Policy{UpvoteXP: 2, DownvoteXP: 0, PostXP: 10, CommentXP: 5}
}

// PolicyFromConfig reads the XP_* settings.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		UpvoteXP:   cfg.XPUpvote,
		DownvoteXP: cfg.XPDownvote,
		PostXP:     cfg.XPPost,
		CommentXP:  cfg.XPComment,
	}
}

func (p Policy) weight(s models.VoteState) int {
	switch s {
	case models.VoteUp:
		return p.UpvoteXP
	case models.VoteDown:
		return p.DownvoteXP
	}
	return 0
}

// VoteXPDelta is the change to the author's XP when a vote moves along t.
func (p Policy) VoteXPDelta(t models.Transition) int {
	return p.weight(t.To) - p.weight(t.From)
}

// RetryPolicy bounds how often a scope that lost a commit race is re-run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the LEDGER_* defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 10 * time.Millisecond, MaxInterval: 250 * time.Millisecond}
}

// RetryPolicyFromConfig reads the LEDGER_* settings.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     cfg.LedgerMaxAttempts,
		InitialInterval: cfg.LedgerBackoffInitial(),
		MaxInterval:     cfg.LedgerBackoffMax(),
	}
}
