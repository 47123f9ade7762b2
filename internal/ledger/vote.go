package ledger

import (
	"context"
	"fmt"
	"time"

	"hushfeed/internal/models"
	"hushfeed/internal/observability"
	"hushfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// CastVote applies a vote in direction dir (up or down). Casting the
// direction already on record retracts the vote.
func (l *Ledger) CastVote(ctx context.Context, userID uint, ref models.ItemRef, dir models.VoteState) (*models.VoteResult, error) {
	if err := validateVoter(userID, ref); err != nil {
		return nil, err
	}
	if dir != models.VoteUp && dir != models.VoteDown {
		return nil, models.NewValidationError(fmt.Sprintf("Unknown vote direction %q", dir))
	}
	return l.vote(ctx, OpCastVote, userID, ref, func(prev models.VoteState) models.VoteState {
		return models.Toggle(prev, dir)
	})
}

// SetVote moves the user's vote on ref to state (none, up or down).
// Repeating a call changes nothing, so callers may retry it blindly.
func (l *Ledger) SetVote(ctx context.Context, userID uint, ref models.ItemRef, state models.VoteState) (*models.VoteResult, error) {
	if err := validateVoter(userID, ref); err != nil {
		return nil, err
	}
	switch state {
	case models.VoteNone, models.VoteUp, models.VoteDown:
	default:
		return nil, models.NewValidationError(fmt.Sprintf("Unknown vote state %q", state))
	}
	return l.vote(ctx, OpSetVote, userID, ref, func(models.VoteState) models.VoteState {
		return state
	})
}

func validateVoter(userID uint, ref models.ItemRef) error {
	if userID == 0 {
		return models.NewUnauthenticatedError("Sign in to vote")
	}
	if ref.Kind != models.ItemPost && ref.Kind != models.ItemComment {
		return models.NewValidationError(fmt.Sprintf("Unknown item kind %q", ref.Kind))
	}
	if ref.ID == 0 {
		return models.NewValidationError("Item id is required")
	}
	return nil
}

func (l *Ledger) vote(ctx context.Context, op string, userID uint, ref models.ItemRef, next func(models.VoteState) models.VoteState) (*models.VoteResult, error) {
	ctx = observability.EnsureCorrelationID(ctx)
	span, ctx := observability.NewSpan(ctx, "ledger."+op)
	defer span.End()
	span.AddAttributes(
		attribute.String("item.kind", string(ref.Kind)),
		attribute.Int("item.id", int(ref.ID)),
	)
	defer l.metrics.TrackOperation(op)()

	start := time.Now()
	var result *models.VoteResult
	attempts, err := l.atomically(ctx, op, func(ctx context.Context, s repository.Scope) error {
		r, err := l.applyVote(ctx, s, op, userID, ref, next)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, l.fail(ctx, span, op, attempts, err)
	}

	result.Attempts = attempts
	transition := models.Transition{From: result.Previous, To: result.State}
	span.AddAttributes(
		attribute.String("vote.transition", transition.String()),
		attribute.Int("ledger.attempts", attempts),
	)
	l.metrics.RecordTransition(string(ref.Kind), transition.String())
	l.metrics.RecordXP(models.XPReasonVote, result.XPDelta)
	l.log.LogCommit(ctx, op, attempts, time.Since(start), map[string]interface{}{
		"item":       ref.String(),
		"transition": transition.String(),
		"xp_delta":   result.XPDelta,
	})

	if !transition.Noop() {
		l.publish(ctx, models.CounterEvent{
			Item:         ref,
			Upvotes:      result.Upvotes,
			Downvotes:    result.Downvotes,
			CommentCount: result.CommentCount,
		})
	}
	return result, nil
}

// applyVote is one attempt of a vote. The item row is locked first so the
// vote read below cannot go stale before the writes.
func (l *Ledger) applyVote(ctx context.Context, s repository.Scope, op string, userID uint, ref models.ItemRef, next func(models.VoteState) models.VoteState) (*models.VoteResult, error) {
	item, err := s.GetItem(ctx, ref)
	if err != nil {
		return nil, err
	}

	existing, err := s.GetVote(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	prev := models.VoteNone
	if existing != nil {
		prev = existing.Direction
	}
	t := models.Transition{From: prev, To: next(prev)}

	if !t.Noop() {
		up, down := t.CounterDelta()
		item.Upvotes += up
		item.Downvotes += down
		if item.Upvotes < 0 || item.Downvotes < 0 {
			return nil, models.NewInternalError(fmt.Errorf("counter underflow on %s (%s)", ref, t))
		}
		if err := s.SetItemCounters(ctx, item); err != nil {
			return nil, err
		}

		if t.To == models.VoteNone {
			err = s.DeleteVote(ctx, userID, ref)
		} else {
			err = s.PutVote(ctx, &models.Vote{UserID: userID, ItemKind: ref.Kind, ItemID: ref.ID, Direction: t.To})
		}
		if err != nil {
			return nil, err
		}
	}

	result := &models.VoteResult{
		Item:      ref,
		Previous:  t.From,
		State:     t.To,
		Upvotes:   item.Upvotes,
		Downvotes: item.Downvotes,
		AuthorID:  item.AuthorID,
	}
	if ref.Kind == models.ItemPost {
		count := item.CommentCount
		result.CommentCount = &count
	}

	author, err := s.GetUser(ctx, item.AuthorID)
	if models.IsNotFound(err) {
		// An orphaned item still takes votes; only the XP side is skipped.
		l.log.LogWarn(ctx, op, "item author missing, skipping xp", map[string]interface{}{
			"item":      ref.String(),
			"author_id": item.AuthorID,
		})
		result.AuthorBadge = models.BadgeFor(0)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	delta := 0
	if item.AuthorID != userID {
		delta = l.policy.VoteXPDelta(t)
	}
	if delta != 0 {
		author.XP += delta
		if err := s.SetUserXP(ctx, author.ID, author.XP); err != nil {
			return nil, err
		}
		if err := s.AppendXPEvent(ctx, &models.XPEvent{
			UserID:       author.ID,
			Delta:        delta,
			BalanceAfter: author.XP,
			Reason:       models.XPReasonVote,
			Detail:       t.String(),
			ItemKind:     ref.Kind,
			ItemID:       ref.ID,
			ActorID:      userID,
		}); err != nil {
			return nil, err
		}
	}

	result.XPDelta = delta
	result.AuthorXP = author.XP
	result.AuthorBadge = models.BadgeFor(author.XP)
	return result, nil
}
