package service

import (
	"context"

	"hushfeed/internal/cache"
	"hushfeed/internal/featureflags"
	"hushfeed/internal/models"
	"hushfeed/internal/repository"
)

// ReputationService serves XP balances, badges and the leaderboard.
type ReputationService struct {
	users repository.UserRepository
	flags *featureflags.Manager
}

func NewReputationService(users repository.UserRepository, flags *featureflags.Manager) *ReputationService {
	return &ReputationService{users: users, flags: flags}
}

// Profile returns the owner's view of their account, cached briefly.
func (s *ReputationService) Profile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(userID), &profile, cache.ProfileTTL, func() error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		profile = models.Profile{
			ID:     user.ID,
			Handle: user.Handle,
			XP:     user.XP,
			Badge:  models.BadgeFor(user.XP),
			Next:   models.NextBadge(user.XP),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// XPChanged drops cached views of users whose balance just moved.
func (s *ReputationService) XPChanged(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != 0 {
			keys = append(keys, cache.ProfileKey(id))
		}
	}
	cache.Invalidate(ctx, keys...)
}

// Leaderboard ranks users by XP. The top MaxPageSize rows are cached as one
// entry and sliced per request.
func (s *ReputationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if !s.flags.Enabled(featureflags.Leaderboard, 0) {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: "Leaderboard is disabled"}
	}
	limit, _ = Page(limit, 0)

	var entries []models.LeaderboardEntry
	err := cache.Aside(ctx, cache.LeaderboardKey(MaxPageSize), &entries, cache.LeaderboardTTL, func() error {
		users, err := s.users.TopByXP(ctx, MaxPageSize)
		if err != nil {
			return err
		}
		entries = make([]models.LeaderboardEntry, len(users))
		for i, u := range users {
			entries[i] = models.LeaderboardEntry{
				Rank:   i + 1,
				Handle: u.Handle,
				XP:     u.XP,
				Badge:  models.BadgeFor(u.XP),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// XPEvents lists a user's XP history, newest first.
func (s *ReputationService) XPEvents(ctx context.Context, userID uint, limit, offset int) ([]models.XPEvent, error) {
	limit, offset = Page(limit, offset)
	return s.users.ListXPEvents(ctx, userID, limit, offset)
}
