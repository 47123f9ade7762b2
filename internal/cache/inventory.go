package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	LeaderboardKeyPrefix = "leaderboard:top:%d"
	ProfileKeyPrefix     = "profile:%d"
)

const (
	LeaderboardTTL = 30 * time.Second
	ProfileTTL     = 30 * time.Second
)

func LeaderboardKey(limit int) string {
	return fmt.Sprintf(LeaderboardKeyPrefix, limit)
}

func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateProfile drops a cached profile after its XP moved.
func InvalidateProfile(ctx context.Context, userID uint) {
	Invalidate(ctx, ProfileKey(userID))
}
