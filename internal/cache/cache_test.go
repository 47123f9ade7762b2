package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Handle string `json:"handle"`
	XP     int    `json:"xp"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "leaderboard:top:20", LeaderboardKey(20))
	assert.Equal(t, "profile:7", ProfileKey(7))
}

func TestNewClient_URL(t *testing.T) {
	rdb, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()
	assert.Equal(t, "localhost:6380", rdb.Options().Addr)
	assert.Equal(t, 2, rdb.Options().DB)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

func TestAside_MissThenHit(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dest *[]entry) func() error {
		return func() error {
			calls++
			*dest = []entry{{Handle: "a", XP: 12}}
			return nil
		}
	}

	var first []entry
	require.NoError(t, Aside(ctx, LeaderboardKey(10), &first, LeaderboardTTL, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(LeaderboardKey(10)))
	assert.Equal(t, LeaderboardTTL, mr.TTL(LeaderboardKey(10)))

	var second []entry
	require.NoError(t, Aside(ctx, LeaderboardKey(10), &second, LeaderboardTTL, fetch(&second)))
	assert.Equal(t, 1, calls, "served from redis")
	assert.Equal(t, first, second)

	mr.FastForward(LeaderboardTTL + time.Second)
	var third []entry
	require.NoError(t, Aside(ctx, LeaderboardKey(10), &third, LeaderboardTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_NoClientAlwaysFetches(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dest entry
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), ProfileKey(1), &dest, ProfileTTL, func() error {
			calls++
			dest = entry{Handle: "x"}
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_RedisDownFallsThrough(t *testing.T) {
	mr := withMiniredis(t)
	mr.Close()

	var dest entry
	err := Aside(context.Background(), ProfileKey(3), &dest, ProfileTTL, func() error {
		dest = entry{Handle: "db"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "db", dest.Handle)
}

func TestInvalidate(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, ProfileKey(5), entry{Handle: "p"}, ProfileTTL))
	assert.True(t, mr.Exists(ProfileKey(5)))

	InvalidateProfile(ctx, 5)
	assert.False(t, mr.Exists(ProfileKey(5)))

	found, err := GetJSON(ctx, ProfileKey(5), &entry{})
	require.NoError(t, err)
	assert.False(t, found)
}
