package rewards_test

import (
	"context"
	"testing"

	"ritual/internal/cards"
	"ritual/internal/rewards"
	"ritual/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadder(t *testing.T) {
	tiers := testutil.Catalog(t).Achievements

	tests := []struct {
		kept      int
		unlocked  int
		next      int
		remaining int
	}{
		{0, 0, 5, 5},
		{4, 0, 5, 1},
		{5, 1, 15, 10},
		{74, 3, 75, 1},
		{499, 6, 500, 1},
	}
	for _, tt := range tests {
		a := rewards.Ladder(tiers, tt.kept)
		assert.Len(t, a.Unlocked, tt.unlocked, "kept %d", tt.kept)
		if assert.NotNil(t, a.Next, "kept %d", tt.kept) {
			assert.Equal(t, tt.next, a.Next.Threshold, "kept %d", tt.kept)
		}
		assert.Equal(t, tt.remaining, a.Remaining, "kept %d", tt.kept)
	}

	top := rewards.Ladder(tiers, 900)
	assert.Len(t, top.Unlocked, 7)
	assert.Nil(t, top.Next)
	assert.Zero(t, top.Remaining)
}

func TestAchievements(t *testing.T) {
	svc := newService(t, stubStats{3: cards.Stats{Kept: 16}})

	a, err := svc.Achievements(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 16, a.Kept)
	require.Len(t, a.Unlocked, 2)
	assert.Equal(t, 15, a.Unlocked[1].Threshold)
	assert.Equal(t, 30, a.Next.Threshold)
	assert.Equal(t, 14, a.Remaining)
}
