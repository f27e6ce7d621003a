package rewards_test

import (
	"context"
	"testing"

	"ritual/internal/apperr"
	"ritual/internal/cards"
	"ritual/internal/catalog"
	"ritual/internal/rewards"
	"ritual/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats map[uint64]cards.Stats

func (s stubStats) Stats(_ context.Context, userID uint64) (cards.Stats, error) {
	return s[userID], nil
}

var ship = rewards.ShippingInfo{
	Name:       "Aki Tanaka",
	Address:    "1-2-3 Sakura",
	City:       "Kyoto",
	PostalCode: "600-0000",
	Country:    "JP",
}

func newService(t *testing.T, stats rewards.StatsReader) *rewards.Service {
	t.Helper()
	return &rewards.Service{
		DB:      testutil.DB(t),
		Catalog: testutil.Catalog(t),
		Stats:   stats,
		Clock:   testutil.Clock(t, "2026-05-01"),
	}
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	require.Equal(t, code, ae.Code)
	return ae
}

func TestCheck(t *testing.T) {
	svc := newService(t, stubStats{1: {Streak: 7, TotalDays: 12}})

	st, err := svc.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Streak)
	assert.Equal(t, 12, st.TotalDays)
	assert.Equal(t, []string{"seven_day_streak"}, st.NewlyReached)
	assert.Empty(t, st.AlreadyClaimed)
	require.Len(t, st.Milestones, 2)
	assert.True(t, st.Milestones[0].Reached)
	assert.False(t, st.Milestones[1].Reached)
	assert.Equal(t, 12, st.Milestones[1].Current)
}

func TestClaim_Once(t *testing.T) {
	svc := newService(t, stubStats{1: {Streak: 8, TotalDays: 25}})
	ctx := context.Background()

	c, err := svc.Claim(ctx, 1, "seven_day_streak", ship)
	require.NoError(t, err)
	assert.Equal(t, "seven_day_streak", c.MilestoneID)
	assert.Equal(t, "Kyoto", c.ShipCity)
	assert.False(t, c.Fulfilled)
	_, err = uuid.Parse(c.Reference)
	assert.NoError(t, err)

	_, err = svc.Claim(ctx, 1, "seven_day_streak", ship)
	ae := requireCode(t, err, rewards.CodeAlreadyClaimed)
	assert.Equal(t, "seven_day_streak", ae.Details["milestone"])

	st, err := svc.Check(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"twenty_total_days"}, st.NewlyReached)
	assert.Equal(t, []string{"seven_day_streak"}, st.AlreadyClaimed)
}

func TestClaim_ReverifiesThreshold(t *testing.T) {
	svc := newService(t, stubStats{1: {Streak: 6, TotalDays: 19}})

	_, err := svc.Claim(context.Background(), 1, "twenty_total_days", ship)
	ae := requireCode(t, err, rewards.CodeMilestoneNotYetReached)
	assert.Equal(t, 20, ae.Details["threshold"])
	assert.Equal(t, 19, ae.Details["current"])
	assert.Equal(t, catalog.MetricTotalDays, ae.Details["metric"])
}

func TestClaim_Validation(t *testing.T) {
	svc := newService(t, stubStats{1: {Streak: 30, TotalDays: 30}})
	ctx := context.Background()

	_, err := svc.Claim(ctx, 1, "hundred_day_streak", ship)
	requireCode(t, err, rewards.CodeUnknownMilestone)

	partial := ship
	partial.City = "  "
	partial.Country = ""
	_, err = svc.Claim(ctx, 1, "seven_day_streak", partial)
	ae := requireCode(t, err, rewards.CodeInvalidShipping)
	assert.Equal(t, []string{"city", "country"}, ae.Details["missing"])

	claims, err := svc.Claims(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestSetFulfilled(t *testing.T) {
	svc := newService(t, stubStats{1: {Streak: 7}})
	ctx := context.Background()

	c, err := svc.Claim(ctx, 1, "seven_day_streak", ship)
	require.NoError(t, err)

	got, err := svc.SetFulfilled(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Fulfilled)
	assert.Equal(t, c.Reference, got.Reference)

	// fulfillment has no bearing on re-claimability
	_, err = svc.Claim(ctx, 1, "seven_day_streak", ship)
	requireCode(t, err, rewards.CodeAlreadyClaimed)

	_, err = svc.SetFulfilled(ctx, 999, true)
	requireCode(t, err, rewards.CodeClaimNotFound)

	claims, err := svc.Claims(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, claims[0].Fulfilled)
}

func TestStreakMilestoneFromKeeps(t *testing.T) {
	gdb := testutil.DB(t)
	cat := testutil.Catalog(t)
	clock := testutil.Clock(t, "2026-05-01")
	cardSvc := &cards.Service{DB: gdb, Catalog: cat, Clock: clock}
	svc := &rewards.Service{DB: gdb, Catalog: cat, Stats: cardSvc, Clock: clock}
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		item := testutil.SeedItem(t, gdb, "nature", "walk")
		testutil.Deal(t, gdb, item)
		_, err := cardSvc.Keep(ctx, 1, item.ID, "another good day outside")
		require.NoError(t, err)

		st, err := svc.Check(ctx, 1)
		require.NoError(t, err)
		if i < 6 {
			assert.Empty(t, st.NewlyReached, "day %d", i+1)
		} else {
			assert.Equal(t, []string{"seven_day_streak"}, st.NewlyReached)
		}
		clock.AdvanceDays(1)
	}

	// the run has lapsed by now but the milestone stays claimable
	clock.AdvanceDays(3)
	st, err := svc.Check(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Streak)
	assert.Equal(t, []string{"seven_day_streak"}, st.NewlyReached)

	_, err = svc.Claim(ctx, 1, "seven_day_streak", ship)
	require.NoError(t, err)
}
