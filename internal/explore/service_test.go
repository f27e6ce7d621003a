package explore_test

import (
	"context"
	"sync"
	"testing"

	"ritual/internal/analytics"
	"ritual/internal/apperr"
	"ritual/internal/calendar"
	"ritual/internal/explore"
	"ritual/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) Notify(_ context.Context, ev analytics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, ev.Type)
}

type fixture struct {
	svc    *explore.Service
	clock  *calendar.FixedClock
	events *recorder
}

func newFixture(t *testing.T, day string) *fixture {
	t.Helper()
	clock := testutil.Clock(t, day)
	rec := &recorder{}
	return &fixture{
		svc: &explore.Service{
			DB:      testutil.DB(t),
			Catalog: testutil.Catalog(t),
			Clock:   clock,
			Events:  rec,
		},
		clock:  clock,
		events: rec,
	}
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	require.Equal(t, code, ae.Code)
	return ae
}

func cardFor(t *testing.T, d *explore.Daily, category string) explore.Card {
	t.Helper()
	for _, c := range d.Cards {
		if c.Category == category {
			return c
		}
	}
	t.Fatalf("no card for %s", category)
	return explore.Card{}
}

func TestSunriseWalk(t *testing.T) {
	f := newFixture(t, "2026-07-04")
	ctx := context.Background()

	daily, err := f.svc.DailyActivities(ctx, f.svc.Today(), 1)
	require.NoError(t, err)
	require.Len(t, daily.Cards, 8)
	nature := cardFor(t, daily, "nature")
	require.NotNil(t, nature.Activity)
	assert.Equal(t, "watch-a-sunrise", nature.Activity.ID)
	assert.False(t, daily.SavedToday)

	k, err := f.svc.Save(ctx, 1, "watch-a-sunrise")
	require.NoError(t, err)
	assert.Equal(t, explore.StatusPlanned, k.Status)
	assert.Equal(t, "nature", k.Category)

	_, err = f.svc.Save(ctx, 1, "one-album-no-skips")
	requireCode(t, err, explore.CodeAlreadySavedToday)

	done, err := f.svc.Complete(ctx, 1, "watch-a-sunrise", "golden")
	require.NoError(t, err)
	assert.Equal(t, explore.StatusCompleted, done.Status)
	assert.Equal(t, "golden", done.Reflection)
	assert.Equal(t, calendar.Day("2026-07-04"), done.CompletedOn)

	for i := 0; i < 60; i++ {
		f.clock.AdvanceDays(1)
		daily, err := f.svc.DailyActivities(ctx, f.svc.Today(), 1)
		require.NoError(t, err)
		if a := cardFor(t, daily, "nature").Activity; a != nil {
			assert.NotEqual(t, "watch-a-sunrise", a.ID, "day %s", daily.Day)
		}
	}

	assert.Equal(t, []string{analytics.WalkSaved, analytics.WalkCompleted}, f.events.types)
}

func TestDailyActivities_Deterministic(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	first, err := f.svc.DailyActivities(ctx, "2026-03-10", 1)
	require.NoError(t, err)
	second, err := f.svc.DailyActivities(ctx, "2026-03-10", 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// another user with the same exclusions sees the same picks
	other, err := f.svc.DailyActivities(ctx, "2026-03-10", 2)
	require.NoError(t, err)
	assert.Equal(t, first.Cards, other.Cards)
}

func TestDailyActivities_AllDone(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	for _, id := range []string{"one-album-no-skips", "hum-a-new-song", "live-set"} {
		_, err := f.svc.Save(ctx, 1, id)
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, 1, id, "lovely stuff")
		require.NoError(t, err)
		f.clock.AdvanceDays(1)
	}

	daily, err := f.svc.DailyActivities(ctx, f.svc.Today(), 1)
	require.NoError(t, err)
	music := cardFor(t, daily, "music")
	assert.True(t, music.AllDone)
	assert.Nil(t, music.Activity)
	assert.False(t, cardFor(t, daily, "nature").AllDone)
	assert.Zero(t, daily.PlannedCount)
}

func TestSave_QueueFull(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	for _, id := range []string{"watch-a-sunrise", "live-set", "museum-day"} {
		_, err := f.svc.Save(ctx, 1, id)
		require.NoError(t, err, id)
		f.clock.AdvanceDays(1)
	}

	_, err := f.svc.Save(ctx, 1, "observatory")
	ae := requireCode(t, err, explore.CodeQueueFull)
	assert.Equal(t, 3, ae.Details["limit"])
	assert.Equal(t, 3, ae.Details["count"])

	daily, err := f.svc.DailyActivities(ctx, f.svc.Today(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, daily.PlannedCount)
	assert.False(t, daily.SavedToday)

	// completing one frees a slot the same day
	_, err = f.svc.Complete(ctx, 1, "live-set", "loud and bright")
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, 1, "observatory")
	require.NoError(t, err)

	q, err := f.svc.Queue(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, q.Planned, 3)
	require.Len(t, q.Completed, 1)
	assert.Equal(t, "live-set", q.Completed[0].ActivityID)
}

func TestSave_Rejections(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	_, err := f.svc.Save(ctx, 1, "skydiving")
	requireCode(t, err, explore.CodeUnknownActivity)

	_, err = f.svc.Save(ctx, 1, "night-sky")
	require.NoError(t, err)

	f.clock.AdvanceDays(1)
	_, err = f.svc.Save(ctx, 1, "night-sky")
	ae := requireCode(t, err, explore.CodeAlreadySaved)
	assert.Equal(t, "night-sky", ae.Details["activity_id"])

	q, err := f.svc.Queue(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, q.Planned, 1)
}

func TestSave_LimitsHoldUnderConcurrency(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	for _, id := range []string{"watch-a-sunrise", "live-set"} {
		_, err := f.svc.Save(ctx, 1, id)
		require.NoError(t, err, id)
		f.clock.AdvanceDays(1)
	}

	ids := []string{"museum-day", "observatory", "night-sky", "one-album-no-skips"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Save(ctx, 1, ids[i])
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		requireCode(t, err, explore.CodeAlreadySavedToday)
	}
	assert.Equal(t, 1, accepted)

	q, err := f.svc.Queue(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, q.Planned, 3)

	var wq explore.WalkQueue
	require.NoError(t, f.svc.DB.First(&wq, "user_id = ?", 1).Error)
	assert.Equal(t, f.svc.Today(), wq.LastSavedOn)
}

func TestComplete(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, 1, "night-sky", "never planned")
	requireCode(t, err, explore.CodeNotFoundOrAlreadyCompleted)

	_, err = f.svc.Save(ctx, 1, "night-sky")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, 1, "night-sky", "  wow  ")
	ae := requireCode(t, err, explore.CodeReflectionTooShort)
	assert.Equal(t, 5, ae.Details["min"])
	assert.Equal(t, 3, ae.Details["length"])

	_, err = f.svc.Complete(ctx, 1, "night-sky", "so many stars")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, 1, "night-sky", "again please")
	requireCode(t, err, explore.CodeNotFoundOrAlreadyCompleted)

	// other users cannot complete it
	_, err = f.svc.Complete(ctx, 2, "night-sky", "so many stars")
	requireCode(t, err, explore.CodeNotFoundOrAlreadyCompleted)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, "2026-03-10")
	ctx := context.Background()

	require.NoError(t, f.svc.Cancel(ctx, 1, "night-sky"))

	_, err := f.svc.Save(ctx, 1, "night-sky")
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, 1, "night-sky"))
	require.NoError(t, f.svc.Cancel(ctx, 1, "night-sky"))

	q, err := f.svc.Queue(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, q.Planned)

	// the cancelled save no longer counts against today
	_, err = f.svc.Save(ctx, 1, "watch-a-sunrise")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, 1, "watch-a-sunrise", "pink sky")
	require.NoError(t, err)

	// completed walks are not cancellable, and that is not an error
	require.NoError(t, f.svc.Cancel(ctx, 1, "watch-a-sunrise"))
	q, err = f.svc.Queue(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, q.Completed, 1)

	assert.Equal(t, []string{
		analytics.WalkSaved,
		analytics.WalkCancelled,
		analytics.WalkSaved,
		analytics.WalkCompleted,
	}, f.events.types)
}
