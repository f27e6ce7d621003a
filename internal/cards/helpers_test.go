package cards_test

import (
	"context"
	"sync"
	"testing"

	"ritual/internal/analytics"
	"ritual/internal/apperr"
	"ritual/internal/calendar"
	"ritual/internal/cards"
	"ritual/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const day0 = "2026-03-10"

type recorder struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *recorder) Notify(_ context.Context, ev analytics.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *cards.Service
	db     *gorm.DB
	clock  *calendar.FixedClock
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.DB(t)
	clock := testutil.Clock(t, day0)
	rec := &recorder{}
	return &fixture{
		svc: &cards.Service{
			DB:      gdb,
			Catalog: testutil.Catalog(t),
			Clock:   clock,
			Events:  rec,
			Intn:    func(int) int { return 0 },
		},
		db:     gdb,
		clock:  clock,
		events: rec,
	}
}

func (f *fixture) today() calendar.Day {
	return calendar.DayOf(f.clock.Now(), nil)
}

func (f *fixture) setCredit(t *testing.T, userID uint64, credit int) {
	t.Helper()
	require.NoError(t, f.db.Create(&cards.UserProgress{UserID: userID, SubmissionCredit: credit}).Error)
}

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	require.Equal(t, code, ae.Code)
	return ae
}

const reflection = "a quiet moment outside"
