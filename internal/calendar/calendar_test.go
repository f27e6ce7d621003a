package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOfUsesLocation(t *testing.T) {
	ts := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	assert.Equal(t, Day("2026-03-01"), DayOf(ts, time.UTC))
	assert.Equal(t, Day("2026-03-02"), DayOf(ts, tokyo))
	assert.Equal(t, Day("2026-03-01"), DayOf(ts, nil))
}

func TestDayArithmeticCrossesMonthAndYear(t *testing.T) {
	assert.Equal(t, Day("2026-02-28"), Day("2026-03-01").Prev())
	assert.Equal(t, Day("2027-01-01"), Day("2026-12-31").Next())
	assert.Equal(t, Day("2024-02-29"), Day("2024-03-01").Prev())
	assert.Equal(t, Day("2026-01-08"), Day("2026-01-01").AddDays(7))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, Day("2026-10-18"), d)

	_, err = ParseDay("18/10/2026")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	assert.Equal(t, start, c.Now())

	c.AdvanceDays(2)
	assert.Equal(t, Day("2026-01-03"), DayOf(c.Now(), time.UTC))
}
