package calendar

import (
	"fmt"
	"sync"
	"time"
)

const layout = "2006-01-02"

// Day is a calendar date in the app's locale, stored as YYYY-MM-DD.
// Per-day rules (quota, streak, walk saves) compare Days, never timestamps.
type Day string

func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(layout))
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q (want YYYY-MM-DD)", s)
	}
	return Day(t.Format(layout)), nil
}

func (d Day) String() string { return string(d) }

func (d Day) Time() time.Time {
	t, _ := time.Parse(layout, string(d))
	return t
}

func (d Day) AddDays(n int) Day {
	return Day(d.Time().AddDate(0, 0, n).Format(layout))
}

func (d Day) Prev() Day { return d.AddDays(-1) }

func (d Day) Next() Day { return d.AddDays(1) }

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a settable clock for tests. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *FixedClock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, n)
}
