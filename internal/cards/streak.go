package cards

import "ritual/internal/calendar"

// Quota is the number of cards a user may keep per day: one, plus one per
// submission credit, capped.
func Quota(submissionCredit, cap int) int {
	q := 1 + submissionCredit
	if q < 1 {
		q = 1
	}
	if q > cap {
		q = cap
	}
	return q
}

// NextStreak applies a keep made on today to a streak last bumped on last.
// A second keep on the same day leaves the streak alone; keeping on the day
// after last extends it; anything else starts over at 1.
func NextStreak(streak int, last, today calendar.Day) int {
	switch {
	case last == today:
		if streak < 1 {
			return 1
		}
		return streak
	case last != "" && last == today.Prev():
		return streak + 1
	default:
		return 1
	}
}

// ActiveStreak is the streak as displayed: it drops to 0 once a full day has
// been missed, even though the stored value only resets on the next keep.
func ActiveStreak(streak int, last, today calendar.Day) int {
	if last == today || (last != "" && last == today.Prev()) {
		return streak
	}
	return 0
}
