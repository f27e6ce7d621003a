package explore

import (
	"strconv"

	"ritual/internal/calendar"
	"ritual/internal/catalog"
)

// Seed is a polynomial rolling hash, h = h*31 + b, over the UTF-8 bytes of s.
// Arithmetic is int32 and wraps on overflow.
func Seed(s string) int32 {
	var h int32
	for i := 0; i < len(s); i++ {
		h = h*31 + int32(s[i])
	}
	return h
}

// CategorySeed mixes the category name with the day's seed.
func CategorySeed(day calendar.Day, category string) int32 {
	return Seed(category + strconv.FormatInt(int64(Seed(string(day))), 10))
}

// Pick chooses the day's activity for a category from candidates minus the
// excluded ids. It is a pure function of its inputs. ok is false when every
// candidate is excluded.
func Pick(day calendar.Day, category string, candidates []catalog.Activity, excluded map[string]bool) (catalog.Activity, bool) {
	open := make([]catalog.Activity, 0, len(candidates))
	for _, a := range candidates {
		if !excluded[a.ID] {
			open = append(open, a)
		}
	}
	if len(open) == 0 {
		return catalog.Activity{}, false
	}

	// int64 so that abs(math.MinInt32) does not overflow
	seed := int64(CategorySeed(day, category))
	if seed < 0 {
		seed = -seed
	}
	return open[seed%int64(len(open))], true
}
