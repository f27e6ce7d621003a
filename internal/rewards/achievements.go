package rewards

import (
	"context"

	"ritual/internal/catalog"
)

type Achievements struct {
	Kept     int                   `json:"kept"`
	Unlocked []catalog.Achievement `json:"unlocked"`
	Next     *catalog.Achievement  `json:"next,omitempty"`
	// Remaining is the number of keeps left until Next; 0 at the top tier.
	Remaining int `json:"remaining"`
}

// Ladder places a collection size on the achievement ladder.
func Ladder(tiers []catalog.Achievement, kept int) Achievements {
	out := Achievements{Kept: kept, Unlocked: []catalog.Achievement{}}
	for i, a := range tiers {
		if kept >= a.Threshold {
			out.Unlocked = append(out.Unlocked, a)
			continue
		}
		next := tiers[i]
		out.Next = &next
		out.Remaining = a.Threshold - kept
		break
	}
	return out
}

// Achievements is recomputed from the collection size on every call; nothing
// is stored.
func (s *Service) Achievements(ctx context.Context, userID uint64) (*Achievements, error) {
	st, err := s.Stats.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	a := Ladder(s.Catalog.Achievements, st.Kept)
	return &a, nil
}
