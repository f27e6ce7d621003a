// Package rewards detects reached milestones, records one-time reward claims
// and derives the cosmetic achievement ladder.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ritual/internal/analytics"
	"ritual/internal/apperr"
	"ritual/internal/calendar"
	"ritual/internal/cards"
	"ritual/internal/catalog"
	"ritual/internal/logger"
	"ritual/internal/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	CodeUnknownMilestone       = "UnknownMilestone"
	CodeInvalidShipping        = "InvalidShipping"
	CodeMilestoneNotYetReached = "MilestoneNotYetReached"
	CodeAlreadyClaimed         = "AlreadyClaimed"
	CodeClaimNotFound          = "ClaimNotFound"
)

// StatsReader supplies the totals milestones are measured against.
type StatsReader interface {
	Stats(ctx context.Context, userID uint64) (cards.Stats, error)
}

type Service struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog
	Stats   StatsReader
	Clock   calendar.Clock
	Events  analytics.Notifier
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

type MilestoneState struct {
	catalog.Milestone
	Current int  `json:"current"`
	Reached bool `json:"reached"`
	Claimed bool `json:"claimed"`
}

type Status struct {
	Streak         int              `json:"streak"`
	TotalDays      int              `json:"total_days"`
	NewlyReached   []string         `json:"newly_reached"`
	AlreadyClaimed []string         `json:"already_claimed"`
	Milestones     []MilestoneState `json:"milestones"`
}

func measure(m catalog.Milestone, st cards.Stats) int {
	switch m.Metric {
	case catalog.MetricStreak:
		return st.Streak
	case catalog.MetricTotalDays:
		return st.TotalDays
	}
	return 0
}

// Check compares the user's totals with the milestone table. A milestone is
// newly reached when its threshold is met and it has not been claimed.
// Streak milestones read the stored streak, the run length as of the last
// keep, not the lapsing active streak, so a reached streak milestone stays
// claimable after the run breaks.
func (s *Service) Check(ctx context.Context, userID uint64) (*Status, error) {
	st, err := s.Stats.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var claimed []string
	if err := s.DB.WithContext(ctx).Model(&MilestoneClaim{}).
		Where("user_id = ?", userID).
		Pluck("milestone_id", &claimed).Error; err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}
	isClaimed := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		isClaimed[id] = true
	}

	out := &Status{
		Streak:         st.Streak,
		TotalDays:      st.TotalDays,
		NewlyReached:   []string{},
		AlreadyClaimed: []string{},
	}
	for _, m := range s.Catalog.Milestones {
		ms := MilestoneState{Milestone: m, Current: measure(m, st), Claimed: isClaimed[m.ID]}
		ms.Reached = ms.Current >= m.Threshold
		switch {
		case ms.Claimed:
			out.AlreadyClaimed = append(out.AlreadyClaimed, m.ID)
		case ms.Reached:
			out.NewlyReached = append(out.NewlyReached, m.ID)
		}
		out.Milestones = append(out.Milestones, ms)
	}
	return out, nil
}

func (si ShippingInfo) normalized() ShippingInfo {
	return ShippingInfo{
		Name:       strings.TrimSpace(si.Name),
		Address:    strings.TrimSpace(si.Address),
		City:       strings.TrimSpace(si.City),
		PostalCode: strings.TrimSpace(si.PostalCode),
		Country:    strings.TrimSpace(si.Country),
	}
}

func (si ShippingInfo) missing() []string {
	var out []string
	for _, f := range []struct{ name, v string }{
		{"name", si.Name},
		{"address", si.Address},
		{"city", si.City},
		{"postal_code", si.PostalCode},
		{"country", si.Country},
	} {
		if f.v == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// Claim records the user's claim on a milestone after re-checking the
// threshold against stored totals.
func (s *Service) Claim(ctx context.Context, userID uint64, milestoneID string, ship ShippingInfo) (*MilestoneClaim, error) {
	c, err := s.claim(ctx, userID, milestoneID, ship)
	if err != nil {
		metrics.Get().ObserveRejection("claim", err)
		return nil, err
	}

	metrics.Get().MilestoneClaims.WithLabelValues(milestoneID).Inc()
	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID,
		"milestone": milestoneID,
		"reference": c.Reference,
	}).Info("milestone claimed")
	if s.Events != nil {
		s.Events.Notify(ctx, analytics.Event{
			Type:   analytics.MilestoneClaimed,
			UserID: userID,
			At:     s.now().UTC(),
			Data:   map[string]any{"milestone": milestoneID, "reference": c.Reference},
		})
	}
	return c, nil
}

func (s *Service) claim(ctx context.Context, userID uint64, milestoneID string, ship ShippingInfo) (*MilestoneClaim, error) {
	m, ok := s.Catalog.Milestone(milestoneID)
	if !ok {
		return nil, apperr.Validation(CodeUnknownMilestone, "unknown milestone %q", milestoneID)
	}
	ship = ship.normalized()
	if miss := ship.missing(); len(miss) > 0 {
		return nil, apperr.Validation(CodeInvalidShipping, "shipping info incomplete").With("missing", miss)
	}

	db := s.DB.WithContext(ctx)
	var existing int64
	if err := db.Model(&MilestoneClaim{}).
		Where("user_id = ? AND milestone_id = ?", userID, m.ID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check claim: %w", err)
	}
	if existing > 0 {
		return nil, alreadyClaimed(m.ID)
	}

	st, err := s.Stats.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur := measure(m, st); cur < m.Threshold {
		return nil, apperr.Rejection(CodeMilestoneNotYetReached, "%s needs %s of %d", m.ID, m.Metric, m.Threshold).
			With("metric", m.Metric).
			With("threshold", m.Threshold).
			With("current", cur)
	}

	c := MilestoneClaim{
		UserID:         userID,
		MilestoneID:    m.ID,
		Reference:      uuid.NewString(),
		ShipName:       ship.Name,
		ShipAddress:    ship.Address,
		ShipCity:       ship.City,
		ShipPostalCode: ship.PostalCode,
		ShipCountry:    ship.Country,
		ClaimedAt:      s.now().UTC(),
	}
	if err := db.Create(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, alreadyClaimed(m.ID)
		}
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	return &c, nil
}

func alreadyClaimed(milestoneID string) *apperr.Error {
	return apperr.Rejection(CodeAlreadyClaimed, "%s has already been claimed", milestoneID).
		With("milestone", milestoneID)
}

func (s *Service) Claims(ctx context.Context, userID uint64) ([]MilestoneClaim, error) {
	out := []MilestoneClaim{}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("claimed_at asc, id asc").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}
	return out, nil
}

// SetFulfilled toggles the shipping flag. It never affects whether the
// milestone can be claimed again.
func (s *Service) SetFulfilled(ctx context.Context, claimID uint64, fulfilled bool) (*MilestoneClaim, error) {
	db := s.DB.WithContext(ctx)
	res := db.Model(&MilestoneClaim{}).Where("id = ?", claimID).Update("fulfilled", fulfilled)
	if res.Error != nil {
		return nil, fmt.Errorf("update claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound(CodeClaimNotFound, "claim %d not found", claimID)
	}

	var c MilestoneClaim
	if err := db.Where("id = ?", claimID).First(&c).Error; err != nil {
		return nil, fmt.Errorf("reload claim: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{"claim_id": claimID, "fulfilled": fulfilled}).Info("claim fulfillment updated")
	return &c, nil
}
