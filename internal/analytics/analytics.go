package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ritual/internal/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	CardKept           = "card_kept"
	SubmissionApproved = "submission_approved"
	MilestoneClaimed   = "milestone_claimed"
	WalkSaved          = "walk_saved"
	WalkCompleted      = "walk_completed"
	WalkCancelled      = "walk_cancelled"
)

type Event struct {
	Type   string         `json:"type"`
	UserID uint64         `json:"user_id"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

// Notifier receives events from the engine. Implementations must not return
// or panic on failure: analytics never fails the primary operation.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Publisher delivers an event to the analytics sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) {}

// LogPublisher writes events to the application log; used when no Redis
// address is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev Event) error {
	logger.Log.WithFields(logrus.Fields{
		"event":   ev.Type,
		"user_id": ev.UserID,
		"data":    ev.Data,
	}).Info("analytics event")
	return nil
}

type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
}

func NewRedisPublisher(addr, channel string) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if channel == "" {
		channel = "ritual.events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{rdb: rdb, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
