package analytics

import (
	"context"
	"testing"
	"time"

	"ritual/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestLogPublisher(t *testing.T) {
	logger.Silence()
	err := LogPublisher{}.Publish(context.Background(), Event{Type: CardKept, UserID: 1, At: time.Now()})
	assert.NoError(t, err)
}

func TestNewRedisPublisher_RequiresAddr(t *testing.T) {
	_, err := NewRedisPublisher("", "")
	assert.Error(t, err)
}

func TestRedisPublisher_CloseNil(t *testing.T) {
	var p *RedisPublisher
	assert.NoError(t, p.Close())
}

func TestDiscard(t *testing.T) {
	var n Notifier = Discard{}
	assert.NotPanics(t, func() { n.Notify(context.Background(), Event{Type: WalkSaved}) })
}
