package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingSender struct{ calls int }

func (f *failingSender) Name() string { return "failing" }

func (f *failingSender) Send(context.Context, string, Notification) error {
	f.calls++
	return errors.New("unreachable")
}

func TestDispatcherLogsFailuresAndContinues(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	bad := &failingSender{}
	d := NewDispatcher(zap.New(core), bad, NewLog(zap.New(core)))

	d.Send(context.Background(), "u1", Notification{Kind: KindApplicationSubmitted, Title: "Applied to Acme"})

	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, logs.FilterMessage("notification delivery failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Applied to Acme").Len())
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	d.Send(context.Background(), "u1", Notification{})
}

func TestRedisSender(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	d := NewDispatcher(zap.NewNop(), NewRedis(client, ""))
	d.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	d.Send(context.Background(), "u1", Notification{Kind: KindApplicationFailed, Title: "Failed", JobID: "adzuna-1"})

	msgs, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].Values["user_id"])
	assert.Equal(t, string(KindApplicationFailed), msgs[0].Values["kind"])
	assert.Equal(t, string(PriorityNormal), msgs[0].Values["priority"])

	var got Notification
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["notification"].(string)), &got))
	assert.Equal(t, "adzuna-1", got.JobID)
	assert.True(t, got.CreatedAt.Equal(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)))
}

func TestLogSenderRaisesHighPriority(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewDispatcher(zap.NewNop(), NewLog(zap.New(core)))

	d.Send(context.Background(), "u1", Notification{
		Kind:     KindManualReview,
		Priority: PriorityHigh,
		Title:    "Go Engineer at Acme needs your attention",
		Data:     map[string]string{"method": "manual_required"},
	})
	d.Send(context.Background(), "u1", Notification{Kind: KindApplicationSubmitted, Title: "Applied to Acme"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "high", entries[0].ContextMap()["priority"])
	assert.Equal(t, zap.InfoLevel, entries[1].Level)
	assert.Equal(t, "normal", entries[1].ContextMap()["priority"])
}
