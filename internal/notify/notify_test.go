package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/queue"
	rediscache "github.com/leozw/farm-guardian/internal/storage/redis"
)

var at = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotification("Started farming", "foo", "info", at)
	w := NewWebhookNotifier(srv.URL, time.Second, 0, 1)

	require.NoError(t, w.Notify(context.Background(), n))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "foo", got.ChannelName)
	assert.Equal(t, "Started farming", got.Event)
}

func TestWebhookNotifier_Non2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(srv.URL, time.Second, 0, 1)
	err := w.Notify(context.Background(), NewNotification("Stopped farming", "foo", "info", at))

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "webhook", de.Notifier)
}

func TestWebhookNotifier_UnencodableNotificationIsDeliveryError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	// encoding/json rejects years outside [0, 9999]
	n := NewNotification("Started farming", "foo", "info", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))
	err := NewWebhookNotifier(srv.URL, time.Second, 0, 1).Notify(context.Background(), n)

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "webhook", de.Notifier)
	assert.False(t, called)
}

func TestWebhookNotifier_RespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(srv.URL, 20*time.Millisecond, 0, 1)
	err := w.Notify(context.Background(), NewNotification("Started farming", "foo", "info", at))
	assert.Error(t, err)
}

func TestRedisNotifier_QueuesAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rediscache.NewClient(mr.Addr())
	defer client.Close()
	ctx := context.Background()

	r := NewRedisNotifier(client, "", zap.NewNop())
	n := NewNotification("Started farming", "foo", "info", at)
	require.NoError(t, r.Notify(ctx, n))

	length, err := r.queue.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	job, err := r.queue.Pop(ctx, time.Second)
	require.NoError(t, err)
	back := FromJob(job)
	assert.Equal(t, n.ID, back.ID)
	assert.Equal(t, "Started farming", back.Event)
	assert.True(t, at.Equal(back.Timestamp))

	var cached Notification
	require.NoError(t, client.GetCachedChannelStatus(ctx, "foo", &cached))
	assert.Equal(t, n.ID, cached.ID)
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Notify(context.Context, Notification) error {
	r.calls++
	return r.err
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingNotifier{}
	b := &recordingNotifier{err: boom}
	c := &recordingNotifier{}

	err := Multi{a, b, c}.Notify(context.Background(), NewNotification("x", "foo", "info", at))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestNew_WebhookAndRedisFansOut(t *testing.T) {
	var posted Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	cfg := config.NotifierConfig{Driver: "webhook+redis", WebhookURL: srv.URL, RedisURL: mr.Addr(), Timeout: time.Second}
	n, cleanup, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()
	require.IsType(t, Multi{}, n)

	ctx := context.Background()
	sent := NewNotification("Claimed 50 channel points", "foo", "success", at)
	require.NoError(t, n.Notify(ctx, sent))
	assert.Equal(t, sent.ID, posted.ID)

	client := rediscache.NewClient(mr.Addr())
	defer client.Close()
	queued, err := queue.NewRedisQueue(client.Client, "").Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), queued)
}

func TestNew_SelectsDriver(t *testing.T) {
	n, cleanup, err := New(config.NotifierConfig{Driver: "none"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, cleanup())

	n, _, err = New(config.NotifierConfig{Driver: "webhook", WebhookURL: "http://localhost", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &WebhookNotifier{}, n)

	mr := miniredis.RunT(t)
	n, cleanup, err = New(config.NotifierConfig{Driver: "redis", RedisURL: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisNotifier{}, n)
	assert.NoError(t, cleanup())

	_, _, err = New(config.NotifierConfig{Driver: "webhook"}, zap.NewNop())
	assert.Error(t, err)

	_, _, err = New(config.NotifierConfig{Driver: "webhook+redis", RedisURL: mr.Addr()}, zap.NewNop())
	assert.Error(t, err)

	_, _, err = New(config.NotifierConfig{Driver: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}
