package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/db"
)

func TestCollector_RecordStat(t *testing.T) {
	c := NewCollector(config.MetricsConfig{})
	c.RecordStat(db.Stat{ActiveFarms: 3, PointsClaimed: 1200, WatchHours: 1.5, PredictionRate: 60})

	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeFarms))
	assert.Equal(t, 1200.0, testutil.ToFloat64(c.pointsClaimed))
	assert.Equal(t, 1.5, testutil.ToFloat64(c.watchHours))
	assert.Equal(t, 60.0, testutil.ToFloat64(c.predictionRate))
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(config.MetricsConfig{})

	c.RecordLifecycle("farm_created")
	c.RecordLifecycle("farm_created")
	c.RecordLog(db.LogStatusSuccess)
	c.RecordDecision(db.StrategyMajority, true, 0)
	c.RecordDecision(db.StrategyMajority, false, 1500)
	c.RecordNotification("failed", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.lifecycleEvents.WithLabelValues("farm_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activityLogs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisionsTotal.WithLabelValues("majority", "no_bet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisionsTotal.WithLabelValues("majority", "bet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("failed")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(config.MetricsConfig{})
	c.RecordStat(db.Stat{ActiveFarms: 2})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "farm_active_farms 2")
}

func TestCollector_PushSendsSnappyWriteRequest(t *testing.T) {
	var (
		got    prompb.WriteRequest
		tenant string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/push", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		tenant = r.Header.Get("X-Scope-OrgID")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewCollector(config.MetricsConfig{
		RemoteWriteURL: srv.URL,
		TenantHeader:   "X-Scope-OrgID",
		TenantID:       "farm-test",
		BatchSize:      1000,
	})
	c.RecordStat(db.Stat{ActiveFarms: 4})

	require.NoError(t, c.Push(context.Background()))
	assert.Equal(t, "farm-test", tenant)

	found := false
	for _, ts := range got.Timeseries {
		for _, l := range ts.Labels {
			if l.Name == "__name__" && l.Value == "farm_active_farms" {
				found = true
				assert.Equal(t, 4.0, ts.Samples[0].Value)
			}
		}
	}
	assert.True(t, found, "farm_active_farms not pushed")
}

func TestCollector_PushReportsRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCollector(config.MetricsConfig{RemoteWriteURL: srv.URL})
	c.RecordStat(db.Stat{ActiveFarms: 1})

	assert.Error(t, c.Push(context.Background()))
}
