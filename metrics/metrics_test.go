package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilConfig(t *testing.T) {
	c, err := New(nil)

	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{Path: "metrics"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "path", cfgErr.Field)

	_, err = New(&Config{Namespace: "bad-namespace"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "namespace", cfgErr.Field)
}

func TestMustNew(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.NotNil(t, MustNew(&Config{Namespace: "test"}))
	})
	assert.Panics(t, func() {
		MustNew(nil)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/metrics", cfg.Path)
	assert.Equal(t, "elected_scheduler", cfg.Namespace)
	assert.False(t, cfg.Enabled)
}

func TestCollector_Records(t *testing.T) {
	c := MustNew(&Config{Namespace: "test"})

	c.IncOutcome("k", "processed_job")
	c.IncOutcome("k", "processed_job")
	c.IncOutcome("k", "no_match")
	c.ObserveExecution("k", "report", true, 150*time.Millisecond)
	c.ObserveExecution("k", "report", false, time.Second)
	c.SetLeader("k", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.pollOutcomes.WithLabelValues("k", "processed_job")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollOutcomes.WithLabelValues("k", "no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobExecutions.WithLabelValues("k", "report", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobExecutions.WithLabelValues("k", "report", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.leader.WithLabelValues("k")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.jobDuration))

	c.SetLeader("k", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.leader.WithLabelValues("k")))
}

func TestCollector_Handler(t *testing.T) {
	c := MustNew(&Config{Namespace: "test"})
	c.IncOutcome("reports", "sleep_slave")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_poll_outcomes_total{category="sleep_slave",key="reports"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_Lifecycle(t *testing.T) {
	c := MustNew(&Config{Namespace: "test", Addr: "127.0.0.1:0"})
	srv := NewServer(c, nil)
	assert.Equal(t, "metrics", srv.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(srv.Addr(), ":0")
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop(context.Background()))
	cancel()
	require.NoError(t, <-done)
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer(MustNew(&Config{}), nil)
	assert.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, ":9090", srv.Addr())
}

func TestServer_StartCancelled(t *testing.T) {
	srv := NewServer(MustNew(&Config{Namespace: "test", Addr: "127.0.0.1:0"}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, srv.Start(ctx), context.Canceled)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()))
}
