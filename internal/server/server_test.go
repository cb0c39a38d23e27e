package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/poplog/internal/aggregator"
	"github.com/atikulmunna/poplog/internal/hub"
	"github.com/atikulmunna/poplog/internal/metrics"
	"github.com/atikulmunna/poplog/internal/model"
	"github.com/atikulmunna/poplog/internal/scheduler"
)

type staticJobs []scheduler.JobStatus

func (s staticJobs) Snapshot() []scheduler.JobStatus { return s }

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub, *metrics.Metrics) {
	t.Helper()
	h := hub.New(nil)
	agg := aggregator.New(h.Subscribe(), h.Dropped, func() int { return 2 })
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	jobs := staticJobs{
		{Job: "Align/0", Group: "Align", Index: 0, State: scheduler.Active},
		{Job: "Call/1", Group: "Call", Index: 1, State: scheduler.Retired, Ended: scheduler.Completed},
	}
	srv := New(Deps{Hub: h, Aggregator: agg, Jobs: jobs, Gatherer: reg}, ":0")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		h.Close()
	})
	return ts, h, m
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)
	code, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "ok", got["status"])
	assert.EqualValues(t, 2, got["jobs_watched"])
}

func TestJobsFilter(t *testing.T) {
	ts, _, _ := newTestServer(t)

	code, body := get(t, ts.URL+"/api/jobs?state=retired")
	require.Equal(t, http.StatusOK, code)
	var jobs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "Call/1", jobs[0]["job"])
	assert.Equal(t, "RETIRED", jobs[0]["state"])
	assert.Equal(t, "COMPLETED", jobs[0]["ended"])

	_, body = get(t, ts.URL+"/api/jobs?group=align")
	require.NoError(t, json.Unmarshal([]byte(body), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "Align/0", jobs[0]["job"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.Polls.WithLabelValues("Align").Add(3)

	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `poplog_polls_total{group="Align"} 3`)
}

func TestWebSocketStreamsFilteredEntries(t *testing.T) {
	ts, h, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?level=warning"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler subscribes after the upgrade; wait for it.
	require.Eventually(t, func() bool { return h.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	h.Forward(model.LogEntry{Job: "Align/0", Group: "Align", Level: "INFO", Message: "skipped"})
	h.Forward(model.LogEntry{Job: "Align/0", Group: "Align", Level: "ERROR", Message: "boom", Matched: true})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got model.LogEntry
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "boom", got.Message)
	assert.Equal(t, "ERROR", got.Level)
	assert.Equal(t, "Align/0", got.Job)
}

func TestWebSocketRejectsBadLevel(t *testing.T) {
	ts, _, _ := newTestServer(t)
	code, _ := get(t, ts.URL+"/ws?level=loud")
	assert.Equal(t, http.StatusBadRequest, code)
}
