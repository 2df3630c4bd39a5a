package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed-py/traffic-management/internal/analytics"
	"github.com/blessed-py/traffic-management/internal/api"
	"github.com/blessed-py/traffic-management/internal/event"
	"github.com/blessed-py/traffic-management/internal/metrics"
	"github.com/blessed-py/traffic-management/internal/store"
	"github.com/blessed-py/traffic-management/internal/ws"
)

type apiFixture struct {
	store  *store.MemoryStore
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st := store.NewMemoryStore()
	m := metrics.New()
	engine := analytics.NewEngine()
	hub := ws.NewHub(st, engine, m, time.Minute)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	return &apiFixture{
		store:  st,
		router: api.NewRouter(api.NewHandler(st, engine, hub, m)),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (f *apiFixture) seed(intersection string, vehicles int, speed float64, queue int) event.TrafficEvent {
	return f.store.Add(event.TrafficEvent{
		IntersectionID: intersection,
		Timestamp:      "2024-05-01T08:00:00",
		VehicleCount:   vehicles,
		AvgSpeed:       speed,
		QueueLen:       queue,
	})
}

func TestIngest_ValidReading(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/ingest", `{
		"intersection_id": "INT001",
		"timestamp": "2024-05-01T08:30:00",
		"vehicle_count": 12,
		"avg_speed": 35.5,
		"queue_len": 4,
		"meta": {"highway": "NH44"}
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])

	stored := body["event"].(map[string]any)
	assert.Equal(t, 1.0, stored["id"])
	assert.Equal(t, "INT001", stored["intersection_id"])

	assert.Equal(t, 1, f.store.Len())
}

func TestIngest_MissingQueueLen(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/ingest", `{
		"intersection_id": "INT001",
		"timestamp": "2024-05-01T08:30:00",
		"vehicle_count": 12,
		"avg_speed": 35.5
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "queue_len")
	assert.Equal(t, 0, f.store.Len(), "a rejected reading must not mutate the store")
}

func TestIngest_MalformedBody(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/ingest", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.store.Len())
}

func TestEvents_LimitHandling(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 30; i++ {
		f.seed(fmt.Sprintf("INT%03d", i%3), 10, 40, 2)
	}

	t.Run("explicit limit", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/events?limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		events := decodeBody(t, rec)["events"].([]any)
		require.Len(t, events, 5)

		first := events[0].(map[string]any)
		assert.Equal(t, 30.0, first["id"], "newest event first")
	})

	t.Run("default limit is 20", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/events", "")
		events := decodeBody(t, rec)["events"].([]any)
		assert.Len(t, events, 20)
	})

	t.Run("non-integer limit rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/events?limit=woof", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("zero limit yields empty", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/events?limit=0", "")
		events, ok := decodeBody(t, rec)["events"].([]any)
		if ok {
			assert.Empty(t, events)
		}
	})
}

func TestAnalytics_EmptyStore(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "no_data", body["status"])
	assert.Empty(t, body["intersections"])
}

func TestAnalytics_WithTraffic(t *testing.T) {
	f := newAPIFixture(t)
	f.seed("HOT", 20, 10, 12)
	f.seed("COOL", 5, 50, 0)

	rec := f.do(t, http.MethodGet, "/api/analytics", "")
	body := decodeBody(t, rec)

	assert.Equal(t, "ok", body["status"])
	intersections := body["intersections"].(map[string]any)
	assert.Len(t, intersections, 2)

	hot := intersections["HOT"].(map[string]any)
	assert.Equal(t, "high", hot["congestion_level"])

	overall := body["overall_stats"].(map[string]any)
	assert.Equal(t, 2.0, overall["total_intersections"])
	assert.Equal(t, 1.0, overall["congested_intersections"])
}

func TestPatterns_Endpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seed("INT001", 10, 40, 2)

	rec := f.do(t, http.MethodGet, "/api/intersection/INT001/patterns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "INT001", body["intersection_id"])

	rec = f.do(t, http.MethodGet, "/api/intersection/GHOST/patterns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
}

func TestDemoGenerate_SeedsCorridor(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/demo/generate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 5.0, body["count"])
	assert.Equal(t, 5, f.store.Len())

	seen := map[string]bool{}
	for _, ev := range f.store.Recent(10) {
		seen[ev.IntersectionID] = true
		assert.Equal(t, "NH44", ev.Meta["highway"])
		assert.NotEmpty(t, ev.Meta["city"])
	}
	assert.Len(t, seen, 5, "one reading per demo intersection")
}

func TestCorridorSummary(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("no tagged events", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/highway/NH44/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
	})

	t.Run("after demo seeding", func(t *testing.T) {
		f.do(t, http.MethodGet, "/api/demo/generate", "")

		rec := f.do(t, http.MethodGet, "/api/highway/NH44/summary", "")
		body := decodeBody(t, rec)
		require.Equal(t, "ok", body["status"])
		assert.Equal(t, "NH44", body["highway"])
		assert.Len(t, body["intersections"], 5)
	})
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/ingest", `{
		"intersection_id": "INT001",
		"timestamp": "2024-05-01T08:30:00",
		"vehicle_count": 12,
		"avg_speed": 35.5,
		"queue_len": 4
	}`)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "traffic_ingest_events_total")
	assert.Contains(t, rec.Body.String(), "traffic_hub_sessions_active")
}
