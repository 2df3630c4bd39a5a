package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	gwebsocket "github.com/gorilla/websocket"

	"github.com/blessed-py/traffic-management/internal/analytics"
	"github.com/blessed-py/traffic-management/internal/event"
	"github.com/blessed-py/traffic-management/internal/metrics"
	"github.com/blessed-py/traffic-management/internal/store"
	"github.com/blessed-py/traffic-management/internal/ws"
)

const (
	defaultEventsLimit   = 20
	analyticsWindowLimit = 100
	patternWindowLimit   = 100
	corridorWindowLimit  = 200
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from arbitrary hosts in demos.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler exposes the engine over HTTP. All state lives in the injected
// collaborators.
type Handler struct {
	store   *store.MemoryStore
	engine  *analytics.Engine
	hub     *ws.Hub
	metrics *metrics.Metrics
}

func NewHandler(st *store.MemoryStore, eng *analytics.Engine, hub *ws.Hub, m *metrics.Metrics) *Handler {
	return &Handler{store: st, engine: eng, hub: hub, metrics: m}
}

// HandleIngest accepts one sensor reading, validates and normalizes it,
// stores it, and triggers the hub's new-event broadcast. Validation failures
// produce no store mutation and no broadcast.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error",
			"error":  "cannot read request body",
		})
		return
	}
	defer r.Body.Close()

	ev, err := event.ParseReading(body)
	if err != nil {
		h.metrics.ValidationFailures.Inc()
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "error",
				"error":  verr.Error(),
				"fields": verr.Fields,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	stored := h.store.Add(ev)
	h.metrics.EventsIngested.WithLabelValues("http").Inc()
	h.hub.NotifyEvent(stored)

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "ok",
		"event":  stored,
	})
}

// HandleEvents returns up to limit most-recent events, newest first.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "error",
				"error":  "limit must be an integer",
			})
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"events": h.store.Recent(limit),
	})
}

// HandleAnalytics returns the current network analysis over the default
// window.
func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	analysis := h.engine.AnalyzeNetwork(h.store.Recent(analyticsWindowLimit))
	writeJSON(w, http.StatusOK, analysis)
}

// HandlePatterns returns the hourly traffic pattern report for one
// intersection. An unknown intersection is a "no_data" report, not an error.
func (h *Handler) HandlePatterns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report := h.engine.IntersectionPatterns(id, h.store.Recent(patternWindowLimit))
	writeJSON(w, http.StatusOK, report)
}

// HandleCorridorSummary summarizes the intersections tagged with one highway
// code in event meta.
func (h *Handler) HandleCorridorSummary(w http.ResponseWriter, r *http.Request) {
	highway := chi.URLParam(r, "id")
	summary := h.engine.AnalyzeCorridor(h.store.Recent(corridorWindowLimit), highway)
	writeJSON(w, http.StatusOK, summary)
}

// corridorSeeds is the fixed demo set: five monitored intersections along
// the NH44 corridor in Punjab.
var corridorSeeds = []struct {
	ID   string
	Lat  float64
	Lng  float64
	City string
}{
	{"INT001", 31.3260, 75.5762, "Jalandhar"},
	{"INT002", 30.900965, 75.857277, "Ludhiana"},
	{"INT003", 31.2240, 75.7695, "Phagwara"},
	{"INT004", 32.2643, 75.6421, "Pathankot"},
	{"INT005", 30.7046, 76.2230, "Khanna"},
}

// HandleDemoGenerate seeds one plausible reading per demo intersection.
func (h *Handler) HandleDemoGenerate(w http.ResponseWriter, r *http.Request) {
	for _, seed := range corridorSeeds {
		vehicles := 5 + rand.Intn(16)        // 5..20
		speed := float64(25 + rand.Intn(31)) // 25..55
		queue := rand.Intn(13)               // 0..12

		// Roughly a third of seeds land in a congestion scenario so the
		// dashboard has something to show.
		if rand.Float64() < 0.3 {
			vehicles = 15 + rand.Intn(11)
			speed = float64(10 + rand.Intn(16))
			queue = 8 + rand.Intn(8)
		}

		ev := event.TrafficEvent{
			IntersectionID: seed.ID,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			VehicleCount:   vehicles,
			AvgSpeed:       speed,
			QueueLen:       queue,
			Meta: map[string]any{
				"source":  "demo_generator",
				"highway": "NH44",
				"region":  "Punjab",
				"city":    seed.City,
				"lat":     seed.Lat,
				"lng":     seed.Lng,
			},
		}
		stored := h.store.Add(ev)
		h.metrics.EventsIngested.WithLabelValues("demo").Inc()
		h.hub.NotifyEvent(stored)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  len(corridorSeeds),
	})
}

// HandleWebSocket upgrades the connection and seats the session in the hub.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}

	session := ws.NewSession(h.hub, conn)
	h.hub.Register(session)
	session.Start()
}

// HandleHealthz is a liveness probe.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("api: write response: %v", err)
	}
}
