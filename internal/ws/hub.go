// Package ws implements the real-time distribution hub: it tracks connected
// websocket sessions, a broadcast group of subscribers, and the periodic
// analytics tick that keeps subscribers synchronized with the event stream.
package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/blessed-py/traffic-management/internal/analytics"
	"github.com/blessed-py/traffic-management/internal/event"
	"github.com/blessed-py/traffic-management/internal/metrics"
	"github.com/blessed-py/traffic-management/internal/store"
)

const (
	// Windows used when composing broadcasts, matching the dashboard's
	// expectations: a wide window for the periodic analysis, a narrower one
	// right after a new event.
	initialEventsLimit    = 20
	initialAnalysisLimit  = 50
	newEventAnalysisLimit = 50
	periodicAnalysisLimit = 100
	periodicEventsLimit   = 10
	detailEventsLimit     = 10
	patternWindowLimit    = 100
)

// DefaultUpdateInterval is the periodic broadcast cadence advertised to
// subscribers.
const DefaultUpdateInterval = 10 * time.Second

type command struct {
	session         *Session
	action          string
	intersectionID  string
	hasIntersection bool
}

// Hub owns the session registry and the broadcast group. A single run loop
// goroutine mutates both; sessions talk to it over channels, so no lock
// guards the maps.
type Hub struct {
	store   *store.MemoryStore
	engine  *analytics.Engine
	metrics *metrics.Metrics

	updateInterval time.Duration

	sessions    map[*Session]bool
	subscribers map[*Session]bool

	register   chan *Session
	unregister chan *Session
	commands   chan command
	ingested   chan event.TrafficEvent

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewHub(st *store.MemoryStore, eng *analytics.Engine, m *metrics.Metrics, updateInterval time.Duration) *Hub {
	if updateInterval <= 0 {
		updateInterval = DefaultUpdateInterval
	}
	return &Hub{
		store:          st,
		engine:         eng,
		metrics:        m,
		updateInterval: updateInterval,
		sessions:       make(map[*Session]bool),
		subscribers:    make(map[*Session]bool),
		register:       make(chan *Session),
		unregister:     make(chan *Session),
		commands:       make(chan command, 16),
		ingested:       make(chan event.TrafficEvent, 64),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
}

// Run is the hub's event loop. It must run in its own goroutine and exits
// only on Shutdown. The periodic ticker exists only while the broadcast
// group is non-empty; it is restarted whenever the subscriber count goes
// from zero to one.
func (h *Hub) Run() {
	defer close(h.stopped)

	var ticker *time.Ticker
	var tickC <-chan time.Time

	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}

	for {
		select {
		case s := <-h.register:
			h.sessions[s] = true
			h.metrics.SessionsActive.Inc()
			log.Printf("ws: session %s connected (%d total)", s.ID, len(h.sessions))
			h.send(s, h.initialData())

		case s := <-h.unregister:
			h.drop(s)
			if len(h.subscribers) == 0 {
				stopTicker()
			}

		case cmd := <-h.commands:
			if !h.sessions[cmd.session] {
				continue
			}
			switch cmd.action {
			case ActionSubscribe:
				h.subscribers[cmd.session] = true
				h.metrics.Subscribers.Set(float64(len(h.subscribers)))
				if ticker == nil {
					ticker = time.NewTicker(h.updateInterval)
					tickC = ticker.C
				}
				h.send(cmd.session, envelope(EventSubscriptionConfirmed, map[string]any{
					"status":          "subscribed",
					"update_interval": h.updateInterval.Seconds(),
				}))

			case ActionUnsubscribe:
				delete(h.subscribers, cmd.session)
				h.metrics.Subscribers.Set(float64(len(h.subscribers)))
				if len(h.subscribers) == 0 {
					stopTicker()
				}
				h.send(cmd.session, envelope(EventSubscriptionConfirmed, map[string]any{
					"status": "unsubscribed",
				}))

			case ActionIntersectionDetails:
				if !cmd.hasIntersection {
					h.send(cmd.session, envelope(EventError, map[string]any{
						"message": "Missing intersection_id",
					}))
					continue
				}
				h.send(cmd.session, h.intersectionDetails(cmd.intersectionID))

			case ActionGenerateTestEvent:
				h.generateTestEvent(cmd)

			default:
				log.Printf("ws: session %s sent unknown action %q", cmd.session.ID, cmd.action)
			}

		case ev := <-h.ingested:
			h.broadcastNewEvent(ev)

		case <-tickC:
			h.periodicUpdate()

		case <-h.done:
			stopTicker()
			for s := range h.sessions {
				h.drop(s)
			}
			return
		}
	}
}

// Register adds a session to the hub; the run loop replies with the initial
// snapshot.
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.done:
		s.conn.Close()
	}
}

// NotifyEvent triggers the new-event broadcast path for a freshly stored
// event. It never blocks the caller: if the hub is saturated the broadcast
// is dropped (subscribers catch up on the next periodic tick).
func (h *Hub) NotifyEvent(ev event.TrafficEvent) {
	select {
	case h.ingested <- ev:
	default:
		log.Printf("ws: dropping new-event broadcast for event %d, hub busy", ev.ID)
	}
}

// Shutdown stops the run loop, the periodic ticker, and every session.
// Idempotent.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// drop removes a session from the registry and broadcast group. Idempotent;
// readPump and Shutdown can both race to it.
func (h *Hub) drop(s *Session) {
	if !h.sessions[s] {
		return
	}
	delete(h.sessions, s)
	delete(h.subscribers, s)
	close(s.send)
	h.metrics.SessionsActive.Dec()
	h.metrics.Subscribers.Set(float64(len(h.subscribers)))
	log.Printf("ws: session %s disconnected (%d total)", s.ID, len(h.sessions))
}

// send delivers one message to one session without blocking the run loop.
// A session that cannot keep up is dropped.
func (h *Hub) send(s *Session, msg []byte) {
	if !h.sessions[s] {
		return
	}
	select {
	case s.send <- msg:
	default:
		log.Printf("ws: session %s send buffer full, dropping session", s.ID)
		h.drop(s)
	}
}

// broadcast fans out one message to the broadcast group, independently per
// session.
func (h *Hub) broadcast(kind string, msg []byte) {
	for s := range h.subscribers {
		h.send(s, msg)
	}
	h.metrics.BroadcastsSent.WithLabelValues(kind).Inc()
}

func (h *Hub) initialData() []byte {
	events := h.store.Recent(initialEventsLimit)
	analysis := h.engine.AnalyzeNetwork(h.store.Recent(initialAnalysisLimit))
	return envelope(EventInitialData, map[string]any{
		"events":    events,
		"analysis":  analysis,
		"timestamp": nowISO(),
	})
}

func (h *Hub) broadcastNewEvent(ev event.TrafficEvent) {
	analysis := h.engine.AnalyzeNetwork(h.store.Recent(newEventAnalysisLimit))
	h.broadcast("new_event", envelope(EventTrafficUpdate, map[string]any{
		"type":      UpdateNewEvent,
		"event":     ev,
		"analysis":  analysis,
		"timestamp": nowISO(),
	}))
}

func (h *Hub) periodicUpdate() {
	analysis := h.engine.AnalyzeNetwork(h.store.Recent(periodicAnalysisLimit))
	recent := h.store.Recent(periodicEventsLimit)

	h.broadcast("periodic_update", envelope(EventTrafficUpdate, map[string]any{
		"type":          UpdatePeriodic,
		"analysis":      analysis,
		"recent_events": recent,
		"timestamp":     nowISO(),
	}))

	if high := analysis.HighAlerts(); len(high) > 0 {
		h.broadcast("critical_alert", envelope(EventCriticalAlert, map[string]any{
			"alerts":    high,
			"timestamp": nowISO(),
		}))
	}
}

func (h *Hub) intersectionDetails(id string) []byte {
	window := h.store.Recent(patternWindowLimit)
	patterns := h.engine.IntersectionPatterns(id, window)

	var recent []event.TrafficEvent
	for _, ev := range h.store.Recent(initialAnalysisLimit) {
		if ev.IntersectionID == id {
			recent = append(recent, ev)
			if len(recent) == detailEventsLimit {
				break
			}
		}
	}

	return envelope(EventIntersectionDetails, map[string]any{
		"intersection_id": id,
		"patterns":        patterns,
		"recent_events":   recent,
		"timestamp":       nowISO(),
	})
}

// generateTestEvent stores a random plausible reading and pushes it through
// the normal new-event broadcast path, then acknowledges the requester.
func (h *Hub) generateTestEvent(cmd command) {
	id := cmd.intersectionID
	if id == "" {
		id = "TEST001"
	}

	ev := event.TrafficEvent{
		IntersectionID: id,
		Timestamp:      nowISO(),
		VehicleCount:   5 + rand.Intn(21),           // 5..25
		AvgSpeed:       float64(15 + rand.Intn(46)), // 15..60
		QueueLen:       rand.Intn(16),               // 0..15
		Meta:           map[string]any{"source": "websocket_test"},
	}
	stored := h.store.Add(ev)
	h.metrics.EventsIngested.WithLabelValues("websocket_test").Inc()

	h.broadcastNewEvent(stored)

	h.send(cmd.session, envelope(EventTestEventCreated, map[string]any{
		"event":   stored,
		"message": "Test event generated successfully",
	}))
}

func envelope(kind string, payload map[string]any) []byte {
	msg, err := json.Marshal(map[string]any{"type": kind, "payload": payload})
	if err != nil {
		// Payloads are composed in-process from marshalable types; this is
		// unreachable short of a programming error.
		panic(fmt.Sprintf("ws: marshal %s envelope: %v", kind, err))
	}
	return msg
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
