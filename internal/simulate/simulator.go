// Package simulate generates plausible live traffic for demos. It is an
// external collaborator of the core: everything it produces goes through the
// same store-and-broadcast path as a real sensor reading.
package simulate

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/blessed-py/traffic-management/internal/event"
	"github.com/blessed-py/traffic-management/internal/store"
	"github.com/blessed-py/traffic-management/internal/ws"
)

var intersections = []string{"INT001", "INT002", "INT003", "INT004", "INT005"}

// Simulator emits one random reading at a jittered interval. A single timer
// drives it; cancelling the context stops it deterministically.
type Simulator struct {
	store       *store.MemoryStore
	hub         *ws.Hub
	minInterval time.Duration
	maxInterval time.Duration
}

func New(st *store.MemoryStore, hub *ws.Hub, minInterval, maxInterval time.Duration) *Simulator {
	if minInterval <= 0 {
		minInterval = 15 * time.Second
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Simulator{store: st, hub: hub, minInterval: minInterval, maxInterval: maxInterval}
}

// Run emits readings until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	log.Printf("simulate: generating live traffic every %s-%s", s.minInterval, s.maxInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("simulate: stopped")
			return
		case <-timer.C:
			s.emit()
			timer.Reset(s.nextInterval())
		}
	}
}

func (s *Simulator) emit() {
	ev := s.randomReading(time.Now())
	stored := s.store.Add(ev)
	s.hub.NotifyEvent(stored)
}

// randomReading biases volumes by time of day: rush hours run heavier, and a
// small fraction of readings spike like an incident.
func (s *Simulator) randomReading(now time.Time) event.TrafficEvent {
	var vehicles, queue int
	var speed float64

	switch hour := now.Hour(); {
	case hour >= 7 && hour <= 9, hour >= 17 && hour <= 19:
		vehicles = 12 + rand.Intn(14) // 12..25
		speed = float64(15 + rand.Intn(21))
		queue = 5 + rand.Intn(11)
	default:
		vehicles = 3 + rand.Intn(13) // 3..15
		speed = float64(30 + rand.Intn(31))
		queue = rand.Intn(9)
	}

	// Occasional incident spike.
	if rand.Float64() < 0.05 {
		vehicles = 20 + rand.Intn(11)
		speed = float64(5 + rand.Intn(11))
		queue = 10 + rand.Intn(11)
	}

	return event.TrafficEvent{
		IntersectionID: intersections[rand.Intn(len(intersections))],
		Timestamp:      now.UTC().Format(time.RFC3339),
		VehicleCount:   vehicles,
		AvgSpeed:       speed,
		QueueLen:       queue,
		Meta:           map[string]any{"source": "live_simulation"},
	}
}

func (s *Simulator) nextInterval() time.Duration {
	spread := s.maxInterval - s.minInterval
	if spread <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(rand.Int63n(int64(spread)))
}
