package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed-py/traffic-management/internal/event"
)

func taggedEvent(id int64, intersection, highway, city string, vehicles int, speed float64, queue int) event.TrafficEvent {
	return event.TrafficEvent{
		ID:             id,
		IntersectionID: intersection,
		Timestamp:      "2024-05-01T08:00:00",
		VehicleCount:   vehicles,
		AvgSpeed:       speed,
		QueueLen:       queue,
		Meta:           map[string]any{"highway": highway, "city": city},
	}
}

func TestAnalyzeCorridor_NoTaggedEvents(t *testing.T) {
	e := NewEngine()

	got := e.AnalyzeCorridor([]event.TrafficEvent{
		taggedEvent(1, "INT001", "NH1", "Delhi", 5, 50, 0),
		{ID: 2, IntersectionID: "INT002", Timestamp: "2024-05-01T08:00:00"}, // no meta at all
	}, "NH44")

	assert.Equal(t, StatusNoData, got.Status)
	assert.Equal(t, "NH44", got.Highway)
	assert.Empty(t, got.Intersections)
}

func TestAnalyzeCorridor_Summary(t *testing.T) {
	e := NewEngine()

	events := []event.TrafficEvent{
		taggedEvent(5, "INT001", "NH44", "Jalandhar", 20, 10, 12), // high
		taggedEvent(4, "INT002", "NH44", "Ludhiana", 12, 25, 6),   // moderate, not congested
		taggedEvent(3, "INT001", "NH44", "Jalandhar", 5, 50, 0),   // older reading, ignored
		taggedEvent(2, "INT009", "NH1", "Delhi", 30, 5, 20),       // other corridor
	}

	got := e.AnalyzeCorridor(events, "NH44")
	require.Equal(t, StatusOK, got.Status)
	require.Len(t, got.Intersections, 2)

	first := got.Intersections["INT001"]
	assert.Equal(t, int64(5), first.Latest.ID, "latest reading is the newest tagged event")
	assert.Equal(t, LevelHigh, first.CongestionLevel)
	assert.Equal(t, "Jalandhar", first.City)

	second := got.Intersections["INT002"]
	assert.Equal(t, LevelModerate, second.CongestionLevel)

	assert.Equal(t, 2, got.Overall.TotalIntersections)
	assert.Equal(t, 1, got.Overall.Congested)
	assert.InDelta(t, 0.5, got.Overall.CongestionRate, 0.001)
}
