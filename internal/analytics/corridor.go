package analytics

import (
	"github.com/blessed-py/traffic-management/internal/event"
)

// CorridorMember is one intersection's standing within a highway corridor.
type CorridorMember struct {
	Latest          event.TrafficEvent `json:"latest"`
	CongestionLevel string             `json:"congestion_level"`
	City            string             `json:"city,omitempty"`
}

// CorridorOverall aggregates congestion across a corridor's members.
type CorridorOverall struct {
	TotalIntersections int     `json:"total_intersections"`
	Congested          int     `json:"congested"`
	CongestionRate     float64 `json:"congestion_rate"`
}

// CorridorSummary reports per-member and aggregate congestion for every
// intersection tagged with one highway code.
type CorridorSummary struct {
	Status        string                    `json:"status"`
	Highway       string                    `json:"highway"`
	Intersections map[string]CorridorMember `json:"intersections"`
	Overall       CorridorOverall           `json:"overall"`
}

// AnalyzeCorridor summarizes the intersections whose events carry the given
// highway tag in meta. Input must be newest-first so the first event per
// intersection is its latest. Congested counts high-level members only.
func (e *Engine) AnalyzeCorridor(eventsNewestFirst []event.TrafficEvent, highway string) CorridorSummary {
	summary := CorridorSummary{
		Status:        StatusNoData,
		Highway:       highway,
		Intersections: map[string]CorridorMember{},
	}

	var corridor []event.TrafficEvent
	for _, ev := range eventsNewestFirst {
		if tag, ok := ev.Meta["highway"].(string); ok && tag == highway {
			corridor = append(corridor, ev)
		}
	}
	if len(corridor) == 0 {
		return summary
	}

	congested := 0
	for id, group := range groupByIntersection(corridor) {
		latest := group[0]
		level := e.CongestionLevel(latest.VehicleCount, latest.AvgSpeed, latest.QueueLen)
		if level == LevelHigh {
			congested++
		}
		city, _ := latest.Meta["city"].(string)
		summary.Intersections[id] = CorridorMember{
			Latest:          latest,
			CongestionLevel: level,
			City:            city,
		}
	}

	total := len(summary.Intersections)
	summary.Overall = CorridorOverall{
		TotalIntersections: total,
		Congested:          congested,
		CongestionRate:     float64(congested) / float64(total),
	}
	summary.Status = StatusOK
	return summary
}
