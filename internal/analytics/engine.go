// Package analytics derives congestion and trend signals from a window of
// traffic events. Everything here is a pure function of its input slice; the
// only state an Engine carries is its fixed thresholds.
package analytics

import (
	"fmt"
	"math"

	"github.com/blessed-py/traffic-management/internal/event"
)

const (
	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"

	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"

	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// Number of most-recent readings per intersection that feed averages and
// trend detection.
const analysisWindow = 10

// Trend comparison gate, in vehicles.
const trendChangeThreshold = 2.0

// Engine scores traffic conditions against fixed thresholds. The zero value
// is not usable; construct with NewEngine.
type Engine struct {
	CongestionThreshold int     // vehicles per intersection
	SlowSpeedThreshold  float64 // km/h
	QueueThreshold      int     // vehicles in queue
}

func NewEngine() *Engine {
	return &Engine{
		CongestionThreshold: 15,
		SlowSpeedThreshold:  20,
		QueueThreshold:      8,
	}
}

// CurrentStats is the latest raw reading for an intersection.
type CurrentStats struct {
	VehicleCount int     `json:"vehicle_count"`
	AvgSpeed     float64 `json:"avg_speed"`
	QueueLength  int     `json:"queue_length"`
	Timestamp    string  `json:"timestamp"`
}

// Averages are rolling means over the analysis window, rounded to 1 decimal.
type Averages struct {
	VehicleCount float64 `json:"vehicle_count"`
	Speed        float64 `json:"speed"`
	QueueLength  float64 `json:"queue_length"`
}

// IntersectionAnalysis is the derived state of one intersection. Recomputed
// on demand, never persisted.
type IntersectionAnalysis struct {
	IntersectionID  string       `json:"intersection_id"`
	CurrentStats    CurrentStats `json:"current_stats"`
	Averages        Averages     `json:"averages"`
	CongestionLevel string       `json:"congestion_level"`
	EfficiencyScore float64      `json:"efficiency_score"`
	Trend           string       `json:"trend"`
	Recommendations []string     `json:"recommendations"`
}

// OverallStats summarizes the network-wide picture.
type OverallStats struct {
	TotalIntersections     int     `json:"total_intersections"`
	CongestedIntersections int     `json:"congested_intersections"`
	CongestionRate         float64 `json:"congestion_rate"`
	NetworkStatus          string  `json:"network_status"` // light | moderate | heavy | unknown
}

// NetworkAnalysis is the derived state of every intersection seen in the
// input window.
type NetworkAnalysis struct {
	Status        string                          `json:"status"`
	Intersections map[string]IntersectionAnalysis `json:"intersections"`
	Alerts        []event.Alert                   `json:"alerts"`
	OverallStats  OverallStats                    `json:"overall_stats"`
}

// CongestionLevel classifies a single reading. Each of the three factors
// contributes 0, 1 or 2 points; the 0-6 sum maps to the three tiers.
func (e *Engine) CongestionLevel(vehicleCount int, avgSpeed float64, queueLen int) string {
	score := 0

	if vehicleCount >= e.CongestionThreshold {
		score += 2
	} else if float64(vehicleCount) >= float64(e.CongestionThreshold)*0.7 {
		score++
	}

	if avgSpeed <= e.SlowSpeedThreshold {
		score += 2
	} else if avgSpeed <= e.SlowSpeedThreshold*1.5 {
		score++
	}

	if queueLen >= e.QueueThreshold {
		score += 2
	} else if float64(queueLen) >= float64(e.QueueThreshold)*0.7 {
		score++
	}

	switch {
	case score >= 4:
		return LevelHigh
	case score >= 2:
		return LevelModerate
	default:
		return LevelLow
	}
}

// EfficiencyScore rates flow efficiency 0-100. Speed normalizes to 60 km/h,
// queue to 15 vehicles (lower is better), throughput to 20 vehicles.
func (e *Engine) EfficiencyScore(avgSpeed, avgQueue, avgVehicles float64) float64 {
	speedScore := math.Min(avgSpeed/60*100, 100)
	queueScore := math.Max(100-avgQueue/15*100, 0)
	throughputScore := math.Min(avgVehicles/20*100, 100)

	return round1(speedScore*0.4 + queueScore*0.4 + throughputScore*0.2)
}

// Trend compares the mean of the three newest values against the mean of the
// next up-to-three. Values must be newest-first. Fewer than four values, or
// no older values to compare against, reads as stable.
func (e *Engine) Trend(newestFirst []float64) string {
	if len(newestFirst) < 4 {
		return TrendStable
	}

	recentAvg := mean(newestFirst[:3])

	older := newestFirst[3:]
	if len(older) > 3 {
		older = older[:3]
	}
	if len(older) == 0 {
		return TrendStable
	}
	olderAvg := mean(older)

	switch {
	case recentAvg > olderAvg+trendChangeThreshold:
		return TrendIncreasing
	case recentAvg < olderAvg-trendChangeThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// AnalyzeIntersection derives the analysis for one intersection from its
// events, newest first. Congestion classifies the latest raw reading;
// efficiency uses the window averages; trend uses the vehicle count series.
func (e *Engine) AnalyzeIntersection(id string, eventsNewestFirst []event.TrafficEvent) (IntersectionAnalysis, bool) {
	if len(eventsNewestFirst) == 0 {
		return IntersectionAnalysis{}, false
	}

	window := eventsNewestFirst
	if len(window) > analysisWindow {
		window = window[:analysisWindow]
	}

	latest := window[0]

	vehicleCounts := make([]float64, len(window))
	var sumVehicles, sumSpeed, sumQueue float64
	for i, ev := range window {
		vehicleCounts[i] = float64(ev.VehicleCount)
		sumVehicles += float64(ev.VehicleCount)
		sumSpeed += ev.AvgSpeed
		sumQueue += float64(ev.QueueLen)
	}
	n := float64(len(window))
	avgVehicles := sumVehicles / n
	avgSpeed := sumSpeed / n
	avgQueue := sumQueue / n

	level := e.CongestionLevel(latest.VehicleCount, latest.AvgSpeed, latest.QueueLen)
	trend := e.Trend(vehicleCounts)

	return IntersectionAnalysis{
		IntersectionID: id,
		CurrentStats: CurrentStats{
			VehicleCount: latest.VehicleCount,
			AvgSpeed:     latest.AvgSpeed,
			QueueLength:  latest.QueueLen,
			Timestamp:    latest.Timestamp,
		},
		Averages: Averages{
			VehicleCount: round1(avgVehicles),
			Speed:        round1(avgSpeed),
			QueueLength:  round1(avgQueue),
		},
		CongestionLevel: level,
		EfficiencyScore: e.EfficiencyScore(avgSpeed, avgQueue, avgVehicles),
		Trend:           trend,
		Recommendations: e.recommendations(level, trend, latest),
	}, true
}

// AnalyzeNetwork groups events by intersection and analyzes each group. The
// input must be newest-first; grouping preserves that order, so the first
// event of every group is that intersection's latest reading.
func (e *Engine) AnalyzeNetwork(eventsNewestFirst []event.TrafficEvent) NetworkAnalysis {
	if len(eventsNewestFirst) == 0 {
		return NetworkAnalysis{
			Status:        StatusNoData,
			Intersections: map[string]IntersectionAnalysis{},
			OverallStats:  OverallStats{NetworkStatus: "unknown"},
		}
	}

	groups := groupByIntersection(eventsNewestFirst)

	out := NetworkAnalysis{
		Status:        StatusOK,
		Intersections: make(map[string]IntersectionAnalysis, len(groups)),
	}

	congested := 0
	for id, group := range groups {
		ia, ok := e.AnalyzeIntersection(id, group)
		if !ok {
			continue
		}
		out.Intersections[id] = ia

		latest := group[0]
		details := event.AlertDetails{
			VehicleCount: latest.VehicleCount,
			QueueLength:  latest.QueueLen,
			AvgSpeed:     latest.AvgSpeed,
		}

		switch ia.CongestionLevel {
		case LevelHigh:
			congested++
			out.Alerts = append(out.Alerts, event.Alert{
				Type:           "congestion",
				IntersectionID: id,
				Severity:       "high",
				Message:        fmt.Sprintf("High congestion detected at intersection %s", id),
				Details:        details,
			})
		case LevelModerate:
			out.Alerts = append(out.Alerts, event.Alert{
				Type:           "congestion",
				IntersectionID: id,
				Severity:       "moderate",
				Message:        fmt.Sprintf("Moderate congestion at intersection %s", id),
				Details:        details,
			})
		}
	}

	total := len(groups)
	rate := 0.0
	if total > 0 {
		rate = float64(congested) / float64(total)
	}
	out.OverallStats = OverallStats{
		TotalIntersections:     total,
		CongestedIntersections: congested,
		CongestionRate:         rate,
		NetworkStatus:          networkStatus(congested, total),
	}
	return out
}

// HighAlerts filters an analysis down to its high-severity alerts.
func (a NetworkAnalysis) HighAlerts() []event.Alert {
	var out []event.Alert
	for _, alert := range a.Alerts {
		if alert.Severity == "high" {
			out = append(out, alert)
		}
	}
	return out
}

func (e *Engine) recommendations(level, trend string, latest event.TrafficEvent) []string {
	var recs []string

	if level == LevelHigh {
		recs = append(recs,
			"extend green light duration",
			"send congestion alerts to approaching vehicles")
		if latest.QueueLen > 10 {
			recs = append(recs, "deploy traffic personnel")
		}
	} else if level == LevelModerate {
		recs = append(recs, "monitor for escalation")
	}

	if trend == TrendIncreasing {
		recs = append(recs, "prepare for peak conditions")
	} else if trend == TrendDecreasing {
		recs = append(recs, "consider optimizing signal timing")
	}

	if latest.AvgSpeed < 15 {
		recs = append(recs, "check for incidents")
	}

	if len(recs) == 0 {
		recs = append(recs, "traffic flowing normally")
	}
	return recs
}

func networkStatus(congested, total int) string {
	if total == 0 {
		return "unknown"
	}
	rate := float64(congested) / float64(total)
	switch {
	case rate >= 0.6:
		return "heavy"
	case rate >= 0.3:
		return "moderate"
	default:
		return "light"
	}
}

func groupByIntersection(eventsNewestFirst []event.TrafficEvent) map[string][]event.TrafficEvent {
	groups := make(map[string][]event.TrafficEvent)
	for _, ev := range eventsNewestFirst {
		groups[ev.IntersectionID] = append(groups[ev.IntersectionID], ev)
	}
	return groups
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
