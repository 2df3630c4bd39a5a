package analytics

import (
	"sort"

	"github.com/blessed-py/traffic-management/internal/event"
)

// HourlyAverage aggregates readings that fall in one hour of the day.
type HourlyAverage struct {
	VehicleCount float64 `json:"vehicle_count"`
	AvgSpeed     float64 `json:"avg_speed"`
	QueueLength  float64 `json:"queue_length"`
	SampleCount  int     `json:"sample_count"`
}

// PatternReport describes how traffic at one intersection distributes over
// the hours of the day, within the retained window.
type PatternReport struct {
	Status         string                `json:"status"`
	IntersectionID string                `json:"intersection_id"`
	HourlyAverages map[int]HourlyAverage `json:"hourly_averages"`
	PeakHours      []int                 `json:"peak_hours"`
	OffPeakHours   []int                 `json:"off_peak_hours"`
}

// IntersectionPatterns buckets an intersection's events by hour of day and
// ranks hours by average vehicle count. Peak hours are the top third of that
// ranking (at least one); off-peak hours are the bottom third of the SAME
// ranking, so with very few distinct hours the two sets can overlap. That
// matches the deployed behavior and downstream dashboards rely on it.
// Events with unparsable timestamps are skipped, never fatal.
func (e *Engine) IntersectionPatterns(intersectionID string, events []event.TrafficEvent) PatternReport {
	report := PatternReport{
		Status:         StatusNoData,
		IntersectionID: intersectionID,
		HourlyAverages: map[int]HourlyAverage{},
	}

	buckets := make(map[int][]event.TrafficEvent)
	for _, ev := range events {
		if ev.IntersectionID != intersectionID {
			continue
		}
		t, err := event.ParseTimestamp(ev.Timestamp)
		if err != nil {
			continue
		}
		buckets[t.Hour()] = append(buckets[t.Hour()], ev)
	}
	if len(buckets) == 0 {
		return report
	}

	for hour, hourEvents := range buckets {
		var sumVehicles, sumSpeed, sumQueue float64
		for _, ev := range hourEvents {
			sumVehicles += float64(ev.VehicleCount)
			sumSpeed += ev.AvgSpeed
			sumQueue += float64(ev.QueueLen)
		}
		n := float64(len(hourEvents))
		report.HourlyAverages[hour] = HourlyAverage{
			VehicleCount: round1(sumVehicles / n),
			AvgSpeed:     round1(sumSpeed / n),
			QueueLength:  round1(sumQueue / n),
			SampleCount:  len(hourEvents),
		}
	}

	hours := make([]int, 0, len(report.HourlyAverages))
	for hour := range report.HourlyAverages {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool {
		hi, hj := report.HourlyAverages[hours[i]], report.HourlyAverages[hours[j]]
		if hi.VehicleCount != hj.VehicleCount {
			return hi.VehicleCount > hj.VehicleCount
		}
		return hours[i] < hours[j]
	})

	peakCount := len(hours) / 3
	if peakCount < 1 {
		peakCount = 1
	}
	report.PeakHours = append(report.PeakHours, hours[:peakCount]...)
	report.OffPeakHours = append(report.OffPeakHours, hours[len(hours)-peakCount:]...)
	report.Status = StatusOK
	return report
}
