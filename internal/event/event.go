package event

// TrafficEvent is a single sensor reading from a road intersection.
// The ID is assigned by the store at insertion time; everything else is
// caller-supplied. Events are immutable once stored.
type TrafficEvent struct {
	ID             int64          `json:"id"`
	IntersectionID string         `json:"intersection_id"`
	Timestamp      string         `json:"timestamp"` // ISO-8601, stored verbatim
	VehicleCount   int            `json:"vehicle_count"`
	AvgSpeed       float64        `json:"avg_speed"` // km/h
	QueueLen       int            `json:"queue_len"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// Clone returns a deep-enough copy for handing across goroutine boundaries.
// Meta values are assumed to be scalars (strings, numbers from JSON), so a
// shallow map copy is sufficient.
func (e TrafficEvent) Clone() TrafficEvent {
	out := e
	if e.Meta != nil {
		out.Meta = make(map[string]any, len(e.Meta))
		for k, v := range e.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Alert flags an intersection at moderate or high congestion.
type Alert struct {
	Type           string       `json:"type"` // always "congestion"
	IntersectionID string       `json:"intersection_id"`
	Severity       string       `json:"severity"` // "moderate" or "high"
	Message        string       `json:"message"`
	Details        AlertDetails `json:"details"`
}

// AlertDetails carries the raw readings that triggered the alert.
type AlertDetails struct {
	VehicleCount int     `json:"vehicle_count"`
	QueueLength  int     `json:"queue_length"`
	AvgSpeed     float64 `json:"avg_speed"`
}
