package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts accepted on ingest. Sensors in the field are not
// consistent about zone suffixes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ValidationError reports every missing or malformed field of an inbound
// reading in one shot, so a sensor operator sees the full list at once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "invalid reading: " + strings.Join(parts, "; ")
}

// ParseReading validates and normalizes a raw inbound sensor payload.
// Numeric fields arrive in whatever shape the sensor bridge produced
// (JSON numbers, quoted numbers), so they are coerced rather than
// type-checked strictly. Returns a *ValidationError listing every bad
// field when the payload is unusable; the store is never touched.
func ParseReading(raw []byte) (TrafficEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return TrafficEvent{}, &ValidationError{Fields: map[string]string{
			"body": "not a JSON object",
		}}
	}
	return FromPayload(payload)
}

// FromPayload normalizes an already-decoded payload map. Shared by the HTTP
// ingest endpoint and the MQTT source.
func FromPayload(payload map[string]any) (TrafficEvent, error) {
	bad := make(map[string]string)

	var ev TrafficEvent

	if v, ok := payload["intersection_id"]; !ok {
		bad["intersection_id"] = "missing"
	} else if s := stringify(v); s == "" {
		bad["intersection_id"] = "empty"
	} else {
		ev.IntersectionID = s
	}

	if v, ok := payload["timestamp"]; !ok {
		bad["timestamp"] = "missing"
	} else {
		ts := stringify(v)
		if _, err := ParseTimestamp(ts); err != nil {
			bad["timestamp"] = "not an ISO-8601 timestamp"
		} else {
			ev.Timestamp = ts
		}
	}

	if v, ok := payload["vehicle_count"]; !ok {
		bad["vehicle_count"] = "missing"
	} else if n, err := toInt(v); err != nil {
		bad["vehicle_count"] = "not an integer"
	} else {
		ev.VehicleCount = n
	}

	if v, ok := payload["avg_speed"]; !ok {
		bad["avg_speed"] = "missing"
	} else if f, err := toFloat(v); err != nil {
		bad["avg_speed"] = "not a number"
	} else {
		ev.AvgSpeed = f
	}

	if v, ok := payload["queue_len"]; !ok {
		bad["queue_len"] = "missing"
	} else if n, err := toInt(v); err != nil {
		bad["queue_len"] = "not an integer"
	} else {
		ev.QueueLen = n
	}

	if len(bad) > 0 {
		return TrafficEvent{}, &ValidationError{Fields: bad}
	}

	if meta, ok := payload["meta"].(map[string]any); ok {
		ev.Meta = meta
	} else {
		ev.Meta = map[string]any{}
	}
	return ev, nil
}

// ParseTimestamp parses an ISO-8601 timestamp in any of the accepted layouts.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case json.Number:
		f, err := n.Float64()
		return int(f), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("cannot coerce %T to float", v)
	}
}
