package ws

// Server-to-client envelope kinds.
const (
	EventInitialData           = "initial_data"
	EventSubscriptionConfirmed = "subscription_confirmed"
	EventTrafficUpdate         = "traffic_update"
	EventCriticalAlert         = "critical_alert"
	EventIntersectionDetails   = "intersection_details"
	EventTestEventCreated      = "test_event_created"
	EventError                 = "error"
)

// traffic_update payload discriminator values.
const (
	UpdateNewEvent = "new_event"
	UpdatePeriodic = "periodic_update"
)

// Client-to-server actions.
const (
	ActionSubscribe           = "subscribe_updates"
	ActionUnsubscribe         = "unsubscribe_updates"
	ActionIntersectionDetails = "request_intersection_details"
	ActionGenerateTestEvent   = "generate_test_event"
)

// clientMessage is the inbound command frame.
type clientMessage struct {
	Action         string  `json:"action"`
	IntersectionID *string `json:"intersection_id,omitempty"`
}
