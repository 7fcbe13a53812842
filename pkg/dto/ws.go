package dto

// WSEvent is the envelope broadcast to WebSocket clients. EventSlug lets a
// client subscribe to a single event's notifications.
type WSEvent struct {
	Type      string      `json:"type"`
	EventSlug string      `json:"event_slug"`
	Data      interface{} `json:"data"`
}
