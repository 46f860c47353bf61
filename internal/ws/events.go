package ws

import (
	"time"
)

type EventType string

const (
	EventMatchUpdated      EventType = "match.updated"
	EventEnrollmentUpdated EventType = "enrollment.updated"
)

// Topic groups events a client can subscribe to.
type Topic string

const (
	TopicMatch      Topic = "match"
	TopicEnrollment Topic = "enrollment"
)

type Event struct {
	Topic     Topic       `json:"-"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
