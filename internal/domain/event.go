package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an identity-lifecycle occurrence. The set is closed
// here but consumers tolerate unknown types.
type EventType string

const (
	EventUserCreated   EventType = "USER_CREATED"
	EventUserLoggedOut EventType = "USER_LOGGED_OUT"
	EventUserDeleted   EventType = "USER_DELETED"
)

// Exchange and routing keys shared with every consumer of identity events.
const (
	UserEventsExchange = "user.events"

	RouteUserCreate = "user.create"
	RouteUserLogout = "user.logout"
	RouteUserDelete = "user.delete"
)

// EventPayload carries the minimal fields consumers need. Email is only set
// on USER_CREATED; consumers enrich from their own stores.
type EventPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// IdentityEvent is the append-only message published for each lifecycle
// occurrence. EventID is assigned once when the event is constructed, so a
// retried publish of the same occurrence keeps the same id and consumers can
// deduplicate.
type IdentityEvent struct {
	EventID   string       `json:"eventId"`
	EventType EventType    `json:"eventType"`
	Timestamp string       `json:"timestamp"` // ISO-8601, emission time
	Payload   EventPayload `json:"payload"`
}

// NewIdentityEvent stamps a fresh event with a unique id and the current time.
func NewIdentityEvent(eventType EventType, payload EventPayload) IdentityEvent {
	return IdentityEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
}

// PublishResult is the observable outcome of a best-effort publish.
type PublishResult struct {
	Published bool
	Reason    string // set when dropped
}

// Delivered reports a message handed to the broker.
func Delivered() PublishResult {
	return PublishResult{Published: true}
}

// Dropped reports a message that never reached the broker.
func Dropped(reason string) PublishResult {
	return PublishResult{Published: false, Reason: reason}
}
