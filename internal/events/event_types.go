package events

import (
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestSubmitted EventType = "request_submitted"
	EventRequestAssigned  EventType = "request_assigned"
	EventRequestCompleted EventType = "request_completed"
	EventDialogueOpened   EventType = "dialogue_opened"
	EventDialogueMessage  EventType = "dialogue_message"
	EventDialogueClosed   EventType = "dialogue_closed"
)

// Event represents a domain event emitted by services after their state
// change is durable.
type Event struct {
	ID        string
	Type      EventType
	RequestID int64
	ActorID   int64
	Timestamp time.Time
	Payload   interface{}
}

// RequestSubmittedPayload payload.
type RequestSubmittedPayload struct {
	Category    domain.Category
	Description string
	Urgency     domain.UrgencyKind
	ScheduledAt *time.Time
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	AdminID       int64
	RequesterID   int64
	AdminAnchorID *int64
	Description   string
}

// RequestCompletedPayload payload. CounterpartID is whoever did not
// trigger the completion and must be told about it.
type RequestCompletedPayload struct {
	CounterpartID int64
	CompletedAt   time.Time
}

// DialogueOpenedPayload payload.
type DialogueOpenedPayload struct {
	InitiatorID   int64
	CounterpartID int64
	Description   string
}

// DialogueMessagePayload payload for a relayed free-text message.
type DialogueMessagePayload struct {
	RecipientID int64
	Text        string
	Excerpt     string
}

// DialogueClosedPayload payload.
type DialogueClosedPayload struct {
	CloserID       int64
	CounterpartID  int64
	NotifyTeardown bool
	AdminAnchorID  *int64
	AdminID        int64
	Description    string
}
