package domain

import "time"

// RequestStatus enumerates lifecycle states for support requests.
type RequestStatus string

const (
	StatusSubmitted  RequestStatus = "SUBMITTED"
	StatusAssigned   RequestStatus = "ASSIGNED"
	StatusClarifying RequestStatus = "CLARIFYING"
	StatusDone       RequestStatus = "DONE"
)

// Category routes a request to the matching admin roster.
type Category string

const (
	CategoryIT  Category = "IT"
	CategoryAHO Category = "AHO"
)

// UrgencyKind says whether the requester needs help now or at a set time.
type UrgencyKind string

const (
	UrgencyImmediate UrgencyKind = "IMMEDIATE"
	UrgencyScheduled UrgencyKind = "SCHEDULED"
)

// DoneRetention is how long completed requests remain visible in listings.
// They are never purged from storage.
const DoneRetention = 48 * time.Hour

// Request is the aggregate for one support ticket.
//
// AssignedAdminID is set exactly when the request has ever entered
// ASSIGNED, and never changes afterwards. AdminAnchorID is the message id
// of the last notification delivered to an admin, kept so it can later be
// edited in place; nil when no delivery succeeded.
type Request struct {
	ID              int64
	RequesterChatID int64
	Category        Category
	Description     string
	Urgency         UrgencyKind
	ScheduledAt     *time.Time
	Status          RequestStatus
	AssignedAdminID *int64
	AdminAnchorID   *int64
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusSubmitted:  {StatusAssigned},
	StatusAssigned:   {StatusClarifying, StatusDone},
	StatusClarifying: {StatusAssigned},
	StatusDone:       {},
}

// CanTransition reports whether status may move from current to next.
// Status only moves forward except the ASSIGNED ⇄ CLARIFYING cycle.
func CanTransition(current, next RequestStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// VisibleInListing reports whether the request should appear in listings
// at the given moment: anything not done, plus done requests completed
// within the retention window.
func (r *Request) VisibleInListing(now time.Time) bool {
	if r.Status != StatusDone {
		return true
	}
	if r.CompletedAt == nil {
		return true
	}
	return now.Sub(*r.CompletedAt) <= DoneRetention
}
