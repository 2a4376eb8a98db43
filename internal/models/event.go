package models

import "time"

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventArchived  EventStatus = "archived"
)

// Event identifies the celebration. It is read-only to the ledger.
type Event struct {
	ID                  string      `json:"id"`
	OwnerID             string      `json:"ownerId"`
	Type                string      `json:"type"`
	Title               string      `json:"title"`
	DefaultMaxAttendees int         `json:"defaultMaxAttendees"`
	Status              EventStatus `json:"status"`
	CreatedAt           time.Time   `json:"createdAt"`
}

// GenericCap is the attendee cap for guests without a personalized link.
func (e *Event) GenericCap() int {
	if e.DefaultMaxAttendees < 1 {
		return 1
	}
	return e.DefaultMaxAttendees
}

// Guest is a roster entry. Config-declared entries have no InviteID;
// host-created entries carry a stable InviteID used for share links.
type Guest struct {
	ID                  string    `json:"id"`
	EventID             string    `json:"eventId"`
	DisplayName         string    `json:"displayName"`
	MaxAllowedAttendees int       `json:"maxAllowedAttendees"`
	InviteID            string    `json:"inviteId,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
