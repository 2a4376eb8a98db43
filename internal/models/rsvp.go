package models

import "time"

// AttendanceStatus is the response state of a ledger entry.
type AttendanceStatus string

const (
	StatusPending   AttendanceStatus = "pending"
	StatusConfirmed AttendanceStatus = "confirmed"
	StatusDeclined  AttendanceStatus = "declined"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDeclined:
		return true
	}
	return false
}

// Source records which front end produced the latest write.
type Source string

const (
	SourcePersonalizedLink Source = "personalized_link"
	SourceGenericLink      Source = "generic_link"
	SourceAdmin            Source = "admin"
)

// RSVP is a ledger entry. StoreKey is unique; GuestID is empty for
// generic-mode entries.
type RSVP struct {
	ID                   string           `json:"id"`
	EventID              string           `json:"eventId"`
	StoreKey             string           `json:"storeKey"`
	GuestID              string           `json:"guestId,omitempty"`
	DisplayName          string           `json:"displayName"`
	NormalizedName       string           `json:"normalizedName"`
	Status               AttendanceStatus `json:"attendanceStatus"`
	AttendeeCount        int              `json:"attendeeCount"`
	GuestMessage         string           `json:"guestMessage,omitempty"`
	Notes                string           `json:"notes,omitempty"`
	Source               Source           `json:"source"`
	IsPotentialDuplicate bool             `json:"isPotentialDuplicate"`
	ViewedAt             *time.Time       `json:"viewedAt,omitempty"`
	RespondedAt          *time.Time       `json:"respondedAt,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// IsGeneric reports whether the entry was keyed by name rather than guest id.
func (r *RSVP) IsGeneric() bool { return r.GuestID == "" }

// RSVPSnapshot is the state of an entry before a write.
type RSVPSnapshot struct {
	Status        AttendanceStatus
	AttendeeCount int
}

// RSVPFilter selects ledger entries for one event.
type RSVPFilter struct {
	EventID string
	// Status is empty for all statuses.
	Status AttendanceStatus
	// Search is matched as a substring of NormalizedName.
	Search string
}
