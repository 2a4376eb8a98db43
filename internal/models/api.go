package models

import "time"

// RSVPRequest is the guest submission payload.
// guestName is only read in generic mode.
type RSVPRequest struct {
	AttendanceStatus AttendanceStatus `json:"attendanceStatus"`
	AttendeeCount    int              `json:"attendeeCount"`
	GuestName        string           `json:"guestName,omitempty"`
	GuestMessage     string           `json:"guestMessage,omitempty"`
	Notes            string           `json:"notes,omitempty"`
}

// RSVPResponse is returned by every successful submission.
type RSVPResponse struct {
	RSVPID           string           `json:"rsvpId"`
	AttendanceStatus AttendanceStatus `json:"attendanceStatus"`
	AttendeeCount    int              `json:"attendeeCount"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	ContextMode      string           `json:"contextMode"`
}

// RSVPContext describes what a guest page should render.
type RSVPContext struct {
	EventID             string `json:"eventId"`
	EventTitle          string `json:"eventTitle"`
	EventType           string `json:"eventType,omitempty"`
	ContextMode         string `json:"contextMode"`
	DisplayName         string `json:"displayName,omitempty"`
	MaxAllowedAttendees int    `json:"maxAllowedAttendees"`
	TokenPresented      bool   `json:"tokenPresented"`
	TokenValid          bool   `json:"tokenValid"`
	// Reason explains why a presented link fell back to generic mode.
	Reason  string `json:"reason,omitempty"`
	Current *RSVP  `json:"current,omitempty"`
}

// ResponseOverride is a host edit of a guest's response. Nil text fields
// keep the stored values.
type ResponseOverride struct {
	AttendanceStatus AttendanceStatus `json:"attendanceStatus"`
	AttendeeCount    int              `json:"attendeeCount"`
	GuestMessage     *string          `json:"guestMessage,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

type ChannelEventRequest struct {
	Channel Channel       `json:"channel"`
	Action  ChannelAction `json:"action"`
}

// GuestRequest creates a host-owned roster entry.
type GuestRequest struct {
	DisplayName         string `json:"displayName"`
	MaxAllowedAttendees int    `json:"maxAllowedAttendees"`
	Phone               string `json:"phone,omitempty"`
}

// GuestPatch edits a roster entry. Nil fields are left unchanged.
type GuestPatch struct {
	DisplayName         *string `json:"displayName,omitempty"`
	MaxAllowedAttendees *int    `json:"maxAllowedAttendees,omitempty"`
	Phone               *string `json:"phone,omitempty"`
}

// LinkRequest asks for a signed link. Zero TTL uses the configured default.
type LinkRequest struct {
	TTLSeconds int64 `json:"ttlSeconds,omitempty"`
}

// ShareLink is a guest URL plus its WhatsApp hand-off.
type ShareLink struct {
	URL         string     `json:"url"`
	WhatsAppURL string     `json:"whatsappUrl"`
	Message     string     `json:"message"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// GuestView is a roster entry joined with its ledger row.
type GuestView struct {
	Guest
	RSVP             *RSVP         `json:"rsvp,omitempty"`
	LastChannelEvent *ChannelEvent `json:"lastChannelEvent,omitempty"`
}
