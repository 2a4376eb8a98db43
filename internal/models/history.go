package models

import "time"

// Actor identifies who caused a ledger transition.
type Actor string

const (
	ActorGuest  Actor = "guest"
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// AuditRecord is an immutable log line for one ledger transition.
// PreviousStatus is empty and PreviousCount nil when the entry was created.
type AuditRecord struct {
	ID             string           `json:"id"`
	RSVPID         string           `json:"rsvpId"`
	EventID        string           `json:"eventId"`
	PreviousStatus AttendanceStatus `json:"previousStatus,omitempty"`
	NewStatus      AttendanceStatus `json:"newStatus"`
	PreviousCount  *int             `json:"previousCount,omitempty"`
	NewCount       int              `json:"newCount"`
	ChangedBy      Actor            `json:"changedBy"`
	ChangedAt      time.Time        `json:"changedAt"`
}

type Channel string

const ChannelWhatsApp Channel = "whatsapp"

type ChannelAction string

const (
	ActionCTARendered    ChannelAction = "cta_rendered"
	ActionClicked        ChannelAction = "clicked"
	ActionSharedWhatsApp ChannelAction = "shared_whatsapp"
)

// ChannelEvent is an immutable share/click interaction on a ledger entry.
type ChannelEvent struct {
	ID         string        `json:"id"`
	RSVPID     string        `json:"rsvpId"`
	Channel    Channel       `json:"channel"`
	Action     ChannelAction `json:"action"`
	OccurredAt time.Time     `json:"occurredAt"`
}
