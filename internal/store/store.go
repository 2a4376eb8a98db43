// Package store persists events, rosters, the RSVP ledger and its
// append-only history.
//
// PostgresStore is the production implementation. MemoryStore exists for
// tests and local development and is only reached through explicit wiring.
package store

import (
	"context"
	"time"

	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

// EventStore reads events. Events are managed by host tooling.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// GuestStore manages roster entries.
type GuestStore interface {
	GetGuest(ctx context.Context, eventID, guestID string) (*models.Guest, error)
	GetGuestByInvite(ctx context.Context, inviteID string) (*models.Guest, error)
	ListGuests(ctx context.Context, eventID string) ([]models.Guest, error)
	CreateGuest(ctx context.Context, g *models.Guest) error
	UpdateGuest(ctx context.Context, g *models.Guest) error
	// DeleteGuest removes the roster row and its ledger entry together.
	DeleteGuest(ctx context.Context, eventID, guestID string) error
}

// RSVPStore is the ledger. UpsertRSVP must be atomic per store key.
type RSVPStore interface {
	// UpsertRSVP inserts rec or overwrites the mutable fields of the row
	// with the same StoreKey. On return rec holds the persisted ID,
	// CreatedAt and ViewedAt. prev is nil when the row was created.
	UpsertRSVP(ctx context.Context, rec *models.RSVP) (prev *models.RSVPSnapshot, created bool, err error)
	// InsertRSVPIfAbsent inserts rec unless its StoreKey exists, in which
	// case rec is replaced by the stored row.
	InsertRSVPIfAbsent(ctx context.Context, rec *models.RSVP) (created bool, err error)
	GetRSVP(ctx context.Context, id string) (*models.RSVP, error)
	GetRSVPByStoreKey(ctx context.Context, storeKey string) (*models.RSVP, error)
	// FindGenericMatches returns ids of generic entries of the event with
	// the given normalized name, excluding excludeID.
	FindGenericMatches(ctx context.Context, eventID, normalizedName, excludeID string) ([]string, error)
	SetPotentialDuplicate(ctx context.Context, ids []string, flag bool) error
	// MarkViewed sets viewed_at once.
	MarkViewed(ctx context.Context, id string, at time.Time) error
	// RenameRSVP updates the display and match names of an entry. Missing
	// entries are ignored.
	RenameRSVP(ctx context.Context, id, displayName, normalizedName string) error
	ListRSVPs(ctx context.Context, f models.RSVPFilter) ([]models.RSVP, error)
}

type AuditStore interface {
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	ListAudit(ctx context.Context, rsvpID string) ([]models.AuditRecord, error)
}

type ChannelStore interface {
	// AppendChannelEvent fails with NotFound when the ledger entry is missing.
	AppendChannelEvent(ctx context.Context, ev *models.ChannelEvent) error
	// LastChannelEvents returns the latest event per ledger entry id.
	// Ids without events are absent from the map.
	LastChannelEvents(ctx context.Context, rsvpIDs []string) (map[string]models.ChannelEvent, error)
}

// Store is everything the service wires.
type Store interface {
	EventStore
	GuestStore
	RSVPStore
	AuditStore
	ChannelStore

	// SeedEvents upserts events and their config-declared rosters.
	SeedEvents(ctx context.Context, events []models.Event, guests []models.Guest) error
	Ping(ctx context.Context) error
	Close()
}
