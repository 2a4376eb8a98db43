// Package audit appends one immutable record per ledger transition.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
)

// Recorder is what the ledger needs from the trail.
type Recorder interface {
	Record(ctx context.Context, prev *models.RSVPSnapshot, cur *models.RSVP, actor models.Actor) (*models.AuditRecord, error)
}

type Trail struct {
	store store.AuditStore
}

func NewTrail(s store.AuditStore) *Trail {
	return &Trail{store: s}
}

// Record appends the transition prev -> cur. prev is nil for a new entry.
// The record is stamped with cur.UpdatedAt so history lines up with the
// ledger row.
func (t *Trail) Record(ctx context.Context, prev *models.RSVPSnapshot, cur *models.RSVP, actor models.Actor) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{
		ID:        uuid.NewString(),
		RSVPID:    cur.ID,
		EventID:   cur.EventID,
		NewStatus: cur.Status,
		NewCount:  cur.AttendeeCount,
		ChangedBy: actor,
		ChangedAt: cur.UpdatedAt,
	}
	if prev != nil {
		count := prev.AttendeeCount
		rec.PreviousStatus = prev.Status
		rec.PreviousCount = &count
	}
	if err := t.store.AppendAudit(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// History lists the transitions of one entry, oldest first.
func (t *Trail) History(ctx context.Context, rsvpID string) ([]models.AuditRecord, error) {
	return t.store.ListAudit(ctx, rsvpID)
}

var _ Recorder = (*Trail)(nil)
