// Package ledger records attendance responses as one row per identity.
//
// Writes are upserts keyed by a deterministic store key, so resubmitting
// overwrites rather than duplicates. Each successful write is handed to the
// audit trail. Generic-mode entries whose names normalize alike are flagged
// as potential duplicates for the host to review.
package ledger

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/audit"
	"github.com/PratikDhanave/invite-rsvp-service/internal/identity"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/normalize"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
)

const (
	MaxNameLength = 120
	MaxTextLength = 1000
)

// Submission is a requested change to a ledger entry.
type Submission struct {
	Status        models.AttendanceStatus
	AttendeeCount int
	// GuestName identifies the guest in generic mode; ignored otherwise.
	GuestName    string
	GuestMessage string
	Notes        string
}

// Result is a successful write. AuditErr is set when the ledger write
// succeeded but its audit record could not be appended.
type Result struct {
	Entry    *models.RSVP
	Previous *models.RSVPSnapshot
	Created  bool
	AuditErr error
}

type Service struct {
	store  store.RSVPStore
	audit  audit.Recorder
	logger *zap.Logger
	now    func() time.Time
}

func NewService(s store.RSVPStore, rec audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, audit: rec, logger: logger, now: time.Now}
}

// StoreKey derives the idempotency key for an identity.
func StoreKey(eventID, guestID, name string) string {
	if guestID != "" {
		return eventID + "::guest::" + guestID
	}
	return eventID + "::generic::" + normalize.KeyName(name)
}

// EffectiveCount applies the status and cap rules in order and returns the
// count to persist. Pending always persists zero.
func EffectiveCount(status models.AttendanceStatus, requested, maxAllowed int) (int, error) {
	switch status {
	case models.StatusPending:
		return 0, nil
	case models.StatusDeclined:
		return 0, nil
	case models.StatusConfirmed:
		if requested < 1 {
			return 0, apperr.Validation("confirmed requires at least 1 attendee")
		}
		if requested > maxAllowed {
			return 0, apperr.CapExceeded(maxAllowed)
		}
		return requested, nil
	}
	return 0, apperr.Validation("invalid attendance status %q", status)
}

// Submit records a guest's response. Only confirmed and declined are
// accepted.
func (s *Service) Submit(ctx context.Context, id *identity.Resolved, sub Submission) (*Result, error) {
	if sub.Status != models.StatusConfirmed && sub.Status != models.StatusDeclined {
		return nil, apperr.Validation("attendance status must be confirmed or declined")
	}
	if id.Event.Status == models.EventArchived {
		return nil, apperr.Validation("responses are closed for this event")
	}
	return s.write(ctx, id, sub, id.Source, models.ActorGuest)
}

// Edit is a host or admin change to an entry. Nil text fields keep the
// stored guest message and notes.
type Edit struct {
	Status        models.AttendanceStatus
	AttendeeCount int
	GuestMessage  *string
	Notes         *string
}

// Override records a host or admin edit. Pending is allowed and clears the
// response time.
func (s *Service) Override(ctx context.Context, id *identity.Resolved, e Edit) (*Result, error) {
	if !e.Status.Valid() {
		return nil, apperr.Validation("invalid attendance status %q", e.Status)
	}

	sub := Submission{Status: e.Status, AttendeeCount: e.AttendeeCount, GuestName: id.DisplayName}
	if e.GuestMessage == nil || e.Notes == nil {
		cur, err := s.store.GetRSVPByStoreKey(ctx, StoreKey(id.Event.ID, id.GuestID, id.DisplayName))
		switch {
		case err == nil:
			sub.GuestMessage, sub.Notes = cur.GuestMessage, cur.Notes
		case apperr.KindOf(err) != apperr.KindNotFound:
			return nil, err
		}
	}
	if e.GuestMessage != nil {
		sub.GuestMessage = *e.GuestMessage
	}
	if e.Notes != nil {
		sub.Notes = *e.Notes
	}
	return s.write(ctx, id, sub, models.SourceAdmin, models.ActorAdmin)
}

func (s *Service) write(ctx context.Context, id *identity.Resolved, sub Submission, source models.Source, actor models.Actor) (*Result, error) {
	count, err := EffectiveCount(sub.Status, sub.AttendeeCount, id.MaxAllowed)
	if err != nil {
		return nil, err
	}

	name := id.DisplayName
	if !id.Personalized() {
		name = strings.TrimSpace(sub.GuestName)
		if normalize.KeyName(name) == "" {
			return nil, apperr.Validation("name is required")
		}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperr.Validation("name must be at most %d characters", MaxNameLength)
	}
	message := strings.TrimSpace(sub.GuestMessage)
	notes := strings.TrimSpace(sub.Notes)
	if utf8.RuneCountInString(message) > MaxTextLength || utf8.RuneCountInString(notes) > MaxTextLength {
		return nil, apperr.Validation("message and notes must be at most %d characters", MaxTextLength)
	}

	now := s.now().UTC()
	rec := &models.RSVP{
		ID:             uuid.NewString(),
		EventID:        id.Event.ID,
		StoreKey:       StoreKey(id.Event.ID, id.GuestID, name),
		GuestID:        id.GuestID,
		DisplayName:    name,
		NormalizedName: normalize.MatchName(name),
		Status:         sub.Status,
		AttendeeCount:  count,
		GuestMessage:   message,
		Notes:          notes,
		Source:         source,
		UpdatedAt:      now,
	}
	if sub.Status != models.StatusPending {
		rec.RespondedAt = &now
	}

	prev, created, err := s.store.UpsertRSVP(ctx, rec)
	if err != nil {
		return nil, err
	}

	if rec.IsGeneric() {
		if err := s.flagDuplicates(ctx, rec); err != nil {
			return nil, err
		}
	}

	res := &Result{Entry: rec, Previous: prev, Created: created}
	res.AuditErr = s.recordAudit(ctx, prev, rec, actor)
	return res, nil
}

// Open creates a pending entry for a roster guest unless one exists.
func (s *Service) Open(ctx context.Context, id *identity.Resolved) (*models.RSVP, error) {
	if !id.Personalized() {
		return nil, apperr.Validation("only roster guests can be opened")
	}
	now := s.now().UTC()
	rec := &models.RSVP{
		ID:             uuid.NewString(),
		EventID:        id.Event.ID,
		StoreKey:       StoreKey(id.Event.ID, id.GuestID, ""),
		GuestID:        id.GuestID,
		DisplayName:    id.DisplayName,
		NormalizedName: normalize.MatchName(id.DisplayName),
		Status:         models.StatusPending,
		Source:         models.SourceAdmin,
		UpdatedAt:      now,
	}
	created, err := s.store.InsertRSVPIfAbsent(ctx, rec)
	if err != nil {
		return nil, err
	}
	if created {
		_ = s.recordAudit(ctx, nil, rec, models.ActorSystem)
	}
	return rec, nil
}

// flagDuplicates marks rec and every other generic entry with the same
// match name. The scan is not atomic with the write, so concurrent
// submissions may leave the flag one request behind.
func (s *Service) flagDuplicates(ctx context.Context, rec *models.RSVP) error {
	matches, err := s.store.FindGenericMatches(ctx, rec.EventID, rec.NormalizedName, rec.ID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		rec.IsPotentialDuplicate = false
		return s.store.SetPotentialDuplicate(ctx, []string{rec.ID}, false)
	}
	rec.IsPotentialDuplicate = true
	return s.store.SetPotentialDuplicate(ctx, append(matches, rec.ID), true)
}

func (s *Service) recordAudit(ctx context.Context, prev *models.RSVPSnapshot, rec *models.RSVP, actor models.Actor) error {
	if s.audit == nil {
		return nil
	}
	if _, err := s.audit.Record(ctx, prev, rec, actor); err != nil {
		s.logger.Error("audit append failed",
			zap.String("rsvp_id", rec.ID),
			zap.String("event_id", rec.EventID),
			zap.String("actor", string(actor)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
