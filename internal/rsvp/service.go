// Package rsvp is the guest-facing use case: rate gate, identity
// resolution, ledger write, and channel interactions on the guest's own
// entry.
package rsvp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/channel"
	"github.com/PratikDhanave/invite-rsvp-service/internal/identity"
	"github.com/PratikDhanave/invite-rsvp-service/internal/ledger"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/ratelimit"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
)

// Request is one guest submission.
type Request struct {
	EventID string
	// Credential is a signed token or an invite id, depending on the
	// resolver the service was built with.
	Credential string
	// ClientKey identifies the caller for rate limiting.
	ClientKey string
	models.RSVPRequest
}

// TrackRequest is a channel interaction reported by a guest page. The
// entry it lands on is derived from the credential.
type TrackRequest struct {
	EventID    string
	Credential string
	ClientKey  string
	models.ChannelEventRequest
}

type Service struct {
	resolver identity.Resolver
	ledger   *ledger.Service
	tracker  *channel.Tracker
	gate     ratelimit.Gate
	store    store.RSVPStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(resolver identity.Resolver, l *ledger.Service, tracker *channel.Tracker, gate ratelimit.Gate, s store.RSVPStore, logger *zap.Logger) *Service {
	if gate == nil {
		gate = ratelimit.Unlimited{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{resolver: resolver, ledger: l, tracker: tracker, gate: gate, store: s, logger: logger, now: time.Now}
}

// Context resolves what the guest page shows. For a personalized identity
// with an existing entry, the entry is returned and marked viewed.
func (s *Service) Context(ctx context.Context, eventID, credential string) (*models.RSVPContext, error) {
	id, err := s.resolver.Resolve(ctx, eventID, credential)
	if err != nil {
		return nil, err
	}

	out := &models.RSVPContext{
		EventID:             id.Event.ID,
		EventTitle:          id.Event.Title,
		EventType:           id.Event.Type,
		ContextMode:         string(id.Mode),
		DisplayName:         id.DisplayName,
		MaxAllowedAttendees: id.MaxAllowed,
		TokenPresented:      id.TokenPresented,
		TokenValid:          id.TokenValid,
		Reason:              id.Reason,
	}
	if !id.Personalized() {
		return out, nil
	}

	cur, err := s.store.GetRSVPByStoreKey(ctx, ledger.StoreKey(id.Event.ID, id.GuestID, ""))
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		return out, nil
	case err != nil:
		return nil, err
	}
	if cur.ViewedAt == nil {
		at := s.now().UTC()
		if err := s.store.MarkViewed(ctx, cur.ID, at); err != nil {
			s.logger.Warn("mark viewed failed", zap.String("rsvp_id", cur.ID), zap.Error(err))
		} else {
			cur.ViewedAt = &at
		}
	}
	out.Current = cur
	return out, nil
}

// Respond checks the rate gate before anything else, then resolves and
// writes. A limited caller never reaches the store.
func (s *Service) Respond(ctx context.Context, req Request) (*models.RSVPResponse, error) {
	allowed, err := s.gate.Allow(ctx, req.ClientKey)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.RateLimited()
	}

	id, err := s.resolver.Resolve(ctx, req.EventID, req.Credential)
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.Submit(ctx, id, ledger.Submission{
		Status:        req.AttendanceStatus,
		AttendeeCount: req.AttendeeCount,
		GuestName:     req.GuestName,
		GuestMessage:  req.GuestMessage,
		Notes:         req.Notes,
	})
	if err != nil {
		return nil, err
	}

	return &models.RSVPResponse{
		RSVPID:           res.Entry.ID,
		AttendanceStatus: res.Entry.Status,
		AttendeeCount:    res.Entry.AttendeeCount,
		UpdatedAt:        res.Entry.UpdatedAt,
		ContextMode:      string(id.Mode),
	}, nil
}

// Track records a channel interaction on the caller's own entry. It is
// gated like Respond. Only personalized identities with an existing entry
// may record, and never shared_whatsapp.
func (s *Service) Track(ctx context.Context, req TrackRequest) (*models.ChannelEvent, error) {
	allowed, err := s.gate.Allow(ctx, req.ClientKey)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.RateLimited()
	}
	if err := channel.ValidateGuest(req.Channel, req.Action); err != nil {
		return nil, err
	}

	id, err := s.resolver.Resolve(ctx, req.EventID, req.Credential)
	if err != nil {
		return nil, err
	}
	if !id.Personalized() {
		return nil, apperr.Validation("channel events require a personal invitation link")
	}

	cur, err := s.store.GetRSVPByStoreKey(ctx, ledger.StoreKey(id.Event.ID, id.GuestID, ""))
	if err != nil {
		return nil, err
	}
	return s.tracker.Record(ctx, cur.ID, req.Channel, req.Action)
}
