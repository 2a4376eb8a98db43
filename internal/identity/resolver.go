// Package identity turns an event id plus an optional credential into the
// identity and attendee cap a response is recorded under.
//
// Two front ends share one contract: TokenResolver verifies signed
// capability tokens against config-declared rosters, InviteResolver looks
// up host-owned roster rows by their stable invite id.
package identity

import (
	"context"
	"time"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
	"github.com/PratikDhanave/invite-rsvp-service/internal/token"
)

type Mode string

const (
	ModePersonalized Mode = "personalized"
	ModeGeneric      Mode = "generic"
)

// Reasons reported when a presented credential does not yield a
// personalized identity.
const (
	ReasonInvalidToken  = "invitation link is invalid or has expired"
	ReasonOtherEvent    = "invitation link belongs to a different event"
	ReasonGuestNotFound = "guest is no longer on the invitation list"
)

// Resolved is the outcome of identity resolution.
type Resolved struct {
	Mode  Mode
	Event *models.Event

	// Personalized mode only.
	GuestID     string
	DisplayName string

	// MaxAllowed is the guest's cap, or the event default in generic mode.
	MaxAllowed int

	TokenPresented bool
	TokenValid     bool
	// Reason explains a degrade to generic mode; empty otherwise.
	Reason string
	Source models.Source
}

func (r *Resolved) Personalized() bool { return r.Mode == ModePersonalized }

// Resolver is implemented by both identity front ends.
type Resolver interface {
	Resolve(ctx context.Context, eventID, credential string) (*Resolved, error)
}

type eventGuestStore interface {
	store.EventStore
	store.GuestStore
}

// guestEvent loads an event a guest may respond to. Drafts are hidden.
func guestEvent(ctx context.Context, events store.EventStore, eventID string) (*models.Event, error) {
	ev, err := events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == models.EventDraft {
		return nil, apperr.NotFound("event", eventID)
	}
	return ev, nil
}

func generic(ev *models.Event) *Resolved {
	return &Resolved{
		Mode:       ModeGeneric,
		Event:      ev,
		MaxAllowed: ev.GenericCap(),
		Source:     models.SourceGenericLink,
	}
}

// TokenResolver resolves signed capability tokens. Token problems never
// produce an error; they degrade to generic mode with a reason.
type TokenResolver struct {
	codec *token.Codec
	store eventGuestStore
	now   func() time.Time
}

func NewTokenResolver(codec *token.Codec, s eventGuestStore) *TokenResolver {
	return &TokenResolver{codec: codec, store: s, now: time.Now}
}

func (r *TokenResolver) Resolve(ctx context.Context, eventID, tok string) (*Resolved, error) {
	ev, err := guestEvent(ctx, r.store, eventID)
	if err != nil {
		return nil, err
	}

	res := generic(ev)
	if tok == "" {
		return res, nil
	}
	res.TokenPresented = true

	payload, ok := r.codec.VerifyAt(tok, r.now())
	if !ok {
		res.Reason = ReasonInvalidToken
		return res, nil
	}
	if payload.EventID != ev.ID {
		res.Reason = ReasonOtherEvent
		return res, nil
	}

	guest, err := r.store.GetGuest(ctx, ev.ID, payload.GuestID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		res.Reason = ReasonGuestNotFound
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	res.Mode = ModePersonalized
	res.TokenValid = true
	res.GuestID = guest.ID
	res.DisplayName = guest.DisplayName
	res.MaxAllowed = guest.MaxAllowedAttendees
	res.Source = models.SourcePersonalizedLink
	return res, nil
}

// InviteResolver resolves host-owned roster rows by invite id. An unknown
// invite is NotFound: there is no generic fallback without an event.
type InviteResolver struct {
	store eventGuestStore
}

func NewInviteResolver(s eventGuestStore) *InviteResolver {
	return &InviteResolver{store: s}
}

// Resolve looks up inviteID. When eventID is non-empty it must match the
// invite's event.
func (r *InviteResolver) Resolve(ctx context.Context, eventID, inviteID string) (*Resolved, error) {
	if inviteID == "" {
		return nil, apperr.NotFound("invitation", inviteID)
	}
	guest, err := r.store.GetGuestByInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if eventID != "" && guest.EventID != eventID {
		return nil, apperr.NotFound("invitation", inviteID)
	}

	ev, err := guestEvent(ctx, r.store, guest.EventID)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Mode:           ModePersonalized,
		Event:          ev,
		GuestID:        guest.ID,
		DisplayName:    guest.DisplayName,
		MaxAllowed:     guest.MaxAllowedAttendees,
		TokenPresented: true,
		TokenValid:     true,
		Source:         models.SourcePersonalizedLink,
	}, nil
}

var (
	_ Resolver = (*TokenResolver)(nil)
	_ Resolver = (*InviteResolver)(nil)
)
