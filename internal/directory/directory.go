// Package directory manages host-owned guest rosters and the share links
// built from their invite ids.
//
// Every operation is scoped to the authenticated host. Events owned by
// someone else are reported as not found.
package directory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PratikDhanave/invite-rsvp-service/internal/admin"
	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/channel"
	"github.com/PratikDhanave/invite-rsvp-service/internal/identity"
	"github.com/PratikDhanave/invite-rsvp-service/internal/ledger"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/normalize"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
	"github.com/PratikDhanave/invite-rsvp-service/internal/token"
)

const maxAttendeesPerGuest = 50

// Messenger delivers a text to a phone number.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
}

type Deps struct {
	Store   store.Store
	Ledger  *ledger.Service
	Query   *admin.Query
	Tracker *channel.Tracker
	Codec   *token.Codec
	// Messenger may be nil when WhatsApp delivery is disabled.
	Messenger Messenger
	BaseURL   string
	// LinkTTL is the default lifetime of signed links; zero means none.
	LinkTTL time.Duration
	Logger  *zap.Logger
}

type Service struct {
	Deps
	now func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	d.BaseURL = strings.TrimRight(d.BaseURL, "/")
	return &Service{Deps: d, now: time.Now}
}

func (s *Service) ownedEvent(ctx context.Context, hostID, eventID string) (*models.Event, error) {
	ev, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if hostID == "" || ev.OwnerID != hostID {
		return nil, apperr.NotFound("event", eventID)
	}
	return ev, nil
}

func (s *Service) ownedGuest(ctx context.Context, hostID, eventID, guestID string) (*models.Event, *models.Guest, error) {
	ev, err := s.ownedEvent(ctx, hostID, eventID)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.Store.GetGuest(ctx, ev.ID, guestID)
	if err != nil {
		return nil, nil, err
	}
	return ev, g, nil
}

func identityOf(ev *models.Event, g *models.Guest) *identity.Resolved {
	return &identity.Resolved{
		Mode:        identity.ModePersonalized,
		Event:       ev,
		GuestID:     g.ID,
		DisplayName: g.DisplayName,
		MaxAllowed:  g.MaxAllowedAttendees,
		Source:      models.SourceAdmin,
	}
}

func validateGuest(name string, maxAllowed int) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("displayName is required")
	}
	if utf8.RuneCountInString(name) > ledger.MaxNameLength {
		return apperr.Validation("displayName must be at most %d characters", ledger.MaxNameLength)
	}
	if maxAllowed < 1 || maxAllowed > maxAttendeesPerGuest {
		return apperr.Validation("maxAllowedAttendees must be between 1 and %d", maxAttendeesPerGuest)
	}
	return nil
}

// ListGuests returns the roster joined with ledger rows and last channel
// events.
func (s *Service) ListGuests(ctx context.Context, hostID, eventID string) ([]models.GuestView, error) {
	ev, err := s.ownedEvent(ctx, hostID, eventID)
	if err != nil {
		return nil, err
	}
	guests, err := s.Store.ListGuests(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	listing, err := s.Query.List(ctx, admin.Filter{EventID: ev.ID})
	if err != nil {
		return nil, err
	}

	byGuest := make(map[string]admin.Entry, len(listing.Entries))
	for _, e := range listing.Entries {
		if e.GuestID != "" {
			byGuest[e.GuestID] = e
		}
	}

	out := make([]models.GuestView, 0, len(guests))
	for _, g := range guests {
		v := models.GuestView{Guest: g}
		if e, ok := byGuest[g.ID]; ok {
			r := e.RSVP
			v.RSVP = &r
			v.LastChannelEvent = e.LastChannelEvent
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateGuest adds a roster entry with a fresh invite id and opens its
// pending ledger row.
func (s *Service) CreateGuest(ctx context.Context, hostID, eventID string, req models.GuestRequest) (*models.GuestView, error) {
	ev, err := s.ownedEvent(ctx, hostID, eventID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if err := validateGuest(name, req.MaxAllowedAttendees); err != nil {
		return nil, err
	}

	g := &models.Guest{
		ID:                  uuid.NewString(),
		EventID:             ev.ID,
		DisplayName:         name,
		MaxAllowedAttendees: req.MaxAllowedAttendees,
		InviteID:            uuid.NewString(),
		Phone:               strings.TrimSpace(req.Phone),
	}
	if err := s.Store.CreateGuest(ctx, g); err != nil {
		return nil, err
	}

	entry, err := s.Ledger.Open(ctx, identityOf(ev, g))
	if err != nil {
		return nil, err
	}
	s.Logger.Info("guest created",
		zap.String("host_id", hostID),
		zap.String("event_id", ev.ID),
		zap.String("guest_id", g.ID),
	)
	return &models.GuestView{Guest: *g, RSVP: entry}, nil
}

// UpdateGuest applies patch. The cap cannot drop below the guest's
// current confirmed headcount. A rename is carried to the ledger row.
func (s *Service) UpdateGuest(ctx context.Context, hostID, eventID, guestID string, patch models.GuestPatch) (*models.Guest, error) {
	ev, g, err := s.ownedGuest(ctx, hostID, eventID, guestID)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		g.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.MaxAllowedAttendees != nil {
		g.MaxAllowedAttendees = *patch.MaxAllowedAttendees
	}
	if patch.Phone != nil {
		g.Phone = strings.TrimSpace(*patch.Phone)
	}
	if err := validateGuest(g.DisplayName, g.MaxAllowedAttendees); err != nil {
		return nil, err
	}

	cur, err := s.Store.GetRSVPByStoreKey(ctx, ledger.StoreKey(ev.ID, g.ID, ""))
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
		cur = nil
	}
	if cur != nil && patch.MaxAllowedAttendees != nil &&
		cur.Status == models.StatusConfirmed && cur.AttendeeCount > g.MaxAllowedAttendees {
		return nil, apperr.Validation("maxAllowedAttendees cannot be below the %d attendees already confirmed", cur.AttendeeCount)
	}

	if err := s.Store.UpdateGuest(ctx, g); err != nil {
		return nil, err
	}
	if cur != nil && cur.DisplayName != g.DisplayName {
		if err := s.Store.RenameRSVP(ctx, cur.ID, g.DisplayName, normalize.MatchName(g.DisplayName)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// DeleteGuest removes the roster entry and its ledger row. Audit history
// is kept.
func (s *Service) DeleteGuest(ctx context.Context, hostID, eventID, guestID string) error {
	ev, err := s.ownedEvent(ctx, hostID, eventID)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteGuest(ctx, ev.ID, guestID); err != nil {
		return err
	}
	s.Logger.Info("guest deleted",
		zap.String("host_id", hostID),
		zap.String("event_id", ev.ID),
		zap.String("guest_id", guestID),
	)
	return nil
}

// SetResponse records a host edit of a guest's response. Omitted message
// and notes keep what the guest entered.
func (s *Service) SetResponse(ctx context.Context, hostID, eventID, guestID string, e ledger.Edit) (*ledger.Result, error) {
	ev, g, err := s.ownedGuest(ctx, hostID, eventID, guestID)
	if err != nil {
		return nil, err
	}
	return s.Ledger.Override(ctx, identityOf(ev, g), e)
}

// ShareLink returns the guest's invite URL and records that the share
// call-to-action was rendered.
func (s *Service) ShareLink(ctx context.Context, hostID, eventID, guestID string) (*models.ShareLink, error) {
	ev, g, err := s.ownedGuest(ctx, hostID, eventID, guestID)
	if err != nil {
		return nil, err
	}
	if g.InviteID == "" {
		return nil, apperr.Validation("guest %q has no invite link", g.ID)
	}

	link := s.share(ev, g, s.BaseURL+"/i/"+g.InviteID)
	if err := s.track(ctx, ev, g, models.ActionCTARendered); err != nil {
		return nil, err
	}
	return link, nil
}

// SendWhatsApp delivers the invite link to the guest's phone.
func (s *Service) SendWhatsApp(ctx context.Context, hostID, eventID, guestID string) (*models.ShareLink, error) {
	ev, g, err := s.ownedGuest(ctx, hostID, eventID, guestID)
	if err != nil {
		return nil, err
	}
	if s.Messenger == nil {
		return nil, apperr.Validation("whatsapp delivery is not configured")
	}
	if g.Phone == "" {
		return nil, apperr.Validation("guest %q has no phone number", g.ID)
	}
	if g.InviteID == "" {
		return nil, apperr.Validation("guest %q has no invite link", g.ID)
	}

	link := s.share(ev, g, s.BaseURL+"/i/"+g.InviteID)
	if err := s.Messenger.SendText(ctx, g.Phone, link.Message); err != nil {
		s.Logger.Warn("whatsapp delivery failed",
			zap.String("event_id", ev.ID),
			zap.String("guest_id", g.ID),
			zap.Error(err),
		)
		return nil, apperr.Validation("whatsapp delivery failed: %v", err)
	}
	if err := s.track(ctx, ev, g, models.ActionSharedWhatsApp); err != nil {
		return nil, err
	}
	return link, nil
}

// IssueLink mints a signed personalized link for a roster guest. ttl
// overrides the default lifetime when positive.
func (s *Service) IssueLink(ctx context.Context, eventID, guestID string, ttl time.Duration) (*models.ShareLink, error) {
	ev, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	g, err := s.Store.GetGuest(ctx, ev.ID, guestID)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = s.LinkTTL
	}

	now := s.now()
	tok, err := s.Codec.IssueFor(ev.ID, g.ID, ttl, now)
	if err != nil {
		return nil, err
	}

	link := s.share(ev, g, fmt.Sprintf("%s/e/%s/rsvp?token=%s", s.BaseURL, ev.ID, tok))
	if ttl > 0 {
		exp := now.Add(ttl).UTC().Truncate(time.Second)
		link.ExpiresAt = &exp
	}
	if err := s.track(ctx, ev, g, models.ActionCTARendered); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) share(ev *models.Event, g *models.Guest, url string) *models.ShareLink {
	title := ev.Title
	if title == "" {
		title = ev.ID
	}
	msg := fmt.Sprintf("Hi %s! You're invited to %s. Please let us know if you can make it: %s", g.DisplayName, title, url)
	return &models.ShareLink{
		URL:         url,
		WhatsAppURL: channel.WhatsAppShareURL(msg),
		Message:     msg,
	}
}

// track records a channel event on the guest's ledger row, opening the row
// first if the guest has none yet.
func (s *Service) track(ctx context.Context, ev *models.Event, g *models.Guest, action models.ChannelAction) error {
	entry, err := s.Ledger.Open(ctx, identityOf(ev, g))
	if err != nil {
		return err
	}
	_, err = s.Tracker.Record(ctx, entry.ID, models.ChannelWhatsApp, action)
	return err
}

// ExportCSV exports the host's event ledger.
func (s *Service) ExportCSV(ctx context.Context, hostID, eventID string) ([]byte, error) {
	ev, err := s.ownedEvent(ctx, hostID, eventID)
	if err != nil {
		return nil, err
	}
	return s.Query.ExportCSV(ctx, ev.ID)
}
