// Package channel logs share and click interactions on ledger entries.
package channel

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
)

const whatsAppBase = "https://wa.me/"

type Tracker struct {
	store store.ChannelStore
	now   func() time.Time
}

func NewTracker(s store.ChannelStore) *Tracker {
	return &Tracker{store: s, now: time.Now}
}

// Validate rejects unknown channel/action pairs.
func Validate(ch models.Channel, action models.ChannelAction) error {
	if ch != models.ChannelWhatsApp {
		return apperr.Validation("unknown channel %q", ch)
	}
	switch action {
	case models.ActionCTARendered, models.ActionClicked, models.ActionSharedWhatsApp:
		return nil
	}
	return apperr.Validation("unknown channel action %q", action)
}

// ValidateGuest is Validate restricted to the actions a guest page may
// report. shared_whatsapp is only recorded after a delivery succeeds.
func ValidateGuest(ch models.Channel, action models.ChannelAction) error {
	if err := Validate(ch, action); err != nil {
		return err
	}
	if action == models.ActionSharedWhatsApp {
		return apperr.Validation("channel action %q cannot be reported by guests", action)
	}
	return nil
}

// Record appends an event. It fails with NotFound when rsvpID does not
// reference an existing ledger entry.
func (t *Tracker) Record(ctx context.Context, rsvpID string, ch models.Channel, action models.ChannelAction) (*models.ChannelEvent, error) {
	if err := Validate(ch, action); err != nil {
		return nil, err
	}
	if rsvpID == "" {
		return nil, apperr.NotFound("rsvp", rsvpID)
	}
	ev := &models.ChannelEvent{
		ID:         uuid.NewString(),
		RSVPID:     rsvpID,
		Channel:    ch,
		Action:     action,
		OccurredAt: t.now().UTC(),
	}
	if err := t.store.AppendChannelEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// LastEventFor returns the latest event of one entry, or nil.
func (t *Tracker) LastEventFor(ctx context.Context, rsvpID string) (*models.ChannelEvent, error) {
	last, err := t.store.LastChannelEvents(ctx, []string{rsvpID})
	if err != nil {
		return nil, err
	}
	ev, ok := last[rsvpID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

// LastEventsFor returns the latest event per entry. Entries without
// events are absent.
func (t *Tracker) LastEventsFor(ctx context.Context, rsvpIDs []string) (map[string]models.ChannelEvent, error) {
	if len(rsvpIDs) == 0 {
		return map[string]models.ChannelEvent{}, nil
	}
	return t.store.LastChannelEvents(ctx, rsvpIDs)
}

// WhatsAppShareURL builds a wa.me link that opens a chat picker with text.
func WhatsAppShareURL(text string) string {
	return whatsAppBase + "?text=" + url.QueryEscape(text)
}
