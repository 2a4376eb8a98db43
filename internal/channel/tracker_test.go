package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.SeedEvents(ctx, []models.Event{{ID: "evt-1"}}, nil))
	_, _, err := s.UpsertRSVP(ctx, &models.RSVP{
		ID: "r-1", EventID: "evt-1", StoreKey: "evt-1::generic::ana",
		DisplayName: "Ana", NormalizedName: "ana", Status: models.StatusConfirmed, AttendeeCount: 1,
		Source: models.SourceGenericLink, UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return NewTracker(s)
}

func TestTracker_RecordAndLast(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	tr.now = func() time.Time { return clock }

	_, err := tr.Record(ctx, "r-1", models.ChannelWhatsApp, models.ActionCTARendered)
	require.NoError(t, err)
	clock = t0.Add(time.Minute)
	_, err = tr.Record(ctx, "r-1", models.ChannelWhatsApp, models.ActionSharedWhatsApp)
	require.NoError(t, err)

	last, err := tr.LastEventFor(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, models.ActionSharedWhatsApp, last.Action)
	assert.Equal(t, clock, last.OccurredAt)

	none, err := tr.LastEventFor(ctx, "r-2")
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := tr.LastEventsFor(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTracker_RecordRejects(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	_, err := tr.Record(ctx, "missing", models.ChannelWhatsApp, models.ActionClicked)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = tr.Record(ctx, "r-1", "sms", models.ActionClicked)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = tr.Record(ctx, "r-1", models.ChannelWhatsApp, "liked")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestValidateGuest(t *testing.T) {
	assert.NoError(t, ValidateGuest(models.ChannelWhatsApp, models.ActionCTARendered))
	assert.NoError(t, ValidateGuest(models.ChannelWhatsApp, models.ActionClicked))
	assert.ErrorIs(t, ValidateGuest(models.ChannelWhatsApp, models.ActionSharedWhatsApp), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateGuest("sms", models.ActionClicked), apperr.ErrValidation)
}

func TestWhatsAppShareURL(t *testing.T) {
	got := WhatsAppShareURL("Hola Ana & Luis: https://x.test/i/abc?x=1")
	assert.Equal(t, "https://wa.me/?text=Hola+Ana+%26+Luis%3A+https%3A%2F%2Fx.test%2Fi%2Fabc%3Fx%3D1", got)
}
