//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

// openPostgres connects to TEST_DATABASE_URL and seeds a fresh event.
func openPostgres(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	require.NoError(t, p.EnsureSchema(ctx))

	eventID := fmt.Sprintf("evt-%d", time.Now().UnixNano())
	require.NoError(t, p.SeedEvents(ctx,
		[]models.Event{{ID: eventID, OwnerID: "host-1", Title: "Boda", DefaultMaxAttendees: 2, Status: models.EventPublished}},
		[]models.Guest{{ID: "g-1", EventID: eventID, DisplayName: "Familia Ruiz", MaxAllowedAttendees: 4}},
	))
	return p, eventID
}

func pgEntry(eventID, key, name string, at time.Time) *models.RSVP {
	return &models.RSVP{
		ID:             uuid.NewString(),
		EventID:        eventID,
		StoreKey:       key,
		DisplayName:    name,
		NormalizedName: name,
		Status:         models.StatusConfirmed,
		AttendeeCount:  2,
		Source:         models.SourceGenericLink,
		UpdatedAt:      at,
	}
}

func TestPostgres_UpsertReturnsPreviousState(t *testing.T) {
	ctx := context.Background()
	p, eventID := openPostgres(t)
	t0 := time.Now().UTC().Truncate(time.Microsecond)
	key := eventID + "::generic::ana ruiz"

	first := pgEntry(eventID, key, "ana ruiz", t0)
	prev, created, err := p.UpsertRSVP(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, prev)

	second := pgEntry(eventID, key, "ana ruiz", t0.Add(time.Minute))
	second.Status, second.AttendeeCount = models.StatusDeclined, 0
	prev, created, err = p.UpsertRSVP(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, prev)
	assert.Equal(t, models.StatusConfirmed, prev.Status)
	assert.Equal(t, first.ID, second.ID)

	got, err := p.GetRSVPByStoreKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, got.Status)
	assert.Equal(t, 0, got.AttendeeCount)

	require.NoError(t, p.RenameRSVP(ctx, got.ID, "Ana Martínez", "ana martinez"))
	got, err = p.GetRSVPByStoreKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Ana Martínez", got.DisplayName)
	assert.Equal(t, "ana martinez", got.NormalizedName)
}

func TestPostgres_DuplicatesAndListing(t *testing.T) {
	ctx := context.Background()
	p, eventID := openPostgres(t)
	now := time.Now().UTC()

	a := pgEntry(eventID, eventID+"::generic::josé pérez", "jose perez", now)
	b := pgEntry(eventID, eventID+"::generic::jose perez", "jose perez", now.Add(time.Second))
	for _, r := range []*models.RSVP{a, b} {
		_, _, err := p.UpsertRSVP(ctx, r)
		require.NoError(t, err)
	}

	matches, err := p.FindGenericMatches(ctx, eventID, "jose perez", b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, matches)

	require.NoError(t, p.SetPotentialDuplicate(ctx, []string{a.ID, b.ID}, true))

	rows, err := p.ListRSVPs(ctx, models.RSVPFilter{EventID: eventID, Search: "perez"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, b.ID, rows[0].ID, "newest first")
	for _, r := range rows {
		assert.True(t, r.IsPotentialDuplicate)
	}
}

func TestPostgres_AuditAndChannelEvents(t *testing.T) {
	ctx := context.Background()
	p, eventID := openPostgres(t)
	now := time.Now().UTC()

	r := pgEntry(eventID, eventID+"::guest::g-1", "familia ruiz", now)
	r.GuestID = "g-1"
	_, _, err := p.UpsertRSVP(ctx, r)
	require.NoError(t, err)

	require.NoError(t, p.AppendAudit(ctx, &models.AuditRecord{
		ID:        uuid.NewString(),
		RSVPID:    r.ID,
		EventID:   eventID,
		NewStatus: models.StatusConfirmed,
		NewCount:  2,
		ChangedBy: models.ActorGuest,
		ChangedAt: now,
	}))
	history, err := p.ListAudit(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].PreviousStatus)
	assert.Nil(t, history[0].PreviousCount)

	for i, action := range []models.ChannelAction{models.ActionCTARendered, models.ActionClicked} {
		require.NoError(t, p.AppendChannelEvent(ctx, &models.ChannelEvent{
			ID:         uuid.NewString(),
			RSVPID:     r.ID,
			Channel:    models.ChannelWhatsApp,
			Action:     action,
			OccurredAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	last, err := p.LastChannelEvents(ctx, []string{r.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ActionClicked, last[r.ID].Action)

	err = p.AppendChannelEvent(ctx, &models.ChannelEvent{
		ID: uuid.NewString(), RSVPID: uuid.NewString(), Channel: models.ChannelWhatsApp,
		Action: models.ActionClicked, OccurredAt: now,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
