package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
	"github.com/PratikDhanave/invite-rsvp-service/internal/token"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func fixture(t *testing.T) (*store.MemoryStore, *token.Codec) {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.SeedEvents(context.Background(),
		[]models.Event{
			{ID: "evt-1", DefaultMaxAttendees: 2, Status: models.EventPublished},
			{ID: "evt-2", DefaultMaxAttendees: 1, Status: models.EventPublished},
			{ID: "evt-draft", Status: models.EventDraft},
		},
		[]models.Guest{
			{ID: "g-1", EventID: "evt-1", DisplayName: "Familia Ruiz", MaxAllowedAttendees: 4},
			{ID: "g-2", EventID: "evt-2", DisplayName: "Luis", MaxAllowedAttendees: 2, InviteID: "inv-2"},
		},
	))
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return s, codec
}

func newResolver(t *testing.T) (*TokenResolver, *token.Codec) {
	s, codec := fixture(t)
	r := NewTokenResolver(codec, s)
	r.now = func() time.Time { return testNow }
	return r, codec
}

func TestTokenResolver_NoToken(t *testing.T) {
	r, _ := newResolver(t)

	res, err := r.Resolve(context.Background(), "evt-1", "")
	require.NoError(t, err)
	assert.Equal(t, ModeGeneric, res.Mode)
	assert.Equal(t, 2, res.MaxAllowed)
	assert.False(t, res.TokenPresented)
	assert.Empty(t, res.Reason)
	assert.Equal(t, models.SourceGenericLink, res.Source)
}

func TestTokenResolver_ValidToken(t *testing.T) {
	r, codec := newResolver(t)
	tok, err := codec.Issue(token.Payload{EventID: "evt-1", GuestID: "g-1"})
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), "evt-1", tok)
	require.NoError(t, err)
	assert.True(t, res.Personalized())
	assert.True(t, res.TokenValid)
	assert.Equal(t, "g-1", res.GuestID)
	assert.Equal(t, "Familia Ruiz", res.DisplayName)
	assert.Equal(t, 4, res.MaxAllowed)
	assert.Equal(t, models.SourcePersonalizedLink, res.Source)
}

func TestTokenResolver_DegradesToGeneric(t *testing.T) {
	r, codec := newResolver(t)

	crossEvent, err := codec.Issue(token.Payload{EventID: "evt-2", GuestID: "g-2"})
	require.NoError(t, err)
	removed, err := codec.Issue(token.Payload{EventID: "evt-1", GuestID: "g-gone"})
	require.NoError(t, err)
	expired, err := codec.IssueFor("evt-1", "g-1", time.Minute, testNow.Add(-time.Hour))
	require.NoError(t, err)

	cases := map[string]struct {
		tok    string
		reason string
	}{
		"garbage":     {"not-a-token", ReasonInvalidToken},
		"expired":     {expired, ReasonInvalidToken},
		"cross event": {crossEvent, ReasonOtherEvent},
		"removed":     {removed, ReasonGuestNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), "evt-1", tc.tok)
			require.NoError(t, err)
			assert.Equal(t, ModeGeneric, res.Mode)
			assert.True(t, res.TokenPresented)
			assert.False(t, res.TokenValid)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Equal(t, 2, res.MaxAllowed)
			assert.Empty(t, res.GuestID)
		})
	}
}

func TestTokenResolver_UnknownOrDraftEvent(t *testing.T) {
	r, _ := newResolver(t)

	_, err := r.Resolve(context.Background(), "nope", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = r.Resolve(context.Background(), "evt-draft", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestInviteResolver(t *testing.T) {
	s, _ := fixture(t)
	r := NewInviteResolver(s)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "", "inv-2")
	require.NoError(t, err)
	assert.True(t, res.Personalized())
	assert.Equal(t, "evt-2", res.Event.ID)
	assert.Equal(t, "g-2", res.GuestID)
	assert.Equal(t, 2, res.MaxAllowed)

	_, err = r.Resolve(ctx, "evt-2", "inv-2")
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "evt-1", "inv-2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = r.Resolve(ctx, "", "unknown")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = r.Resolve(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
