package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

// MemoryStore is an in-process Store for tests and local development.
// A single mutex makes every method atomic, which gives UpsertRSVP the
// same per-key guarantee as the Postgres ON CONFLICT statement.
type MemoryStore struct {
	mu       sync.Mutex
	events   map[string]models.Event
	guests   map[string]models.Guest // eventID/guestID
	rsvps    map[string]models.RSVP  // id
	byKey    map[string]string       // store key -> id
	audit    []models.AuditRecord
	channels []models.ChannelEvent
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]models.Event),
		guests: make(map[string]models.Guest),
		rsvps:  make(map[string]models.RSVP),
		byKey:  make(map[string]string),
	}
}

func guestKey(eventID, guestID string) string { return eventID + "/" + guestID }

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) SeedEvents(_ context.Context, events []models.Event, guests []models.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, ev := range events {
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		if ev.Status == "" {
			ev.Status = models.EventPublished
		}
		m.events[ev.ID] = ev
	}
	for _, g := range guests {
		if _, ok := m.events[g.EventID]; !ok {
			return apperr.NotFound("event", g.EventID)
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
		g.UpdatedAt = now
		m.guests[guestKey(g.EventID, g.ID)] = g
	}
	return nil
}

func (m *MemoryStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok {
		return nil, apperr.NotFound("event", id)
	}
	return &ev, nil
}

// ── guests ──

func (m *MemoryStore) GetGuest(_ context.Context, eventID, guestID string) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.guests[guestKey(eventID, guestID)]
	if !ok {
		return nil, apperr.NotFound("guest", guestID)
	}
	return &g, nil
}

func (m *MemoryStore) GetGuestByInvite(_ context.Context, inviteID string) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inviteID != "" {
		for _, g := range m.guests {
			if g.InviteID == inviteID {
				return &g, nil
			}
		}
	}
	return nil, apperr.NotFound("invitation", inviteID)
}

func (m *MemoryStore) ListGuests(_ context.Context, eventID string) ([]models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Guest
	for _, g := range m.guests {
		if g.EventID == eventID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateGuest(_ context.Context, g *models.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[g.EventID]; !ok {
		return apperr.NotFound("event", g.EventID)
	}
	key := guestKey(g.EventID, g.ID)
	if _, ok := m.guests[key]; ok {
		return apperr.Validation("guest %q already exists", g.ID)
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	m.guests[key] = *g
	return nil
}

func (m *MemoryStore) UpdateGuest(_ context.Context, g *models.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := guestKey(g.EventID, g.ID)
	cur, ok := m.guests[key]
	if !ok {
		return apperr.NotFound("guest", g.ID)
	}
	cur.DisplayName = g.DisplayName
	cur.MaxAllowedAttendees = g.MaxAllowedAttendees
	cur.Phone = g.Phone
	cur.UpdatedAt = time.Now().UTC()
	m.guests[key] = cur
	*g = cur
	return nil
}

func (m *MemoryStore) DeleteGuest(_ context.Context, eventID, guestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := guestKey(eventID, guestID)
	if _, ok := m.guests[key]; !ok {
		return apperr.NotFound("guest", guestID)
	}
	delete(m.guests, key)
	for id, r := range m.rsvps {
		if r.EventID == eventID && r.GuestID == guestID {
			m.deleteRSVPLocked(id)
		}
	}
	return nil
}

func (m *MemoryStore) deleteRSVPLocked(id string) {
	r := m.rsvps[id]
	delete(m.rsvps, id)
	delete(m.byKey, r.StoreKey)

	kept := m.channels[:0]
	for _, ev := range m.channels {
		if ev.RSVPID != id {
			kept = append(kept, ev)
		}
	}
	m.channels = kept
}

// ── ledger ──

func (m *MemoryStore) UpsertRSVP(_ context.Context, rec *models.RSVP) (*models.RSVPSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.byKey[rec.StoreKey]
	if !exists {
		rec.CreatedAt = rec.UpdatedAt
		rec.IsPotentialDuplicate = false
		rec.ViewedAt = nil
		m.rsvps[rec.ID] = *rec
		m.byKey[rec.StoreKey] = rec.ID
		return nil, true, nil
	}

	cur := m.rsvps[id]
	prev := &models.RSVPSnapshot{Status: cur.Status, AttendeeCount: cur.AttendeeCount}

	cur.DisplayName = rec.DisplayName
	cur.NormalizedName = rec.NormalizedName
	cur.Status = rec.Status
	cur.AttendeeCount = rec.AttendeeCount
	cur.GuestMessage = rec.GuestMessage
	cur.Notes = rec.Notes
	cur.Source = rec.Source
	cur.RespondedAt = rec.RespondedAt
	cur.UpdatedAt = rec.UpdatedAt
	m.rsvps[id] = cur

	*rec = cur
	return prev, false, nil
}

func (m *MemoryStore) InsertRSVPIfAbsent(_ context.Context, rec *models.RSVP) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, exists := m.byKey[rec.StoreKey]; exists {
		*rec = m.rsvps[id]
		return false, nil
	}
	rec.CreatedAt = rec.UpdatedAt
	m.rsvps[rec.ID] = *rec
	m.byKey[rec.StoreKey] = rec.ID
	return true, nil
}

func (m *MemoryStore) GetRSVP(_ context.Context, id string) (*models.RSVP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rsvps[id]
	if !ok {
		return nil, apperr.NotFound("rsvp", id)
	}
	return &r, nil
}

func (m *MemoryStore) GetRSVPByStoreKey(_ context.Context, storeKey string) (*models.RSVP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byKey[storeKey]
	if !ok {
		return nil, apperr.NotFound("rsvp", storeKey)
	}
	r := m.rsvps[id]
	return &r, nil
}

func (m *MemoryStore) FindGenericMatches(_ context.Context, eventID, normalizedName, excludeID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, r := range m.rsvps {
		if id != excludeID && r.EventID == eventID && r.IsGeneric() && r.NormalizedName == normalizedName {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) SetPotentialDuplicate(_ context.Context, ids []string, flag bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if r, ok := m.rsvps[id]; ok {
			r.IsPotentialDuplicate = flag
			m.rsvps[id] = r
		}
	}
	return nil
}

func (m *MemoryStore) MarkViewed(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rsvps[id]
	if !ok || r.ViewedAt != nil {
		return nil
	}
	r.ViewedAt = &at
	m.rsvps[id] = r
	return nil
}

func (m *MemoryStore) RenameRSVP(_ context.Context, id, displayName, normalizedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rsvps[id]
	if !ok {
		return nil
	}
	r.DisplayName = displayName
	r.NormalizedName = normalizedName
	m.rsvps[id] = r
	return nil
}

func (m *MemoryStore) ListRSVPs(_ context.Context, f models.RSVPFilter) ([]models.RSVP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.RSVP
	for _, r := range m.rsvps {
		if r.EventID != f.EventID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(r.NormalizedName, f.Search) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ── audit ──

func (m *MemoryStore) AppendAudit(_ context.Context, rec *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audit = append(m.audit, *rec)
	return nil
}

func (m *MemoryStore) ListAudit(_ context.Context, rsvpID string) ([]models.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AuditRecord
	for _, rec := range m.audit {
		if rec.RSVPID == rsvpID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ── channel events ──

func (m *MemoryStore) AppendChannelEvent(_ context.Context, ev *models.ChannelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rsvps[ev.RSVPID]; !ok {
		return apperr.NotFound("rsvp", ev.RSVPID)
	}
	m.channels = append(m.channels, *ev)
	return nil
}

func (m *MemoryStore) LastChannelEvents(_ context.Context, rsvpIDs []string) (map[string]models.ChannelEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]bool, len(rsvpIDs))
	for _, id := range rsvpIDs {
		want[id] = true
	}
	out := make(map[string]models.ChannelEvent, len(rsvpIDs))
	// Later appends win ties on OccurredAt.
	for _, ev := range m.channels {
		if !want[ev.RSVPID] {
			continue
		}
		if last, ok := out[ev.RSVPID]; ok && ev.OccurredAt.Before(last.OccurredAt) {
			continue
		}
		out[ev.RSVPID] = ev
	}
	return out, nil
}
