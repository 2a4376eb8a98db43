package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// PostgresStore is the durable persistence layer for the ledger.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ── events ──

func (p *PostgresStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var (
		ev     models.Event
		status string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, owner_id, event_type, title, default_max_attendees, status, created_at
		FROM events
		WHERE id = $1
	`, id).Scan(&ev.ID, &ev.OwnerID, &ev.Type, &ev.Title, &ev.DefaultMaxAttendees, &status, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("event", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get event", err)
	}
	ev.Status = models.EventStatus(status)
	return &ev, nil
}

// SeedEvents upserts events and their config-declared rosters in one transaction.
func (p *PostgresStore) SeedEvents(ctx context.Context, events []models.Event, guests []models.Guest) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, ev := range events {
			if _, err := tx.Exec(ctx, `
				INSERT INTO events (id, owner_id, event_type, title, default_max_attendees, status)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET
					owner_id = EXCLUDED.owner_id,
					event_type = EXCLUDED.event_type,
					title = EXCLUDED.title,
					default_max_attendees = EXCLUDED.default_max_attendees,
					status = EXCLUDED.status
			`, ev.ID, ev.OwnerID, ev.Type, ev.Title, ev.GenericCap(), string(ev.Status)); err != nil {
				return fmt.Errorf("seed event %s: %w", ev.ID, err)
			}
		}
		for _, g := range guests {
			if _, err := tx.Exec(ctx, `
				INSERT INTO guests (event_id, id, display_name, max_allowed_attendees, invite_id, phone)
				VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
				ON CONFLICT (event_id, id) DO UPDATE SET
					display_name = EXCLUDED.display_name,
					max_allowed_attendees = EXCLUDED.max_allowed_attendees,
					phone = EXCLUDED.phone,
					updated_at = now()
			`, g.EventID, g.ID, g.DisplayName, g.MaxAllowedAttendees, g.InviteID, g.Phone); err != nil {
				return fmt.Errorf("seed guest %s/%s: %w", g.EventID, g.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Persistence("seed events", err)
	}
	return nil
}

// ── guests ──

const guestColumns = `event_id, id, display_name, max_allowed_attendees, COALESCE(invite_id, ''), phone, created_at, updated_at`

func scanGuest(row pgx.Row) (*models.Guest, error) {
	var g models.Guest
	err := row.Scan(&g.EventID, &g.ID, &g.DisplayName, &g.MaxAllowedAttendees, &g.InviteID, &g.Phone, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (p *PostgresStore) GetGuest(ctx context.Context, eventID, guestID string) (*models.Guest, error) {
	g, err := scanGuest(p.pool.QueryRow(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE event_id = $1 AND id = $2`, eventID, guestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("guest", guestID)
	}
	if err != nil {
		return nil, apperr.Persistence("get guest", err)
	}
	return g, nil
}

func (p *PostgresStore) GetGuestByInvite(ctx context.Context, inviteID string) (*models.Guest, error) {
	g, err := scanGuest(p.pool.QueryRow(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE invite_id = $1`, inviteID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("invitation", inviteID)
	}
	if err != nil {
		return nil, apperr.Persistence("get guest by invite", err)
	}
	return g, nil
}

func (p *PostgresStore) ListGuests(ctx context.Context, eventID string) ([]models.Guest, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, apperr.Persistence("list guests", err)
	}
	defer rows.Close()

	var out []models.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, apperr.Persistence("list guests", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list guests", err)
	}
	return out, nil
}

func (p *PostgresStore) CreateGuest(ctx context.Context, g *models.Guest) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO guests (event_id, id, display_name, max_allowed_attendees, invite_id, phone)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING created_at, updated_at
	`, g.EventID, g.ID, g.DisplayName, g.MaxAllowedAttendees, g.InviteID, g.Phone).Scan(&g.CreatedAt, &g.UpdatedAt)
	switch {
	case pgCode(err) == pgUniqueViolation:
		return apperr.Validation("guest %q already exists", g.ID)
	case pgCode(err) == pgForeignKeyViolation:
		return apperr.NotFound("event", g.EventID)
	case err != nil:
		return apperr.Persistence("create guest", err)
	}
	return nil
}

func (p *PostgresStore) UpdateGuest(ctx context.Context, g *models.Guest) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE guests
		SET display_name = $3, max_allowed_attendees = $4, phone = $5, updated_at = now()
		WHERE event_id = $1 AND id = $2
		RETURNING updated_at
	`, g.EventID, g.ID, g.DisplayName, g.MaxAllowedAttendees, g.Phone).Scan(&g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("guest", g.ID)
	}
	if err != nil {
		return apperr.Persistence("update guest", err)
	}
	return nil
}

func (p *PostgresStore) DeleteGuest(ctx context.Context, eventID, guestID string) error {
	var deleted int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM guests WHERE event_id = $1 AND id = $2`, eventID, guestID)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		_, err = tx.Exec(ctx, `DELETE FROM rsvps WHERE event_id = $1 AND guest_id = $2`, eventID, guestID)
		return err
	})
	if err != nil {
		return apperr.Persistence("delete guest", err)
	}
	if deleted == 0 {
		return apperr.NotFound("guest", guestID)
	}
	return nil
}

// ── ledger ──

const rsvpColumns = `id, event_id, store_key, COALESCE(guest_id, ''), display_name, normalized_name,
	status, attendee_count, guest_message, notes, source, is_potential_duplicate,
	viewed_at, responded_at, created_at, updated_at`

func scanRSVP(row pgx.Row) (*models.RSVP, error) {
	var (
		r              models.RSVP
		status, source string
	)
	err := row.Scan(&r.ID, &r.EventID, &r.StoreKey, &r.GuestID, &r.DisplayName, &r.NormalizedName,
		&status, &r.AttendeeCount, &r.GuestMessage, &r.Notes, &source, &r.IsPotentialDuplicate,
		&r.ViewedAt, &r.RespondedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.AttendanceStatus(status)
	r.Source = models.Source(source)
	return &r, nil
}

// UpsertRSVP writes rec keyed by store_key in a single statement. The prev
// CTE reads the row as of the statement snapshot, so the previous state
// and the write cannot interleave with another statement's commit except
// for a concurrent first insert, where prev reads as absent.
func (p *PostgresStore) UpsertRSVP(ctx context.Context, rec *models.RSVP) (*models.RSVPSnapshot, bool, error) {
	var (
		created    bool
		prevStatus *string
		prevCount  *int
	)
	err := p.pool.QueryRow(ctx, `
		WITH prev AS (
			SELECT status, attendee_count FROM rsvps WHERE store_key = $2
		)
		INSERT INTO rsvps (id, store_key, event_id, guest_id, display_name, normalized_name,
			status, attendee_count, guest_message, notes, source, is_potential_duplicate,
			responded_at, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, false, $12, $13, $13)
		ON CONFLICT (store_key) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			normalized_name = EXCLUDED.normalized_name,
			status = EXCLUDED.status,
			attendee_count = EXCLUDED.attendee_count,
			guest_message = EXCLUDED.guest_message,
			notes = EXCLUDED.notes,
			source = EXCLUDED.source,
			responded_at = EXCLUDED.responded_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, viewed_at, is_potential_duplicate, (xmax = 0),
			(SELECT status FROM prev), (SELECT attendee_count FROM prev)
	`, rec.ID, rec.StoreKey, rec.EventID, rec.GuestID, rec.DisplayName, rec.NormalizedName,
		string(rec.Status), rec.AttendeeCount, rec.GuestMessage, rec.Notes, string(rec.Source),
		rec.RespondedAt, rec.UpdatedAt,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.ViewedAt, &rec.IsPotentialDuplicate, &created, &prevStatus, &prevCount)
	if err != nil {
		return nil, false, apperr.Persistence("upsert rsvp", err)
	}

	if created || prevStatus == nil || prevCount == nil {
		return nil, created, nil
	}
	return &models.RSVPSnapshot{
		Status:        models.AttendanceStatus(*prevStatus),
		AttendeeCount: *prevCount,
	}, false, nil
}

func (p *PostgresStore) InsertRSVPIfAbsent(ctx context.Context, rec *models.RSVP) (bool, error) {
	var id string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO rsvps (id, store_key, event_id, guest_id, display_name, normalized_name,
			status, attendee_count, guest_message, notes, source, is_potential_duplicate,
			responded_at, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, false, $12, $13, $13)
		ON CONFLICT (store_key) DO NOTHING
		RETURNING id
	`, rec.ID, rec.StoreKey, rec.EventID, rec.GuestID, rec.DisplayName, rec.NormalizedName,
		string(rec.Status), rec.AttendeeCount, rec.GuestMessage, rec.Notes, string(rec.Source),
		rec.RespondedAt, rec.UpdatedAt,
	).Scan(&id)
	if err == nil {
		rec.CreatedAt = rec.UpdatedAt
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.Persistence("insert rsvp", err)
	}

	existing, err := p.GetRSVPByStoreKey(ctx, rec.StoreKey)
	if err != nil {
		return false, err
	}
	*rec = *existing
	return false, nil
}

func (p *PostgresStore) GetRSVP(ctx context.Context, id string) (*models.RSVP, error) {
	r, err := scanRSVP(p.pool.QueryRow(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("rsvp", id)
	}
	if err != nil {
		return nil, apperr.Persistence("get rsvp", err)
	}
	return r, nil
}

func (p *PostgresStore) GetRSVPByStoreKey(ctx context.Context, storeKey string) (*models.RSVP, error) {
	r, err := scanRSVP(p.pool.QueryRow(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE store_key = $1`, storeKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("rsvp", storeKey)
	}
	if err != nil {
		return nil, apperr.Persistence("get rsvp", err)
	}
	return r, nil
}

func (p *PostgresStore) FindGenericMatches(ctx context.Context, eventID, normalizedName, excludeID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id FROM rsvps
		WHERE event_id = $1 AND guest_id IS NULL AND normalized_name = $2 AND id <> $3
		ORDER BY created_at
	`, eventID, normalizedName, excludeID)
	if err != nil {
		return nil, apperr.Persistence("find duplicate names", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperr.Persistence("find duplicate names", err)
	}
	return ids, nil
}

func (p *PostgresStore) SetPotentialDuplicate(ctx context.Context, ids []string, flag bool) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx,
		`UPDATE rsvps SET is_potential_duplicate = $2 WHERE id = ANY($1)`, ids, flag); err != nil {
		return apperr.Persistence("flag duplicates", err)
	}
	return nil
}

func (p *PostgresStore) MarkViewed(ctx context.Context, id string, at time.Time) error {
	if _, err := p.pool.Exec(ctx,
		`UPDATE rsvps SET viewed_at = $2 WHERE id = $1 AND viewed_at IS NULL`, id, at); err != nil {
		return apperr.Persistence("mark viewed", err)
	}
	return nil
}

func (p *PostgresStore) RenameRSVP(ctx context.Context, id, displayName, normalizedName string) error {
	if _, err := p.pool.Exec(ctx,
		`UPDATE rsvps SET display_name = $2, normalized_name = $3 WHERE id = $1`,
		id, displayName, normalizedName); err != nil {
		return apperr.Persistence("rename rsvp", err)
	}
	return nil
}

// ListRSVPs filters by event, status and normalized-name substring. The
// event id is always part of the WHERE clause.
func (p *PostgresStore) ListRSVPs(ctx context.Context, f models.RSVPFilter) ([]models.RSVP, error) {
	where := []string{"event_id = $1"}
	args := []any{f.EventID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, f.Search)
		where = append(where, fmt.Sprintf("strpos(normalized_name, $%d) > 0", len(args)))
	}

	rows, err := p.pool.Query(ctx, `SELECT `+rsvpColumns+` FROM rsvps WHERE `+
		strings.Join(where, " AND ")+` ORDER BY updated_at DESC, id`, args...)
	if err != nil {
		return nil, apperr.Persistence("list rsvps", err)
	}
	defer rows.Close()

	var out []models.RSVP
	for rows.Next() {
		r, err := scanRSVP(rows)
		if err != nil {
			return nil, apperr.Persistence("list rsvps", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list rsvps", err)
	}
	return out, nil
}

// ── audit ──

func (p *PostgresStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	var prevStatus *string
	if rec.PreviousStatus != "" {
		s := string(rec.PreviousStatus)
		prevStatus = &s
	}
	if _, err := p.pool.Exec(ctx, `
		INSERT INTO rsvp_audit (id, rsvp_id, event_id, previous_status, new_status,
			previous_count, new_count, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.RSVPID, rec.EventID, prevStatus, string(rec.NewStatus),
		rec.PreviousCount, rec.NewCount, string(rec.ChangedBy), rec.ChangedAt); err != nil {
		return apperr.Persistence("append audit", err)
	}
	return nil
}

func (p *PostgresStore) ListAudit(ctx context.Context, rsvpID string) ([]models.AuditRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, rsvp_id, event_id, COALESCE(previous_status, ''), new_status,
			previous_count, new_count, changed_by, changed_at
		FROM rsvp_audit
		WHERE rsvp_id = $1
		ORDER BY seq
	`, rsvpID)
	if err != nil {
		return nil, apperr.Persistence("list audit", err)
	}
	defer rows.Close()

	var out []models.AuditRecord
	for rows.Next() {
		var (
			rec                       models.AuditRecord
			prevStatus, newStatus, by string
		)
		if err := rows.Scan(&rec.ID, &rec.RSVPID, &rec.EventID, &prevStatus, &newStatus,
			&rec.PreviousCount, &rec.NewCount, &by, &rec.ChangedAt); err != nil {
			return nil, apperr.Persistence("list audit", err)
		}
		rec.PreviousStatus = models.AttendanceStatus(prevStatus)
		rec.NewStatus = models.AttendanceStatus(newStatus)
		rec.ChangedBy = models.Actor(by)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list audit", err)
	}
	return out, nil
}

// ── channel events ──

func (p *PostgresStore) AppendChannelEvent(ctx context.Context, ev *models.ChannelEvent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO channel_events (id, rsvp_id, channel, action, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.RSVPID, string(ev.Channel), string(ev.Action), ev.OccurredAt)
	if pgCode(err) == pgForeignKeyViolation {
		return apperr.NotFound("rsvp", ev.RSVPID)
	}
	if err != nil {
		return apperr.Persistence("append channel event", err)
	}
	return nil
}

func (p *PostgresStore) LastChannelEvents(ctx context.Context, rsvpIDs []string) (map[string]models.ChannelEvent, error) {
	out := make(map[string]models.ChannelEvent, len(rsvpIDs))
	if len(rsvpIDs) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT ON (rsvp_id) id, rsvp_id, channel, action, occurred_at
		FROM channel_events
		WHERE rsvp_id = ANY($1)
		ORDER BY rsvp_id, occurred_at DESC, seq DESC
	`, rsvpIDs)
	if err != nil {
		return nil, apperr.Persistence("last channel events", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev              models.ChannelEvent
			channel, action string
		)
		if err := rows.Scan(&ev.ID, &ev.RSVPID, &channel, &action, &ev.OccurredAt); err != nil {
			return nil, apperr.Persistence("last channel events", err)
		}
		ev.Channel = models.Channel(channel)
		ev.Action = models.ChannelAction(action)
		out[ev.RSVPID] = ev
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("last channel events", err)
	}
	return out, nil
}
