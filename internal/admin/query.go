// Package admin reads the ledger for host dashboards and exports. It never
// mutates.
package admin

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/PratikDhanave/invite-rsvp-service/internal/apperr"
	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
	"github.com/PratikDhanave/invite-rsvp-service/internal/normalize"
	"github.com/PratikDhanave/invite-rsvp-service/internal/store"
)

const MaxSearchLength = 120

// Columns is the fixed export column order.
var Columns = []string{
	"rsvp_id", "event_slug", "name", "source", "status", "attendee_count",
	"possible_duplicate", "created_at", "updated_at", "last_channel_action", "last_channel_at",
}

type Filter struct {
	EventID string
	// Status is "", "all", or an attendance status.
	Status string
	Search string
}

type Entry struct {
	models.RSVP
	LastChannelEvent *models.ChannelEvent `json:"lastChannelEvent,omitempty"`
}

// Totals are computed over the filtered set.
type Totals struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	Confirmed     int `json:"confirmed"`
	Declined      int `json:"declined"`
	Viewed        int `json:"viewed"`
	AttendeeTotal int `json:"attendeeTotal"`
}

type Listing struct {
	Entries []Entry `json:"entries"`
	Totals  Totals  `json:"totals"`
}

type ledgerReader interface {
	store.RSVPStore
	store.ChannelStore
}

type Query struct {
	store ledgerReader
}

func NewQuery(s ledgerReader) *Query {
	return &Query{store: s}
}

func (f Filter) toStore() (models.RSVPFilter, error) {
	if f.EventID == "" {
		return models.RSVPFilter{}, apperr.Validation("eventId is required")
	}
	out := models.RSVPFilter{EventID: f.EventID}

	switch status := strings.ToLower(strings.TrimSpace(f.Status)); status {
	case "", "all":
	default:
		s := models.AttendanceStatus(status)
		if !s.Valid() {
			return models.RSVPFilter{}, apperr.Validation("status must be one of pending, confirmed, declined, all")
		}
		out.Status = s
	}

	if utf8.RuneCountInString(f.Search) > MaxSearchLength {
		return models.RSVPFilter{}, apperr.Validation("search must be at most %d characters", MaxSearchLength)
	}
	out.Search = normalize.MatchName(f.Search)
	return out, nil
}

// List returns the filtered entries, newest update first, each annotated
// with its last channel event.
func (q *Query) List(ctx context.Context, f Filter) (*Listing, error) {
	sf, err := f.toStore()
	if err != nil {
		return nil, err
	}
	rows, err := q.store.ListRSVPs(ctx, sf)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var last map[string]models.ChannelEvent
	if len(ids) > 0 {
		if last, err = q.store.LastChannelEvents(ctx, ids); err != nil {
			return nil, err
		}
	}

	out := &Listing{Entries: make([]Entry, 0, len(rows))}
	for _, r := range rows {
		e := Entry{RSVP: r}
		if ev, ok := last[r.ID]; ok {
			e.LastChannelEvent = &ev
		}
		out.Entries = append(out.Entries, e)

		out.Totals.Total++
		switch r.Status {
		case models.StatusPending:
			out.Totals.Pending++
		case models.StatusConfirmed:
			out.Totals.Confirmed++
			out.Totals.AttendeeTotal += r.AttendeeCount
		case models.StatusDeclined:
			out.Totals.Declined++
		}
		if r.ViewedAt != nil {
			out.Totals.Viewed++
		}
	}
	return out, nil
}

func (q *Query) exportRows(ctx context.Context, eventID string) ([][]string, error) {
	listing, err := q.List(ctx, Filter{EventID: eventID})
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		action, at := "", ""
		if e.LastChannelEvent != nil {
			action = string(e.LastChannelEvent.Action)
			at = e.LastChannelEvent.OccurredAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			e.ID,
			e.EventID,
			e.DisplayName,
			string(e.Source),
			string(e.Status),
			strconv.Itoa(e.AttendeeCount),
			strconv.FormatBool(e.IsPotentialDuplicate),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.UpdatedAt.UTC().Format(time.RFC3339),
			action,
			at,
		})
	}
	return rows, nil
}

// ExportCSV renders one quoted row per entry of the event.
func (q *Query) ExportCSV(ctx context.Context, eventID string) ([]byte, error) {
	rows, err := q.exportRows(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeCSVRow(&buf, Columns)
	for _, row := range rows {
		writeCSVRow(&buf, row)
	}
	return buf.Bytes(), nil
}

// writeCSVRow quotes every field and doubles embedded quotes.
func writeCSVRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

const sheetName = "RSVPs"

// ExportXLSX writes the CSV columns to a single workbook sheet. Cells are
// written as strings.
func (q *Query) ExportXLSX(ctx context.Context, eventID string) ([]byte, error) {
	rows, err := q.exportRows(ctx, eventID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	for r, row := range append([][]string{Columns}, rows...) {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStr(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
