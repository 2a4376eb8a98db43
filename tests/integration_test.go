//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// INTEGRATION TEST SUITE
//
// These tests validate the service end-to-end:
//
//   Client → HTTP API → Auth → Ledger → Postgres → Response
//
// The service must already be running (for example via docker compose) with
// an event seeded for HOST1 and host API keys configured, e.g.
//
//   RSVP_HOST_AUTH_API_KEYS="host-1:host-key-123,host-2:host-key-456"
//
// Optional environment overrides:
//
//   BASE_URL       default http://localhost:8080
//   EVENT_ID       default demo-wedding (owned by HOST1)
//   HOST1_KEY      default host-key-123
//   HOST2_KEY      default host-key-456
//   ADMIN_USER     default admin
//   ADMIN_PASSWORD default admin-password
//
////////////////////////////////////////////////////////////////////////////////

func env(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func baseURL() string { return env("BASE_URL", "http://localhost:8080") }
func eventID() string { return env("EVENT_ID", "demo-wedding") }
func host1Key() string { return env("HOST1_KEY", "host-key-123") }
func host2Key() string { return env("HOST2_KEY", "host-key-456") }

// unique generates a unique string so tests never collide with previous runs.
func unique(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

////////////////////////////////////////////////////////////////////////////////
// SERVICE READINESS HELPER
//
// waitReady polls /ready until DB + server are ready.
////////////////////////////////////////////////////////////////////////////////

func waitReady(t *testing.T) {
	t.Helper()

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL() + "/ready")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(300 * time.Millisecond)
	}

	t.Fatalf("service not ready after 30s")
}

////////////////////////////////////////////////////////////////////////////////
// GENERIC HTTP HELPERS
////////////////////////////////////////////////////////////////////////////////

type authFn func(*http.Request)

func hostKey(key string) authFn {
	return func(r *http.Request) { r.Header.Set("X-API-Key", key) }
}

func adminBasic() authFn {
	return func(r *http.Request) {
		r.SetBasicAuth(env("ADMIN_USER", "admin"), env("ADMIN_PASSWORD", "admin-password"))
	}
}

// call performs a request with an optional JSON body and auth.
func call(t *testing.T, method, path string, payload any, auth authFn) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}

	req, _ := http.NewRequest(method, baseURL()+path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		auth(req)
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func mustDecode(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("invalid JSON %q: %v", b, err)
	}
}

type rsvpResponse struct {
	RSVPID        string `json:"rsvpId"`
	Status        string `json:"attendanceStatus"`
	AttendeeCount int    `json:"attendeeCount"`
	ContextMode   string `json:"contextMode"`
}

type guestView struct {
	ID       string `json:"id"`
	InviteID string `json:"inviteId"`
	RSVP     *struct {
		ID string `json:"id"`
	} `json:"rsvp"`
}

// createGuest adds a guest to EVENT_ID as HOST1.
func createGuest(t *testing.T, name string, maxAllowed int) guestView {
	t.Helper()
	s, b := call(t, http.MethodPost, "/host/events/"+eventID()+"/guests",
		map[string]any{"displayName": name, "maxAllowedAttendees": maxAllowed}, hostKey(host1Key()))
	if s != http.StatusCreated {
		t.Fatalf("create guest expected 201 got %d: %s", s, b)
	}
	var g guestView
	mustDecode(t, b, &g)
	return g
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH & READINESS TESTS
////////////////////////////////////////////////////////////////////////////////

func TestHealth_ReturnsOK(t *testing.T) {
	s, _ := call(t, http.MethodGet, "/health", nil, nil)
	if s != http.StatusOK {
		t.Fatalf("health expected 200 got %d", s)
	}
}

func TestReady_ReturnsOK(t *testing.T) {
	waitReady(t)
	s, _ := call(t, http.MethodGet, "/ready", nil, nil)
	if s != http.StatusOK {
		t.Fatalf("ready expected 200 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// HOST CONTRACT TESTS
////////////////////////////////////////////////////////////////////////////////

func TestHost_UnauthorizedWithoutCredentials(t *testing.T) {
	waitReady(t)

	req, _ := http.NewRequest(http.MethodGet, baseURL()+"/host/events/"+eventID()+"/guests", nil)
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatal("expected a WWW-Authenticate challenge")
	}
}

// Another host must not learn that the event exists.
func TestHost_OtherHostGetsNotFound(t *testing.T) {
	waitReady(t)

	s, _ := call(t, http.MethodGet, "/host/events/"+eventID()+"/guests", nil, hostKey(host2Key()))
	if s != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", s)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CORE LEDGER BEHAVIOR TESTS
////////////////////////////////////////////////////////////////////////////////

// Resubmitting through the same invite updates one entry.
func TestInvite_ResubmissionKeepsOneEntry(t *testing.T) {
	waitReady(t)

	g := createGuest(t, unique("Guest"), 4)
	path := "/i/" + g.InviteID + "/rsvp"

	s, b := call(t, http.MethodPost, path, map[string]any{"attendanceStatus": "confirmed", "attendeeCount": 6}, nil)
	if s != http.StatusBadRequest || !strings.Contains(string(b), "4") {
		t.Fatalf("expected 400 citing the cap got %d: %s", s, b)
	}

	s, b = call(t, http.MethodPost, path, map[string]any{"attendanceStatus": "confirmed", "attendeeCount": 3}, nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", s, b)
	}
	var first rsvpResponse
	mustDecode(t, b, &first)

	s, b = call(t, http.MethodPost, path, map[string]any{"attendanceStatus": "declined", "attendeeCount": 5}, nil)
	if s != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", s, b)
	}
	var second rsvpResponse
	mustDecode(t, b, &second)

	if first.RSVPID != second.RSVPID || g.RSVP == nil || first.RSVPID != g.RSVP.ID {
		t.Fatal("resubmission created a new entry")
	}
	if second.AttendeeCount != 0 || second.ContextMode != "personalized" {
		t.Fatalf("unexpected response %+v", second)
	}
}

// Accent-insensitive name collisions are flagged on both entries.
func TestGeneric_DuplicateNamesAreFlagged(t *testing.T) {
	waitReady(t)

	suffix := unique("p")
	for _, name := range []string{"José Pérez " + suffix, "jose perez " + suffix} {
		s, b := call(t, http.MethodPost, "/e/"+eventID()+"/rsvp",
			map[string]any{"attendanceStatus": "confirmed", "attendeeCount": 1, "guestName": name}, nil)
		if s != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", s, b)
		}
	}

	s, b := call(t, http.MethodGet, "/admin/rsvps?eventId="+eventID()+"&search=jose+perez+"+suffix, nil, adminBasic())
	if s != http.StatusOK {
		t.Fatalf("admin list expected 200 got %d: %s", s, b)
	}
	var listing struct {
		Entries []struct {
			IsPotentialDuplicate bool `json:"isPotentialDuplicate"`
		} `json:"entries"`
	}
	mustDecode(t, b, &listing)
	if len(listing.Entries) != 2 {
		t.Fatalf("expected 2 entries got %d", len(listing.Entries))
	}
	for _, e := range listing.Entries {
		if !e.IsPotentialDuplicate {
			t.Fatal("expected both entries flagged")
		}
	}
}

func TestAdmin_ExportRequiresEvent(t *testing.T) {
	waitReady(t)

	s, _ := call(t, http.MethodGet, "/admin/rsvps/export.csv", nil, adminBasic())
	if s != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", s)
	}

	s, b := call(t, http.MethodGet, "/admin/rsvps/export.csv?eventId="+eventID(), nil, adminBasic())
	if s != http.StatusOK || !strings.HasPrefix(string(b), `"rsvp_id"`) {
		t.Fatalf("expected csv got %d: %.80s", s, b)
	}
}
