// Package token issues and verifies invitation capability tokens.
//
// # Wire format
//
// A token is two unpadded base64url segments joined by a dot:
//
//	base64url(JSON payload) "." base64url(HMAC-SHA256(payload segment))
//
// The MAC covers the encoded payload segment exactly as transmitted.
// Tokens are stateless and never stored; expiry is the only way to
// invalidate a single token, and rotating the secret invalidates all.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const separator = "."

var encoding = base64.RawURLEncoding.Strict()

var (
	ErrEmptySecret   = errors.New("token: signing secret is empty")
	ErrInvalidClaims = errors.New("token: event id and guest id are required")
)

// Payload is the signed content of a token.
type Payload struct {
	EventID string `json:"eventId"`
	GuestID string `json:"guestId"`
	// Expiry is a unix timestamp in seconds; nil means no expiry.
	Expiry *int64 `json:"exp,omitempty"`
}

// ExpiresAt returns the expiry as a time, or the zero time.
func (p Payload) ExpiresAt() time.Time {
	if p.Expiry == nil {
		return time.Time{}
	}
	return time.Unix(*p.Expiry, 0).UTC()
}

// Codec signs and verifies tokens with a process-wide secret.
type Codec struct {
	secret []byte
}

// NewCodec returns a Codec. An empty secret is rejected; callers decide
// at startup whether that is fatal.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Codec{secret: key}, nil
}

// Issue serializes and signs p.
func (c *Codec) Issue(p Payload) (string, error) {
	if p.EventID == "" || p.GuestID == "" {
		return "", ErrInvalidClaims
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	body := encoding.EncodeToString(raw)
	return body + separator + encoding.EncodeToString(c.sign(body)), nil
}

// IssueFor is a convenience wrapper that sets an expiry ttl from now.
// A non-positive ttl issues a token without expiry.
func (c *Codec) IssueFor(eventID, guestID string, ttl time.Duration, now time.Time) (string, error) {
	p := Payload{EventID: eventID, GuestID: guestID}
	if ttl > 0 {
		exp := now.Add(ttl).Unix()
		p.Expiry = &exp
	}
	return c.Issue(p)
}

// Verify checks tok against the current time.
func (c *Codec) Verify(tok string) (Payload, bool) {
	return c.VerifyAt(tok, time.Now())
}

// VerifyAt checks the signature, decodes the payload and rejects it if
// expired at now. Any failure yields ok=false and an empty payload.
func (c *Codec) VerifyAt(tok string, now time.Time) (Payload, bool) {
	body, sigPart, found := strings.Cut(tok, separator)
	if !found || body == "" || sigPart == "" {
		return Payload{}, false
	}

	sig, err := encoding.DecodeString(sigPart)
	if err != nil || len(sig) != sha256.Size {
		return Payload{}, false
	}
	if !hmac.Equal(sig, c.sign(body)) {
		return Payload{}, false
	}

	raw, err := encoding.DecodeString(body)
	if err != nil {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, false
	}
	if p.EventID == "" || p.GuestID == "" {
		return Payload{}, false
	}
	if p.Expiry != nil && now.Unix() >= *p.Expiry {
		return Payload{}, false
	}
	return p, true
}

func (c *Codec) sign(body string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(body))
	return mac.Sum(nil)
}
