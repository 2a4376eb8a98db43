package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return c
}

func TestNewCodec_RejectsEmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour).Unix()

	for _, p := range []Payload{
		{EventID: "evt-1", GuestID: "g-1"},
		{EventID: "evt-1", GuestID: "g-1", Expiry: &exp},
		{EventID: "boda-ana-y-luis", GuestID: "familia \"García\""},
	} {
		tok, err := c.Issue(p)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(tok, "."))

		got, ok := c.VerifyAt(tok, now)
		require.True(t, ok, "token %q should verify", tok)
		assert.Equal(t, p, got)
	}
}

func TestIssue_RequiresIDs(t *testing.T) {
	c := newTestCodec(t)
	_, err := c.Issue(Payload{EventID: "evt-1"})
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestVerify_AnySingleCharacterMutationFails(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue(Payload{EventID: "evt-1", GuestID: "g-1"})
	require.NoError(t, err)

	for i := range tok {
		for _, repl := range []byte{alphabet[0], alphabet[1], '.'} {
			if tok[i] == repl {
				continue
			}
			mutated := tok[:i] + string(repl) + tok[i+1:]
			_, ok := c.Verify(mutated)
			assert.False(t, ok, "mutation at %d to %q verified", i, repl)
		}
	}
}

func TestVerify_Expired(t *testing.T) {
	c := newTestCodec(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tok, err := c.IssueFor("evt-1", "g-1", time.Minute, now)
	require.NoError(t, err)

	_, ok := c.VerifyAt(tok, now.Add(59*time.Second))
	assert.True(t, ok)

	_, ok = c.VerifyAt(tok, now.Add(time.Minute))
	assert.False(t, ok)
}

func TestVerify_WrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	tok, err := other.Issue(Payload{EventID: "evt-1", GuestID: "g-1"})
	require.NoError(t, err)

	_, ok := c.Verify(tok)
	assert.False(t, ok)
}

func TestVerify_Malformed(t *testing.T) {
	c := newTestCodec(t)
	body := encoding.EncodeToString([]byte(`{"eventId":`))
	badJSON := body + "." + encoding.EncodeToString(c.sign(body))

	emptyClaims := encoding.EncodeToString([]byte(`{}`))
	noClaims := emptyClaims + "." + encoding.EncodeToString(c.sign(emptyClaims))

	for name, tok := range map[string]string{
		"empty":         "",
		"no separator":  "abc",
		"empty parts":   ".",
		"bad base64":    "!!!.!!!",
		"short sig":     body + "." + encoding.EncodeToString([]byte("short")),
		"bad json":      badJSON,
		"missing claim": noClaims,
	} {
		_, ok := c.Verify(tok)
		assert.False(t, ok, name)
	}
}
