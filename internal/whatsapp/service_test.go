package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in, cc, want string
	}{
		{"+34 612-345-678", "34", "34612345678"},
		{"0612 345 678", "34", "34612345678"},
		{"(054) 123-4567", "+972", "972541234567"},
		{"+972 054 123 4567", "972", "972541234567"},
		{"0049 170 1234567", "34", "491701234567"},
		{"0612345678", "", "0612345678"},
		{"n/a", "34", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhoneNumber(tc.in, tc.cc), tc.in)
	}
}
