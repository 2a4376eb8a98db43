package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyName(t *testing.T) {
	cases := map[string]string{
		"Ana Ruiz":      "ana ruiz",
		"  ana   ruiz ": "ana ruiz",
		"ANA\tRUIZ":     "ana ruiz",
		"José Pérez":    "josé pérez",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, KeyName(in), "KeyName(%q)", in)
	}
}

func TestMatchName_FoldsAccentsCaseAndSpacing(t *testing.T) {
	assert.Equal(t, "jose perez", MatchName("José Pérez"))
	assert.Equal(t, MatchName("José Pérez"), MatchName("jose  perez"))
	assert.Equal(t, MatchName("ÁNGELA  Núñez"), MatchName("angela nunez"))
	assert.NotEqual(t, KeyName("José Pérez"), KeyName("jose perez"))
}
