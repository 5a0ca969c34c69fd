package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSetOrdering(t *testing.T) {
	lib := DefaultLibrary()
	set := lib.SearchSet()
	require.NotEmpty(t, set)

	for i := 1; i < len(set); i++ {
		assert.GreaterOrEqual(t, len(set[i-1]), len(set[i]),
			"search set must be sorted longest-first: %q before %q", set[i-1], set[i])
	}
	assert.Contains(t, set, "ATCPO")
	assert.Contains(t, set, "ATCP", "4-char stems must join the search set")
}

func TestFindFirstPO(t *testing.T) {
	lib := DefaultLibrary()

	tests := []struct {
		name       string
		text       string
		wantNumber string
		wantPrefix string
		wantFound  bool
	}{
		{
			name:       "longest prefix wins over stem at same position",
			text:       "ATCPO-0123456",
			wantNumber: "ATCPO123456",
			wantPrefix: "ATCPO",
			wantFound:  true,
		},
		{
			name:       "separator stripped",
			text:       "ref AVPPO-24051234 attached",
			wantNumber: "AVPPO24051234",
			wantPrefix: "AVPPO",
			wantFound:  true,
		},
		{
			name:       "case insensitive",
			text:       "ref atcpo-777",
			wantNumber: "ATCPO777",
			wantPrefix: "ATCPO",
			wantFound:  true,
		},
		{
			name:       "stem translated to canonical prefix with zero dropped",
			text:       "PO ATCP0123456",
			wantNumber: "ATCPO123456",
			wantPrefix: "ATCPO",
			wantFound:  true,
		},
		{
			name:      "no match",
			text:      "nothing to see here 1234",
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := lib.FindFirstPO(tt.text)
			require.Equal(t, tt.wantFound, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantNumber, m.Number)
			assert.Equal(t, tt.wantPrefix, m.Prefix)
		})
	}
}

func TestFindAllPO(t *testing.T) {
	lib := DefaultLibrary()

	text := "Quote INAPO-11 against order ATCPO-22"
	matches := lib.FindAllPO(text)

	var numbers []string
	for _, m := range matches {
		numbers = append(numbers, m.Number)
	}
	assert.Contains(t, numbers, "INAPO11")
	assert.Contains(t, numbers, "ATCPO22")
}

func TestValidNumericPO(t *testing.T) {
	tests := []struct {
		token string
		valid bool
	}{
		{"24059999", true},  // month 05
		{"24129999", true},  // month 12
		{"24019999", true},  // month 01
		{"99139999", false}, // month 13
		{"24009999", false}, // month 00
		{"99999999", false}, // month 99
		{"2405999", false},  // 7 digits
		{"240599990", false},
		{"2405999a", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidNumericPO(tt.token))
		})
	}
}

func TestFindNumericPOs(t *testing.T) {
	lib := DefaultLibrary()

	got := lib.FindNumericPOs("serial 24059999 bogus 99139999 and 24110001")
	assert.Equal(t, []string{"24059999", "24110001"}, got)
}
