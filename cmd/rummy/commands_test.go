package main

import (
	"testing"

	"github.com/minaorangina/rummy/deck"
	"github.com/minaorangina/rummy/hand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var part = hand.Partition{
	Groups: []hand.Group{
		{ID: "alpha", Label: "Triplet", Items: deck.MustParse("7C", "7D", "7S")},
		{ID: "beta", Label: "run", Items: deck.MustParse("4H", "5H", "6H")},
	},
	Ungrouped: deck.MustParse("KC", "2S"),
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in   string
		want hand.Location
	}{
		{"1", hand.Location{Zone: hand.Ungrouped, Index: 0}},
		{"u:2", hand.Location{Zone: hand.Ungrouped, Index: 1}},
		{"g2:3", hand.Location{Zone: "beta", Index: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLocation(part, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"0", "x", "g3:1", "g1:", "q1:1"} {
		_, err := parseLocation(part, bad)
		assert.ErrorIs(t, err, errUsage, bad)
	}
}

func TestParseIndices(t *testing.T) {
	got, err := parseIndices("3,1, 2")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, got)

	_, err = parseIndices("1,,2")
	assert.ErrorIs(t, err, errUsage)
}

func TestParseZone(t *testing.T) {
	zone, err := parseZone(part, "g1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", zone)

	zone, err = parseZone(part, "u")
	require.NoError(t, err)
	assert.Equal(t, hand.Ungrouped, zone)
}
