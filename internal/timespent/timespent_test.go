package timespent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := map[string]float64{
		"1d":        8,
		"2h30m":     2.5,
		"90m":       1.5,
		"":          0,
		"garbage":   0,
		"1d 2h 30m": 10.5,
		"30m 1d":    8.5,
		"3h":        3,
		"2D":        0,
	}
	for in, want := range cases {
		assert.InDelta(t, want, Parse(in), 1e-9, "input %q", in)
	}
}

func TestParseStrict_ReportsMatch(t *testing.T) {
	_, ok := ParseStrict("garbage")
	assert.False(t, ok)
	_, ok = ParseStrict("")
	assert.False(t, ok)
	h, ok := ParseStrict("0m")
	assert.True(t, ok)
	assert.Zero(t, h)
}
