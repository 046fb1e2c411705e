package sizefmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1GB", GB},
		{"1gb", GB},
		{"500MB", 500 * MB},
		{"1.5KB", int64(1.5 * KB)},
		{"100", 100},
		{"0B", 0},
		{"", defaultBytes},
		{"not-a-size", defaultBytes},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Parse(c.in), "Parse(%q)", c.in)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{1023, "1023B"},
		{1024, "1.00KB"},
		{1024 * 1024, "1.00MB"},
		{5 * GB, "5.00GB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Format(c.in), "Format(%d)", c.in)
	}
}

// TestRoundTrip checks property 8 from spec.md §8: parse(format(b)) is
// within 1% of b for a handful of representative byte counts.
func TestRoundTrip(t *testing.T) {
	values := []int64{0, 1, 1023, 1024, 1024*1024 - 1, 1024 * 1024, 5 * GB}
	for _, b := range values {
		got := Parse(Format(b))
		if b == 0 {
			assert.Equal(t, int64(0), got)
			continue
		}
		diff := got - b
		if diff < 0 {
			diff = -diff
		}
		tolerance := b/100 + 1
		assert.LessOrEqualf(t, diff, tolerance, "round trip of %d produced %d (diff %d > tolerance %d)", b, got, diff, tolerance)
	}
}
