package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate2(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{29.995, "29.99"},
		{-0.004, "-0.00"},
		{0, "0.00"},
		{100, "100.00"},
		{40.129, "40.12"},
		{35, "35.00"},
		{-12.349, "-12.34"},
		{0.009, "0.00"},
		{99.999, "99.99"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Truncate2(c.in), "Truncate2(%v)", c.in)
	}
}
