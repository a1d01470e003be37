package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	cases := map[string]string{
		"0":                   "0",
		"300000":              "300000",
		"0x493e0":             "300000",
		"0x0":                 "0",
		"1000000000000000000": "1000000000000000000",
	}
	for in, want := range cases {
		got, ok := ParseQuantity(in)
		require.True(t, ok, "input %q", in)
		assert.Equal(t, want, got.String(), "input %q", in)
	}
}

func TestParseQuantityRejectsGarbage(t *testing.T) {
	for _, in := range []string{"0x", "abc", "1.5", "0xzz"} {
		_, ok := ParseQuantity(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseQuantityEmptyDefaultsToZero(t *testing.T) {
	v, ok := ParseQuantity("")
	require.True(t, ok)
	assert.Equal(t, "0", v.String())
}
