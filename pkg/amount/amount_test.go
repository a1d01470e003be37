package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToAtomicUnits(t *testing.T) {
	t.Run("whole amount", func(t *testing.T) {
		assert.Equal(t, "1000000000000000000", ToAtomicUnits("1", 18))
	})

	t.Run("fractional amount on 18 decimals", func(t *testing.T) {
		assert.Equal(t, "1500000000000000000", ToAtomicUnits("1.5", 18))
	})

	t.Run("six decimal token", func(t *testing.T) {
		assert.Equal(t, "2500000", ToAtomicUnits("2.5", 6))
		assert.Equal(t, "100000000", ToAtomicUnits("100", 6))
	})

	t.Run("truncates excess precision", func(t *testing.T) {
		assert.Equal(t, "1123456", ToAtomicUnits("1.12345678", 6))
	})

	t.Run("scientific notation", func(t *testing.T) {
		assert.Equal(t, "1500000000000000000", ToAtomicUnits("1.5e0", 18))
		assert.Equal(t, "2", ToAtomicUnits("2e-6", 6))
		assert.Equal(t, "150000000", ToAtomicUnits("1.5e2", 6))
	})

	t.Run("leading dot", func(t *testing.T) {
		assert.Equal(t, "500000", ToAtomicUnits(".5", 6))
	})

	t.Run("zero decimals", func(t *testing.T) {
		assert.Equal(t, "42", ToAtomicUnits("42.9", 0))
	})

	t.Run("rejects bad input with zero sentinel", func(t *testing.T) {
		for _, in := range []string{"", "abc", "-1", "1.2.3", "1,5", "  "} {
			assert.Equal(t, "0", ToAtomicUnits(in, 18), "input %q", in)
		}
	})

	t.Run("large supply stays exact", func(t *testing.T) {
		assert.Equal(t,
			"123456789012345678901234567000000000000000000",
			ToAtomicUnits("123456789012345678901234567", 18))
	})
}

func TestFromAtomicUnits(t *testing.T) {
	assert.Equal(t, "1.5", FromAtomicUnits("1500000000000000000", 18))
	assert.Equal(t, "0.000001", FromAtomicUnits("1", 6))
	assert.Equal(t, "2", FromAtomicUnits("2000000", 6))
	assert.Equal(t, "42", FromAtomicUnits("42", 0))
	assert.Equal(t, "0", FromAtomicUnits("garbage", 18))
	assert.Equal(t, "0", FromAtomicUnits("-5", 18))
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
	}{
		{"1.5", 18},
		{"0.000001", 6},
		{"12345.6789", 8},
		{"1000000", 18},
		{"0.1", 2},
	}
	for _, tc := range cases {
		atomic := ToAtomicUnits(tc.amount, tc.decimals)
		assert.Equal(t, tc.amount, FromAtomicUnits(atomic, tc.decimals),
			"round trip %s @ %d decimals", tc.amount, tc.decimals)
	}
}
