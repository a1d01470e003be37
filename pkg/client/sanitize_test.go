package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xswap/pkg/types"
)

func TestSanitizeTokens(t *testing.T) {
	s := NewSanitizer(DefaultSanitizerConfig())

	t.Run("drops stablecoin on native sentinel address", func(t *testing.T) {
		out := s.SanitizeTokens(137, []types.Token{
			{Symbol: "USDC", Address: "0x0000000000000000000000000000000000000000", Decimals: 6},
			{Symbol: "USDC", Address: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174", Decimals: 6},
		})
		require.Len(t, out, 1)
		assert.Equal(t, "0x2791bca1f2de4661ed88a30c99a7a9449aa84174", out[0].Address)
	})

	t.Run("drops non-canonical well-known token on primary chain", func(t *testing.T) {
		out := s.SanitizeTokens(1, []types.Token{
			{Symbol: "USDT", Address: "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", Decimals: 6},
			{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18, PriceUSD: "3200"},
		})
		require.Len(t, out, 1)
		assert.Equal(t, "WETH", out[0].Symbol)
	})

	t.Run("keeps well-known token on other chains regardless of address", func(t *testing.T) {
		out := s.SanitizeTokens(137, []types.Token{
			{Symbol: "USDT", Address: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", Decimals: 6, PriceUSD: "1.0"},
		})
		assert.Len(t, out, 1)
	})

	t.Run("clamps off-peg stablecoin price", func(t *testing.T) {
		out := s.SanitizeTokens(137, []types.Token{
			{Symbol: "DAI", Address: "0x8f3cf7ad23cd3cadbd9735aff958023239c6a063", PriceUSD: "0.42"},
			{Symbol: "DAI", Address: "0x8f3cf7ad23cd3cadbd9735aff958023239c6a064", PriceUSD: "1.01"},
		})
		require.Len(t, out, 2)
		assert.Equal(t, "1.00", out[0].PriceUSD)
		assert.Equal(t, "1.01", out[1].PriceUSD)
	})

	t.Run("floors glitched volatile asset price", func(t *testing.T) {
		out := s.SanitizeTokens(137, []types.Token{
			{Symbol: "WETH", Address: "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", PriceUSD: "1.02"},
		})
		require.Len(t, out, 1)
		assert.Equal(t, "500", out[0].PriceUSD)
	})

	t.Run("leaves plausible prices alone", func(t *testing.T) {
		out := s.SanitizeTokens(137, []types.Token{
			{Symbol: "WETH", Address: "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", PriceUSD: "3100.55"},
		})
		require.Len(t, out, 1)
		assert.Equal(t, "3100.55", out[0].PriceUSD)
	})

	t.Run("unparseable price is cleared", func(t *testing.T) {
		out := s.SanitizeTokens(137, []types.Token{
			{Symbol: "FOO", Address: "0x1", PriceUSD: "n/a"},
		})
		require.Len(t, out, 1)
		assert.Empty(t, out[0].PriceUSD)
	})

	t.Run("nil sanitizer passes through", func(t *testing.T) {
		var nilS *Sanitizer
		in := []types.Token{{Symbol: "USDC", Address: "0x0000000000000000000000000000000000000000"}}
		assert.Equal(t, in, nilS.SanitizeTokens(1, in))
	})
}
