package route

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xswap/pkg/types"
)

func validRoute() *types.Route {
	usdc := &types.Token{Address: "0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", ChainID: 1, Symbol: "USDC", Decimals: 6}
	weth := &types.Token{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", ChainID: 1, Symbol: "WETH", Decimals: 18}
	return &types.Route{
		ID:          "r1",
		FromChainID: 1,
		ToChainID:   1,
		FromToken:   weth,
		ToToken:     usdc,
		FromAmount:  "1000000000000000000",
		ToAmount:    "2000000",
		ToAmountMin: "1980000",
		GasCostUSD:  "4.20",
		Steps: []*types.Step{
			{
				ID:   "s1",
				Type: types.StepSwap,
				Tool: "uniswap",
				Action: &types.StepAction{
					FromChainID: 1,
					ToChainID:   1,
					FromToken:   weth,
					ToToken:     usdc,
					FromAmount:  "1000000000000000000",
				},
				Estimate: &types.StepEstimate{ToAmount: "2000000", GasCostUSD: "4.20"},
			},
		},
		FetchedAt: time.Now(),
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts a well-formed route", func(t *testing.T) {
		res := Validate(validRoute())
		assert.True(t, res.Valid, "errors: %v", res.Errors)
		assert.Empty(t, res.Errors)
		assert.Empty(t, res.Warnings)
	})

	t.Run("one percent slippage passes without warning", func(t *testing.T) {
		r := validRoute()
		r.ToAmount = "2000000"
		r.ToAmountMin = "1980000"
		res := Validate(r)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Warnings)
	})

	t.Run("min above quoted amount is an error", func(t *testing.T) {
		r := validRoute()
		r.ToAmountMin = "2000001"
		res := Validate(r)
		assert.False(t, res.Valid)
	})

	t.Run("excessive slippage warns but stays valid", func(t *testing.T) {
		r := validRoute()
		r.ToAmountMin = "900000"
		res := Validate(r)
		assert.True(t, res.Valid)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "slippage")
	})

	t.Run("missing steps fails with at least one error", func(t *testing.T) {
		r := validRoute()
		r.Steps = nil
		res := Validate(r)
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("accumulates all errors", func(t *testing.T) {
		r := validRoute()
		r.FromAmount = "not-a-number"
		r.ToAmount = ""
		r.Steps[0].Tool = ""
		res := Validate(r)
		assert.False(t, res.Valid)
		assert.GreaterOrEqual(t, len(res.Errors), 3)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		r := validRoute()
		r.FromAmount = "-5"
		res := Validate(r)
		assert.False(t, res.Valid)
	})

	t.Run("bad usd field rejected", func(t *testing.T) {
		r := validRoute()
		r.GasCostUSD = "four dollars"
		res := Validate(r)
		assert.False(t, res.Valid)
	})

	t.Run("broken step chaining rejected", func(t *testing.T) {
		r := validRoute()
		dai := &types.Token{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", ChainID: 1, Symbol: "DAI", Decimals: 18}
		second := &types.Step{
			ID:   "s2",
			Type: types.StepSwap,
			Tool: "sushiswap",
			Action: &types.StepAction{
				FromChainID: 1,
				ToChainID:   1,
				FromToken:   dai, // previous step outputs USDC
				ToToken:     r.ToToken,
				FromAmount:  "2000000",
			},
			Estimate: &types.StepEstimate{ToAmount: "2000000"},
		}
		r.Steps = append(r.Steps, second)
		res := Validate(r)
		assert.False(t, res.Valid)
	})

	t.Run("nil route", func(t *testing.T) {
		res := Validate(nil)
		assert.False(t, res.Valid)
	})
}
