package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSwapCommand(t *testing.T) {
	req, err := ParseSwapCommand("swap 1.5 eth to usdc")
	require.NoError(t, err)
	assert.Equal(t, "1.5", req.Amount)
	assert.Equal(t, "ETH", req.FromSymbol)
	assert.Equal(t, "USDC", req.ToSymbol)

	req, err = ParseSwapCommand("100 USDC to WBTC")
	require.NoError(t, err)
	assert.Equal(t, "100", req.Amount)
	assert.Equal(t, "USDC", req.FromSymbol)
	assert.Equal(t, "WBTC", req.ToSymbol)
}

func TestParseSwapCommandRejectsMalformed(t *testing.T) {
	for _, cmd := range []string{"", "eth to usdc", "1.5 eth usdc", "swap eth"} {
		_, err := ParseSwapCommand(cmd)
		assert.Error(t, err, "command %q", cmd)
	}
}

func TestValidateSwapRequest(t *testing.T) {
	assert.NoError(t, ValidateSwapRequest(&SwapRequest{Amount: "1", FromSymbol: "ETH", ToSymbol: "USDC"}))
	assert.Error(t, ValidateSwapRequest(&SwapRequest{Amount: "1", FromSymbol: "ETH", ToSymbol: "ETH"}))
	assert.Error(t, ValidateSwapRequest(&SwapRequest{FromSymbol: "ETH", ToSymbol: "USDC"}))
}

func TestNormalizeTokenSymbol(t *testing.T) {
	assert.Equal(t, "ETH", NormalizeTokenSymbol(" eth "))
	assert.Equal(t, "MATIC", NormalizeTokenSymbol("pol"))
}
