package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// SwapRequest is the parsed form of a swap command line, before token
// symbols are resolved against the aggregator's token list.
type SwapRequest struct {
	Amount     string
	FromSymbol string
	ToSymbol   string
}

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 ETH to USDC"
//   - "1.5 WETH to DAI"
//   - "100 USDC to WBTC"
func ParseSwapCommand(command string) (*SwapRequest, error) {
	// Normalize the command
	command = strings.TrimSpace(strings.ToUpper(command))

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	// Pattern: <amount> <source_token> TO <dest_token>
	// Matches: "1 ETH TO USDC", "1.5 WETH TO DAI", "100.25 USDC TO WBTC"
	pattern := regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)

	matches := pattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: '<amount> <token> to <token>' (e.g., '1 ETH to USDC')")
	}

	return &SwapRequest{
		Amount:     matches[1],
		FromSymbol: NormalizeTokenSymbol(matches[2]),
		ToSymbol:   NormalizeTokenSymbol(matches[3]),
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.FromSymbol == "" {
		return fmt.Errorf("source token is required")
	}
	if req.ToSymbol == "" {
		return fmt.Errorf("destination token is required")
	}
	if req.FromSymbol == req.ToSymbol {
		return fmt.Errorf("source and destination tokens are the same")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common aliases
	aliases := map[string]string{
		"POL": "MATIC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
