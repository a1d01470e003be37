package client

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"xswap/pkg/types"
)

// The upstream aggregator is known to return corrupted token records:
// stablecoin symbols attached to the native-asset sentinel address,
// and glitched prices (a four-digit asset quoted at a dollar). The
// sanitizer repairs or drops these before anything downstream sees
// them; only the sanitized view is ever cached.

// PrimaryChainID is the chain whose well-known token addresses are
// verified against their canonical deployments.
const PrimaryChainID int64 = 1

// canonicalAddresses maps well-known symbols on the primary chain to
// their canonical contract addresses (lower-cased).
var canonicalAddresses = map[string]string{
	"USDC": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
	"USDT": "0xdac17f958d2ee523a2206206994597c13d831ec7",
	"DAI":  "0x6b175474e89094c44da98b954eedeac495271d0f",
	"WETH": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	"WBTC": "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599",
}

var stablecoinSymbols = map[string]bool{
	"USDC": true, "USDT": true, "DAI": true, "BUSD": true, "FRAX": true, "TUSD": true,
}

// SanitizerConfig carries the price-repair thresholds. The values are
// heuristics calibrated against known upstream feed glitches, not
// business rules; they are configurable and should be revisited
// periodically.
type SanitizerConfig struct {
	// Stablecoin prices outside [PegLow, PegHigh] are clamped to 1.00.
	PegLow  float64
	PegHigh float64
	// PriceFloors maps a symbol to the minimum plausible USD price;
	// a reported price below the floor is replaced with the floor.
	PriceFloors map[string]float64
}

// DefaultSanitizerConfig returns the current calibration.
func DefaultSanitizerConfig() SanitizerConfig {
	return SanitizerConfig{
		PegLow:  0.9,
		PegHigh: 1.1,
		PriceFloors: map[string]float64{
			"ETH":  500,
			"WETH": 500,
			"WBTC": 10000,
			"BTC":  10000,
		},
	}
}

// Sanitizer repairs corrupted token records from the aggregator.
type Sanitizer struct {
	cfg SanitizerConfig
}

// NewSanitizer creates a sanitizer; a nil *Sanitizer passes tokens
// through untouched.
func NewSanitizer(cfg SanitizerConfig) *Sanitizer {
	return &Sanitizer{cfg: cfg}
}

// SanitizeTokens drops corrupted records and repairs anomalous prices
// for one chain's token list.
func (s *Sanitizer) SanitizeTokens(chainID int64, tokens []types.Token) []types.Token {
	if s == nil {
		return tokens
	}
	out := make([]types.Token, 0, len(tokens))
	for _, tok := range tokens {
		if s.corrupted(chainID, tok) {
			continue
		}
		tok.PriceUSD = s.sanitizePrice(tok.Symbol, tok.PriceUSD)
		out = append(out, tok)
	}
	return out
}

func (s *Sanitizer) corrupted(chainID int64, tok types.Token) bool {
	symbol := strings.ToUpper(tok.Symbol)
	addr := strings.ToLower(tok.Address)

	// A stablecoin symbol on the native sentinel address is a known
	// corruption pattern in the upstream feed.
	if stablecoinSymbols[symbol] && types.IsNativeAsset(addr) {
		log.WithFields(logrus.Fields{"symbol": tok.Symbol, "chain": chainID}).
			Warn("dropping token: stablecoin symbol on native sentinel address")
		return true
	}

	if chainID == PrimaryChainID {
		if canonical, known := canonicalAddresses[symbol]; known && addr != canonical {
			log.WithFields(logrus.Fields{"symbol": tok.Symbol, "address": tok.Address}).
				Warn("dropping token: address does not match canonical deployment")
			return true
		}
	}
	return false
}

// sanitizePrice clamps stablecoins to the peg and floors implausibly
// low prices on major volatile assets.
func (s *Sanitizer) sanitizePrice(symbol, price string) string {
	if price == "" {
		return price
	}
	v, err := strconv.ParseFloat(price, 64)
	if err != nil || v < 0 {
		return ""
	}
	upper := strings.ToUpper(symbol)

	if stablecoinSymbols[upper] {
		if v < s.cfg.PegLow || v > s.cfg.PegHigh {
			log.WithFields(logrus.Fields{"symbol": symbol, "price": price}).
				Warn("clamping off-peg stablecoin price")
			return "1.00"
		}
		return price
	}

	if floor, ok := s.cfg.PriceFloors[upper]; ok && v < floor {
		log.WithFields(logrus.Fields{"symbol": symbol, "price": price, "floor": floor}).
			Warn("replacing implausibly low price with floor")
		return strconv.FormatFloat(floor, 'f', -1, 64)
	}
	return price
}
