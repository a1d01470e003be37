// Package amount converts between human-readable decimal amounts and
// integer atomic units. All arithmetic is big.Int based; floating
// point is never used, so conversions stay exact for tokens with
// large supplies and high decimal counts.
package amount

import (
	"math/big"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("pkg", "amount")

// ToAtomicUnits converts a decimal string to an integer atomic-unit
// string (amount * 10^decimals). Excess fractional precision beyond
// decimals is truncated, not rounded.
//
// Invalid input returns "0" and logs a diagnostic. Callers must treat
// "0" as a sentinel failure rather than a valid zero amount.
func ToAtomicUnits(amount string, decimals int) string {
	whole, frac, ok := normalize(amount)
	if !ok {
		log.WithField("amount", amount).Warn("rejecting unparseable amount")
		return "0"
	}

	if len(frac) > decimals {
		frac = frac[:decimals]
	} else {
		frac = frac + strings.Repeat("0", decimals-len(frac))
	}

	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		log.WithField("amount", amount).Warn("rejecting unparseable integer part")
		return "0"
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result := new(big.Int).Mul(wholeInt, scale)

	if frac != "" {
		fracInt, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			log.WithField("amount", amount).Warn("rejecting unparseable fractional part")
			return "0"
		}
		result.Add(result, fracInt)
	}

	return result.String()
}

// FromAtomicUnits converts an integer atomic-unit string back to a
// decimal string, trimming trailing fractional zeros.
func FromAtomicUnits(atomic string, decimals int) string {
	v, ok := new(big.Int).SetString(strings.TrimSpace(atomic), 10)
	if !ok || v.Sign() < 0 {
		log.WithField("atomic", atomic).Warn("rejecting unparseable atomic amount")
		return "0"
	}
	if decimals == 0 {
		return v.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, scale, new(big.Int))

	fracStr := frac.String()
	if len(fracStr) < decimals {
		fracStr = strings.Repeat("0", decimals-len(fracStr)) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

// normalize splits a decimal string into whole and fractional digit
// strings, expanding scientific notation to fixed point first.
// Negative, empty, and non-numeric input is rejected.
func normalize(amount string) (whole, frac string, ok bool) {
	s := strings.TrimSpace(amount)
	if s == "" || strings.HasPrefix(s, "-") {
		return "", "", false
	}
	s = strings.TrimPrefix(s, "+")

	// Expand scientific notation (e.g. 1.5e18, 2E-6) before the
	// integer/fraction split.
	if strings.ContainsAny(s, "eE") {
		f, _, err := big.ParseFloat(s, 10, 512, big.ToNearestEven)
		if err != nil {
			return "", "", false
		}
		s = f.Text('f', -1)
	}

	parts := strings.SplitN(s, ".", 2)
	whole = parts[0]
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}
	if !digitsOnly(whole) || (frac != "" && !digitsOnly(frac)) {
		return "", "", false
	}
	return whole, frac, true
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
