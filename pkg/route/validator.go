// Package route performs structural validation of aggregator routes
// before they are trusted anywhere else in the pipeline.
package route

import (
	"fmt"
	"math/big"
	"strconv"

	"xswap/pkg/types"
)

// Result accumulates every problem found in a route so a caller can
// present a complete diagnostic instead of the first failure.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *Result) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks a route's structure: amount fields parse as
// non-negative integers, min-received does not exceed the quoted
// amount, steps are present with their required sub-fields and chain
// into each other, and token metadata carries decimals. A route with
// any error must never reach execution.
func Validate(r *types.Route) Result {
	res := Result{}
	if r == nil {
		res.errorf("route is nil")
		return res
	}

	checkAtomic(&res, "fromAmount", r.FromAmount)
	toAmount := checkAtomic(&res, "toAmount", r.ToAmount)
	toAmountMin := checkAtomic(&res, "toAmountMin", r.ToAmountMin)

	if toAmount != nil && toAmountMin != nil {
		if toAmountMin.Cmp(toAmount) > 0 {
			res.errorf("toAmountMin %s exceeds toAmount %s", r.ToAmountMin, r.ToAmount)
		} else if toAmount.Sign() > 0 {
			// Flag slippage above half the quoted amount; the quote is
			// probably usable but the user should see the spread.
			slip := new(big.Int).Sub(toAmount, toAmountMin)
			if slip.Mul(slip, big.NewInt(2)).Cmp(toAmount) > 0 {
				res.warnf("slippage exceeds 50%% of toAmount (min %s vs %s)", r.ToAmountMin, r.ToAmount)
			}
		}
	}

	checkToken(&res, "fromToken", r.FromToken)
	checkToken(&res, "toToken", r.ToToken)
	checkUSD(&res, "gasCostUSD", r.GasCostUSD)
	for i, fee := range r.Fees {
		checkUSD(&res, fmt.Sprintf("fees[%d].amountUSD", i), fee.AmountUSD)
	}

	if len(r.Steps) == 0 {
		res.errorf("route has no steps")
	}
	for i, step := range r.Steps {
		checkStep(&res, i, step)
	}
	checkStepChaining(&res, r.Steps)

	res.Valid = len(res.Errors) == 0
	return res
}

func checkAtomic(res *Result, field, value string) *big.Int {
	if value == "" {
		res.errorf("%s is missing", field)
		return nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		res.errorf("%s %q is not an integer", field, value)
		return nil
	}
	if v.Sign() < 0 {
		res.errorf("%s %q is negative", field, value)
		return nil
	}
	return v
}

func checkUSD(res *Result, field, value string) {
	if value == "" {
		return
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		res.errorf("%s %q is not a number", field, value)
		return
	}
	if v < 0 {
		res.errorf("%s %q is negative", field, value)
	}
}

func checkToken(res *Result, field string, tok *types.Token) {
	if tok == nil {
		res.errorf("%s is missing", field)
		return
	}
	if tok.Address == "" {
		res.errorf("%s.address is missing", field)
	}
	if tok.Decimals < 0 {
		res.errorf("%s.decimals is negative", field)
	}
}

func checkStep(res *Result, i int, step *types.Step) {
	if step == nil {
		res.errorf("steps[%d] is nil", i)
		return
	}
	if step.ID == "" {
		res.errorf("steps[%d].id is missing", i)
	}
	if step.Type == "" {
		res.errorf("steps[%d].type is missing", i)
	}
	if step.Tool == "" {
		res.errorf("steps[%d].tool is missing", i)
	}
	if step.Action == nil {
		res.errorf("steps[%d].action is missing", i)
	} else {
		if step.Action.FromToken == nil {
			res.errorf("steps[%d].action.fromToken is missing", i)
		}
		if step.Action.ToToken == nil {
			res.errorf("steps[%d].action.toToken is missing", i)
		}
		checkAtomic(res, fmt.Sprintf("steps[%d].action.fromAmount", i), step.Action.FromAmount)
	}
	if step.Estimate == nil {
		res.errorf("steps[%d].estimate is missing", i)
	} else {
		checkAtomic(res, fmt.Sprintf("steps[%d].estimate.toAmount", i), step.Estimate.ToAmount)
		checkUSD(res, fmt.Sprintf("steps[%d].estimate.gasCostUSD", i), step.Estimate.GasCostUSD)
	}
}

// checkStepChaining verifies that each step's output token and chain
// feed the next step's input.
func checkStepChaining(res *Result, steps []*types.Step) {
	for i := 1; i < len(steps); i++ {
		prev, cur := steps[i-1], steps[i]
		if prev == nil || cur == nil || prev.Action == nil || cur.Action == nil {
			continue
		}
		if prev.Action.ToToken == nil || cur.Action.FromToken == nil {
			continue
		}
		if prev.Action.ToToken.Address != cur.Action.FromToken.Address ||
			prev.Action.ToChainID != cur.Action.FromChainID {
			res.errorf("steps[%d] output %s (chain %d) does not feed steps[%d] input %s (chain %d)",
				i-1, prev.Action.ToToken.Address, prev.Action.ToChainID,
				i, cur.Action.FromToken.Address, cur.Action.FromChainID)
		}
	}
}
