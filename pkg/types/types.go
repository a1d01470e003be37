package types

import (
	"strings"
	"time"
)

// Native-asset sentinel addresses aggregators use in place of a
// contract address.
var nativeSentinels = map[string]bool{
	"0x0000000000000000000000000000000000000000": true,
	"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee": true,
}

// IsNativeAsset reports whether the address is a native-asset
// sentinel rather than a token contract.
func IsNativeAsset(address string) bool {
	return nativeSentinels[strings.ToLower(address)]
}

// Token describes a swappable asset on a specific chain.
type Token struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name,omitempty"`
	PriceUSD string `json:"priceUSD,omitempty"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// Chain describes a blockchain known to the aggregator.
type Chain struct {
	ID          int64  `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	NativeToken Token  `json:"nativeToken"`
}

// StepAction holds the input side of a single route leg.
type StepAction struct {
	FromChainID int64   `json:"fromChainId"`
	ToChainID   int64   `json:"toChainId"`
	FromToken   *Token  `json:"fromToken"`
	ToToken     *Token  `json:"toToken"`
	FromAmount  string  `json:"fromAmount"`
	Slippage    float64 `json:"slippage,omitempty"`
}

// StepEstimate holds the aggregator's projected outcome for a leg.
type StepEstimate struct {
	ToAmount             string  `json:"toAmount"`
	ToAmountMin          string  `json:"toAmountMin,omitempty"`
	GasCostUSD           string  `json:"gasCostUSD,omitempty"`
	ExecutionDurationSec float64 `json:"executionDuration,omitempty"`
}

// StepType distinguishes the kinds of route legs the aggregator emits.
type StepType string

const (
	StepSwap   StepType = "swap"
	StepBridge StepType = "cross"
	StepFee    StepType = "protocol"
)

// Step is one atomic leg of a route: a same-chain swap, a bridge
// transfer, or a fee deduction.
type Step struct {
	ID       string        `json:"id"`
	Type     StepType      `json:"type"`
	Tool     string        `json:"tool"`
	Action   *StepAction   `json:"action"`
	Estimate *StepEstimate `json:"estimate"`
}

// Fee is a single fee item attached to a route.
type Fee struct {
	Name      string `json:"name"`
	AmountUSD string `json:"amountUSD"`
	Token     *Token `json:"token,omitempty"`
}

// Route is a priced, multi-step plan for converting one token into
// another, possibly across chains. Routes are immutable once returned
// by the aggregator; FetchedAt is stamped client-side and drives the
// staleness checks.
type Route struct {
	ID          string  `json:"id"`
	FromChainID int64   `json:"fromChainId"`
	ToChainID   int64   `json:"toChainId"`
	FromToken   *Token  `json:"fromToken"`
	ToToken     *Token  `json:"toToken"`
	FromAmount  string  `json:"fromAmount"`
	ToAmount    string  `json:"toAmount"`
	ToAmountMin string  `json:"toAmountMin"`
	Steps       []*Step `json:"steps"`
	Fees        []Fee   `json:"fees,omitempty"`
	GasCostUSD  string  `json:"gasCostUSD,omitempty"`

	FetchedAt time.Time `json:"-"`
}

// CrossChain reports whether the route leaves the source chain.
func (r *Route) CrossChain() bool {
	return r.FromChainID != r.ToChainID
}

// Tool returns the provider name of the first step, used as the
// bridge identifier on status queries.
func (r *Route) Tool() string {
	if len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[0].Tool
}

// Age returns how long ago the route was fetched.
func (r *Route) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// RoutesRequest is the quote request sent to the aggregator.
type RoutesRequest struct {
	FromChainID int64   `json:"fromChainId"`
	ToChainID   int64   `json:"toChainId"`
	FromToken   string  `json:"fromTokenAddress"`
	ToToken     string  `json:"toTokenAddress"`
	FromAmount  string  `json:"fromAmount"`
	FromAddress string  `json:"fromAddress,omitempty"`
	ToAddress   string  `json:"toAddress,omitempty"`
	Slippage    float64 `json:"slippage,omitempty"`
}

// TransactionRequest is the concrete submission payload for one step,
// as returned by the aggregator's step-transaction endpoint. Built
// fresh for every execution attempt and never persisted.
type TransactionRequest struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit"`
	GasPrice string `json:"gasPrice,omitempty"`
	ChainID  int64  `json:"chainId"`
}

// StatusLeg describes one side (sending or receiving) of a tracked
// cross-chain transfer.
type StatusLeg struct {
	TxHash  string `json:"txHash,omitempty"`
	ChainID int64  `json:"chainId,omitempty"`
	Amount  string `json:"amount,omitempty"`
}

// StatusReport is the aggregator's view of a submitted transaction.
type StatusReport struct {
	Status    string     `json:"status"`
	Substatus string     `json:"substatus,omitempty"`
	Message   string     `json:"substatusMessage,omitempty"`
	Sending   *StatusLeg `json:"sending,omitempty"`
	Receiving *StatusLeg `json:"receiving,omitempty"`
}

// Aggregator status values with terminal meaning. Anything else is
// treated as still in progress.
const (
	RemoteStatusDone     = "DONE"
	RemoteStatusSuccess  = "SUCCESS"
	RemoteStatusFailed   = "FAILED"
	RemoteStatusInvalid  = "INVALID"
	RemoteStatusNotFound = "NOT_FOUND"
)

// Terminal reports whether a remote status string ends tracking.
func Terminal(status string) bool {
	switch status {
	case RemoteStatusDone, RemoteStatusSuccess, RemoteStatusFailed, RemoteStatusInvalid:
		return true
	}
	return false
}
