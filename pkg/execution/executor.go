// Package execution performs the pre-flight checks on a selected
// route and builds and submits the final transaction.
package execution

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"xswap/pkg/amount"
	"xswap/pkg/history"
	"xswap/pkg/quote"
	"xswap/pkg/route"
	"xswap/pkg/swaperr"
	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

const (
	// GasFloor is the minimum viable gas limit; anything below cannot
	// even cover a bare transfer.
	GasFloor = 21000
	// GasCeiling flags a suspiciously high limit for confirmation.
	GasCeiling = 10_000_000
	// GasBufferPercent pads the declared limit against estimation
	// drift.
	GasBufferPercent = 20
	// ValueTolerancePercent bounds the allowed deviation between the
	// declared native value and the expected atomic amount.
	ValueTolerancePercent = 1
)

var log = logrus.WithField("pkg", "execution")

// StepSource builds the concrete transaction payload for a step;
// satisfied by client.Client.
type StepSource interface {
	StepTransaction(ctx context.Context, step *types.Step) (*types.TransactionRequest, error)
}

// Confirmer resolves the security decisions that must not be silently
// passed through or silently rejected. The CLI wires a prompt; tests
// wire fakes.
type Confirmer interface {
	// ConfirmUnknownRouter is asked when the destination contract is
	// not on the per-chain allow-list.
	ConfirmUnknownRouter(address string) bool
	// ConfirmHighGas is asked when the declared gas limit exceeds the
	// suspicious ceiling.
	ConfirmHighGas(gasLimit uint64) bool
}

// Config tunes the executor.
type Config struct {
	// Freshness bounds route age at execution time.
	Freshness time.Duration
	// Routers is the per-chain allow-list of known router contracts,
	// lower-cased.
	Routers map[int64][]string
}

// DefaultConfig returns the standard execution thresholds.
func DefaultConfig() Config {
	return Config{Freshness: quote.FreshnessWindow}
}

// Executor validates a selected route and submits the transaction.
type Executor struct {
	wallet  wallet.Wallet
	steps   StepSource
	history *history.Store
	confirm Confirmer
	cfg     Config
	now     func() time.Time
}

// New creates an executor. history may be nil to skip persistence.
func New(w wallet.Wallet, steps StepSource, hist *history.Store, confirm Confirmer, cfg Config) *Executor {
	if cfg.Freshness == 0 {
		cfg.Freshness = quote.FreshnessWindow
	}
	return &Executor{
		wallet:  w,
		steps:   steps,
		history: hist,
		confirm: confirm,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Execute runs the pre-flight checks in order, aborting on the first
// failure, then submits the transaction. On success the hash is
// recorded as a pending history entry; an aborted step has no side
// effects beyond diagnostic logging.
func (e *Executor) Execute(ctx context.Context, r *types.Route) (string, error) {
	// 1. Structural validation.
	if r == nil {
		return "", swaperr.New(swaperr.KindValidation, "no route selected")
	}
	if res := route.Validate(r); !res.Valid {
		return "", swaperr.New(swaperr.KindValidation, "route failed validation: %s", strings.Join(res.Errors, "; "))
	}

	// 2. Staleness, enforced again here: the user may have sat on a
	// quote long past selection time.
	if age := r.Age(e.now()); age > e.cfg.Freshness {
		return "", swaperr.New(swaperr.KindStaleQuote, "quote is %s old, refresh before executing", age.Round(time.Second))
	}

	// 3. Balance sufficiency, re-checked synchronously right before
	// submission.
	if err := e.checkBalance(ctx, r); err != nil {
		return "", err
	}

	// 4. Connected chain must match the route's source chain.
	if err := e.ensureChain(ctx, r.FromChainID); err != nil {
		return "", err
	}

	// 5. Concrete step transaction from the aggregator.
	tx, err := e.steps.StepTransaction(ctx, r.Steps[0])
	if err != nil {
		return "", err
	}
	if err := checkPayload(tx); err != nil {
		return "", err
	}

	// 6. Router allow-list.
	if err := e.checkRouter(r.FromChainID, tx.To); err != nil {
		return "", err
	}

	// 7. Gas-limit sanity.
	gasLimit, err := e.checkGas(tx)
	if err != nil {
		return "", err
	}

	// 8. Native-value tolerance.
	if err := e.checkValue(r, tx); err != nil {
		return "", err
	}

	// 9. Submit with buffered gas limit.
	buffered := gasLimit * (100 + GasBufferPercent) / 100
	tx.GasLimit = new(big.Int).SetUint64(buffered).String()

	txHash, err := e.wallet.SendTransaction(ctx, tx)
	if err != nil {
		return "", swaperr.ClassifyExecution(err)
	}
	log.WithFields(logrus.Fields{"tx": txHash, "route": r.ID}).Info("swap submitted")

	if e.history != nil {
		e.history.Save(e.wallet.Address(), history.Entry{
			ID:          txHash,
			FromToken:   r.FromToken.Symbol,
			ToToken:     r.ToToken.Symbol,
			FromAmount:  amount.FromAtomicUnits(r.FromAmount, r.FromToken.Decimals),
			ToAmount:    amount.FromAtomicUnits(r.ToAmount, r.ToToken.Decimals),
			FromChainID: r.FromChainID,
			ToChainID:   r.ToChainID,
			Status:      history.StatusPending,
			Provider:    r.Tool(),
			Timestamp:   e.now().UTC(),
		})
	}
	return txHash, nil
}

func (e *Executor) checkBalance(ctx context.Context, r *types.Route) error {
	required, ok := new(big.Int).SetString(r.FromAmount, 10)
	if !ok {
		return swaperr.New(swaperr.KindValidation, "unparseable route amount %q", r.FromAmount)
	}

	var balance *big.Int
	var err error
	if types.IsNativeAsset(r.FromToken.Address) {
		balance, err = e.wallet.NativeBalance(ctx)
	} else {
		balance, err = e.wallet.TokenBalance(ctx, r.FromToken.Address)
	}
	if err != nil {
		return swaperr.Wrap(swaperr.KindNetwork, err, "reading balance")
	}
	if balance.Cmp(required) < 0 {
		return swaperr.New(swaperr.KindExecution, "insufficient %s balance: have %s, need %s",
			r.FromToken.Symbol, balance, required)
	}
	return nil
}

func (e *Executor) ensureChain(ctx context.Context, chainID int64) error {
	current, err := e.wallet.ChainID(ctx)
	if err != nil {
		return swaperr.Wrap(swaperr.KindNetwork, err, "reading connected chain")
	}
	if current == chainID {
		return nil
	}
	if err := e.wallet.SwitchChain(ctx, chainID); err != nil {
		return swaperr.Wrap(swaperr.KindValidation, err, "route requires a different chain and switching failed")
	}
	// Re-validate after the switch.
	current, err = e.wallet.ChainID(ctx)
	if err != nil {
		return swaperr.Wrap(swaperr.KindNetwork, err, "reading connected chain")
	}
	if current != chainID {
		return swaperr.New(swaperr.KindValidation, "connected to chain %d, route requires %d", current, chainID)
	}
	return nil
}

// checkPayload hard-fails on a missing destination, calldata, value or
// gas field. A transaction with empty calldata or an undefined
// destination must never be submitted.
func checkPayload(tx *types.TransactionRequest) error {
	if tx.To == "" {
		return swaperr.New(swaperr.KindValidation, "step transaction has no destination address")
	}
	if tx.Data == "" || tx.Data == "0x" {
		return swaperr.New(swaperr.KindValidation, "step transaction has empty calldata")
	}
	if tx.Value == "" {
		return swaperr.New(swaperr.KindValidation, "step transaction has no value field")
	}
	if tx.GasLimit == "" {
		return swaperr.New(swaperr.KindValidation, "step transaction has no gas limit")
	}
	return nil
}

// checkRouter verifies the destination against the per-chain
// allow-list. An unknown destination is not auto-rejected, since the
// aggregator may have deployed a new router; it needs caller-level
// confirmation and is logged as a security event either way.
func (e *Executor) checkRouter(chainID int64, to string) error {
	addr := strings.ToLower(to)
	for _, known := range e.cfg.Routers[chainID] {
		if strings.ToLower(known) == addr {
			return nil
		}
	}
	log.WithFields(logrus.Fields{"chain": chainID, "router": to}).
		Warn("security: destination is not a known router contract")
	if e.confirm == nil || !e.confirm.ConfirmUnknownRouter(to) {
		return swaperr.New(swaperr.KindValidation, "unknown router %s was not confirmed", to)
	}
	return nil
}

func (e *Executor) checkGas(tx *types.TransactionRequest) (uint64, error) {
	gas, ok := wallet.ParseQuantity(tx.GasLimit)
	if !ok {
		return 0, swaperr.New(swaperr.KindValidation, "unparseable gas limit %q", tx.GasLimit)
	}
	// Uint64 on an out-of-range big.Int wraps; a wrapped gas limit must
	// not sneak past the floor check.
	if !gas.IsUint64() {
		return 0, swaperr.New(swaperr.KindValidation, "gas limit %s is out of range", gas)
	}
	limit := gas.Uint64()
	if limit < GasFloor {
		return 0, swaperr.New(swaperr.KindValidation, "gas limit %d below minimum viable %d", limit, GasFloor)
	}
	if limit > GasCeiling {
		log.WithField("gas", limit).Warn("security: suspiciously high gas limit")
		if e.confirm == nil || !e.confirm.ConfirmHighGas(limit) {
			return 0, swaperr.New(swaperr.KindValidation, "gas limit %d was not confirmed", limit)
		}
	}
	return limit, nil
}

// checkValue enforces the ±1% tolerance between the declared
// transaction value and the expected atomic amount on native-asset
// swaps. A mismatch outside tolerance means the route and transaction
// disagree about how much is being sent.
func (e *Executor) checkValue(r *types.Route, tx *types.TransactionRequest) error {
	if !types.IsNativeAsset(r.FromToken.Address) {
		return nil
	}
	value, ok := wallet.ParseQuantity(tx.Value)
	if !ok {
		return swaperr.New(swaperr.KindValidation, "unparseable transaction value %q", tx.Value)
	}
	if value.Sign() < 0 {
		return swaperr.New(swaperr.KindValidation, "transaction value %s is negative", value)
	}
	expected, ok := new(big.Int).SetString(r.FromAmount, 10)
	if !ok {
		return swaperr.New(swaperr.KindValidation, "unparseable route amount %q", r.FromAmount)
	}

	diff := new(big.Int).Sub(value, expected)
	diff.Abs(diff)
	// diff * 100 > expected * tolerance  <=>  diff/expected > 1%
	lhs := new(big.Int).Mul(diff, big.NewInt(100))
	rhs := new(big.Int).Mul(expected, big.NewInt(ValueTolerancePercent))
	if lhs.Cmp(rhs) > 0 {
		return swaperr.New(swaperr.KindValidation,
			"transaction value %s deviates more than %d%% from expected %s", value, ValueTolerancePercent, expected)
	}
	return nil
}
