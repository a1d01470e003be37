// Package monitor tracks a submitted transaction from submission to a
// terminal outcome, combining local receipt polling with remote
// bridge-status polling and stuck detection.
package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"xswap/pkg/history"
	"xswap/pkg/swaperr"
	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

var log = logrus.WithField("pkg", "monitor")

// State is a phase of the tracking lifecycle.
type State string

const (
	StateIdle       State = "IDLE"
	StatePending    State = "PENDING"
	StateConfirming State = "CONFIRMING"
	StateBridging   State = "BRIDGING"
	StateSuccess    State = "SUCCESS"
	StateFailed     State = "FAILED"
	StateStuck      State = "STUCK"
)

// Terminal reports whether the state ends tracking.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateStuck
}

// Event is one state transition, delivered in order on the watch
// channel. The terminal event is delivered exactly once and closes the
// channel.
type Event struct {
	Status        State
	TxHash        string
	Confirmations uint64
	BridgeStatus  string
	Err           error
	Elapsed       time.Duration
}

// ReceiptWaiter resolves local receipts; satisfied by wallet.Wallet.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash string) (*wallet.Receipt, error)
}

// StatusSource resolves aggregator-side transfer status; satisfied by
// client.Client.
type StatusSource interface {
	Status(ctx context.Context, txHash, bridge string, fromChain, toChain int64) (*types.StatusReport, error)
}

const (
	// DefaultPollInterval is the cadence of remote status polls and
	// stuck checks.
	DefaultPollInterval = 30 * time.Second
	// DefaultSwapCeiling bounds how long a single-chain swap is
	// watched before giving up.
	DefaultSwapCeiling = 30 * time.Minute
	// DefaultBridgeCeiling bounds cross-chain transfers, which settle
	// on the destination chain's schedule.
	DefaultBridgeCeiling = 60 * time.Minute
)

// Config carries tunables for a Monitor. Zero values fall back to the
// defaults above.
type Config struct {
	PollInterval  time.Duration
	SwapCeiling   time.Duration
	BridgeCeiling time.Duration
}

func (c *Config) fill() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SwapCeiling <= 0 {
		c.SwapCeiling = DefaultSwapCeiling
	}
	if c.BridgeCeiling <= 0 {
		c.BridgeCeiling = DefaultBridgeCeiling
	}
}

// Monitor watches submissions for one wallet. Each Watch call is an
// independent tracking session.
type Monitor struct {
	receipts ReceiptWaiter
	remote   StatusSource
	history  *history.Store
	wallet   string
	cfg      Config
	now      func() time.Time
}

func New(receipts ReceiptWaiter, remote StatusSource, hist *history.Store, walletAddr string, cfg Config) *Monitor {
	cfg.fill()
	return &Monitor{
		receipts: receipts,
		remote:   remote,
		history:  hist,
		wallet:   walletAddr,
		cfg:      cfg,
		now:      time.Now,
	}
}

type receiptResult struct {
	receipt *wallet.Receipt
	err     error
}

// Watch tracks txHash through the lifecycle described by the route it
// belongs to. Transitions arrive in order on the returned channel;
// after a terminal state the channel is closed and all timers and
// in-flight polls are stopped. Cancelling ctx abandons the session
// without a terminal event.
func (m *Monitor) Watch(ctx context.Context, txHash string, r *types.Route) <-chan Event {
	events := make(chan Event, 8)
	go m.run(ctx, txHash, r, events)
	return events
}

func (m *Monitor) run(ctx context.Context, txHash string, r *types.Route, events chan<- Event) {
	defer close(events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	crossChain := r != nil && r.CrossChain()
	bridge := ""
	var fromChain, toChain int64
	if r != nil {
		bridge = r.Tool()
		fromChain, toChain = r.FromChainID, r.ToChainID
	}
	ceiling := m.cfg.SwapCeiling
	if crossChain {
		ceiling = m.cfg.BridgeCeiling
	}
	started := m.now()

	emit := func(ev Event) bool {
		ev.TxHash = txHash
		ev.Elapsed = m.now().Sub(started)
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Status: StatePending}) {
		return
	}

	receiptCh := make(chan receiptResult, 1)
	go func() {
		receipt, err := m.receipts.WaitForReceipt(ctx, txHash)
		receiptCh <- receiptResult{receipt, err}
	}()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	settle := func(ev Event, status history.Status) {
		if m.history != nil && status != "" {
			m.history.UpdateStatus(m.wallet, txHash, status)
		}
		emit(ev)
	}

	bridging := false
	for {
		select {
		case <-ctx.Done():
			return

		case res := <-receiptCh:
			if res.err != nil {
				if ctx.Err() != nil {
					return
				}
				settle(Event{Status: StateFailed, Err: swaperr.Wrap(swaperr.KindMonitoring, res.err, "waiting for receipt")}, history.StatusFailed)
				return
			}
			if !res.receipt.Success {
				settle(Event{Status: StateFailed, Err: swaperr.New(swaperr.KindExecution, "transaction reverted on-chain")}, history.StatusFailed)
				return
			}
			if !emit(Event{Status: StateConfirming, Confirmations: 1}) {
				return
			}
			if !crossChain {
				settle(Event{Status: StateSuccess, Confirmations: 1}, history.StatusCompleted)
				return
			}
			bridging = true
			if !emit(Event{Status: StateBridging, Confirmations: 1}) {
				return
			}
			receiptCh = nil

		case <-ticker.C:
			if elapsed := m.now().Sub(started); elapsed > ceiling {
				log.WithFields(logrus.Fields{"tx": txHash, "elapsed": elapsed.Round(time.Second)}).Warn("giving up on transaction")
				settle(Event{
					Status: StateStuck,
					Err: swaperr.New(swaperr.KindMonitoring,
						"no terminal status after %s, giving up watching (the transaction may still settle)", elapsed.Round(time.Minute)),
				}, "")
				return
			}
			if !crossChain {
				continue
			}
			report, err := m.remote.Status(ctx, txHash, bridge, fromChain, toChain)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Transient status-endpoint failures are retried on the
				// next tick.
				log.WithError(err).WithField("tx", txHash).Debug("status poll failed")
				continue
			}
			switch report.Status {
			case types.RemoteStatusDone, types.RemoteStatusSuccess:
				settle(Event{Status: StateSuccess, BridgeStatus: report.Status}, history.StatusCompleted)
				return
			case types.RemoteStatusFailed, types.RemoteStatusInvalid:
				msg := report.Message
				if msg == "" {
					msg = "transfer failed on the destination side"
				}
				settle(Event{
					Status:       StateFailed,
					BridgeStatus: report.Status,
					Err:          swaperr.New(swaperr.KindMonitoring, "%s", msg),
				}, history.StatusFailed)
				return
			default:
				if bridging {
					emit(Event{Status: StateBridging, Confirmations: 1, BridgeStatus: report.Status})
				}
			}
		}
	}
}

const (
	// PollAttempts caps the hash-only poller at roughly ten minutes.
	PollAttempts = 200
	// PollInterval is the fixed cadence of the hash-only poller.
	PollInterval = 3 * time.Second
	// PollNoRecordAttempts bounds how many polls the poller spends on
	// a hash the indexer has never seen, about one minute at the
	// default interval.
	PollNoRecordAttempts = 20
)

// PollStatus watches a bare transaction hash without a live submission
// context, polling the status endpoint until a terminal status
// arrives. A hash the indexer never acknowledges is abandoned after
// PollNoRecordAttempts polls; a known-but-settling transfer is given
// the full attempt cap.
func PollStatus(ctx context.Context, source StatusSource, txHash, bridge string, fromChain, toChain int64, interval time.Duration) (*types.StatusReport, error) {
	if interval <= 0 {
		interval = PollInterval
	}
	seen := false
	var last *types.StatusReport

	for attempt := 1; attempt <= PollAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(interval):
			}
		}

		report, err := source.Status(ctx, txHash, bridge, fromChain, toChain)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
		} else if report != nil && report.Status != "" && report.Status != types.RemoteStatusNotFound {
			seen = true
			last = report
			if types.Terminal(report.Status) {
				return report, nil
			}
		}

		if !seen && attempt >= PollNoRecordAttempts {
			return nil, swaperr.New(swaperr.KindMonitoring,
				"transaction %s is unknown to the indexer after %d polls", txHash, attempt)
		}
	}
	return last, swaperr.New(swaperr.KindMonitoring,
		"transaction %s did not reach a terminal status within %d polls", txHash, PollAttempts)
}
