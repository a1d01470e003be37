// Package approval drives the token-spending authorization state
// machine: determining whether the router may spend the source token,
// submitting the approval transaction, and reconciling optimistic
// local state against on-chain allowance.
package approval

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"xswap/pkg/swaperr"
	"xswap/pkg/wallet"
)

// Status is the approval lifecycle state.
type Status string

const (
	StatusUnknown  Status = "UNKNOWN"
	StatusChecking Status = "CHECKING"
	StatusNeeded   Status = "NEEDED"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusError    Status = "ERROR"
)

// BufferPercent pads the required amount to tolerate rounding on
// "exact" approvals.
const BufferPercent = 5

var reconcileDelays = []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}

// MaxUint256 is the unlimited-approval amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var log = logrus.WithField("pkg", "approval")

// Approver is the wallet capability subset the machine needs;
// satisfied by wallet.Wallet.
type Approver interface {
	Allowance(ctx context.Context, token, spender string) (*big.Int, error)
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) (*wallet.Receipt, error)
}

// Record is the observable approval state for one (token, spender,
// amount) combination.
type Record struct {
	Token     string
	Owner     string
	Spender   string
	Required  *big.Int // requested amount plus buffer
	Allowance *big.Int // nil until the first successful read
	Status    Status
	// Optimistic latches true once an approval confirms locally; a
	// lagging allowance read must never regress the status afterward.
	Optimistic bool
	// Unlimited records that the user explicitly chose an unlimited
	// approval, which carries materially higher risk.
	Unlimited bool
}

// Machine drives one approval record. Create a fresh machine whenever
// token, spender, or amount changes.
type Machine struct {
	approver Approver
	native   bool

	mu  sync.Mutex
	rec Record
	wg  sync.WaitGroup
}

// New creates a machine for the given combination. native marks the
// source asset as the chain's native asset, which never requires
// approval.
func New(approver Approver, token, owner, spender string, amount *big.Int, native bool) *Machine {
	required := new(big.Int)
	if amount != nil {
		required.Mul(amount, big.NewInt(100+BufferPercent))
		required.Div(required, big.NewInt(100))
		// An allowance is a uint256; the buffer must not push the
		// requirement past what can ever be granted.
		if required.Cmp(MaxUint256) > 0 {
			required.Set(MaxUint256)
		}
	}
	status := StatusUnknown
	if native {
		status = StatusApproved
	}
	return &Machine{
		approver: approver,
		native:   native,
		rec: Record{
			Token:    token,
			Owner:    owner,
			Spender:  spender,
			Required: required,
			Status:   status,
		},
	}
}

// Record returns a snapshot of the current state.
func (m *Machine) Record() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.rec
	if rec.Allowance != nil {
		rec.Allowance = new(big.Int).Set(rec.Allowance)
	}
	return rec
}

// Status returns the current lifecycle state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.Status
}

// Check fetches the on-chain allowance and classifies the record.
// The transient CHECKING state is only shown before the first
// successful read; on refetch the previous value keeps being shown.
// A read failure does not force ERROR once a determination exists.
func (m *Machine) Check(ctx context.Context) (Status, error) {
	if m.native {
		return StatusApproved, nil
	}

	m.mu.Lock()
	if m.rec.Allowance == nil && !m.rec.Optimistic {
		m.rec.Status = StatusChecking
	}
	m.mu.Unlock()

	allowance, err := m.approver.Allowance(ctx, m.rec.Token, m.rec.Spender)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if m.rec.Allowance != nil || m.rec.Optimistic {
			// Keep the last-known-good classification on a transient
			// read failure.
			log.WithError(err).WithField("token", m.rec.Token).Warn("allowance refetch failed, keeping previous state")
			return m.rec.Status, nil
		}
		m.rec.Status = StatusError
		return StatusError, swaperr.Wrap(swaperr.KindAuthorization, err, "reading allowance")
	}

	m.rec.Allowance = allowance
	m.classifyLocked()
	return m.rec.Status, nil
}

// classifyLocked sets status from the authoritative allowance, except
// that the optimistic latch never regresses.
func (m *Machine) classifyLocked() {
	if m.rec.Optimistic {
		m.rec.Status = StatusApproved
		return
	}
	if m.rec.Allowance.Cmp(m.rec.Required) >= 0 {
		m.rec.Status = StatusApproved
	} else {
		m.rec.Status = StatusNeeded
	}
}

// Approve submits the approval transaction and waits for its receipt.
// unlimited must only be passed after explicit, separately recorded
// user confirmation; the default path approves the buffered amount.
func (m *Machine) Approve(ctx context.Context, unlimited bool) error {
	if m.native {
		return nil
	}

	amount := new(big.Int).Set(m.rec.Required)
	if unlimited {
		amount.Set(MaxUint256)
	}

	m.mu.Lock()
	m.rec.Status = StatusPending
	m.rec.Unlimited = unlimited
	m.mu.Unlock()

	txHash, err := m.approver.Approve(ctx, m.rec.Token, m.rec.Spender, amount)
	if err != nil {
		m.setError()
		return swaperr.Wrap(swaperr.KindAuthorization, err, "submitting approval")
	}
	log.WithFields(logrus.Fields{"tx": txHash, "token": m.rec.Token, "unlimited": unlimited}).Info("approval submitted")

	receipt, err := m.approver.WaitForReceipt(ctx, txHash)
	if err != nil {
		m.setError()
		return swaperr.Wrap(swaperr.KindAuthorization, err, "waiting for approval receipt")
	}
	if !receipt.Success {
		m.setError()
		return swaperr.New(swaperr.KindAuthorization, "approval transaction reverted")
	}

	// Local confirmation: latch APPROVED now. RPC reads may lag chain
	// state; waiting for them to catch up causes approval looping.
	m.mu.Lock()
	m.rec.Optimistic = true
	m.rec.Status = StatusApproved
	m.mu.Unlock()

	m.wg.Add(1)
	go m.reconcile()
	return nil
}

func (m *Machine) setError() {
	m.mu.Lock()
	m.rec.Status = StatusError
	m.mu.Unlock()
}

// reconcile re-reads the allowance a few times with increasing delay
// to refresh the authoritative value without blocking the caller. It
// only updates the stored allowance; the optimistic latch keeps the
// status at APPROVED regardless.
func (m *Machine) reconcile() {
	defer m.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, delay := range reconcileDelays {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		allowance, err := m.approver.Allowance(ctx, m.rec.Token, m.rec.Spender)
		if err != nil {
			continue
		}
		m.mu.Lock()
		m.rec.Allowance = allowance
		caughtUp := allowance.Cmp(m.rec.Required) >= 0 || m.rec.Unlimited
		m.mu.Unlock()
		if caughtUp {
			return
		}
	}
}

// Wait blocks until background reconciliation finishes. Used by tests
// and teardown.
func (m *Machine) Wait() { m.wg.Wait() }
