// Package history persists swap attempts and their status
// transitions, namespaced by wallet address.
package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

const storageFileName = "history.json"

var log = logrus.WithField("pkg", "history")

// Status is the persisted lifecycle state of a swap attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is one persisted swap attempt, keyed by its transaction hash.
type Entry struct {
	ID          string    `json:"id"` // submission tx hash
	FromToken   string    `json:"from_token"`
	ToToken     string    `json:"to_token"`
	FromAmount  string    `json:"from_amount"`
	ToAmount    string    `json:"to_amount"`
	FromChainID int64     `json:"from_chain_id"`
	ToChainID   int64     `json:"to_chain_id"`
	Status      Status    `json:"status"`
	Provider    string    `json:"provider"`
	Timestamp   time.Time `json:"timestamp"`
}

type fileFormat struct {
	Wallets map[string][]Entry `json:"wallets"`
}

// Store is a durable, file-backed history store. Entries survive
// process restart; wallet keys compare case-insensitively.
type Store struct {
	path string

	mu      sync.RWMutex
	wallets map[string][]Entry
	subs    map[string][]chan Entry
}

// NewStore loads or creates the history file under dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{
		path:    filepath.Join(dir, storageFileName),
		wallets: make(map[string][]Entry),
		subs:    make(map[string][]chan Entry),
	}
	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "loading history")
		}
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	if ff.Wallets != nil {
		s.wallets = ff.Wallets
	}
	return nil
}

// save persists to a temp file and renames for atomicity. Storage
// failures are recoverable: the in-memory view keeps working.
func (s *Store) save() {
	s.mu.RLock()
	data, err := json.MarshalIndent(fileFormat{Wallets: s.wallets}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		log.WithError(err).Warn("history marshal failed")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		log.WithError(err).Warn("history dir create failed")
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		log.WithError(err).Warn("history write failed")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.WithError(err).Warn("history rename failed")
	}
}

func walletKey(addr string) string { return strings.ToLower(addr) }

// Save records a new entry for the wallet.
func (s *Store) Save(walletAddr string, entry Entry) {
	key := walletKey(walletAddr)
	s.mu.Lock()
	s.wallets[key] = append(s.wallets[key], entry)
	s.mu.Unlock()
	s.save()
	s.notify(key, entry)
}

// UpdateStatus mutates the status of an existing entry.
func (s *Store) UpdateStatus(walletAddr, id string, status Status) {
	key := walletKey(walletAddr)
	var updated *Entry
	s.mu.Lock()
	entries := s.wallets[key]
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Status = status
			e := entries[i]
			updated = &e
			break
		}
	}
	s.mu.Unlock()
	if updated == nil {
		return
	}
	s.save()
	s.notify(key, *updated)
}

// Get returns the wallet's entries, newest first.
func (s *Store) Get(walletAddr string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.wallets[walletKey(walletAddr)]
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Clear removes every entry for the wallet.
func (s *Store) Clear(walletAddr string) {
	s.mu.Lock()
	delete(s.wallets, walletKey(walletAddr))
	s.mu.Unlock()
	s.save()
}

// Subscribe returns a channel carrying updates scoped to the given
// wallet only, plus an unsubscribe function.
func (s *Store) Subscribe(walletAddr string) (<-chan Entry, func()) {
	key := walletKey(walletAddr)
	ch := make(chan Entry, 16)
	s.mu.Lock()
	s.subs[key] = append(s.subs[key], ch)
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.subs[key]
		for i, c := range chans {
			if c == ch {
				s.subs[key] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe
}

func (s *Store) notify(key string, entry Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs[key] {
		select {
		case ch <- entry:
		default:
			// A subscriber that stopped draining does not block the
			// pipeline.
		}
	}
}

// ReceiptLookup resolves local receipts; satisfied by wallet.Wallet.
type ReceiptLookup interface {
	WaitForReceipt(ctx context.Context, txHash string) (*wallet.Receipt, error)
}

// RemoteStatus resolves aggregator status; satisfied by client.Client.
type RemoteStatus interface {
	Status(ctx context.Context, txHash, bridge string, fromChain, toChain int64) (*types.StatusReport, error)
}

// Reconcile re-derives the true status of entries still marked
// pending, healing history left stale by an interrupted session.
// Same-chain entries consult the local receipt; cross-chain entries
// consult the aggregator status endpoint. Entries whose status cannot
// be determined stay pending.
func (s *Store) Reconcile(ctx context.Context, walletAddr string, receipts ReceiptLookup, remote RemoteStatus) {
	for _, entry := range s.Get(walletAddr) {
		if entry.Status != StatusPending {
			continue
		}
		status, ok := s.deriveStatus(ctx, entry, receipts, remote)
		if ok && status != StatusPending {
			log.WithFields(logrus.Fields{"tx": entry.ID, "status": status}).Info("reconciled stale history entry")
			s.UpdateStatus(walletAddr, entry.ID, status)
		}
	}
}

func (s *Store) deriveStatus(ctx context.Context, entry Entry, receipts ReceiptLookup, remote RemoteStatus) (Status, bool) {
	if entry.FromChainID != entry.ToChainID {
		if remote == nil {
			return StatusPending, false
		}
		report, err := remote.Status(ctx, entry.ID, entry.Provider, entry.FromChainID, entry.ToChainID)
		if err != nil {
			return StatusPending, false
		}
		switch report.Status {
		case types.RemoteStatusDone, types.RemoteStatusSuccess:
			return StatusCompleted, true
		case types.RemoteStatusFailed, types.RemoteStatusInvalid:
			return StatusFailed, true
		}
		return StatusPending, false
	}

	if receipts == nil {
		return StatusPending, false
	}
	receiptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	receipt, err := receipts.WaitForReceipt(receiptCtx, entry.ID)
	if err != nil {
		return StatusPending, false
	}
	if receipt.Success {
		return StatusCompleted, true
	}
	return StatusFailed, true
}
