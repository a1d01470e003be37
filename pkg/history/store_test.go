package history

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

func testEntry(id string) Entry {
	return Entry{
		ID:          id,
		FromToken:   "WETH",
		ToToken:     "USDC",
		FromAmount:  "1000000000000000000",
		ToAmount:    "2000000",
		FromChainID: 1,
		ToChainID:   1,
		Status:      StatusPending,
		Provider:    "uniswap",
		Timestamp:   time.Now().UTC(),
	}
}

func TestSaveGetUpdateClear(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	s.Save("0xABC", testEntry("0x1"))
	s.Save("0xabc", testEntry("0x2"))

	t.Run("wallet keys are case-insensitive", func(t *testing.T) {
		entries := s.Get("0xAbC")
		require.Len(t, entries, 2)
		assert.Equal(t, "0x2", entries[0].ID, "newest first")
	})

	t.Run("update status", func(t *testing.T) {
		s.UpdateStatus("0xabc", "0x1", StatusCompleted)
		entries := s.Get("0xabc")
		assert.Equal(t, StatusCompleted, entries[1].Status)
	})

	t.Run("clear", func(t *testing.T) {
		s.Clear("0xABC")
		assert.Empty(t, s.Get("0xabc"))
	})
}

func TestPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir)
	require.NoError(t, err)
	s1.Save("0xabc", testEntry("0x1"))

	s2, err := NewStore(dir)
	require.NoError(t, err)
	entries := s2.Get("0xabc")
	require.Len(t, entries, 1)
	assert.Equal(t, "0x1", entries[0].ID)
}

func TestSubscribeScopedToWallet(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ch, unsub := s.Subscribe("0xABC")
	defer unsub()

	s.Save("0xother", testEntry("0xignored"))
	s.Save("0xabc", testEntry("0xmine"))

	select {
	case e := <-ch:
		assert.Equal(t, "0xmine", e.ID)
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected notification for other wallet: %+v", e)
	default:
	}
}

type fakeReceipts struct {
	receipts map[string]*wallet.Receipt
}

func (f *fakeReceipts) WaitForReceipt(ctx context.Context, txHash string) (*wallet.Receipt, error) {
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

type fakeRemote struct {
	statuses map[string]string
}

func (f *fakeRemote) Status(ctx context.Context, txHash, bridge string, fromChain, toChain int64) (*types.StatusReport, error) {
	st, ok := f.statuses[txHash]
	if !ok {
		return nil, errors.New("unknown")
	}
	return &types.StatusReport{Status: st}, nil
}

func TestReconcile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	// Same-chain: success, revert, unknown.
	s.Save("0xabc", testEntry("0xok"))
	s.Save("0xabc", testEntry("0xreverted"))
	s.Save("0xabc", testEntry("0xunknown"))

	// Cross-chain: done and still bridging.
	bridged := testEntry("0xbridged")
	bridged.ToChainID = 137
	bridged.Provider = "hop"
	s.Save("0xabc", bridged)
	bridging := testEntry("0xbridging")
	bridging.ToChainID = 137
	s.Save("0xabc", bridging)

	receipts := &fakeReceipts{receipts: map[string]*wallet.Receipt{
		"0xok":       {TxHash: "0xok", Success: true},
		"0xreverted": {TxHash: "0xreverted", Success: false},
	}}
	remote := &fakeRemote{statuses: map[string]string{
		"0xbridged":  types.RemoteStatusDone,
		"0xbridging": "PENDING",
	}}

	s.Reconcile(context.Background(), "0xabc", receipts, remote)

	got := map[string]Status{}
	for _, e := range s.Get("0xabc") {
		got[e.ID] = e.Status
	}
	assert.Equal(t, StatusCompleted, got["0xok"])
	assert.Equal(t, StatusFailed, got["0xreverted"])
	assert.Equal(t, StatusPending, got["0xunknown"])
	assert.Equal(t, StatusCompleted, got["0xbridged"])
	assert.Equal(t, StatusPending, got["0xbridging"])
}
