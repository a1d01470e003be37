package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xswap/pkg/history"
	"xswap/pkg/swaperr"
	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

type fakeReceipts struct {
	release chan struct{} // when set, WaitForReceipt blocks until closed
	receipt *wallet.Receipt
	err     error
}

func (f *fakeReceipts) WaitForReceipt(ctx context.Context, txHash string) (*wallet.Receipt, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.receipt
	r.TxHash = txHash
	return &r, nil
}

type statusReply struct {
	report *types.StatusReport
	err    error
}

// fakeStatus replays a scripted sequence of replies, repeating the
// last one once exhausted.
type fakeStatus struct {
	mu      sync.Mutex
	replies []statusReply
	calls   int
}

func (f *fakeStatus) Status(ctx context.Context, txHash, bridge string, fromChain, toChain int64) (*types.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	i := f.calls - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	if i < 0 {
		return &types.StatusReport{Status: "PENDING"}, nil
	}
	return f.replies[i].report, f.replies[i].err
}

func (f *fakeStatus) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func swapRoute() *types.Route {
	return &types.Route{
		ID:          "r1",
		FromChainID: 1,
		ToChainID:   1,
		Steps:       []*types.Step{{Tool: "uniswap"}},
	}
}

func bridgeRoute() *types.Route {
	r := swapRoute()
	r.ToChainID = 137
	r.Steps[0].Tool = "stargate"
	return r
}

func fastConfig() Config {
	return Config{PollInterval: 10 * time.Millisecond, SwapCeiling: time.Minute, BridgeCeiling: time.Minute}
}

// collect drains the watch channel until it closes, failing the test
// if it never does.
func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("watch channel never closed, got %v", out)
		}
	}
}

func states(events []Event) []State {
	out := make([]State, len(events))
	for i, ev := range events {
		out[i] = ev.Status
	}
	return out
}

func pendingEntry(hash string) history.Entry {
	return history.Entry{ID: hash, FromChainID: 1, ToChainID: 1, Status: history.StatusPending, Timestamp: time.Now()}
}

func TestWatchSingleChainSuccess(t *testing.T) {
	hist, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	hist.Save("0xme", pendingEntry("0xaaa"))

	receipts := &fakeReceipts{receipt: &wallet.Receipt{Success: true, BlockNumber: 10}}
	m := New(receipts, &fakeStatus{}, hist, "0xme", fastConfig())

	events := collect(t, m.Watch(context.Background(), "0xaaa", swapRoute()))
	assert.Equal(t, []State{StatePending, StateConfirming, StateSuccess}, states(events))

	entries := hist.Get("0xme")
	require.Len(t, entries, 1)
	assert.Equal(t, history.StatusCompleted, entries[0].Status)
}

func TestWatchRevertedReceipt(t *testing.T) {
	hist, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	hist.Save("0xme", pendingEntry("0xbbb"))

	receipts := &fakeReceipts{receipt: &wallet.Receipt{Success: false}}
	m := New(receipts, &fakeStatus{}, hist, "0xme", fastConfig())

	events := collect(t, m.Watch(context.Background(), "0xbbb", swapRoute()))
	require.Equal(t, []State{StatePending, StateFailed}, states(events))
	assert.Contains(t, events[1].Err.Error(), "reverted")
	assert.Equal(t, history.StatusFailed, hist.Get("0xme")[0].Status)
}

func TestWatchBridgeCompletes(t *testing.T) {
	hist, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	hist.Save("0xme", pendingEntry("0xccc"))

	receipts := &fakeReceipts{receipt: &wallet.Receipt{Success: true}}
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: "PENDING"}},
		{err: errors.New("status endpoint hiccup")}, // swallowed, not terminal
		{report: &types.StatusReport{Status: types.RemoteStatusDone}},
	}}
	m := New(receipts, remote, hist, "0xme", fastConfig())

	events := collect(t, m.Watch(context.Background(), "0xccc", bridgeRoute()))
	got := states(events)
	assert.Equal(t, StatePending, got[0])
	assert.Contains(t, got, StateBridging)
	assert.Equal(t, StateSuccess, got[len(got)-1])
	assert.Equal(t, types.RemoteStatusDone, events[len(events)-1].BridgeStatus)
	assert.GreaterOrEqual(t, remote.callCount(), 3)
	assert.Equal(t, history.StatusCompleted, hist.Get("0xme")[0].Status)
}

func TestWatchBridgeRemoteFailure(t *testing.T) {
	hist, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	hist.Save("0xme", pendingEntry("0xddd"))

	receipts := &fakeReceipts{receipt: &wallet.Receipt{Success: true}}
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: types.RemoteStatusFailed, Message: "refunded on source chain"}},
	}}
	m := New(receipts, remote, hist, "0xme", fastConfig())

	events := collect(t, m.Watch(context.Background(), "0xddd", bridgeRoute()))
	last := events[len(events)-1]
	assert.Equal(t, StateFailed, last.Status)
	assert.Contains(t, last.Err.Error(), "refunded on source chain")
	assert.Equal(t, history.StatusFailed, hist.Get("0xme")[0].Status)
}

func TestWatchStuckCeiling(t *testing.T) {
	hist, err := history.NewStore(t.TempDir())
	require.NoError(t, err)
	hist.Save("0xme", pendingEntry("0xeee"))

	// Receipt never arrives; ceiling is hit on a poll tick.
	receipts := &fakeReceipts{release: make(chan struct{}), receipt: &wallet.Receipt{Success: true}}
	cfg := Config{PollInterval: 10 * time.Millisecond, SwapCeiling: 35 * time.Millisecond, BridgeCeiling: 35 * time.Millisecond}
	m := New(receipts, &fakeStatus{}, hist, "0xme", cfg)

	events := collect(t, m.Watch(context.Background(), "0xeee", swapRoute()))
	require.Equal(t, []State{StatePending, StateStuck}, states(events))
	assert.True(t, swaperr.IsKind(events[1].Err, swaperr.KindMonitoring))
	assert.Contains(t, events[1].Err.Error(), "giving up")

	// Stuck is not failed: the transaction may still settle.
	assert.Equal(t, history.StatusPending, hist.Get("0xme")[0].Status)
}

func TestWatchBridgeStillPendingKeepsPolling(t *testing.T) {
	receipts := &fakeReceipts{receipt: &wallet.Receipt{Success: true}}
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: "PENDING"}},
		{report: &types.StatusReport{Status: "STARTED"}},
		{report: &types.StatusReport{Status: types.RemoteStatusSuccess}},
	}}
	m := New(receipts, remote, nil, "0xme", fastConfig())

	events := collect(t, m.Watch(context.Background(), "0xfff", bridgeRoute()))
	got := states(events)
	assert.Equal(t, StateSuccess, got[len(got)-1])
	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.Status.Terminal(), "only the last event may be terminal")
	}
}

func TestWatchCancelStopsWithoutTerminalEvent(t *testing.T) {
	receipts := &fakeReceipts{release: make(chan struct{}), receipt: &wallet.Receipt{Success: true}}
	m := New(receipts, &fakeStatus{}, nil, "0xme", fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	ch := m.Watch(ctx, "0x111", swapRoute())

	// Consume PENDING, then abandon the session.
	ev := <-ch
	assert.Equal(t, StatePending, ev.Status)
	cancel()

	events := collect(t, ch)
	for _, ev := range events {
		assert.False(t, ev.Status.Terminal())
	}
}

func TestPollStatusTerminal(t *testing.T) {
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: "PENDING"}},
		{report: &types.StatusReport{Status: "PENDING"}},
		{report: &types.StatusReport{Status: types.RemoteStatusDone}},
	}}

	report, err := PollStatus(context.Background(), remote, "0xabc", "stargate", 1, 137, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, types.RemoteStatusDone, report.Status)
	assert.Equal(t, 3, remote.callCount())
}

func TestPollStatusUnknownHashGivesUpEarly(t *testing.T) {
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: types.RemoteStatusNotFound}},
	}}

	_, err := PollStatus(context.Background(), remote, "0xdead", "", 1, 1, time.Millisecond)
	require.Error(t, err)
	assert.True(t, swaperr.IsKind(err, swaperr.KindMonitoring))
	assert.Contains(t, err.Error(), "unknown to the indexer")
	assert.Equal(t, PollNoRecordAttempts, remote.callCount())
}

func TestPollStatusKnownButSettlingUsesFullCap(t *testing.T) {
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: "PENDING"}},
	}}

	_, err := PollStatus(context.Background(), remote, "0xslow", "", 1, 1, time.Microsecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal status")
	assert.Equal(t, PollAttempts, remote.callCount())
}

func TestPollStatusHonorsCancellation(t *testing.T) {
	remote := &fakeStatus{replies: []statusReply{
		{report: &types.StatusReport{Status: "PENDING"}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PollStatus(ctx, remote, "0x999", "", 1, 1, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
