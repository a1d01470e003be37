// Package wallet abstracts the signing and chain-reading capabilities
// the swap pipeline needs. The pipeline never owns keys or consensus;
// it only calls this interface.
package wallet

import (
	"context"
	"math/big"

	"xswap/pkg/types"
)

// Receipt is the distilled result of a mined transaction.
type Receipt struct {
	TxHash      string
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
}

// Wallet is the capability set injected into the pipeline: balance and
// allowance reads, approval and swap submission, receipt waits, and
// chain switching.
type Wallet interface {
	// Address returns the connected account address.
	Address() string

	// ChainID returns the currently connected chain.
	ChainID(ctx context.Context) (int64, error)

	// SwitchChain reconnects to the given chain. Failure is a
	// recoverable condition, not a crash.
	SwitchChain(ctx context.Context, chainID int64) error

	// NativeBalance returns the account's native-asset balance.
	NativeBalance(ctx context.Context) (*big.Int, error)

	// TokenBalance returns the account's balance of an ERC-20 token.
	TokenBalance(ctx context.Context, token string) (*big.Int, error)

	// Allowance returns how much the spender may currently transfer
	// on the owner's behalf.
	Allowance(ctx context.Context, token, spender string) (*big.Int, error)

	// Approve submits an approval transaction and returns its hash.
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)

	// SendTransaction signs and submits a prepared transaction.
	SendTransaction(ctx context.Context, tx *types.TransactionRequest) (string, error)

	// WaitForReceipt blocks until the transaction is mined or ctx is
	// done.
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)
}
