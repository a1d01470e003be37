package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"xswap/pkg/types"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const receiptPollInterval = 3 * time.Second

var log = logrus.WithField("pkg", "wallet")

// ChainEndpoints maps chain ids to RPC URLs for chain switching.
type ChainEndpoints map[int64]string

// EVMWallet implements Wallet against an EVM JSON-RPC endpoint with a
// local signing key.
type EVMWallet struct {
	endpoints  ChainEndpoints
	privateKey *ecdsa.PrivateKey
	from       common.Address
	erc20      abi.ABI

	client  *ethclient.Client
	chainID int64
}

// NewEVM connects to the RPC endpoint for chainID and derives the
// account address from the private key.
func NewEVM(endpoints ChainEndpoints, privateKeyHex string, chainID int64) (*EVMWallet, error) {
	rpcURL, ok := endpoints[chainID]
	if !ok {
		return nil, errors.Errorf("no RPC endpoint configured for chain %d", chainID)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to RPC endpoint for chain %d", chainID)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ERC-20 ABI")
	}

	return &EVMWallet{
		endpoints:  endpoints,
		privateKey: key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		erc20:      parsed,
		client:     client,
		chainID:    chainID,
	}, nil
}

func (w *EVMWallet) Address() string { return w.from.Hex() }

func (w *EVMWallet) ChainID(ctx context.Context) (int64, error) {
	return w.chainID, nil
}

// SwitchChain redials the configured RPC endpoint for the target
// chain. A chain without a configured endpoint is a recoverable
// failure surfaced to the caller.
func (w *EVMWallet) SwitchChain(ctx context.Context, chainID int64) error {
	if chainID == w.chainID {
		return nil
	}
	rpcURL, ok := w.endpoints[chainID]
	if !ok {
		return errors.Errorf("no RPC endpoint configured for chain %d", chainID)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return errors.Wrapf(err, "connecting to chain %d", chainID)
	}
	w.client.Close()
	w.client = client
	w.chainID = chainID
	log.WithField("chain", chainID).Info("switched chain")
	return nil
}

func (w *EVMWallet) NativeBalance(ctx context.Context) (*big.Int, error) {
	return w.client.BalanceAt(ctx, w.from, nil)
}

func (w *EVMWallet) TokenBalance(ctx context.Context, token string) (*big.Int, error) {
	if !common.IsHexAddress(token) {
		return nil, errors.Errorf("invalid token address: %s", token)
	}
	data, err := w.erc20.Pack("balanceOf", w.from)
	if err != nil {
		return nil, errors.Wrap(err, "packing balanceOf")
	}
	return w.callUint(ctx, common.HexToAddress(token), data)
}

func (w *EVMWallet) Allowance(ctx context.Context, token, spender string) (*big.Int, error) {
	if !common.IsHexAddress(token) || !common.IsHexAddress(spender) {
		return nil, errors.Errorf("invalid token or spender address")
	}
	data, err := w.erc20.Pack("allowance", w.from, common.HexToAddress(spender))
	if err != nil {
		return nil, errors.Wrap(err, "packing allowance")
	}
	return w.callUint(ctx, common.HexToAddress(token), data)
}

func (w *EVMWallet) callUint(ctx context.Context, to common.Address, data []byte) (*big.Int, error) {
	result, err := w.client.CallContract(ctx, ethereum.CallMsg{From: w.from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "contract call")
	}
	return new(big.Int).SetBytes(result), nil
}

func (w *EVMWallet) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(token) || !common.IsHexAddress(spender) {
		return "", errors.Errorf("invalid token or spender address")
	}
	data, err := w.erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", errors.Wrap(err, "packing approve")
	}
	return w.submit(ctx, common.HexToAddress(token), big.NewInt(0), data, 0)
}

func (w *EVMWallet) SendTransaction(ctx context.Context, tx *types.TransactionRequest) (string, error) {
	if !common.IsHexAddress(tx.To) {
		return "", errors.Errorf("invalid destination address: %s", tx.To)
	}
	data, err := hexutil.Decode(tx.Data)
	if err != nil {
		return "", errors.Wrap(err, "decoding calldata")
	}
	value, ok := ParseQuantity(tx.Value)
	if !ok {
		return "", errors.Errorf("invalid transaction value: %s", tx.Value)
	}
	gasLimit := uint64(0)
	if tx.GasLimit != "" {
		gl, ok := ParseQuantity(tx.GasLimit)
		if !ok {
			return "", errors.Errorf("invalid gas limit: %s", tx.GasLimit)
		}
		gasLimit = gl.Uint64()
	}
	return w.submit(ctx, common.HexToAddress(tx.To), value, data, gasLimit)
}

// submit signs and sends a transaction, estimating gas when no limit
// is supplied.
func (w *EVMWallet) submit(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (string, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.from)
	if err != nil {
		return "", errors.Wrap(err, "fetching nonce")
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetching gas price")
	}
	if gasLimit == 0 {
		estimated, err := w.client.EstimateGas(ctx, ethereum.CallMsg{From: w.from, To: &to, Value: value, Data: data})
		if err != nil {
			return "", errors.Wrap(err, "estimating gas")
		}
		gasLimit = estimated * 120 / 100
	}

	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(big.NewInt(w.chainID)), w.privateKey)
	if err != nil {
		return "", errors.Wrap(err, "signing transaction")
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "sending transaction")
	}

	hash := signed.Hash().Hex()
	log.WithFields(logrus.Fields{"tx": hash, "to": to.Hex(), "gas": gasLimit}).Info("transaction submitted")
	return hash, nil
}

// WaitForReceipt polls for the receipt until found or ctx is done.
func (w *EVMWallet) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return &Receipt{
				TxHash:      txHash,
				Success:     receipt.Status == ethtypes.ReceiptStatusSuccessful,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			log.WithError(err).WithField("tx", txHash).Debug("receipt poll failed, will retry")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the underlying RPC connection.
func (w *EVMWallet) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// ParseQuantity accepts both decimal and 0x-prefixed hex quantities,
// which aggregators use interchangeably in transaction payloads.
func ParseQuantity(s string) (*big.Int, bool) {
	if s == "" {
		return big.NewInt(0), true
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		return v, ok
	}
	v, ok := new(big.Int).SetString(s, 10)
	return v, ok
}
