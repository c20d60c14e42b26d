package broadcaster

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

const (
	// gas estimates are padded by this percentage
	GasPadPercent = 20

	DefaultReceiptTimeout = 2 * time.Minute
)

// Backend is the chain access the broadcaster needs.
// Both *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Metricer records sent transactions.
type Metricer interface {
	RecordTx(label string, receipt *types.Receipt, err error)
}

type noopMetricer struct{}

func (noopMetricer) RecordTx(string, *types.Receipt, error) {}

type KeyedBroadcasterOpts struct {
	Logger         log.Logger
	Client         Backend
	ChainID        *big.Int
	Key            *ecdsa.PrivateKey
	Metrics        Metricer
	ReceiptTimeout time.Duration
}

// KeyedBroadcaster signs calls with a local private key and sends them one
// at a time, waiting for each receipt before sending the next.
type KeyedBroadcaster struct {
	lgr     log.Logger
	client  Backend
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	metrics Metricer
	timeout time.Duration

	mtx   sync.Mutex
	calls []Call
}

func NewKeyedBroadcaster(opts KeyedBroadcasterOpts) (*KeyedBroadcaster, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Key == nil {
		return nil, fmt.Errorf("private key is required")
	}
	if opts.ChainID == nil {
		return nil, fmt.Errorf("chain ID is required")
	}
	lgr := opts.Logger
	if lgr == nil {
		lgr = log.Root()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetricer{}
	}
	timeout := opts.ReceiptTimeout
	if timeout == 0 {
		timeout = DefaultReceiptTimeout
	}
	from := crypto.PubkeyToAddress(opts.Key.PublicKey)
	return &KeyedBroadcaster{
		lgr:     lgr.New("from", from),
		client:  opts.Client,
		chainID: opts.ChainID,
		key:     opts.Key,
		from:    from,
		signer:  types.LatestSignerForChainID(opts.ChainID),
		metrics: metrics,
		timeout: timeout,
	}, nil
}

// From returns the address the broadcaster sends from.
func (t *KeyedBroadcaster) From() common.Address {
	return t.from
}

func (t *KeyedBroadcaster) Hook(bcast Call) {
	t.mtx.Lock()
	t.calls = append(t.calls, bcast)
	t.mtx.Unlock()
}

// Broadcast sends all hooked calls in order. The first failure stops the
// batch, the results up to and including the failed call are returned.
func (t *KeyedBroadcaster) Broadcast(ctx context.Context) ([]BroadcastResult, error) {
	t.mtx.Lock()
	calls := t.calls
	t.calls = nil
	t.mtx.Unlock()

	results := make([]BroadcastResult, 0, len(calls))
	for _, call := range calls {
		res := t.send(ctx, call)
		t.metrics.RecordTx(call.Label, res.Receipt, res.Err)
		results = append(results, res)
		if res.Err != nil {
			return results, fmt.Errorf("%s: %w", call.Label, res.Err)
		}
	}
	return results, nil
}

func (t *KeyedBroadcaster) send(ctx context.Context, call Call) BroadcastResult {
	res := BroadcastResult{Call: call}
	tx, err := t.signTx(ctx, call)
	if err != nil {
		res.Err = err
		return res
	}
	res.TxHash = tx.Hash()

	lgr := t.lgr.New("label", call.Label, "tx", tx.Hash())
	lgr.Debug("Sending transaction", "nonce", tx.Nonce(), "gas", tx.Gas())
	if err := t.client.SendTransaction(ctx, tx); err != nil {
		res.Err = fmt.Errorf("failed to send transaction: %w", err)
		return res
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, t.client, tx)
	if err != nil {
		res.Err = fmt.Errorf("failed to wait for receipt: %w", err)
		return res
	}
	res.Receipt = receipt
	if receipt.Status != types.ReceiptStatusSuccessful {
		res.Err = fmt.Errorf("%w: %s in block %d", ErrReverted, tx.Hash(), receipt.BlockNumber)
		return res
	}
	lgr.Info("Transaction confirmed", "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
	return res
}

func (t *KeyedBroadcaster) signTx(ctx context.Context, call Call) (*types.Transaction, error) {
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gas, err := t.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  t.from,
		To:    call.To,
		Value: value,
		Data:  call.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas = gas * (100 + GasPadPercent) / 100

	head, err := t.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head: %w", err)
	}
	tip, err := t.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx, err := types.SignNewTx(t.key, t.signer, &types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        call.To,
		Value:     value,
		Data:      call.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}
