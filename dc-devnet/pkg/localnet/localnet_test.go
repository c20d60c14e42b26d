package localnet

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/0xrhsmt/dao-cloud/dc-service/testlog"
)

func TestDevAccounts(t *testing.T) {
	accounts := DevAccounts()
	require.Len(t, accounts, 5)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), accounts[0].Address)
	require.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), accounts[1].Address)
	require.Equal(t, common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), accounts[2].Address)
}

func TestSimulatedLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	net := NewSimulated(testlog.Logger(t, log.LevelInfo))
	_, err := net.Client()
	require.ErrorIs(t, err, errNotStarted)

	require.NoError(t, net.Start(ctx))
	require.Error(t, net.Start(ctx), "double start")
	require.NoError(t, net.Ready(ctx))

	cl, err := net.Client()
	require.NoError(t, err)
	id, err := cl.ChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(ChainID), id.Uint64())

	sender, receiver := net.Accounts()[0], common.Address{0xaa}
	bal, err := cl.BalanceAt(ctx, sender.Address, nil)
	require.NoError(t, err)
	require.Equal(t, millionEth.ToBig(), bal)

	head, err := cl.HeaderByNumber(ctx, nil)
	require.NoError(t, err)
	tx, err := types.SignNewTx(sender.Key, types.LatestSignerForChainID(id), &types.DynamicFeeTx{
		ChainID:   id,
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: new(big.Int).Add(big.NewInt(1), new(big.Int).Mul(head.BaseFee, big.NewInt(2))),
		Gas:       21_000,
		To:        &receiver,
		Value:     big.NewInt(1000),
	})
	require.NoError(t, err)
	require.NoError(t, cl.SendTransaction(ctx, tx))

	// mined without an explicit commit
	receipt, err := cl.TransactionReceipt(ctx, tx.Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	bal, err = cl.BalanceAt(ctx, receiver, nil)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), bal)

	require.NoError(t, net.Shutdown(ctx))
	require.NoError(t, net.Shutdown(ctx), "shutdown is idempotent")
}

type fakeEth struct{}

func (fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(ChainID))
}

func fakeChain(t *testing.T) string {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fakeEth{}))
	mux := http.NewServeMux()
	mux.Handle("/", srv)
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
	})
	return hs.URL
}

func TestProcessLifecycle(t *testing.T) {
	url := fakeChain(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p := NewProcess(testlog.Logger(t, log.LevelDebug), ProcessConfig{
		Command:         []string{"sleep", "30"},
		RPCURL:          url,
		HealthURL:       url + "/api/v1/health",
		PollInterval:    50 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	})
	require.ErrorIs(t, p.Ready(ctx), errNotStarted)
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Ready(ctx))
	require.Len(t, p.Accounts(), 5)
	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx))
}

func TestProcessExitsBeforeReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p := NewProcess(testlog.Logger(t, log.LevelInfo), ProcessConfig{
		Command:      []string{"false"},
		RPCURL:       "http://127.0.0.1:1",
		PollInterval: 50 * time.Millisecond,
		Silent:       true,
	})
	require.NoError(t, p.Start(ctx))
	err := p.Ready(ctx)
	require.ErrorContains(t, err, "exited before becoming ready")
	require.NoError(t, p.Shutdown(ctx))
}

func TestProcessReadyTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	p := NewProcess(testlog.Logger(t, log.LevelInfo), ProcessConfig{
		Command:         []string{"sleep", "30"},
		RPCURL:          "http://127.0.0.1:1",
		PollInterval:    50 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
		Silent:          true,
	})
	require.NoError(t, p.Start(ctx))
	require.ErrorIs(t, p.Ready(ctx), context.DeadlineExceeded)
	require.NoError(t, p.Shutdown(context.Background()))
}
