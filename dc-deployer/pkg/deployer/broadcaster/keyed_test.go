package broadcaster_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/log"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/broadcaster"
	"github.com/0xrhsmt/dao-cloud/dc-devnet/pkg/localnet"
	"github.com/0xrhsmt/dao-cloud/dc-service/testlog"
)

type recordedTx struct {
	label string
	ok    bool
}

type recordingMetricer struct {
	txs []recordedTx
}

func (m *recordingMetricer) RecordTx(label string, receipt *types.Receipt, err error) {
	m.txs = append(m.txs, recordedTx{label: label, ok: err == nil && receipt != nil})
}

func setup(t *testing.T) (context.Context, simulated.Client, *broadcaster.KeyedBroadcaster, *recordingMetricer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	lgr := testlog.Logger(t, log.LevelDebug)
	sim := localnet.NewSimulated(lgr)
	require.NoError(t, sim.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, sim.Shutdown(context.Background()))
	})
	cl, err := sim.Client()
	require.NoError(t, err)

	m := new(recordingMetricer)
	bcaster, err := broadcaster.NewKeyedBroadcaster(broadcaster.KeyedBroadcasterOpts{
		Logger:  lgr,
		Client:  cl,
		ChainID: big.NewInt(localnet.ChainID),
		Key:     sim.Accounts()[0].Key,
		Metrics: m,
	})
	require.NoError(t, err)
	return ctx, cl, bcaster, m
}

func TestKeyedBroadcaster(t *testing.T) {
	ctx, cl, bcaster, m := setup(t)
	require.Equal(t, localnet.DevAccounts()[0].Address, bcaster.From())

	to := localnet.DevAccounts()[1].Address
	before, err := cl.BalanceAt(ctx, to, nil)
	require.NoError(t, err)

	bcaster.Hook(broadcaster.Call{Label: "transfer", To: &to, Value: big.NewInt(1000)})
	bcaster.Hook(broadcaster.Call{Label: "create", Input: common.FromHex("0x6001600c60003960016000f300")})
	results, err := bcaster.Broadcast(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
		require.Equal(t, types.ReceiptStatusSuccessful, res.Receipt.Status)
		require.Equal(t, res.TxHash, res.Receipt.TxHash)
	}

	after, err := cl.BalanceAt(ctx, to, nil)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(before, big.NewInt(1000)), after)

	code, err := cl.CodeAt(ctx, results[1].Receipt.ContractAddress, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, code)

	require.Equal(t, []recordedTx{{"transfer", true}, {"create", true}}, m.txs)

	// the batch is drained
	results, err = bcaster.Broadcast(ctx)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestKeyedBroadcasterStopsAtFailure(t *testing.T) {
	ctx, cl, bcaster, m := setup(t)
	to := localnet.DevAccounts()[1].Address

	bcaster.Hook(broadcaster.Call{Label: "transfer", To: &to, Value: big.NewInt(1)})
	bcaster.Hook(broadcaster.Call{Label: "revert", Input: common.FromHex("0x60006000fd")})
	bcaster.Hook(broadcaster.Call{Label: "never", To: &to, Value: big.NewInt(1)})
	results, err := bcaster.Broadcast(ctx)
	require.ErrorContains(t, err, "revert: ")
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)

	nonce, err := cl.NonceAt(ctx, bcaster.From(), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
	require.Equal(t, []recordedTx{{"transfer", true}, {"revert", false}}, m.txs)
}

func TestSend(t *testing.T) {
	ctx, _, bcaster, _ := setup(t)
	to := localnet.DevAccounts()[2].Address
	receipt, err := broadcaster.Send(ctx, bcaster, broadcaster.Call{Label: "transfer", To: &to, Value: big.NewInt(1)})
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestNewKeyedBroadcasterRequires(t *testing.T) {
	_, err := broadcaster.NewKeyedBroadcaster(broadcaster.KeyedBroadcasterOpts{})
	require.ErrorContains(t, err, "client is required")
}
