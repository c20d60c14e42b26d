package e2e

import (
	"context"
	"log/slog"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/artifacts"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/broadcaster"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/daocloud"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/network"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/proxy"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/tableland"
	"github.com/0xrhsmt/dao-cloud/dc-devnet/pkg/localnet"
	"github.com/0xrhsmt/dao-cloud/dc-service/testlog"
)

const (
	readyTimeout = 25 * time.Second
	// time the table service gets to materialize the created table
	settleTime = 5 * time.Second
)

type system struct {
	lgr      log.Logger
	client   *ethclient.Client
	accounts []localnet.Account
	contract *daocloud.Contract
	registry *tableland.Registry
}

func (s *system) session(t *testing.T, i int) *daocloud.Session {
	bcaster, err := broadcaster.NewKeyedBroadcaster(broadcaster.KeyedBroadcasterOpts{
		Logger:  s.lgr,
		Client:  s.client,
		ChainID: big.NewInt(localnet.ChainID),
		Key:     s.accounts[i].Key,
	})
	require.NoError(t, err)
	return s.contract.Connect(bcaster)
}

func startSystem(t *testing.T) *system {
	if os.Getenv("DAOCLOUD_E2E") != "1" {
		t.Skip("DAOCLOUD_E2E is not set")
	}
	artifactsDir := os.Getenv("DAOCLOUD_ARTIFACTS")
	require.NotEmpty(t, artifactsDir, "DAOCLOUD_ARTIFACTS must be set")

	lgr := testlog.Logger(t, slog.LevelInfo)
	store := artifacts.NewOSStore(artifactsDir)
	impl, err := store.Load(daocloud.ArtifactName)
	require.NoError(t, err)
	proxyArt, err := store.Load(proxy.ERC1967ProxyName)
	require.NoError(t, err)

	net, err := network.DefaultBook().Resolve(network.LocalTableland)
	require.NoError(t, err)

	cfg := localnet.DefaultProcessConfig()
	cfg.Silent = true
	lt := localnet.NewProcess(lgr, cfg)
	require.NoError(t, lt.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		require.NoError(t, lt.Shutdown(ctx))
	})

	readyCtx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()
	require.NoError(t, lt.Ready(readyCtx))

	rpcClient, err := rpc.DialContext(context.Background(), cfg.RPCURL)
	require.NoError(t, err)
	t.Cleanup(rpcClient.Close)

	sys := &system{
		lgr:      lgr,
		client:   ethclient.NewClient(rpcClient),
		accounts: lt.Accounts(),
		registry: tableland.NewRegistry(rpcClient, net.Registry, net.ChainID),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deployer, err := broadcaster.NewKeyedBroadcaster(broadcaster.KeyedBroadcasterOpts{
		Logger:  lgr,
		Client:  sys.client,
		ChainID: big.NewInt(localnet.ChainID),
		Key:     sys.accounts[0].Key,
	})
	require.NoError(t, err)

	initData, err := daocloud.InitializeCalldata(localnet.DefaultGatewayURL, "not.implemented.com")
	require.NoError(t, err)
	dep, err := proxy.DeployUUPS(ctx, proxy.DeployUUPSOpts{
		Logger:         lgr,
		Broadcaster:    deployer,
		Client:         sys.client,
		Implementation: impl,
		Proxy:          proxyArt,
		InitData:       initData,
	})
	require.NoError(t, err)
	sys.contract = daocloud.New(dep.Proxy)

	_, err = sys.session(t, 0).CreateTable(ctx)
	require.NoError(t, err)

	select {
	case <-time.After(settleTime):
	case <-ctx.Done():
		t.Fatal(ctx.Err())
	}
	return sys
}

func TestDaoCloud(t *testing.T) {
	sys := startSystem(t)

	t.Run("mint", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		tokenID1, _, err := sys.session(t, 0).SafeMint(ctx, sys.accounts[0].Address)
		require.NoError(t, err)
		tokenID2, _, err := sys.session(t, 1).SafeMint(ctx, sys.accounts[1].Address)
		require.NoError(t, err)

		require.Equal(t, int64(0), tokenID1.Int64())
		require.Equal(t, int64(1), tokenID2.Int64())
	})

	t.Run("table owner", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		tables, err := sys.registry.ListTables(ctx, sys.accounts[0].Address)
		require.NoError(t, err)
		require.NotEmpty(t, tables)
	})

	t.Run("make move", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s := sys.session(t, 1)
		tokenID, _, err := s.SafeMint(ctx, sys.accounts[1].Address)
		require.NoError(t, err)

		ev, err := s.MakeMove(ctx, tokenID, big.NewInt(10), big.NewInt(10))
		require.NoError(t, err)
		require.Equal(t, sys.accounts[1].Address, ev.Caller)
		require.Equal(t, 0, tokenID.Cmp(ev.TokenID))
		require.Equal(t, int64(10), ev.X.Int64())
		require.Equal(t, int64(10), ev.Y.Int64())
	})
}
