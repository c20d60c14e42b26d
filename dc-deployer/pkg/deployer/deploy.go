package deployer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/artifacts"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/broadcaster"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/daocloud"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/metrics"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/network"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/proxy"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/tableland"
	oplog "github.com/0xrhsmt/dao-cloud/dc-service/log"
	"github.com/0xrhsmt/dao-cloud/dc-service/serialize"
)

// Client is the chain access of a deployment.
type Client interface {
	broadcaster.Backend
	ethereum.ChainStateReader
	ChainID(ctx context.Context) (*big.Int, error)
}

type DeployConfig struct {
	Network      string
	NetworksFile string
	RPCURL       string
	PrivateKey   string
	ArtifactsDir string
	// InitArgs are passed to initialize(string,string), initialize() runs if empty.
	InitArgs       []string
	FileURL        string
	TablePrefix    string
	SkipPostDeploy bool
	// DryRun prints the planned calls instead of sending them.
	DryRun         bool
	OutFile        string
	MetricsPushURL string
	MetricsJob     string

	Logger log.Logger
	Out    io.Writer

	privateKeyECDSA *ecdsa.PrivateKey
}

func (c *DeployConfig) Check() error {
	if c.Logger == nil {
		return errors.New("logger must be specified")
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	key, err := parsePrivateKey(c.PrivateKey)
	if err != nil {
		return err
	}
	c.privateKeyECDSA = key
	if c.ArtifactsDir == "" {
		return errors.New("artifacts dir must be specified")
	}
	if n := len(c.InitArgs); n != 0 && n != 2 {
		return fmt.Errorf("expected 0 or 2 initializer arguments, got %d", n)
	}
	if c.TablePrefix == "" {
		c.TablePrefix = DefaultTablePrefix
	}
	if c.FileURL == "" {
		c.FileURL = DefaultFileURL
	}
	if c.MetricsJob == "" {
		c.MetricsJob = DefaultMetricsJob
	}
	return nil
}

func DeployCLI(cliCtx *cli.Context) error {
	logCfg := oplog.ReadCLIConfig(cliCtx)
	l := oplog.NewLogger(oplog.AppOut(cliCtx), logCfg)
	oplog.SetGlobalLogHandler(l.Handler())

	args, err := initArgs(cliCtx.String(BaseURIFlagName), cliCtx.String(ExternalURLFlagName))
	if err != nil {
		return err
	}
	return Deploy(cliCtx.Context, DeployConfig{
		Network:        cliCtx.String(NetworkFlagName),
		NetworksFile:   cliCtx.Path(NetworksFileFlagName),
		RPCURL:         cliCtx.String(RPCURLFlagName),
		PrivateKey:     cliCtx.String(PrivateKeyFlagName),
		ArtifactsDir:   cliCtx.Path(ArtifactsDirFlagName),
		InitArgs:       args,
		FileURL:        cliCtx.String(FileURLFlagName),
		TablePrefix:    cliCtx.String(TablePrefixFlagName),
		SkipPostDeploy: cliCtx.Bool(SkipPostDeployFlagName),
		DryRun:         cliCtx.Bool(DryRunFlagName),
		OutFile:        cliCtx.Path(OutFlagName),
		MetricsPushURL: cliCtx.String(MetricsPushURLFlagName),
		MetricsJob:     cliCtx.String(MetricsJobFlagName),
		Logger:         l,
		Out:            cliCtx.App.Writer,
	})
}

// Deploy resolves the network, deploys the DaoCloud proxy and runs the
// post-deploy calls. The network is resolved before anything is dialed.
func Deploy(ctx context.Context, cfg DeployConfig) error {
	net, err := ResolveNetwork(cfg.Network, cfg.NetworksFile)
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config for deploy: %w", err)
	}
	lgr := cfg.Logger.New("network", net.Name)

	client, err := Dial(ctx, cfg.RPCURL, net)
	if err != nil {
		return err
	}
	defer client.Close()

	runOpts := RunOpts{
		InitArgs:       cfg.InitArgs,
		FileURL:        cfg.FileURL,
		TablePrefix:    cfg.TablePrefix,
		SkipPostDeploy: cfg.SkipPostDeploy,
	}
	if cfg.DryRun {
		return DryRun(ctx, &Env{
			Logger:      lgr,
			Client:      client,
			Broadcaster: broadcaster.NoopBroadcaster(),
			Artifacts:   artifacts.NewOSStore(cfg.ArtifactsDir),
			Network:     net,
			Out:         cfg.Out,
		}, crypto.PubkeyToAddress(cfg.privateKeyECDSA.PublicKey), runOpts)
	}

	m := metrics.NewMetrics(net.Name)
	bcaster, err := broadcaster.NewKeyedBroadcaster(broadcaster.KeyedBroadcasterOpts{
		Logger:  lgr,
		Client:  client,
		ChainID: new(big.Int).SetUint64(net.ChainID),
		Key:     cfg.privateKeyECDSA,
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("failed to create broadcaster: %w", err)
	}

	record, runErr := Run(ctx, &Env{
		Logger:      lgr,
		Client:      client,
		Broadcaster: bcaster,
		Artifacts:   artifacts.NewOSStore(cfg.ArtifactsDir),
		Network:     net,
		Out:         cfg.Out,
	}, runOpts)
	if cfg.MetricsPushURL != "" {
		if err := m.Push(ctx, cfg.MetricsPushURL, cfg.MetricsJob); err != nil {
			lgr.Warn("Failed to push metrics", "err", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if err := serialize.Write(cfg.OutFile, record, 0o644); err != nil {
		return fmt.Errorf("failed to write deployment record: %w", err)
	}
	return nil
}

// Env is what a deployment runs against.
type Env struct {
	Logger      log.Logger
	Client      Client
	Broadcaster broadcaster.Broadcaster
	Artifacts   *artifacts.Store
	Network     network.Network
	Out         io.Writer
}

type RunOpts struct {
	InitArgs       []string
	FileURL        string
	TablePrefix    string
	SkipPostDeploy bool
}

// DeploymentRecord is the outcome of a deployment.
type DeploymentRecord struct {
	Network        string         `json:"network" toml:"network"`
	ChainID        uint64         `json:"chainId" toml:"chainId"`
	Proxy          common.Address `json:"proxy" toml:"proxy"`
	Implementation common.Address `json:"implementation" toml:"implementation"`
	TableID        *big.Int       `json:"tableId,omitempty" toml:"tableId,omitempty"`
	TableName      string         `json:"tableName,omitempty" toml:"tableName,omitempty"`
	QueryURL       string         `json:"queryUrl,omitempty" toml:"queryUrl,omitempty"`
}

// Run deploys the proxy and, unless skipped, runs the post-deploy calls
// one after the other. Any failed call aborts the run.
func Run(ctx context.Context, env *Env, opts RunOpts) (*DeploymentRecord, error) {
	net := env.Network
	if err := CheckChainID(ctx, env.Client, net); err != nil {
		return nil, err
	}

	impl, err := env.Artifacts.Load(daocloud.ArtifactName)
	if err != nil {
		return nil, err
	}
	proxyArt, err := env.Artifacts.Load(proxy.ERC1967ProxyName)
	if err != nil {
		return nil, err
	}
	initData, err := daocloud.InitializeCalldata(opts.InitArgs...)
	if err != nil {
		return nil, err
	}

	dep, err := proxy.DeployUUPS(ctx, proxy.DeployUUPSOpts{
		Logger:         env.Logger,
		Broadcaster:    env.Broadcaster,
		Client:         env.Client,
		Implementation: impl,
		Proxy:          proxyArt,
		InitData:       initData,
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(env.Out, "Proxy deployed to:", dep.Proxy, "on", net.Name)
	implAddr, err := proxy.ImplementationAddress(ctx, env.Client, dep.Proxy)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(env.Out, "^Pass this as --"+ProxyFlagName+" (or "+PrefixEnvVar("PROXY")[0]+") to upgrade")
	fmt.Fprintln(env.Out, "New implementation address:", implAddr)

	record := &DeploymentRecord{
		Network:        net.Name,
		ChainID:        net.ChainID,
		Proxy:          dep.Proxy,
		Implementation: implAddr,
	}
	if opts.SkipPostDeploy {
		return record, nil
	}

	fmt.Fprintln(env.Out, "\nRunning post deploy...")
	tableID, err := postDeploy(ctx, env, daocloud.New(dep.Proxy), opts.FileURL)
	if err != nil {
		return nil, fmt.Errorf("post deploy failed: %w", err)
	}
	record.TableID = tableID
	record.TableName = tableland.TableName(opts.TablePrefix, net.ChainID, tableID)
	record.QueryURL = tableland.QueryURL(net.BaseURI, "SELECT * FROM "+record.TableName)
	fmt.Fprintln(env.Out, record.QueryURL)
	return record, nil
}

type step struct {
	sig  string
	args []any
}

// fileSteps are the file operations run on the metadata table once it exists.
func fileSteps(fileURL string) []step {
	return []step{
		{daocloud.SigTouch, []any{"/test/test.txt", "test.txt", fileURL}},
		{daocloud.SigTouch, []any{"/test/test2.txt", "test2.txt", fileURL}},
		{daocloud.SigMvRename, []any{"/test/test2.txt", "/test2/test2.txt", "test2.txt"}},
		{daocloud.SigMv, []any{"/test/", "/test3/"}},
		{daocloud.SigRm, []any{"/test2"}},
	}
}

// postDeploy creates the metadata table and runs a few file operations on it.
func postDeploy(ctx context.Context, env *Env, c *daocloud.Contract, fileURL string) (*big.Int, error) {
	receipt, err := c.Connect(env.Broadcaster).CreateTable(ctx)
	if err != nil {
		return nil, err
	}
	tableID, err := tableland.TableIDFromReceipt(env.Network.Registry, receipt)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("Created table", "tableID", tableID)

	for _, st := range fileSteps(fileURL) {
		call, err := c.Call(st.sig, st.args...)
		if err != nil {
			return nil, err
		}
		if _, err := broadcaster.Send(ctx, env.Broadcaster, call); err != nil {
			return nil, err
		}
	}
	return tableID, nil
}

// PlannedCall is a call of a deployment. Address is the contract called,
// or the contract created if To is nil.
type PlannedCall struct {
	broadcaster.Call
	Address common.Address
}

// Plan returns the calls Run sends from the account from, in order.
// Created contract addresses are predicted from its pending nonce.
func Plan(ctx context.Context, env *Env, from common.Address, opts RunOpts) ([]PlannedCall, error) {
	if err := CheckChainID(ctx, env.Client, env.Network); err != nil {
		return nil, err
	}
	impl, err := env.Artifacts.Load(daocloud.ArtifactName)
	if err != nil {
		return nil, err
	}
	proxyArt, err := env.Artifacts.Load(proxy.ERC1967ProxyName)
	if err != nil {
		return nil, err
	}
	initData, err := daocloud.InitializeCalldata(opts.InitArgs...)
	if err != nil {
		return nil, err
	}
	nonce, err := env.Client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	implAddr := crypto.CreateAddress(from, nonce)
	proxyAddr := crypto.CreateAddress(from, nonce+1)
	proxyCode, err := proxy.InitCode(proxyArt, implAddr, initData)
	if err != nil {
		return nil, err
	}

	calls := []PlannedCall{
		{Call: broadcaster.Call{Label: "deploy " + impl.Name, Input: impl.Bytecode}, Address: implAddr},
		{Call: broadcaster.Call{Label: "deploy " + proxyArt.Name, Input: proxyCode}, Address: proxyAddr},
	}
	if opts.SkipPostDeploy {
		return calls, nil
	}
	c := daocloud.New(proxyAddr)
	steps := append([]step{{sig: daocloud.SigCreateTable}}, fileSteps(opts.FileURL)...)
	for _, st := range steps {
		call, err := c.Call(st.sig, st.args...)
		if err != nil {
			return nil, err
		}
		calls = append(calls, PlannedCall{Call: call, Address: proxyAddr})
	}
	return calls, nil
}

// DryRun prints the planned calls of a deployment and hooks them on
// env.Broadcaster, which is a NoopBroadcaster when run from deploy.
func DryRun(ctx context.Context, env *Env, from common.Address, opts RunOpts) error {
	calls, err := Plan(ctx, env, from, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "Planned calls from", from, "on", env.Network.Name+":")
	for i, call := range calls {
		env.Broadcaster.Hook(call.Call)
		if call.To == nil {
			fmt.Fprintf(env.Out, "%d. %s: create %s (%d bytes)\n", i+1, call.Label, call.Address, len(call.Input))
		} else {
			fmt.Fprintf(env.Out, "%d. %s: call %s 0x%x\n", i+1, call.Label, call.Address, call.Input)
		}
	}
	if _, err := env.Broadcaster.Broadcast(ctx); err != nil {
		return err
	}
	return nil
}

// ResolveNetwork looks up name in the known networks, merged with networksFile if set.
func ResolveNetwork(name string, networksFile string) (network.Network, error) {
	book := network.DefaultBook()
	if networksFile != "" {
		if err := book.LoadFile(networksFile); err != nil {
			return network.Network{}, err
		}
	}
	return book.Resolve(name)
}

// Dial connects to rpcURL, or to the RPC URL of the network if rpcURL is empty.
func Dial(ctx context.Context, rpcURL string, net network.Network) (*ethclient.Client, error) {
	rpcClient, err := DialRPC(ctx, rpcURL, net)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rpcClient), nil
}

func DialRPC(ctx context.Context, rpcURL string, net network.Network) (*rpc.Client, error) {
	if rpcURL == "" {
		rpcURL = net.RPCURL
	}
	if rpcURL == "" {
		return nil, fmt.Errorf("no RPC URL for network %s, set --%s", net.Name, RPCURLFlagName)
	}
	cl, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}
	return cl, nil
}

func CheckChainID(ctx context.Context, client interface {
	ChainID(ctx context.Context) (*big.Int, error)
}, net network.Network) error {
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != net.ChainID {
		return fmt.Errorf("RPC is on chain %s, network %s is chain %d", id, net.Name, net.ChainID)
	}
	return nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, errors.New("private key must be specified")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
