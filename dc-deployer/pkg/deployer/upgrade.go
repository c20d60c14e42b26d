package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/artifacts"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/broadcaster"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/daocloud"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/metrics"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/proxy"
	oplog "github.com/0xrhsmt/dao-cloud/dc-service/log"
	"github.com/0xrhsmt/dao-cloud/dc-service/serialize"
)

type UpgradeConfig struct {
	Network        string
	NetworksFile   string
	RPCURL         string
	PrivateKey     string
	ArtifactsDir   string
	Proxy          common.Address
	OutFile        string
	MetricsPushURL string
	MetricsJob     string

	Logger log.Logger
	Out    io.Writer
}

func (c *UpgradeConfig) Check() error {
	if c.Logger == nil {
		return errors.New("logger must be specified")
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Proxy == (common.Address{}) {
		return errors.New("proxy address must be specified")
	}
	if c.ArtifactsDir == "" {
		return errors.New("artifacts dir must be specified")
	}
	if c.MetricsJob == "" {
		c.MetricsJob = DefaultMetricsJob
	}
	return nil
}

func UpgradeCLI(cliCtx *cli.Context) error {
	logCfg := oplog.ReadCLIConfig(cliCtx)
	l := oplog.NewLogger(oplog.AppOut(cliCtx), logCfg)
	oplog.SetGlobalLogHandler(l.Handler())

	proxyStr := cliCtx.String(ProxyFlagName)
	if !common.IsHexAddress(proxyStr) {
		return fmt.Errorf("invalid --%s address %q", ProxyFlagName, proxyStr)
	}
	return Upgrade(cliCtx.Context, UpgradeConfig{
		Network:        cliCtx.String(NetworkFlagName),
		NetworksFile:   cliCtx.Path(NetworksFileFlagName),
		RPCURL:         cliCtx.String(RPCURLFlagName),
		PrivateKey:     cliCtx.String(PrivateKeyFlagName),
		ArtifactsDir:   cliCtx.Path(ArtifactsDirFlagName),
		Proxy:          common.HexToAddress(proxyStr),
		OutFile:        cliCtx.Path(OutFlagName),
		MetricsPushURL: cliCtx.String(MetricsPushURLFlagName),
		MetricsJob:     cliCtx.String(MetricsJobFlagName),
		Logger:         l,
		Out:            cliCtx.App.Writer,
	})
}

// Upgrade deploys a new DaoCloud implementation and points the proxy at it.
func Upgrade(ctx context.Context, cfg UpgradeConfig) error {
	net, err := ResolveNetwork(cfg.Network, cfg.NetworksFile)
	if err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return fmt.Errorf("invalid config for upgrade: %w", err)
	}
	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	lgr := cfg.Logger.New("network", net.Name)

	impl, err := artifacts.NewOSStore(cfg.ArtifactsDir).Load(daocloud.ArtifactName)
	if err != nil {
		return err
	}

	client, err := Dial(ctx, cfg.RPCURL, net)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := CheckChainID(ctx, client, net); err != nil {
		return err
	}

	m := metrics.NewMetrics(net.Name)
	bcaster, err := broadcaster.NewKeyedBroadcaster(broadcaster.KeyedBroadcasterOpts{
		Logger:  lgr,
		Client:  client,
		ChainID: new(big.Int).SetUint64(net.ChainID),
		Key:     key,
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("failed to create broadcaster: %w", err)
	}

	dep, upgradeErr := proxy.Upgrade(ctx, proxy.UpgradeOpts{
		Logger:         lgr,
		Broadcaster:    bcaster,
		Client:         client,
		Proxy:          cfg.Proxy,
		Implementation: impl,
	})
	if cfg.MetricsPushURL != "" {
		if err := m.Push(ctx, cfg.MetricsPushURL, cfg.MetricsJob); err != nil {
			lgr.Warn("Failed to push metrics", "err", err)
		}
	}
	if upgradeErr != nil {
		return upgradeErr
	}
	fmt.Fprintln(cfg.Out, "Proxy", dep.Proxy, "upgraded on", net.Name)
	fmt.Fprintln(cfg.Out, "New implementation address:", dep.Implementation)

	record := &DeploymentRecord{
		Network:        net.Name,
		ChainID:        net.ChainID,
		Proxy:          dep.Proxy,
		Implementation: dep.Implementation,
	}
	if err := serialize.Write(cfg.OutFile, record, 0o644); err != nil {
		return fmt.Errorf("failed to write deployment record: %w", err)
	}
	return nil
}
