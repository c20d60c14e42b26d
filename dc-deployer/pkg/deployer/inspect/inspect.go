package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/proxy"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/tableland"
	"github.com/0xrhsmt/dao-cloud/dc-service/cliapp"
)

const (
	OwnerFlagName     = "owner"
	StatementFlagName = "statement"
)

var (
	OwnerFlag = &cli.StringFlag{
		Name:     OwnerFlagName,
		Usage:    "Owner of the tables to list.",
		EnvVars:  deployer.PrefixEnvVar("OWNER"),
		Required: true,
	}
	StatementFlag = &cli.StringFlag{
		Name:     StatementFlagName,
		Usage:    "Read statement to run, e.g. SELECT * FROM daocloud_31337_2.",
		EnvVars:  deployer.PrefixEnvVar("STATEMENT"),
		Required: true,
	}
)

var (
	ImplementationFlags = append(append([]cli.Flag{}, deployer.NetworkFlags...), deployer.ProxyFlag)
	TablesFlags         = append(append([]cli.Flag{}, deployer.NetworkFlags...), OwnerFlag, deployer.TablePrefixFlag)
	QueryFlags          = []cli.Flag{deployer.NetworkFlag, deployer.NetworksFileFlag, StatementFlag}
)

var Commands = []*cli.Command{
	{
		Name:   "implementation",
		Usage:  "prints the implementation address of a proxy",
		Flags:  cliapp.ProtectFlags(ImplementationFlags),
		Action: ImplementationCLI,
	},
	{
		Name:   "tables",
		Usage:  "lists the registry tables of an owner",
		Flags:  cliapp.ProtectFlags(TablesFlags),
		Action: TablesCLI,
	},
	{
		Name:   "query",
		Usage:  "runs a read query against the network gateway",
		Flags:  cliapp.ProtectFlags(QueryFlags),
		Action: QueryCLI,
	},
}

func addressFlag(cliCtx *cli.Context, name string) (common.Address, error) {
	s := cliCtx.String(name)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid --%s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func ImplementationCLI(cliCtx *cli.Context) error {
	proxyAddr, err := addressFlag(cliCtx, deployer.ProxyFlagName)
	if err != nil {
		return err
	}
	net, err := deployer.ResolveNetwork(cliCtx.String(deployer.NetworkFlagName), cliCtx.Path(deployer.NetworksFileFlagName))
	if err != nil {
		return err
	}
	client, err := deployer.Dial(cliCtx.Context, cliCtx.String(deployer.RPCURLFlagName), net)
	if err != nil {
		return err
	}
	defer client.Close()
	return Implementation(cliCtx.Context, client, proxyAddr, cliCtx.App.Writer)
}

func Implementation(ctx context.Context, client *ethclient.Client, proxyAddr common.Address, w io.Writer) error {
	impl, err := proxy.ImplementationAddress(ctx, client, proxyAddr)
	if err != nil {
		return err
	}
	if impl == (common.Address{}) {
		return fmt.Errorf("%s is not an ERC-1967 proxy", proxyAddr)
	}
	_, err = fmt.Fprintln(w, impl)
	return err
}

func TablesCLI(cliCtx *cli.Context) error {
	owner, err := addressFlag(cliCtx, OwnerFlagName)
	if err != nil {
		return err
	}
	net, err := deployer.ResolveNetwork(cliCtx.String(deployer.NetworkFlagName), cliCtx.Path(deployer.NetworksFileFlagName))
	if err != nil {
		return err
	}
	rpcClient, err := deployer.DialRPC(cliCtx.Context, cliCtx.String(deployer.RPCURLFlagName), net)
	if err != nil {
		return err
	}
	defer rpcClient.Close()
	reg := tableland.NewRegistry(rpcClient, net.Registry, net.ChainID)
	return Tables(cliCtx.Context, reg, owner, cliCtx.String(deployer.TablePrefixFlagName), cliCtx.App.Writer)
}

func Tables(ctx context.Context, reg *tableland.Registry, owner common.Address, prefix string, w io.Writer) error {
	tables, err := reg.ListTables(ctx, owner)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := fmt.Fprintln(w, table.Name(prefix)); err != nil {
			return err
		}
	}
	return nil
}

func QueryCLI(cliCtx *cli.Context) error {
	net, err := deployer.ResolveNetwork(cliCtx.String(deployer.NetworkFlagName), cliCtx.Path(deployer.NetworksFileFlagName))
	if err != nil {
		return err
	}
	return Query(cliCtx.Context, tableland.NewGateway(net.BaseURI), cliCtx.String(StatementFlagName), cliCtx.App.Writer)
}

func Query(ctx context.Context, gw *tableland.Gateway, statement string, w io.Writer) error {
	rows, err := gw.Query(ctx, statement)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
