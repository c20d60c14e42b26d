package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/inspect"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/version"

	dcservice "github.com/0xrhsmt/dao-cloud/dc-service"

	"github.com/0xrhsmt/dao-cloud/dc-service/cliapp"
	"github.com/0xrhsmt/dao-cloud/dc-service/ctxinterrupt"
	oplog "github.com/0xrhsmt/dao-cloud/dc-service/log"
)

var (
	GitCommit = ""
	GitDate   = ""
)

// VersionWithMeta holds the textual version string including the metadata.
var VersionWithMeta = dcservice.FormatVersion(version.Version, GitCommit, GitDate, version.Meta)

func main() {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Version = VersionWithMeta
	app.Name = "dc-deployer"
	app.Usage = "Tool to deploy and operate the DaoCloud contract on Tableland networks."
	app.Flags = cliapp.ProtectFlags(deployer.GlobalFlags)
	app.Commands = []*cli.Command{
		{
			Name:   "deploy",
			Usage:  "deploys the DaoCloud UUPS proxy and runs the post deploy steps",
			Flags:  cliapp.ProtectFlags(deployer.DeployFlags),
			Action: deployer.DeployCLI,
		},
		{
			Name:   "upgrade",
			Usage:  "deploys a new DaoCloud implementation and points the proxy at it",
			Flags:  cliapp.ProtectFlags(deployer.UpgradeFlags),
			Action: deployer.UpgradeCLI,
		},
		{
			Name:        "inspect",
			Usage:       "inspects a deployment",
			Subcommands: inspect.Commands,
		},
	}
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}
