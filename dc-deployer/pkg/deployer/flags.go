package deployer

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/network"
	dcservice "github.com/0xrhsmt/dao-cloud/dc-service"
	oplog "github.com/0xrhsmt/dao-cloud/dc-service/log"
)

const EnvVarPrefix = "DC_DEPLOYER"

const (
	RPCURLFlagName         = "rpc-url"
	NetworkFlagName        = "network"
	NetworksFileFlagName   = "networks-file"
	PrivateKeyFlagName     = "private-key"
	ArtifactsDirFlagName   = "artifacts-dir"
	BaseURIFlagName        = "base-uri"
	ExternalURLFlagName    = "external-url"
	FileURLFlagName        = "file-url"
	TablePrefixFlagName    = "table-prefix"
	SkipPostDeployFlagName = "skip-post-deploy"
	DryRunFlagName         = "dry-run"
	OutFlagName            = "out"
	ProxyFlagName          = "proxy"
	MetricsPushURLFlagName = "metrics.push-url"
	MetricsJobFlagName     = "metrics.job"
)

const (
	DefaultTablePrefix = "daocloud"
	DefaultFileURL     = "http://localhost:3000/"
	DefaultMetricsJob  = "dc-deployer"
)

func PrefixEnvVar(name string) []string {
	return dcservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	RPCURLFlag = &cli.StringFlag{
		Name:    RPCURLFlagName,
		Usage:   "RPC URL of the chain to deploy to. Defaults to the RPC URL of the network, if it has one.",
		EnvVars: PrefixEnvVar("RPC_URL"),
	}
	NetworkFlag = &cli.StringFlag{
		Name:    NetworkFlagName,
		Usage:   "Tableland network to deploy to. One of: " + strings.Join(network.DefaultBook().Names(), ", ") + " or " + network.Localhost,
		EnvVars: PrefixEnvVar("NETWORK"),
		Value:   network.Localhost,
	}
	NetworksFileFlag = &cli.PathFlag{
		Name:    NetworksFileFlagName,
		Usage:   "TOML file with additional or overridden networks.",
		EnvVars: PrefixEnvVar("NETWORKS_FILE"),
	}
	PrivateKeyFlag = &cli.StringFlag{
		Name:    PrivateKeyFlagName,
		Usage:   "Hex-encoded private key of the deployer.",
		EnvVars: PrefixEnvVar("PRIVATE_KEY"),
	}
	ArtifactsDirFlag = &cli.PathFlag{
		Name:    ArtifactsDirFlagName,
		Usage:   "Directory of the compiled contract artifacts (hardhat artifacts/ or foundry out/).",
		EnvVars: PrefixEnvVar("ARTIFACTS_DIR"),
		Value:   "artifacts",
	}
	BaseURIFlag = &cli.StringFlag{
		Name:    BaseURIFlagName,
		Usage:   "Base URI passed to initialize(string,string). Requires --" + ExternalURLFlagName + ".",
		EnvVars: PrefixEnvVar("BASE_URI"),
	}
	ExternalURLFlag = &cli.StringFlag{
		Name:    ExternalURLFlagName,
		Usage:   "External URL passed to initialize(string,string). Requires --" + BaseURIFlagName + ".",
		EnvVars: PrefixEnvVar("EXTERNAL_URL"),
	}
	FileURLFlag = &cli.StringFlag{
		Name:    FileURLFlagName,
		Usage:   "URL of the files touched by the post-deploy run.",
		EnvVars: PrefixEnvVar("FILE_URL"),
		Value:   DefaultFileURL,
	}
	TablePrefixFlag = &cli.StringFlag{
		Name:    TablePrefixFlagName,
		Usage:   "Prefix of the table created by the contract.",
		EnvVars: PrefixEnvVar("TABLE_PREFIX"),
		Value:   DefaultTablePrefix,
	}
	SkipPostDeployFlag = &cli.BoolFlag{
		Name:    SkipPostDeployFlagName,
		Usage:   "Only deploy the proxy, do not create the table or run the file operations.",
		EnvVars: PrefixEnvVar("SKIP_POST_DEPLOY"),
	}
	DryRunFlag = &cli.BoolFlag{
		Name:    DryRunFlagName,
		Usage:   "Print the calls of the deployment without sending them.",
		EnvVars: PrefixEnvVar("DRY_RUN"),
	}
	OutFlag = &cli.PathFlag{
		Name:    OutFlagName,
		Usage:   "Write the deployment record to this file (.json or .toml). Use - for stdout.",
		EnvVars: PrefixEnvVar("OUT"),
	}
	ProxyFlag = &cli.StringFlag{
		Name:    ProxyFlagName,
		Usage:   "Address of the DaoCloud proxy.",
		EnvVars: PrefixEnvVar("PROXY"),
	}
	MetricsPushURLFlag = &cli.StringFlag{
		Name:    MetricsPushURLFlagName,
		Usage:   "Prometheus Pushgateway URL to push run metrics to. Disabled if empty.",
		EnvVars: PrefixEnvVar("METRICS_PUSH_URL"),
	}
	MetricsJobFlag = &cli.StringFlag{
		Name:    MetricsJobFlagName,
		Usage:   "Pushgateway job name.",
		EnvVars: PrefixEnvVar("METRICS_JOB"),
		Value:   DefaultMetricsJob,
	}
)

var GlobalFlags = append([]cli.Flag{}, oplog.CLIFlags(EnvVarPrefix)...)

var NetworkFlags = []cli.Flag{
	RPCURLFlag,
	NetworkFlag,
	NetworksFileFlag,
}

var MetricsFlags = []cli.Flag{
	MetricsPushURLFlag,
	MetricsJobFlag,
}

var DeployFlags = concat(NetworkFlags, []cli.Flag{
	PrivateKeyFlag,
	ArtifactsDirFlag,
	BaseURIFlag,
	ExternalURLFlag,
	FileURLFlag,
	TablePrefixFlag,
	SkipPostDeployFlag,
	DryRunFlag,
	OutFlag,
}, MetricsFlags)

var UpgradeFlags = concat(NetworkFlags, []cli.Flag{
	PrivateKeyFlag,
	ArtifactsDirFlag,
	ProxyFlag,
	OutFlag,
}, MetricsFlags)

func concat(sets ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, set := range sets {
		out = append(out, set...)
	}
	return out
}

// initArgs returns the initializer arguments, which are set together or not at all.
func initArgs(baseURI, externalURL string) ([]string, error) {
	switch {
	case baseURI == "" && externalURL == "":
		return nil, nil
	case baseURI == "" || externalURL == "":
		return nil, fmt.Errorf("--%s and --%s must be set together", BaseURIFlagName, ExternalURLFlagName)
	default:
		return []string{baseURI, externalURL}, nil
	}
}
