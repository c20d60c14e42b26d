package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/artifacts"
	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/broadcaster"
)

const ERC1967ProxyName = "ERC1967Proxy"

// ImplementationSlot is the ERC-1967 storage slot of the implementation
// address: bytes32(uint256(keccak256("eip1967.proxy.implementation")) - 1).
var ImplementationSlot = common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc")

var ErrNotProxiable = errors.New("implementation is not UUPS proxiable")

var proxyCtorArgs = abi.Arguments{
	{Name: "implementation", Type: mustType("address")},
	{Name: "_data", Type: mustType("bytes")},
}

var uupsABI = func() abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader([]byte(`[
		{"type":"function","name":"proxiableUUID","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
		{"type":"function","name":"upgradeToAndCall","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[],"stateMutability":"payable"}
	]`)))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Backend is the chain access needed on top of broadcasting.
type Backend interface {
	ethereum.ContractCaller
	ethereum.ChainStateReader
}

type Deployment struct {
	Proxy          common.Address `json:"proxy" toml:"proxy"`
	Implementation common.Address `json:"implementation" toml:"implementation"`
}

type DeployUUPSOpts struct {
	Logger         log.Logger
	Broadcaster    broadcaster.Broadcaster
	Client         Backend
	Implementation *artifacts.Artifact
	Proxy          *artifacts.Artifact
	// InitData is the initializer calldata the proxy delegates on construction.
	InitData []byte
	// SkipProxiableCheck disables the proxiableUUID() check of the implementation.
	SkipProxiableCheck bool
}

// DeployUUPS deploys an implementation and an ERC-1967 proxy pointing at it.
func DeployUUPS(ctx context.Context, opts DeployUUPSOpts) (Deployment, error) {
	lgr := opts.Logger.New("contract", opts.Implementation.Name)

	impl, err := deployImplementation(ctx, lgr, opts.Broadcaster, opts.Client, opts.Implementation, opts.SkipProxiableCheck)
	if err != nil {
		return Deployment{}, err
	}

	input, err := InitCode(opts.Proxy, impl, opts.InitData)
	if err != nil {
		return Deployment{}, err
	}
	receipt, err := broadcaster.Send(ctx, opts.Broadcaster, broadcaster.Call{
		Label: "deploy " + opts.Proxy.Name,
		Input: input,
	})
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to deploy proxy: %w", err)
	}
	lgr.Info("Deployed proxy", "proxy", receipt.ContractAddress, "implementation", impl)
	return Deployment{
		Proxy:          receipt.ContractAddress,
		Implementation: impl,
	}, nil
}

// InitCode returns the creation code of an ERC1967Proxy(impl, initData).
func InitCode(proxyArt *artifacts.Artifact, impl common.Address, initData []byte) ([]byte, error) {
	args, err := proxyCtorArgs.Pack(impl, initData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proxy constructor: %w", err)
	}
	return append(append([]byte{}, proxyArt.Bytecode...), args...), nil
}

type UpgradeOpts struct {
	Logger         log.Logger
	Broadcaster    broadcaster.Broadcaster
	Client         Backend
	Proxy          common.Address
	Implementation *artifacts.Artifact
	// Data is called on the new implementation after the upgrade, may be empty.
	Data               []byte
	SkipProxiableCheck bool
}

// Upgrade deploys a new implementation and points the proxy at it.
func Upgrade(ctx context.Context, opts UpgradeOpts) (Deployment, error) {
	lgr := opts.Logger.New("contract", opts.Implementation.Name, "proxy", opts.Proxy)

	prev, err := ImplementationAddress(ctx, opts.Client, opts.Proxy)
	if err != nil {
		return Deployment{}, err
	}
	if prev == (common.Address{}) {
		return Deployment{}, fmt.Errorf("%s is not an ERC-1967 proxy", opts.Proxy)
	}

	impl, err := deployImplementation(ctx, lgr, opts.Broadcaster, opts.Client, opts.Implementation, opts.SkipProxiableCheck)
	if err != nil {
		return Deployment{}, err
	}
	input, err := uupsABI.Pack("upgradeToAndCall", impl, opts.Data)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to encode upgrade call: %w", err)
	}
	proxy := opts.Proxy
	if _, err := broadcaster.Send(ctx, opts.Broadcaster, broadcaster.Call{
		Label: "upgradeToAndCall",
		To:    &proxy,
		Input: input,
	}); err != nil {
		return Deployment{}, fmt.Errorf("failed to upgrade proxy: %w", err)
	}

	got, err := ImplementationAddress(ctx, opts.Client, opts.Proxy)
	if err != nil {
		return Deployment{}, err
	}
	if got != impl {
		return Deployment{}, fmt.Errorf("proxy points at %s after upgrade, expected %s", got, impl)
	}
	lgr.Info("Upgraded proxy", "previous", prev, "implementation", impl)
	return Deployment{Proxy: opts.Proxy, Implementation: impl}, nil
}

// ImplementationAddress reads the implementation address from the ERC-1967
// slot of proxy.
func ImplementationAddress(ctx context.Context, client ethereum.ChainStateReader, proxy common.Address) (common.Address, error) {
	val, err := client.StorageAt(ctx, proxy, ImplementationSlot, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read implementation slot of %s: %w", proxy, err)
	}
	return common.BytesToAddress(val), nil
}

func deployImplementation(ctx context.Context, lgr log.Logger, bcaster broadcaster.Broadcaster, client Backend, art *artifacts.Artifact, skipCheck bool) (common.Address, error) {
	receipt, err := broadcaster.Send(ctx, bcaster, broadcaster.Call{
		Label: "deploy " + art.Name,
		Input: art.Bytecode,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy implementation: %w", err)
	}
	impl := receipt.ContractAddress
	lgr.Info("Deployed implementation", "implementation", impl)

	if _, ok := art.ABI.Methods["proxiableUUID"]; skipCheck || !ok {
		return impl, nil
	}
	if err := checkProxiable(ctx, client, impl); err != nil {
		return common.Address{}, err
	}
	return impl, nil
}

func checkProxiable(ctx context.Context, client ethereum.ContractCaller, impl common.Address) error {
	input, err := uupsABI.Pack("proxiableUUID")
	if err != nil {
		return err
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &impl, Data: input}, nil)
	if err != nil {
		return fmt.Errorf("%w: proxiableUUID() failed: %v", ErrNotProxiable, err)
	}
	if common.BytesToHash(out) != ImplementationSlot {
		return fmt.Errorf("%w: proxiableUUID() returned %x", ErrNotProxiable, out)
	}
	return nil
}
