package network

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/ethereum/go-ethereum/common"
)

const (
	LocalTableland = "local-tableland"
	// Localhost is the name hardhat gives a node started with `npx hardhat node`.
	// It resolves to the local Tableland deployment.
	Localhost = "localhost"

	MainnetGateway = "https://tableland.network/api/v1/"
	TestnetGateway = "https://testnets.tableland.network/api/v1/"
	LocalGateway   = "http://localhost:8080/api/v1/"

	LocalRPCURL = "http://127.0.0.1:8545"
)

var ErrUnknownNetwork = errors.New("cannot get registry address")

// Network is a chain with a Tableland registry deployment.
type Network struct {
	Name     string         `toml:"-" json:"name"`
	ChainID  uint64         `toml:"chain_id" json:"chainId"`
	Registry common.Address `toml:"registry" json:"registry"`
	BaseURI  string         `toml:"base_uri" json:"baseUri"`
	RPCURL   string         `toml:"rpc_url" json:"rpcUrl,omitempty"`
}

var known = map[string]Network{
	"mainnet": {
		ChainID:  1,
		Registry: common.HexToAddress("0x012969f7e3439a9B04025b5a049EB9BAD82A8C12"),
		BaseURI:  MainnetGateway,
	},
	"homestead": {
		ChainID:  1,
		Registry: common.HexToAddress("0x012969f7e3439a9B04025b5a049EB9BAD82A8C12"),
		BaseURI:  MainnetGateway,
	},
	"optimism": {
		ChainID:  10,
		Registry: common.HexToAddress("0xfad44BF5B843dE943a09D4f3E84949A11d3aa3e6"),
		BaseURI:  MainnetGateway,
	},
	"arbitrum": {
		ChainID:  42161,
		Registry: common.HexToAddress("0x9aBd75E8640871A5a20d3B4eE6330a04c962aFfd"),
		BaseURI:  MainnetGateway,
	},
	"arbitrum-nova": {
		ChainID:  42170,
		Registry: common.HexToAddress("0x1A22854c5b1642760a827f20137a67930AE108d2"),
		BaseURI:  MainnetGateway,
	},
	"matic": {
		ChainID:  137,
		Registry: common.HexToAddress("0x5c4e6A9e5C1e1BF445A062006faF19EA6c49aFeA"),
		BaseURI:  MainnetGateway,
	},
	"filecoin": {
		ChainID:  314,
		Registry: common.HexToAddress("0x59EF8Bf2d6c102B4c42AEf9189e1a9F0ABfD652d"),
		BaseURI:  MainnetGateway,
	},
	"sepolia": {
		ChainID:  11155111,
		Registry: common.HexToAddress("0xc50C62498448ACc8dBdE43DA77f8D5D2E2c7597D"),
		BaseURI:  TestnetGateway,
	},
	"optimism-sepolia": {
		ChainID:  11155420,
		Registry: common.HexToAddress("0x68A2f4423ad3bf5139Db563CF3bC80aA09ed7079"),
		BaseURI:  TestnetGateway,
	},
	"arbitrum-sepolia": {
		ChainID:  421614,
		Registry: common.HexToAddress("0x223A74B8323914afDC3ff1e5005564dC17231d6e"),
		BaseURI:  TestnetGateway,
	},
	"maticmum": {
		ChainID:  80001,
		Registry: common.HexToAddress("0x4b48841d4b32C4650E4ABc117A03FE8B51f38F68"),
		BaseURI:  TestnetGateway,
	},
	"polygon-amoy": {
		ChainID:  80002,
		Registry: common.HexToAddress("0x170fb206132b693e38adFc8727dCfa303546Cec1"),
		BaseURI:  TestnetGateway,
	},
	"filecoin-calibration": {
		ChainID:  314159,
		Registry: common.HexToAddress("0x030BCf3D50cad04c2e57391B12740982A9308621"),
		BaseURI:  TestnetGateway,
	},
	LocalTableland: {
		ChainID:  31337,
		Registry: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		BaseURI:  LocalGateway,
		RPCURL:   LocalRPCURL,
	},
}

// Book is a set of named networks.
type Book struct {
	networks map[string]Network
}

// DefaultBook returns a book with every known Tableland deployment.
func DefaultBook() *Book {
	b := &Book{networks: make(map[string]Network, len(known))}
	for name, n := range known {
		n.Name = name
		b.networks[name] = n
	}
	return b
}

// Resolve returns the network registered under name.
func (b *Book) Resolve(name string) (Network, error) {
	if name == Localhost {
		name = LocalTableland
	}
	n, ok := b.networks[name]
	if !ok || n.Registry == (common.Address{}) {
		return Network{}, fmt.Errorf("%w for %s", ErrUnknownNetwork, name)
	}
	return n, nil
}

// Names returns the sorted names of all networks in the book.
func (b *Book) Names() []string {
	return slices.Sorted(maps.Keys(b.networks))
}

type fileConfig struct {
	Networks map[string]Network `toml:"networks"`
}

// LoadFile merges the networks of a TOML file over the book. Fields left
// empty in the file keep the value of an existing entry with the same name.
func (b *Book) LoadFile(path string) error {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fmt.Errorf("failed to decode networks file %s: %w", path, err)
	}
	b.Merge(cfg.Networks)
	return nil
}

func (b *Book) Merge(networks map[string]Network) {
	for name, n := range networks {
		cur := b.networks[name]
		cur.Name = name
		if n.ChainID != 0 {
			cur.ChainID = n.ChainID
		}
		if n.Registry != (common.Address{}) {
			cur.Registry = n.Registry
		}
		if n.BaseURI != "" {
			cur.BaseURI = n.BaseURI
		}
		if n.RPCURL != "" {
			cur.RPCURL = n.RPCURL
		}
		b.networks[name] = cur
	}
}
