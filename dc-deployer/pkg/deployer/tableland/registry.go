package tableland

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrTableNotFound = errors.New("no table created")

var (
	funcTokensOfOwner = w3.MustNewFunc("tokensOfOwner(address)", "uint256[]")

	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// Table identifies a table of the registry.
type Table struct {
	ChainID uint64   `json:"chainId" toml:"chainId"`
	TableID *big.Int `json:"tableId" toml:"tableId"`
}

func (t Table) Name(prefix string) string {
	return TableName(prefix, t.ChainID, t.TableID)
}

// Registry reads from the Tableland registry contract, which tracks tables
// as ERC-721 tokens.
type Registry struct {
	client  *w3.Client
	address common.Address
	chainID uint64
}

func NewRegistry(client *rpc.Client, address common.Address, chainID uint64) *Registry {
	return &Registry{
		client:  w3.NewClient(client),
		address: address,
		chainID: chainID,
	}
}

func (r *Registry) Address() common.Address {
	return r.address
}

// ListTables returns the tables owned by owner.
func (r *Registry) ListTables(ctx context.Context, owner common.Address) ([]Table, error) {
	var ids []*big.Int
	if err := r.client.CallCtx(ctx, eth.CallFunc(r.address, funcTokensOfOwner, owner).Returns(&ids)); err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", owner, err)
	}
	tables := make([]Table, 0, len(ids))
	for _, id := range ids {
		tables = append(tables, Table{ChainID: r.chainID, TableID: id})
	}
	return tables, nil
}

// TableIDFromReceipt returns the ID of the table the registry minted in
// receipt. The registry mints one ERC-721 token per created table.
func TableIDFromReceipt(registry common.Address, receipt *types.Receipt) (*big.Int, error) {
	for _, lg := range receipt.Logs {
		if lg.Address != registry || len(lg.Topics) != 4 || lg.Topics[0] != transferTopic {
			continue
		}
		// mints come from the zero address
		if common.BytesToAddress(lg.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return lg.Topics[3].Big(), nil
	}
	return nil, fmt.Errorf("%w: registry %s emitted no mint in tx %s", ErrTableNotFound, registry, receipt.TxHash)
}
