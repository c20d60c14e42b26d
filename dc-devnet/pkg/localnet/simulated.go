package localnet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/eth/ethconfig"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"
)

var (
	oneEth     = uint256.NewInt(1e18)
	millionEth = new(uint256.Int).Mul(uint256.NewInt(1e6), oneEth)
)

var errNotStarted = errors.New("network not started")

// Simulated is an in-process chain backed by the go-ethereum simulated
// backend. It has no table service, contracts depending on the Tableland
// registry cannot be exercised against it.
type Simulated struct {
	lgr      log.Logger
	accounts []Account

	mu      sync.Mutex
	backend *simulated.Backend
	client  *autoMineClient
}

var _ Network = (*Simulated)(nil)

func NewSimulated(lgr log.Logger) *Simulated {
	return &Simulated{
		lgr:      lgr,
		accounts: DevAccounts(),
	}
}

func (s *Simulated) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		return errors.New("already started")
	}
	alloc := make(types.GenesisAlloc, len(s.accounts))
	for _, acc := range s.accounts {
		alloc[acc.Address] = types.Account{Balance: millionEth.ToBig()}
	}
	s.backend = simulated.NewBackend(alloc, withChainID(ChainID))
	s.client = &autoMineClient{Client: s.backend.Client(), commit: s.backend.Commit}
	s.lgr.Info("Started simulated chain", "chainID", ChainID, "accounts", len(s.accounts))
	return nil
}

func (s *Simulated) Ready(ctx context.Context) error {
	cl, err := s.Client()
	if err != nil {
		return err
	}
	id, err := cl.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("simulated chain not ready: %w", err)
	}
	s.lgr.Debug("Simulated chain ready", "chainID", id)
	return nil
}

func (s *Simulated) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	s.client = nil
	return err
}

func (s *Simulated) Accounts() []Account {
	return s.accounts
}

// Client returns a client of the running chain. Every transaction sent
// through it is mined into its own block right away.
func (s *Simulated) Client() (simulated.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, errNotStarted
	}
	return s.client, nil
}

func withChainID(id int64) func(*node.Config, *ethconfig.Config) {
	return func(_ *node.Config, ethConf *ethconfig.Config) {
		cfg := *ethConf.Genesis.Config
		cfg.ChainID = big.NewInt(id)
		ethConf.Genesis.Config = &cfg
		ethConf.NetworkId = uint64(id)
	}
}

type autoMineClient struct {
	simulated.Client

	mu     sync.Mutex
	commit func() common.Hash
}

func (c *autoMineClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	c.commit()
	return nil
}
