package daocloud

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/0xrhsmt/dao-cloud/dc-deployer/pkg/deployer/broadcaster"
)

const ArtifactName = "DaoCloud"

var ErrEventNotFound = errors.New("event not found")

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(fmt.Errorf("invalid DaoCloud ABI: %w", err))
	}
	return parsed
}()

type TransferEvent struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

type MakeMoveEvent struct {
	Caller  common.Address
	TokenID *big.Int
	X       *big.Int
	Y       *big.Int
}

// Contract encodes calls to, and decodes events of, a DaoCloud deployment.
type Contract struct {
	addr common.Address
}

func New(addr common.Address) *Contract {
	return &Contract{addr: addr}
}

func (c *Contract) Address() common.Address {
	return c.addr
}

// Pack encodes a call by its canonical signature, so overloads like
// mv(string,string) and mv(string,string,string) stay unambiguous.
func Pack(sig string, args ...any) ([]byte, error) {
	for _, m := range parsedABI.Methods {
		if m.Sig != sig {
			continue
		}
		enc, err := m.Inputs.Pack(args...)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", sig, err)
		}
		return append(append([]byte{}, m.ID...), enc...), nil
	}
	return nil, fmt.Errorf("unknown method %s", sig)
}

// InitializeCalldata encodes the initializer the proxy runs on deployment:
// initialize() without arguments, initialize(baseURI, externalURL) with two.
func InitializeCalldata(args ...string) ([]byte, error) {
	switch len(args) {
	case 0:
		return Pack(SigInitialize)
	case 2:
		return Pack(SigInitializeURIs, args[0], args[1])
	default:
		return nil, fmt.Errorf("initialize takes 0 or 2 arguments, got %d", len(args))
	}
}

// Call builds the transaction calling sig on the contract. The call is
// labelled with the method name.
func (c *Contract) Call(sig string, args ...any) (broadcaster.Call, error) {
	input, err := Pack(sig, args...)
	if err != nil {
		return broadcaster.Call{}, err
	}
	to := c.addr
	return broadcaster.Call{
		Label: sig[:strings.IndexByte(sig, '(')],
		To:    &to,
		Input: input,
	}, nil
}

// Connect returns a session sending calls through bcaster, like connecting
// a contract to a signer.
func (c *Contract) Connect(bcaster broadcaster.Broadcaster) *Session {
	return &Session{contract: c, bcaster: bcaster}
}

// ParseTransfer decodes the first Transfer event the contract emitted in receipt.
func (c *Contract) ParseTransfer(receipt *types.Receipt) (*TransferEvent, error) {
	out, err := c.unpackFirst(receipt, "Transfer")
	if err != nil {
		return nil, err
	}
	return &TransferEvent{
		From:    out["from"].(common.Address),
		To:      out["to"].(common.Address),
		TokenID: out["tokenId"].(*big.Int),
	}, nil
}

// ParseMakeMove decodes the first MakeMove event the contract emitted in receipt.
func (c *Contract) ParseMakeMove(receipt *types.Receipt) (*MakeMoveEvent, error) {
	out, err := c.unpackFirst(receipt, "MakeMove")
	if err != nil {
		return nil, err
	}
	return &MakeMoveEvent{
		Caller:  out["caller"].(common.Address),
		TokenID: out["tokenId"].(*big.Int),
		X:       out["x"].(*big.Int),
		Y:       out["y"].(*big.Int),
	}, nil
}

func (c *Contract) unpackFirst(receipt *types.Receipt, name string) (map[string]any, error) {
	event := parsedABI.Events[name]
	for _, lg := range receipt.Logs {
		if lg.Address != c.addr || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		out := make(map[string]any)
		if err := event.Inputs.NonIndexed().UnpackIntoMap(out, lg.Data); err != nil {
			return nil, fmt.Errorf("failed to decode %s data: %w", name, err)
		}
		var indexed abi.Arguments
		for _, arg := range event.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if err := abi.ParseTopicsIntoMap(out, indexed, lg.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to decode %s topics: %w", name, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s from %s in tx %s", ErrEventNotFound, name, c.addr, receipt.TxHash)
}

// Session is a contract bound to a sender. Every method blocks until
// the transaction is confirmed.
type Session struct {
	contract *Contract
	bcaster  broadcaster.Broadcaster
}

func (s *Session) send(ctx context.Context, sig string, args ...any) (*types.Receipt, error) {
	call, err := s.contract.Call(sig, args...)
	if err != nil {
		return nil, err
	}
	return broadcaster.Send(ctx, s.bcaster, call)
}

func (s *Session) CreateTable(ctx context.Context) (*types.Receipt, error) {
	return s.send(ctx, SigCreateTable)
}

func (s *Session) Touch(ctx context.Context, path, name, url string) (*types.Receipt, error) {
	return s.send(ctx, SigTouch, path, name, url)
}

func (s *Session) Mv(ctx context.Context, from, to string) (*types.Receipt, error) {
	return s.send(ctx, SigMv, from, to)
}

// MvRename moves a file and renames it.
func (s *Session) MvRename(ctx context.Context, from, to, name string) (*types.Receipt, error) {
	return s.send(ctx, SigMvRename, from, to, name)
}

func (s *Session) Rm(ctx context.Context, path string) (*types.Receipt, error) {
	return s.send(ctx, SigRm, path)
}

// SafeMint mints a token to to and returns its ID.
func (s *Session) SafeMint(ctx context.Context, to common.Address) (*big.Int, *types.Receipt, error) {
	receipt, err := s.send(ctx, SigSafeMint, to)
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.contract.ParseTransfer(receipt)
	if err != nil {
		return nil, receipt, err
	}
	return ev.TokenID, receipt, nil
}

func (s *Session) MakeMove(ctx context.Context, tokenID, x, y *big.Int) (*MakeMoveEvent, error) {
	receipt, err := s.send(ctx, SigMakeMove, tokenID, x, y)
	if err != nil {
		return nil, err
	}
	return s.contract.ParseMakeMove(receipt)
}
