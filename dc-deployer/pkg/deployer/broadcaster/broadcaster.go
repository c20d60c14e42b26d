package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrReverted = errors.New("transaction reverted")

type Broadcaster interface {
	Broadcast(ctx context.Context) ([]BroadcastResult, error)
	Hook(bcast Call)
}

// Call is a transaction to send. A nil To creates a contract from Input.
type Call struct {
	Label string          `json:"label"`
	To    *common.Address `json:"to"`
	Input []byte          `json:"input"`
	Value *big.Int        `json:"value"`
}

type BroadcastResult struct {
	Call    Call           `json:"call"`
	TxHash  common.Hash    `json:"txHash"`
	Receipt *types.Receipt `json:"receipt"`
	Err     error          `json:"-"`
}

// Send hooks a single call and broadcasts it, returning its receipt.
func Send(ctx context.Context, bcaster Broadcaster, call Call) (*types.Receipt, error) {
	bcaster.Hook(call)
	results, err := bcaster.Broadcast(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("expected 1 broadcast result for %s, got %d", call.Label, len(results))
	}
	return results[0].Receipt, nil
}
