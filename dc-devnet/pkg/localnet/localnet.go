// Package localnet manages the lifecycle of a local chain and table-service
// pair for integration tests.
package localnet

import (
	"context"
)

const (
	ChainID = 31337

	DefaultRPCURL     = "http://127.0.0.1:8545"
	DefaultGatewayURL = "http://localhost:8080/api/v1/"
)

// Network is a local chain, and possibly a table service next to it.
type Network interface {
	Start(ctx context.Context) error
	// Ready blocks until the network accepts requests or ctx is done.
	Ready(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Accounts() []Account
}
