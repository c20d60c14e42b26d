package localnet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is a funded development account.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// devKeys are the first accounts of the hardhat development mnemonic
// ("test test test test test test test test test test test junk"),
// which the local Tableland chain funds on start.
var devKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
}

// DevAccounts returns the well-known development accounts.
func DevAccounts() []Account {
	out := make([]Account, 0, len(devKeys))
	for i, hexKey := range devKeys {
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			panic(fmt.Errorf("invalid dev key %d: %w", i, err))
		}
		out = append(out, Account{
			Address: crypto.PubkeyToAddress(key.PublicKey),
			Key:     key,
		})
	}
	return out
}
