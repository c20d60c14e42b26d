package serialize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

type record struct {
	Network string `json:"network" toml:"network"`
	ChainID uint64 `json:"chainId" toml:"chainId"`
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	in := record{Network: "local-tableland", ChainID: 31337}

	t.Run("json", func(t *testing.T) {
		p := filepath.Join(dir, "out.json")
		require.NoError(t, Write(p, in, 0o644))
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		var out record
		require.NoError(t, json.Unmarshal(data, &out))
		require.Equal(t, in, out)
	})

	t.Run("toml", func(t *testing.T) {
		p := filepath.Join(dir, "out.toml")
		require.NoError(t, Write(p, in, 0o644))
		var out record
		_, err := toml.DecodeFile(p, &out)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("empty path", func(t *testing.T) {
		require.NoError(t, Write("", in, 0o644))
	})
}
