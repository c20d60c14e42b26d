package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrNotFound = errors.New("artifact not found")

// Artifact is a compiled contract.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// bytecode accepts both the hardhat encoding (a hex string) and the
// foundry encoding (an object with the hex string under "object").
type bytecode []byte

func (b *bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		s = obj.Object
	} else if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	out, err := hexutil.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid bytecode: %w", err)
	}
	*b = out
	return nil
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     bytecode        `json:"bytecode"`
}

// Store loads artifacts from a build output directory, e.g. hardhat's
// artifacts/ or foundry's out/.
type Store struct {
	fs   afero.Fs
	root string
}

func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOSStore returns a store reading from the local filesystem.
func NewOSStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

// Load finds and decodes the artifact of the named contract.
func (s *Store) Load(name string) (*Artifact, error) {
	path, err := s.find(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	if len(raw.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact %s has no bytecode, is %s abstract?", path, name)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI of %s: %w", path, err)
	}
	return &Artifact{
		Name:     name,
		ABI:      parsed,
		Bytecode: raw.Bytecode,
	}, nil
}

func (s *Store) find(name string) (string, error) {
	want := name + ".json"
	var found string
	err := afero.Walk(s.fs, s.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// hardhat keeps build-info next to the artifacts, it never holds contracts
			if info.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == want {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return "", fmt.Errorf("failed to walk artifacts dir %s: %w", s.root, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.root)
	}
	return found, nil
}
