package serialize

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Write encodes x to outputPath. Paths ending in .toml are TOML encoded,
// everything else is indented JSON. "-" writes to stdout and an empty path is a no-op.
func Write[X any](outputPath string, x X, perm os.FileMode) error {
	if outputPath == "" {
		return nil
	}
	var w io.Writer
	if outputPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", outputPath, err)
		}
		defer f.Close()
		w = f
	}
	return Encode(w, outputPath, x)
}

// Encode writes x to w in the format implied by name.
func Encode[X any](w io.Writer, name string, x X) error {
	if IsTOMLFile(name) {
		if err := toml.NewEncoder(w).Encode(x); err != nil {
			return fmt.Errorf("failed to encode TOML: %w", err)
		}
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(x); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func IsTOMLFile(path string) bool {
	return strings.HasSuffix(path, ".toml")
}
