package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"trace", "trace"},
		{"DEBUG", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"eror", "error"},
		{"crit", "crit"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lvl, err := LevelFromString(tt.input)
			require.NoError(t, err)
			want, err := LevelFromString(tt.want)
			require.NoError(t, err)
			require.Equal(t, want, lvl)
		})
	}

	_, err := LevelFromString("loud")
	require.Error(t, err)
}

func TestFormatTypeSet(t *testing.T) {
	var f FormatType
	require.NoError(t, f.Set("json"))
	require.Equal(t, FormatJSON, f)
	require.Error(t, f.Set("yaml"))
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, CLIConfig{Level: log.LevelInfo, Format: FormatJSON})
	logger.Debug("hidden")
	logger.Info("Proxy deployed", "network", "local-tableland")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "Proxy deployed", entry["msg"])
	require.Equal(t, "local-tableland", entry["network"])
}

func TestDefaultCLIConfigColorFollowsStderr(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	stderr := os.Stderr
	os.Stderr = w
	t.Cleanup(func() { os.Stderr = stderr })
	require.False(t, DefaultCLIConfig().Color, "a pipe is not a terminal")

	os.Stderr = stderr
	require.Equal(t, isTerminal(os.Stderr), DefaultCLIConfig().Color)
}
