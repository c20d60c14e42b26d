package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
)

// FormatType defines a type of log format.
type FormatType string

const (
	FormatText     FormatType = "text"
	FormatTerminal FormatType = "terminal"
	FormatLogFmt   FormatType = "logfmt"
	FormatJSON     FormatType = "json"
)

var formatTypes = []FormatType{FormatText, FormatTerminal, FormatLogFmt, FormatJSON}

func (f FormatType) String() string {
	return string(f)
}

func (f *FormatType) Set(value string) error {
	for _, t := range formatTypes {
		if string(t) == value {
			*f = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized log-format: %q", value)
}

type levelValue struct {
	lvl *slog.Level
}

func (l levelValue) String() string {
	if l.lvl == nil {
		return ""
	}
	return strings.ToLower(log.LevelString(*l.lvl))
}

func (l levelValue) Set(value string) error {
	lvl, err := LevelFromString(value)
	if err != nil {
		return err
	}
	*l.lvl = lvl
	return nil
}

// LevelFromString returns the appropriate level from a string name.
// Useful for parsing command line args and configuration files.
func LevelFromString(lvlString string) (slog.Level, error) {
	switch strings.ToLower(lvlString) {
	case "trace", "trce":
		return log.LevelTrace, nil
	case "debug", "dbug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error", "eror":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return log.LevelDebug, fmt.Errorf("unknown level: %v", lvlString)
	}
}

type CLIConfig struct {
	Level  slog.Level
	Color  bool
	Format FormatType
}

// DefaultCLIConfig creates a default log configuration.
// Color defaults to true if stderr, where logs go, is a terminal.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{
		Level:  log.LevelInfo,
		Format: FormatText,
		Color:  isTerminal(os.Stderr),
	}
}

func CLIFlags(envPrefix string) []cli.Flag {
	return CLIFlagsWithCategory(envPrefix, "")
}

func CLIFlagsWithCategory(envPrefix string, category string) []cli.Flag {
	lvl := log.LevelInfo
	format := FormatText
	return []cli.Flag{
		&cli.GenericFlag{
			Name:     LevelFlagName,
			Usage:    "The lowest log level that will be output",
			Value:    levelValue{lvl: &lvl},
			EnvVars:  []string{envPrefix + "_LOG_LEVEL"},
			Category: category,
		},
		&cli.GenericFlag{
			Name:     FormatFlagName,
			Usage:    "Format the log output. Supported formats: 'text', 'terminal', 'logfmt', 'json'",
			Value:    &format,
			EnvVars:  []string{envPrefix + "_LOG_FORMAT"},
			Category: category,
		},
		&cli.BoolFlag{
			Name:     ColorFlagName,
			Usage:    "Color the log output if in terminal mode",
			EnvVars:  []string{envPrefix + "_LOG_COLOR"},
			Category: category,
		},
	}
}

// ReadCLIConfig reads the log config from the CLI context.
func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	cfg := DefaultCLIConfig()
	if v, ok := ctx.Generic(LevelFlagName).(levelValue); ok && v.lvl != nil {
		cfg.Level = *v.lvl
	}
	if v, ok := ctx.Generic(FormatFlagName).(*FormatType); ok && v != nil {
		cfg.Format = *v
	}
	if ctx.IsSet(ColorFlagName) {
		cfg.Color = ctx.Bool(ColorFlagName)
	}
	return cfg
}

// NewLogger creates a new configured logger writing to w.
func NewLogger(w io.Writer, cfg CLIConfig) log.Logger {
	return log.NewLogger(NewHandler(w, cfg))
}

func NewHandler(w io.Writer, cfg CLIConfig) slog.Handler {
	switch cfg.Format {
	case FormatJSON:
		return log.JSONHandlerWithLevel(w, cfg.Level)
	case FormatLogFmt:
		return log.LogfmtHandlerWithLevel(w, cfg.Level)
	case FormatTerminal:
		return log.NewTerminalHandlerWithLevel(w, cfg.Level, cfg.Color)
	default:
		return log.NewTerminalHandlerWithLevel(w, cfg.Level, false)
	}
}

// AppOut returns the writer application logs go to.
// Logs are written to stderr so stdout stays free for command output.
func AppOut(ctx *cli.Context) io.Writer {
	if ctx != nil && ctx.App != nil && ctx.App.ErrWriter != nil {
		return ctx.App.ErrWriter
	}
	return os.Stderr
}

// SetupDefaults sets up the global logger with defaults, so logs before
// the configured logger exists are still formatted consistently.
func SetupDefaults() {
	log.SetDefault(NewLogger(os.Stderr, DefaultCLIConfig()))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// SetGlobalLogHandler sets the log handler of the root logger.
func SetGlobalLogHandler(h slog.Handler) {
	log.SetDefault(log.NewLogger(h))
}
