package localnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

var DefaultCommand = []string{"npx", "local-tableland"}

type ProcessConfig struct {
	// Command starts the chain and the table service, e.g. local-tableland.
	Command []string
	Dir     string
	Env     []string
	// Silent discards the output of the process.
	Silent bool

	RPCURL string
	// HealthURL is polled next to the RPC if set.
	HealthURL string

	PollInterval    time.Duration
	ShutdownTimeout time.Duration
}

func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		Command:         DefaultCommand,
		RPCURL:          DefaultRPCURL,
		HealthURL:       DefaultGatewayURL + "health",
		PollInterval:    500 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Process runs a local network as an external process.
type Process struct {
	cfg ProcessConfig
	lgr log.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	exitErr error
}

var _ Network = (*Process)(nil)

func NewProcess(lgr log.Logger, cfg ProcessConfig) *Process {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Process{cfg: cfg, lgr: lgr}
}

func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return errors.New("already started")
	}
	if len(p.cfg.Command) == 0 {
		return errors.New("no command configured")
	}
	cmd := exec.Command(p.cfg.Command[0], p.cfg.Command[1:]...)
	cmd.Dir = p.cfg.Dir
	cmd.Env = append(os.Environ(), p.cfg.Env...)
	// children of the command may keep the output pipes open
	cmd.WaitDelay = 2 * time.Second
	setProcessGroup(cmd)
	if p.cfg.Silent {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	} else {
		out := &logWriter{lgr: p.lgr.New("proc", p.cfg.Command[0])}
		cmd.Stdout = out
		cmd.Stderr = out
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %v: %w", p.cfg.Command, err)
	}
	p.cmd = cmd
	p.exited = make(chan struct{})
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.exited)
	}()
	p.lgr.Info("Started local network", "cmd", p.cfg.Command, "pid", cmd.Process.Pid)
	return nil
}

func (p *Process) Ready(ctx context.Context) error {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited == nil {
		return errNotStarted
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		err := p.probe(ctx)
		if err == nil {
			p.lgr.Info("Local network ready", "rpc", p.cfg.RPCURL)
			return nil
		}
		p.lgr.Debug("Local network not ready yet", "err", err)
		select {
		case <-exited:
			p.mu.Lock()
			exitErr := p.exitErr
			p.mu.Unlock()
			return fmt.Errorf("local network exited before becoming ready: %v", exitErr)
		case <-ctx.Done():
			return fmt.Errorf("local network not ready: %w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

func (p *Process) probe(ctx context.Context) error {
	cl, err := ethclient.DialContext(ctx, p.cfg.RPCURL)
	if err != nil {
		return err
	}
	defer cl.Close()
	if _, err := cl.ChainID(ctx); err != nil {
		return err
	}
	if p.cfg.HealthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// Shutdown interrupts the process group of the network and kills it if it
// does not exit within the shutdown timeout. Processes left in the group
// once the command exited are killed too.
func (p *Process) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cmd, exited := p.cmd, p.exited
	p.mu.Unlock()
	if cmd == nil {
		return nil
	}
	select {
	case <-exited:
		return p.killStragglers(cmd)
	default:
	}
	if err := interruptGroup(cmd); err != nil {
		p.lgr.Warn("Failed to interrupt local network, killing it", "err", err)
		_ = killGroup(cmd)
	}
	timer := time.NewTimer(p.cfg.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		p.lgr.Warn("Local network did not exit in time, killing it")
		_ = killGroup(cmd)
		<-exited
	case <-ctx.Done():
		_ = killGroup(cmd)
		<-exited
		return ctx.Err()
	}
	if err := p.killStragglers(cmd); err != nil {
		return err
	}
	p.lgr.Info("Local network stopped")
	return nil
}

func (p *Process) killStragglers(cmd *exec.Cmd) error {
	if err := killGroup(cmd); err != nil {
		return fmt.Errorf("failed to kill local network processes: %w", err)
	}
	return nil
}

func (p *Process) Accounts() []Account {
	return DevAccounts()
}

// logWriter logs every complete line written to it.
type logWriter struct {
	lgr log.Logger
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(b)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			w.buf.Write(line)
			break
		}
		w.lgr.Debug(string(bytes.TrimRight(line, "\r\n")))
	}
	return len(b), nil
}
