// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/modctl/modctl/internal/device/vshell"
)

const (
	// StateCreated is a new server that has not been started.
	StateCreated ServerState = iota
	// StateStarting is held while the listener is being bound.
	StateStarting
	// StateRunning accepts connections.
	StateRunning
	// StateStopping drains connections.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal; Wait returns the cause.
	StateFailed

	// DefaultUser is the user name advertised in ConnectionInfo. Any user
	// name is accepted; only the token matters.
	DefaultUser = "modctl"
)

type (
	// ServerState is a step in the emulator lifecycle.
	ServerState int32

	// Server is the device emulator. It is single-use: a stopped or failed
	// server cannot be started again.
	Server struct {
		cfg    Config
		shell  *vshell.Shell
		token  string
		logger *log.Logger

		mu      sync.Mutex
		state   ServerState
		failure error
		srv     *ssh.Server
		ln      net.Listener

		done chan struct{} // closed when the accept loop returns
		errs chan error
	}

	// Config holds immutable configuration for the device emulator.
	Config struct {
		// Root is the host directory acting as the device filesystem.
		Root string
		// Host is the bind address (default 127.0.0.1).
		Host string
		// Port to listen on; 0 picks a free one.
		Port int
		// Token is the shared secret clients send as password. Empty
		// generates a random one; read it back with Token().
		Token string
		// InteractiveShell runs sessions that send no command (default /bin/sh).
		InteractiveShell string
		// ShutdownTimeout bounds Stop (default 10s).
		ShutdownTimeout time.Duration
		// StartupTimeout bounds binding the listener (default 5s).
		StartupTimeout time.Duration
		// Logger defaults to a stderr logger prefixed "device-server".
		Logger *log.Logger
	}

	// ConnectionInfo is what an ssh transport needs to reach the emulator.
	ConnectionInfo struct {
		Host  string
		Port  int
		User  string
		Token string
	}
)

func (s ServerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// New prepares an emulator serving cfg.Root. Nothing listens until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.InteractiveShell == "" {
		cfg.InteractiveShell = "/bin/sh"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	shell, err := vshell.New(cfg.Root)
	if err != nil {
		return nil, err
	}

	token := cfg.Token
	if token == "" {
		if token, err = generateToken(); err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "device-server"})
	}

	return &Server{
		cfg:    cfg,
		shell:  shell,
		token:  token,
		logger: logger,
		state:  StateCreated,
		done:   make(chan struct{}),
		errs:   make(chan error, 1),
	}, nil
}

// Start binds the listener and begins accepting connections in the
// background. Once it returns nil the emulator is reachable; watch Err for
// failures of the accept loop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return fmt.Errorf("cannot start device emulator in state %s", s.state)
	}
	if err := ctx.Err(); err != nil {
		return s.failLocked(fmt.Errorf("start device emulator: %w", err))
	}
	s.state = StateStarting

	bindCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(bindCtx, "tcp", addr)
	if err != nil {
		return s.failLocked(fmt.Errorf("listen on %s: %w", addr, err))
	}

	srv, err := wish.NewServer(
		wish.WithAddress(ln.Addr().String()),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithMiddleware(s.sessionMiddleware()),
	)
	if err != nil {
		_ = ln.Close()
		return s.failLocked(fmt.Errorf("create ssh server: %w", err))
	}

	s.srv, s.ln = srv, ln
	s.state = StateRunning
	go s.serve(srv, ln)

	s.logger.Info("device emulator started", "address", ln.Addr().String(), "root", s.shell.Root())
	return nil
}

func (s *Server) serve(srv *ssh.Server, ln net.Listener) {
	defer close(s.done)

	err := srv.Serve(ln)
	if err == nil || errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}

	err = fmt.Errorf("serve: %w", err)
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateFailed
		s.failure = err
	}
	s.mu.Unlock()

	select {
	case s.errs <- err:
	default:
		s.logger.Error("device emulator failed", "err", err)
	}
}

// Stop drains connections and closes the listener, waiting at most
// ShutdownTimeout. Calling it again, or on a server that never started, is
// a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateCreated:
		s.state = StateStopped
		s.mu.Unlock()
		return nil
	case StateRunning:
		s.state = StateStopping
	default:
		started := s.srv != nil
		s.mu.Unlock()
		if started {
			<-s.done
		}
		return nil
	}
	srv, ln := s.srv, s.ln
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	_ = ln.Close()
	<-s.done

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	close(s.errs)
	s.logger.Info("device emulator stopped")

	if err != nil {
		return fmt.Errorf("shut down device emulator: %w", err)
	}
	return nil
}

// Err delivers a failure of the accept loop. It is closed by a clean Stop.
func (s *Server) Err() <-chan error {
	return s.errs
}

// Wait blocks until the accept loop returns and reports why the server
// failed, if it did.
func (s *Server) Wait() error {
	s.mu.Lock()
	started := s.srv != nil
	s.mu.Unlock()
	if started {
		<-s.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed {
		return s.failure
	}
	return nil
}

func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Address returns the bound host:port, or "" when not running.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return ""
	}
	return s.ln.Addr().String()
}

// Port returns the bound port, or 0 when not running.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return 0
	}
	if tcp, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Root returns the absolute device root.
func (s *Server) Root() string {
	return s.shell.Root()
}

// ConnectionInfo returns what a client needs to connect. It fails when the
// server is not running.
func (s *Server) ConnectionInfo() (*ConnectionInfo, error) {
	port := s.Port()
	if port == 0 {
		return nil, fmt.Errorf("device emulator is not running (state: %s)", s.State())
	}
	return &ConnectionInfo{
		Host:  s.cfg.Host,
		Port:  port,
		User:  DefaultUser,
		Token: s.token,
	}, nil
}

func (s *Server) failLocked(err error) error {
	s.state = StateFailed
	s.failure = err
	return err
}
