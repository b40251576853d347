// SPDX-License-Identifier: MPL-2.0

// Package sshshell is the SSH transport. Command lines run in an exec
// session; pushes stream the local file into `cat` on the device.
package sshshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/modctl/modctl/internal/device"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	dialAttempts       = 3
	dialBackoff        = 250 * time.Millisecond
)

var (
	// ErrNoAuthMethod is returned when neither a password nor a key is configured.
	ErrNoAuthMethod = errors.New("ssh transport needs a password or a private key")

	// ErrClosed is returned by operations on a closed Shell.
	ErrClosed = errors.New("ssh transport closed")
)

type (
	// Config describes how to reach the device over SSH.
	Config struct {
		Host string
		Port int
		User string
		// Password is also how the device emulator's shared token is passed.
		Password string
		// KeyFile is a PEM private key used for public key auth.
		KeyFile string
		// KnownHostsFile verifies the host key. When empty, any host key is
		// accepted (suitable for the local device emulator only).
		KnownHostsFile string
		DialTimeout    time.Duration
	}

	// Shell implements device.Shell over one SSH client connection.
	Shell struct {
		mu     sync.Mutex
		client *ssh.Client
	}
)

// Dial connects to the device, retrying refused connections briefly.
func Dial(ctx context.Context, cfg Config) (*Shell, error) {
	clientCfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	var client *ssh.Client
	err = device.RetryWithBackoff(ctx, dialAttempts, dialBackoff, func(int) (bool, error) {
		d := net.Dialer{Timeout: clientCfg.Timeout}
		conn, dialErr := d.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return true, fmt.Errorf("dial %s: %w", addr, dialErr)
		}
		c, chans, reqs, hsErr := ssh.NewClientConn(conn, addr, clientCfg)
		if hsErr != nil {
			_ = conn.Close() // Best-effort cleanup on handshake failure
			return false, fmt.Errorf("ssh handshake with %s: %w", addr, hsErr)
		}
		client = ssh.NewClient(c, chans, reqs)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &Shell{client: client}, nil
}

func clientConfig(cfg Config) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, ErrNoAuthMethod
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via empty KnownHostsFile
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// Run executes line in a new exec session and returns its stdout.
func (s *Shell) Run(ctx context.Context, line string) (string, error) {
	var stdout, stderr bytes.Buffer
	if err := s.session(ctx, line, nil, &stdout, &stderr); err != nil {
		return "", &device.CommandError{Line: line, Output: stderr.String() + stdout.String(), Err: err}
	}
	return stdout.String(), nil
}

// Push streams local into `cat > remote` after creating the parent directory.
func (s *Shell) Push(ctx context.Context, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	mkdir, err := device.CommandLine("mkdir", "-p", path.Dir(remote))
	if err != nil {
		return err
	}
	target, err := device.Quote(remote)
	if err != nil {
		return err
	}
	line := mkdir + " && cat > " + target

	var stdout, stderr bytes.Buffer
	if err := s.session(ctx, line, f, &stdout, &stderr); err != nil {
		return &device.CommandError{Line: line, Output: stderr.String() + stdout.String(), Err: err}
	}
	return nil
}

// Close terminates the connection.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Shell) session(ctx context.Context, line string, stdin *os.File, stdout, stderr *bytes.Buffer) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return ErrClosed
	}

	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	if stdin != nil {
		sess.Stdin = stdin
	}
	sess.Stdout = stdout
	sess.Stderr = stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(line) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL) // Best-effort; the session is closed anyway
		_ = sess.Close()
		return ctx.Err()
	}
}
