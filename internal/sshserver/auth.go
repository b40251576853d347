// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/ssh"
)

// generateToken returns 32 random bytes, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Token returns the shared secret clients must send as password.
func (s *Server) Token() string {
	return s.token
}

// passwordHandler accepts the shared token as password, for any user.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.token)) != 1 {
		s.logger.Warn("rejected authentication attempt", "user", ctx.User(), "remote", ctx.RemoteAddr())
		return false
	}
	s.logger.Debug("client authenticated", "user", ctx.User(), "remote", ctx.RemoteAddr())
	return true
}

// publicKeyHandler rejects all public key authentication; only the token is accepted.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}
