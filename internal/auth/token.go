// Package auth stores the bearer credential issued by the platform's auth
// flow. It is the CLI counterpart of the web client's localStorage token
// slot: opaque storage, no token issuance.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken means no credential is stored; the user must log in first.
	ErrNoToken = errors.New("no stored credential")
	// ErrTokenExpired means the stored credential's JWT expiry has passed.
	ErrTokenExpired = errors.New("stored credential has expired")
)

// Store persists a single bearer token at a fixed path.
type Store struct {
	path string
}

// NewStore creates a token store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the token with owner-only permissions.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Load returns the stored token. It fails with ErrNoToken when nothing is
// stored and ErrTokenExpired when the token is a JWT whose expiry has
// passed, so callers can short-circuit before any network request.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	if err := checkExpiry(token, time.Now()); err != nil {
		return "", err
	}
	return token, nil
}

// Clear removes the stored token. Missing file is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Subject extracts the subject claim from a JWT without verifying the
// signature. Opaque tokens yield an empty string.
func Subject(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// checkExpiry inspects the token's registered expiry claim without
// verifying the signature; verification is the backend's job. Tokens that
// do not parse as JWTs are passed through untouched.
func checkExpiry(token string, now time.Time) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(now) {
		return ErrTokenExpired
	}
	return nil
}
