// Package credstore keeps the portal login pair sealed on disk.
// The key lives in its own file so the encrypted blob can be backed
// up or committed to private storage without exposing the password.
package credstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/newbienorbie/unifi-scraper/internal/logger"
)

var ErrNotFound = errors.New("credentials not found")

// Credentials is the login pair for the dealer portal.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store seals credentials with a key generated on first use.
type Store struct {
	keyFile   string
	credsFile string
}

func New(keyFile, credsFile string) *Store {
	return &Store{keyFile: keyFile, credsFile: credsFile}
}

// loadKey reads the key file, creating a fresh random key on first use.
func (s *Store) loadKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyFile)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key file %s has %d bytes, want %d", s.keyFile, len(key), chacha20poly1305.KeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.keyFile), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(s.keyFile, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	logger.Info("Generated new credential key at %s", s.keyFile)
	return key, nil
}

// Save seals the pair and writes it to the credentials file.
func (s *Store) Save(creds Credentials) error {
	key, err := s.loadKey()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)

	if err := os.MkdirAll(filepath.Dir(s.credsFile), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := os.WriteFile(s.credsFile, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Load opens the sealed blob. Returns ErrNotFound when no credentials
// have been saved yet.
func (s *Store) Load() (Credentials, error) {
	sealed, err := os.ReadFile(s.credsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	key, err := s.loadKey()
	if err != nil {
		return Credentials{}, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return Credentials{}, errors.New("credentials file is truncated")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return creds, nil
}

// Exists reports whether a sealed credentials file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.credsFile)
	return err == nil
}

// Delete removes the sealed credentials. Missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.credsFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// UpdatePassword rewrites the blob keeping the stored username.
func (s *Store) UpdatePassword(password string) error {
	creds, err := s.Load()
	if err != nil {
		return err
	}
	creds.Password = password
	return s.Save(creds)
}
