// Package keystore persists the device API key across restarts.
package keystore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const apiKeyName = "apikey"

// Store holds the device credential in the kv_store table.
type Store struct {
	db        *sql.DB
	keyLength int
}

// New creates a keystore. keyLength is the exact length a stored key
// must have to be considered usable.
func New(db *sql.DB, keyLength int) *Store {
	return &Store{db: db, keyLength: keyLength}
}

// LoadKey returns the persisted API key, or defaultKey when nothing
// usable is stored. A stored key of the wrong length is treated as
// absent rather than handed to the network layer.
func (s *Store) LoadKey(defaultKey string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, apiKeyName).Scan(&value)

	switch {
	case err == sql.ErrNoRows:
		log.Info().Msg("No stored API key, using configured default")
		return defaultKey
	case err != nil:
		log.Error().Err(err).Msg("Failed to read stored API key, using configured default")
		return defaultKey
	case len(value) != s.keyLength:
		log.Warn().Int("length", len(value)).Msg("Stored API key has wrong length, using configured default")
		return defaultKey
	}

	log.Info().Msg("API key loaded from storage")
	return value
}

// StoreKey persists a replacement API key.
func (s *Store) StoreKey(key string) error {
	if len(key) != s.keyLength {
		return fmt.Errorf("api key must be %d characters, got %d", s.keyLength, len(key))
	}

	now := time.Now().UTC().Unix()
	_, err := s.db.Exec(`
		INSERT INTO kv_store (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, apiKeyName, key, now, now)
	if err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}

	return nil
}

// ClearKey removes the persisted key; the next boot falls back to the
// configured default.
func (s *Store) ClearKey() error {
	_, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, apiKeyName)
	if err != nil {
		return fmt.Errorf("failed to clear api key: %w", err)
	}
	return nil
}
