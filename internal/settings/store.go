// Package settings provides the SQLite-backed persistence layer: a small
// key-value preference store plus per-provider token storage.
package settings

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vibemeter/vibemeter/internal/provider"

	_ "modernc.org/sqlite" // register sqlite driver
)

// TokenStore is the per-provider token persistence contract. Failures are
// reported as booleans, never as errors, matching the opaque-token-store
// collaborator model.
type TokenStore interface {
	SaveToken(p provider.Provider, token string) bool
	Token(p provider.Provider) (string, bool)
	DeleteToken(p provider.Provider) bool
	HasToken(p provider.Provider) bool
}

// Store is the SQLite-backed settings database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the settings database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating settings dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("opening settings db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the settings database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set writes a string value under key.
func (s *Store) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)`, key, value, now)
	return err
}

// Get reads the string value for key. ok is false when the key is absent.
func (s *Store) Get(key string) (value string, ok bool) {
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// SaveRates persists the exchange-rate cache. Implements exchange.CacheStore.
func (s *Store) SaveRates(rates map[string]float64, fetchedAt time.Time) error {
	data, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("encoding rates: %w", err)
	}
	if err := s.Set(keyCachedRates, string(data)); err != nil {
		return err
	}
	return s.Set(keyLastFetchTimestamp, fetchedAt.UTC().Format(time.RFC3339))
}

// LoadRates reads the persisted exchange-rate cache. ok is false when either
// entry is absent or unreadable.
func (s *Store) LoadRates() (map[string]float64, time.Time, bool) {
	raw, ok := s.Get(keyCachedRates)
	if !ok {
		return nil, time.Time{}, false
	}
	stamp, ok := s.Get(keyLastFetchTimestamp)
	if !ok {
		return nil, time.Time{}, false
	}

	var rates map[string]float64
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, time.Time{}, false
	}
	fetchedAt, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return nil, time.Time{}, false
	}
	return rates, fetchedAt, true
}

// SaveToken stores an auth token for a provider. Returns false on any
// storage failure.
func (s *Store) SaveToken(p provider.Provider, token string) bool {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`INSERT OR REPLACE INTO tokens (provider, token, saved_at)
		VALUES (?, ?, ?)`, p.String(), token, now)
	return err == nil
}

// Token returns the stored token for a provider, preferring the
// VIBEMETER_<PROVIDER>_TOKEN environment variable when set.
func (s *Store) Token(p provider.Provider) (string, bool) {
	if env := tokenFromEnv(p); env != "" {
		return env, true
	}

	var token string
	err := s.db.QueryRow("SELECT token FROM tokens WHERE provider = ?", p.String()).Scan(&token)
	if err != nil {
		return "", false
	}
	return token, true
}

// DeleteToken removes a provider's stored token. Returns false on storage
// failure; deleting an absent token succeeds.
func (s *Store) DeleteToken(p provider.Provider) bool {
	_, err := s.db.Exec("DELETE FROM tokens WHERE provider = ?", p.String())
	return err == nil
}

// HasToken reports whether a token is available for the provider.
func (s *Store) HasToken(p provider.Provider) bool {
	_, ok := s.Token(p)
	return ok
}

func tokenFromEnv(p provider.Provider) string {
	switch p {
	case provider.Cursor:
		return os.Getenv("VIBEMETER_CURSOR_TOKEN")
	case provider.Claude:
		return os.Getenv("VIBEMETER_CLAUDE_TOKEN")
	default:
		return ""
	}
}
