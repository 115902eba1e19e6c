// Package testutil provides shared test helpers for vaults, stores and clocks.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/incremental/internal/kv"
	"github.com/starford/incremental/internal/vault"
)

// TestSQLite opens a temporary SQLite key-value surface that is closed on cleanup.
func TestSQLite(t *testing.T) *kv.SQLite {
	t.Helper()
	s, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "incremental-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestVault creates a vault in a temporary directory.
func TestVault(t *testing.T) *vault.Vault {
	t.Helper()
	fs, err := vault.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return vault.New(fs, nil)
}

// WriteNote writes raw content to id in v.
func WriteNote(t *testing.T, v *vault.Vault, id, content string) {
	t.Helper()
	if err := v.FS().Write(id, []byte(content)); err != nil {
		t.Fatalf("write %s: %v", id, err)
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock stopped at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
