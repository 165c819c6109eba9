package repository

import (
	"context"
	"database/sql"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
)

// ConfigStore implements the Config Service's storage needs against the
// config table (spec §4.2): a flat key/value store seeded with defaults by
// migration 00002.
type ConfigStore struct{ *Store }

// Config returns the Config Service view of this Store.
func (s *Store) Config() *ConfigStore { return &ConfigStore{s} }

// Get returns the raw stored value for key.
func (c *ConfigStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", queue.NotFoundError{Kind: "config key", ID: key}
	}
	if err != nil {
		return "", queue.StoreError{Op: "config_get", Err: err}
	}
	return value, nil
}

// Set upserts key's raw value.
func (c *ConfigStore) Set(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return queue.StoreError{Op: "config_set", Err: err}
	}
	return nil
}

// All returns every stored key/value pair.
func (c *ConfigStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT key, value FROM config")
	if err != nil {
		return nil, queue.StoreError{Op: "config_all", Err: err}
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, queue.StoreError{Op: "config_all_scan", Err: err}
		}
		out[k] = v
	}
	return out, rows.Err()
}
