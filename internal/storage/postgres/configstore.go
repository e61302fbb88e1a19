// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WOPR Contributors

package postgres

import (
	"context"
	"fmt"
)

// ConfigStore persists per-plugin config values in wopr_plugin_config.
// It implements config.Backend.
type ConfigStore struct {
	store *Store
}

// NewConfigStore returns a config backend over the store.
func NewConfigStore(store *Store) *ConfigStore {
	return &ConfigStore{store: store}
}

// Load returns all stored values for a plugin.
func (c *ConfigStore) Load(ctx context.Context, pluginName string) (map[string]any, error) {
	rows, err := c.store.querier(ctx).Query(ctx,
		`SELECT key, value FROM wopr_plugin_config WHERE plugin = $1`, pluginName)
	if err != nil {
		return nil, fmt.Errorf("load config for %s: %w", pluginName, err)
	}
	defer rows.Close()

	values := make(map[string]any)
	for rows.Next() {
		var (
			key   string
			value any
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config row for %s: %w", pluginName, err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// Save upserts one value.
func (c *ConfigStore) Save(ctx context.Context, pluginName, key string, value any) error {
	_, err := c.store.querier(ctx).Exec(ctx,
		`INSERT INTO wopr_plugin_config (plugin, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (plugin, key) DO UPDATE SET value = EXCLUDED.value`,
		pluginName, key, value)
	if err != nil {
		return fmt.Errorf("save config %s.%s: %w", pluginName, key, err)
	}
	return nil
}
