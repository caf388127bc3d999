package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// SetSetting stores value under key, replacing any previous value.
func (t *Tx) SetSetting(key, value string) error {
	_, err := t.tx.Exec(`
		INSERT INTO setting (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// SetBoolSetting stores a boolean setting.
func (t *Tx) SetBoolSetting(key string, value bool) error {
	return t.SetSetting(key, strconv.FormatBool(value))
}

// SetIntSetting stores an integer setting.
func (t *Tx) SetIntSetting(key string, value int) error {
	return t.SetSetting(key, strconv.Itoa(value))
}

// Setting returns the value stored under key. ok is false when the key is
// not set.
func (s *Store) Setting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM setting WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// BoolSetting returns a boolean setting, or def when it is not set.
func (s *Store) BoolSetting(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.Setting(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return b, nil
}

// IntSetting returns an integer setting, or def when it is not set.
func (s *Store) IntSetting(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.Setting(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("setting %s: %w", key, err)
	}
	return n, nil
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM setting ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
