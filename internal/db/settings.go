package db

import (
	"context"
)

// GetOrCreateSetting stores value under key unless a value already exists,
// and returns whichever value ends up stored.
func (s *Store) GetOrCreateSetting(ctx context.Context, key, value string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, InsertSettingIfAbsent, key, value); err != nil {
		return "", persistErr(err, "create setting %q", key)
	}

	var stored string
	if err := s.db.QueryRowContext(ctx, GetSetting, key).Scan(&stored); err != nil {
		return "", getErr(err, "setting", key)
	}
	return stored, nil
}
