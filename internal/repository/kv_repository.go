package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVRepository is a string key-value store partitioned by scope. Each user
// gets its own scope so no entry is ever shared between accounts.
type KVRepository struct {
	db *sql.DB
}

func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

func (r *KVRepository) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(
		ctx,
		`SELECT value FROM kv_entries WHERE scope = ? AND key = ?`,
		scope,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get kv %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

func (r *KVRepository) Set(ctx context.Context, scope, key, value string) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO kv_entries (scope, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET
		     value = excluded.value,
		     updated_at = excluded.updated_at`,
		scope,
		key,
		value,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set kv %s/%s: %w", scope, key, err)
	}
	return nil
}

func (r *KVRepository) Remove(ctx context.Context, scope, key string) error {
	_, err := r.db.ExecContext(
		ctx,
		`DELETE FROM kv_entries WHERE scope = ? AND key = ?`,
		scope,
		key,
	)
	if err != nil {
		return fmt.Errorf("remove kv %s/%s: %w", scope, key, err)
	}
	return nil
}

// Scope binds the repository to one scope.
func (r *KVRepository) Scope(scope string) *ScopedKV {
	return &ScopedKV{repo: r, scope: scope}
}

type ScopedKV struct {
	repo  *KVRepository
	scope string
}

func (s *ScopedKV) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.Get(ctx, s.scope, key)
}

func (s *ScopedKV) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, s.scope, key, value)
}

func (s *ScopedKV) Remove(ctx context.Context, key string) error {
	return s.repo.Remove(ctx, s.scope, key)
}
