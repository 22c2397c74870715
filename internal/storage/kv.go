package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("storage: key not found")
)

// KVStore is the key-value capability every backend provides. Values are
// opaque JSON documents.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// AdvisoryLocker exposes advisory lock helpers for backends shared between processes.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// GetJSON decodes the value stored under key into dst. It reports false when
// the key is missing or holds malformed JSON; only backend failures are
// returned as errors.
func GetJSON(ctx context.Context, kv KVStore, key string, dst any) (bool, error) {
	if kv == nil {
		return false, ErrNotConfigured
	}
	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, kv KVStore, key string, value any) error {
	if kv == nil {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
