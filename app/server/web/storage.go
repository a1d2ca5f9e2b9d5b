package web

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/themer/app/store"
	"github.com/umputun/themer/app/theme"
)

// clientStorage adapts KVStore to theme.Storage, scoping keys by client id.
type clientStorage struct {
	kv      KVStore
	client  string
	timeout time.Duration
	metrics *Metrics
}

func (s clientStorage) key(k string) string { return s.client + "/" + k }

// Load implements theme.Storage.
func (s clientStorage) Load(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	v, err := s.kv.Get(ctx, s.key(key))
	if errors.Is(err, store.ErrNotFound) {
		return "", theme.ErrNotFound
	}
	if err != nil {
		s.metrics.storageError("load")
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return string(v), nil
}

// Save implements theme.Storage.
func (s clientStorage) Save(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.kv.Set(ctx, s.key(key), []byte(value)); err != nil {
		s.metrics.storageError("save")
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// forget removes the persisted choice, so system preference changes apply again.
func (s clientStorage) forget(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.kv.Delete(ctx, s.key(key)); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.metrics.storageError("delete")
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// storedChoice is a persisted value of the client, key without the client scope.
type storedChoice struct {
	Key       string    `json:"key"`
	Theme     string    `json:"theme"`
	UpdatedAt time.Time `json:"updated_at"`
}

// choices lists everything persisted for the client.
func (s clientStorage) choices(ctx context.Context) ([]storedChoice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.kv.List(ctx, s.key(""))
	if err != nil {
		s.metrics.storageError("list")
		return nil, fmt.Errorf("list client %s: %w", s.client, err)
	}
	res := make([]storedChoice, 0, len(rows))
	for _, row := range rows {
		res = append(res, storedChoice{Key: strings.TrimPrefix(row.Key, s.key("")), Theme: row.Theme(), UpdatedAt: row.UpdatedAt})
	}
	return res, nil
}
