// Package credentials resolves provider API keys: the environment wins,
// then the provider_credentials table, so keys can be rotated without a
// redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
)

const (
	ProviderPixelMuse   = "pixelmuse"
	ProviderMotionForge = "motionforge"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// APIKey returns envKey when set, otherwise the stored key for the provider.
// A missing row is not an error; the caller decides whether an empty key is
// acceptable.
func (s *Store) APIKey(ctx context.Context, provider, envKey string) (string, error) {
	if key := strings.TrimSpace(envKey); key != "" {
		return key, nil
	}
	row := s.pool.QueryRow(ctx, `
SELECT api_key FROM provider_credentials WHERE provider = $1;
`, provider)
	var key string
	if err := row.Scan(&key); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// SetAPIKey stores or rotates the key for a provider.
func (s *Store) SetAPIKey(ctx context.Context, provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("credentials: api key is required")
	}
	return s.upsert(ctx, provider, key, nil)
}

func (s *Store) upsert(ctx context.Context, provider, key string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO provider_credentials (provider, api_key, properties, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (provider) DO UPDATE
SET api_key = EXCLUDED.api_key, properties = EXCLUDED.properties, updated_at = now();
`, provider, key, raw)
	return err
}
