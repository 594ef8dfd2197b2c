package variables

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the hash holding the variables when none is configured.
const DefaultRedisKey = "iedsim:custom_variables"

// RedisPersister stores the mapping in one Redis hash, a JSON-encoded field
// per variable.
type RedisPersister struct {
	client redis.UniversalClient
	key    string
}

// NewRedisPersister creates a persister on client using hash key.
func NewRedisPersister(client redis.UniversalClient, key string) *RedisPersister {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPersister{client: client, key: key}
}

// Ping checks the connection.
func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Load reads every field of the hash. A missing key is an empty mapping.
func (p *RedisPersister) Load(ctx context.Context) (map[string]any, error) {
	fields, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading hash %s: %w", p.key, err)
	}

	vars := make(map[string]any, len(fields))
	for name, raw := range fields {
		var config any
		if err := json.Unmarshal([]byte(raw), &config); err != nil {
			return nil, fmt.Errorf("parsing custom variable %q: %w", name, err)
		}
		vars[name] = config
	}
	return vars, nil
}

// Save replaces the hash inside a MULTI/EXEC transaction.
func (p *RedisPersister) Save(ctx context.Context, vars map[string]any) error {
	fields := make(map[string]any, len(vars))
	for name, config := range vars {
		raw, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("encoding custom variable %q: %w", name, err)
		}
		fields[name] = string(raw)
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, p.key)
	if len(fields) > 0 {
		pipe.HSet(ctx, p.key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing hash %s: %w", p.key, err)
	}
	return nil
}
