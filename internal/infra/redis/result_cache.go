package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cloudassure/engine/pkg/domain/discovery"
	"github.com/cloudassure/engine/pkg/domain/shared"
)

const resultKeyPrefix = "discovery:result:"

// ResultCache stores the most recent discovery result per scan with a TTL.
type ResultCache struct {
	client *Client
}

// NewResultCache creates a discovery result cache on the given client.
func NewResultCache(client *Client) *ResultCache {
	return &ResultCache{client: client}
}

// SetResult stores the scan's latest result, replacing any previous one.
func (c *ResultCache) SetResult(ctx context.Context, result *discovery.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode discovery result: %w", err)
	}

	key := resultKeyPrefix + result.ScanID
	if err := c.client.client.Set(ctx, key, data, c.client.cfg.ResultTTL).Err(); err != nil {
		return fmt.Errorf("cache discovery result: %w", err)
	}
	return nil
}

// GetResult returns the scan's latest cached result.
func (c *ResultCache) GetResult(ctx context.Context, scanID string) (*discovery.Result, error) {
	data, err := c.client.client.Get(ctx, resultKeyPrefix+scanID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: cached result for scan %q", shared.ErrNotFound, scanID)
		}
		return nil, fmt.Errorf("read cached discovery result: %w", err)
	}

	var result discovery.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode cached discovery result: %w", err)
	}
	return &result, nil
}
