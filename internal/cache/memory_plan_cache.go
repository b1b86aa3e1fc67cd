package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// memoryPlanCache keeps encoded plans in process. Entries are stored as JSON
// so callers never share a result value.
type memoryPlanCache struct {
	store *gocache.Cache
}

// NewMemoryPlanCache creates an in-process plan cache for single-instance deployments
func NewMemoryPlanCache(ttl time.Duration) PlanCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &memoryPlanCache{store: gocache.New(ttl, 2*ttl)}
}

func (c *memoryPlanCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	raw, ok := c.store.Get(BuildPlanKey(req))
	if !ok {
		return nil, false, nil
	}

	var result domain.AllocationResult
	if err := json.Unmarshal(raw.([]byte), &result); err != nil {
		return nil, false, fmt.Errorf("decode allocation plan cache: %w", err)
	}
	return &result, true, nil
}

func (c *memoryPlanCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode allocation plan cache: %w", err)
	}
	c.store.SetDefault(BuildPlanKey(req), payload)
	return nil
}

func (c *memoryPlanCache) InvalidateProduct(ctx context.Context, productID string) error {
	prefix := planProductPrefix(productID)
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
	return nil
}

func (c *memoryPlanCache) InvalidateAll(ctx context.Context) error {
	c.store.Flush()
	return nil
}
