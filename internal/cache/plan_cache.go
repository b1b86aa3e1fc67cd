package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/config"
	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	planKeyPrefix     = "drp:plan"
	planScanBatchSize = 100
)

// PlanCache stores computed allocation results keyed by request
type PlanCache interface {
	Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error)
	Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error
	InvalidateProduct(ctx context.Context, productID string) error
	InvalidateAll(ctx context.Context) error
}

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPlanCache struct{}

func NewPlanCache(cfg config.CacheConfig) (PlanCache, error) {
	if !cfg.Enabled {
		return &noopPlanCache{}, nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "redis":
	case "memory":
		return NewMemoryPlanCache(planTTL(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPlanCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopPlanCache() PlanCache {
	return &noopPlanCache{}
}

func (c *redisPlanCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	key := BuildPlanKey(req)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.AllocationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode allocation plan cache: %w", err)
	}

	return &result, true, nil
}

func (c *redisPlanCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	key := BuildPlanKey(req)
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode allocation plan cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisPlanCache) InvalidateProduct(ctx context.Context, productID string) error {
	return deleteKeysWithPrefix(ctx, c.client, planProductPrefix(productID), planScanBatchSize)
}

func (c *redisPlanCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, planKeyPrefix, planScanBatchSize)
}

func (n *noopPlanCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	return nil, false, nil
}

func (n *noopPlanCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	return nil
}

func (n *noopPlanCache) InvalidateProduct(ctx context.Context, productID string) error {
	return nil
}

func (n *noopPlanCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// BuildPlanKey derives the cache key of a request. Requests without an as-of
// date are keyed by the current day so cached plans roll over at midnight.
func BuildPlanKey(req domain.AllocationRequest) string {
	return fmt.Sprintf("%s%s", planProductPrefix(req.ProductID), planRequestHash(req))
}

func planProductPrefix(productID string) string {
	return fmt.Sprintf("%s:%s:", planKeyPrefix, strings.TrimSpace(productID))
}

func planRequestHash(req domain.AllocationRequest) string {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	// destination order is part of the key: results follow it
	parts := []string{
		"source=" + strings.TrimSpace(req.SourceBranchID),
		"destinations=" + strings.Join(req.DestinationBranchIDs, ","),
		fmt.Sprintf("window=%d", req.WindowDays),
		fmt.Sprintf("lead=%d", req.Policy.LeadTimeDays),
		fmt.Sprintf("safety=%d", req.Policy.SafetyDays),
		fmt.Sprintf("multiple=%d", req.SaleMultiple),
		"mode=" + strings.ToLower(strings.TrimSpace(string(req.Mode))),
		"as_of=" + asOf.UTC().Format("2006-01-02"),
	}
	if req.SourceQuantity != nil {
		parts = append(parts, fmt.Sprintf("source_quantity=%d", *req.SourceQuantity))
	}

	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
