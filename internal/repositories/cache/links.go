package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"paylink/internal/models"
)

const KeyPrefix = "paylink"

// LinkCache holds resolved payment links. A miss returns (nil, nil).
type LinkCache interface {
	GetLink(ctx context.Context, linkID string) (*models.PaymentLink, error)
	SetLink(ctx context.Context, link *models.PaymentLink, ttl time.Duration) error
	InvalidateLink(ctx context.Context, linkID string) error
}

type RedisLinkCache struct {
	svc *CacheService
}

func NewRedisLinkCache(client *redis.Client) *RedisLinkCache {
	return &RedisLinkCache{svc: NewCacheService(client, KeyPrefix)}
}

// key is paylink:link:<id>.
func (c *RedisLinkCache) key(linkID string) string {
	return c.svc.GenerateKey("link", linkID)
}

func (c *RedisLinkCache) GetLink(ctx context.Context, linkID string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	found, err := c.svc.Get(ctx, c.key(linkID), &link)
	if err != nil || !found {
		return nil, err
	}
	return &link, nil
}

// SetLink caches link for at most ttl. Non-positive ttl is skipped.
func (c *RedisLinkCache) SetLink(ctx context.Context, link *models.PaymentLink, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.svc.SetWithTTL(ctx, c.key(link.LinkID), link, ttl)
}

func (c *RedisLinkCache) InvalidateLink(ctx context.Context, linkID string) error {
	return c.svc.Delete(ctx, c.key(linkID))
}

// NoopLinkCache is used when redis is disabled.
type NoopLinkCache struct{}

func (NoopLinkCache) GetLink(context.Context, string) (*models.PaymentLink, error) { return nil, nil }
func (NoopLinkCache) SetLink(context.Context, *models.PaymentLink, time.Duration) error {
	return nil
}
func (NoopLinkCache) InvalidateLink(context.Context, string) error { return nil }
