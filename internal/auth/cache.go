package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	cachePrefix     = "auth:token:"
	defaultCacheTTL = 5 * time.Minute
)

// CachedClaims is the subset of token claims the service uses.
type CachedClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// Cache stores already-verified tokens in Redis, keyed by a digest of the
// raw token. The entry expires when the token does, capped at a few
// minutes so revocations are picked up quickly.
type Cache struct {
	RDB *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{RDB: rdb}
}

func cacheKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return cachePrefix + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(ctx context.Context, rawToken string) (CachedClaims, bool) {
	var claims CachedClaims
	val, err := c.RDB.Get(ctx, cacheKey(rawToken)).Result()
	if err != nil {
		return claims, false
	}
	if err := json.Unmarshal([]byte(val), &claims); err != nil {
		return claims, false
	}
	return claims, true
}

func (c *Cache) Put(ctx context.Context, rawToken string, claims CachedClaims) error {
	ttl := defaultCacheTTL
	if exp, ok := tokenExpiry(rawToken); ok {
		if until := time.Until(exp); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, cacheKey(rawToken), payload, ttl).Err()
}
