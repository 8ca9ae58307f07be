// Package cache keeps recently read users in Redis.
//
// The cache is read-through and best effort: the database stays the source
// of truth and entries expire after a TTL. Each entry is a hash holding the
// user and its version. Writes go through a compare-and-set script, so an
// entry never moves back to an older version: a slow read-through fill
// cannot overwrite what a committed save wrote, and a deleted user leaves a
// tombstone that outranks every version for TombstoneTTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/deppfellow/users-service/internal/metrics"
	"github.com/deppfellow/users-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "users:id:"
	fieldUser = "user"

	// tombstoneVersion is stored for deleted users. Ids are never reused,
	// so nothing may replace it until it expires.
	tombstoneVersion int64 = math.MaxInt64
)

// TombstoneTTL bounds how long a deleted user blocks cache fills.
const TombstoneTTL = time.Minute

// setIfNewerSource writes ARGV[2] at version ARGV[1] unless the entry already
// holds that version or a newer one. Returns 1 when written.
const setIfNewerSource = `
local current = redis.call("HGET", KEYS[1], "version")
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "user", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

var setIfNewer = redis.NewScript(setIfNewerSource)

func userKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

type UserCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewUserCache(client redis.Cmdable, ttl time.Duration) *UserCache {
	return &UserCache{client: client, ttl: ttl}
}

// Get returns nil without error on a miss. A tombstone is a miss too.
func (c *UserCache) Get(ctx context.Context, id int64) (*model.User, error) {
	raw, err := c.client.HGet(ctx, userKey(id), fieldUser).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup(metrics.CacheMiss)
			return nil, nil
		}
		metrics.RecordCacheLookup(metrics.CacheError)
		return nil, fmt.Errorf("cache get user %d: %w", id, err)
	}
	if len(raw) == 0 {
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, nil
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("cache decode user %d: %w", id, err)
	}

	metrics.RecordCacheLookup(metrics.CacheHit)
	return &user, nil
}

// Set stores user unless the cache already holds the same or a newer
// version of it.
func (c *UserCache) Set(ctx context.Context, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("cache encode user %d: %w", user.ID, err)
	}

	if err := c.compareAndSet(ctx, user.ID, user.Version, string(raw), c.ttl); err != nil {
		return fmt.Errorf("cache set user %d: %w", user.ID, err)
	}
	return nil
}

// MarkDeleted replaces the entry with a tombstone so fills that read the
// user before the delete committed are rejected.
func (c *UserCache) MarkDeleted(ctx context.Context, id int64) error {
	if err := c.compareAndSet(ctx, id, tombstoneVersion, "", TombstoneTTL); err != nil {
		return fmt.Errorf("cache mark user %d deleted: %w", id, err)
	}
	return nil
}

func (c *UserCache) compareAndSet(ctx context.Context, id, version int64, value string, ttl time.Duration) error {
	return setIfNewer.Run(ctx, c.client, []string{userKey(id)}, version, value, ttl.Milliseconds()).Err()
}
