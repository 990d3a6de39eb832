package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeRegistry reserves join codes across instances with SETNX.
// Codes are stored as: SET quiz:code:{code} {sessionID} NX [EX ttl]
type CodeRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCodeRegistry builds a registry. A zero ttl keeps codes reserved forever.
func NewCodeRegistry(client *redis.Client, ttl time.Duration) *CodeRegistry {
	return &CodeRegistry{client: client, ttl: ttl}
}

func (r *CodeRegistry) Claim(ctx context.Context, code, sessionID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(code), sessionID, r.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	owner, err := r.client.Get(ctx, r.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the caller draw again
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == sessionID, nil
}

// releaseScript deletes the code key only while it still names the releasing session.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *CodeRegistry) Release(ctx context.Context, code, sessionID string) error {
	return releaseScript.Run(ctx, r.client, []string{r.key(code)}, sessionID).Err()
}

func (r *CodeRegistry) key(code string) string {
	return "quiz:code:" + code
}
