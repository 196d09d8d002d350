package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanKeyPrefix = "scan:"

// admitScript claims the dedup key if absent; a suppressed scan refreshes
// the cooldown window instead.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local ts = ARGV[1]
local ttl = tonumber(ARGV[2])

if redis.call('SET', key, ts, 'NX', 'PX', ttl) then
	return 1
end

redis.call('PEXPIRE', key, ttl)
return 0
`)

// RedisDeduper suppresses repeated scans across relay instances sharing one
// Redis. Keys expire on their own, so no sweep is needed.
type RedisDeduper struct {
	client   *redis.Client
	cooldown time.Duration
}

func NewRedisDeduper(client *redis.Client, cooldown time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, cooldown: cooldown}
}

func (r *RedisDeduper) Admit(ctx context.Context, sessionID, code string, at time.Time) (bool, error) {
	key := scanKeyPrefix + sessionID + ":" + code

	result, err := admitScript.Run(ctx, r.client, []string{key},
		at.UnixMilli(), r.cooldown.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}
