package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/burner-signaling/internal/admission"
)

// takeScript applies one attempt to a bucket hash as a single atomic
// step. It follows the same rules as the in-memory store; all times are
// unix milliseconds and a zero field means unset.
var takeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local points = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local block = tonumber(ARGV[4])
local factor = tonumber(ARGV[5])

local v = redis.call('HMGET', key, 'ws', 'c', 'bu')
local ws = tonumber(v[1] or 0)
local count = tonumber(v[2] or 0)
local bu = tonumber(v[3] or 0)

local function save(allowed, retry, remaining)
  redis.call('HSET', key, 'ws', ws, 'c', count, 'bu', bu)
  local idle = ws + window
  if bu > idle then idle = bu end
  local ttl = idle - now
  if ttl < 1 then ttl = 1 end
  redis.call('PEXPIRE', key, ttl)
  return {allowed, retry, remaining}
end

if bu ~= 0 then
  if now < bu then
    local nxt = bu + window
    local limit = now + factor * block
    if nxt > limit then nxt = limit end
    if nxt < bu then nxt = bu end
    bu = nxt
    return save(0, bu - now, 0)
  end
  bu = 0
  ws = now
  count = 0
end

if ws == 0 or now - ws > window then
  ws = now
  count = 0
end

if count >= points then
  if block <= 0 then
    return save(0, ws + window - now, 0)
  end
  bu = now + block
  return save(0, block, 0)
end

count = count + 1
return save(1, 0, points - count)
`)

// BucketStore is an admission.Store shared by every process pointed at
// the same Redis. Keys expire once idle, so no sweep is needed.
type BucketStore struct {
	rdb    redis.Scripter
	prefix string
}

func NewBucketStore(rdb redis.Scripter, prefix string) *BucketStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &BucketStore{rdb: rdb, prefix: prefix}
}

func (s *BucketStore) Take(ctx context.Context, key string, p admission.Policy, now time.Time) (admission.Decision, error) {
	res, err := takeScript.Run(ctx, s.rdb, []string{s.prefix + key},
		now.UnixMilli(),
		p.Points,
		p.Window.Milliseconds(),
		p.Block.Milliseconds(),
		admission.MaxBlockFactor,
	).Int64Slice()
	if err != nil {
		return admission.Decision{}, fmt.Errorf("rate bucket %s: %w", key, err)
	}
	if len(res) != 3 {
		return admission.Decision{}, fmt.Errorf("rate bucket %s: unexpected reply %v", key, res)
	}
	return admission.Decision{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		Remaining:  int(res[2]),
	}, nil
}
