package ratelimit

import "github.com/redis/go-redis/v9"

// rpmScript implements the fixed-window RPM algorithm: the first request
// of a window sets a 60s TTL; requests beyond the limit are rejected
// without incrementing past the limit's meaning (the counter itself keeps
// incrementing, only the admission decision changes).
var rpmScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
	redis.call('EXPIRE', KEYS[1], 60)
end
local limit = tonumber(ARGV[1])
if c > limit then
	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then ttl = 0 end
	return {0, 0, ttl}
end
return {1, limit - c, 0}
`)

// tpmScript implements the GCRA admission check, including its
// emission_interval = capacity / rate definition. See DESIGN.md for the
// invariant this formula is checked against ("never admits two
// back-to-back costs a,b with a+b>capacity at t=0", which holds whenever
// rate <= capacity).
var tpmScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now_ms = tonumber(ARGV[4])

local emission_interval = capacity / rate
local tat = tonumber(redis.call('GET', KEYS[1]))
if tat == nil then
	tat = now_ms
end
if tat < now_ms then
	tat = now_ms
end

local new_tat = tat + cost * emission_interval
local allow_at = new_tat - capacity

if allow_at <= now_ms then
	local ttl = math.ceil(capacity * 2 / 1000)
	if ttl < 1 then ttl = 1 end
	redis.call('SET', KEYS[1], new_tat, 'EX', ttl)
	return {1, 0}
else
	return {0, math.ceil(allow_at - now_ms)}
end
`)

// usageScript atomically increments both cumulative per-key counters
// (hyperinfer:usage:tokens:<key>, hyperinfer:usage:requests:<key>).
// Monitoring only, no enforcement; must never partially apply.
var usageScript = redis.NewScript(`
redis.call('INCRBY', KEYS[1], ARGV[1])
redis.call('INCR', KEYS[2])
return 1
`)
