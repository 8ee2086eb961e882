package session

import "github.com/redis/go-redis/v9"

// Rotate result codes.
const (
	rotateNotFound  = 0
	rotateExpired   = 1
	rotateRevoked   = 2
	rotateOK        = 3
	rotateCorrupt   = 4
	rotateCollision = 5
)

// Offsets are 1-based: version at 1, status at 2, created_at 3..10,
// rotated_at 11..18, expires_at 19..26, principal length 27..28. The
// variable-length role, scopes and successor fields follow the principal.
//
// All keys of one principal carry the same {principal} hash tag, so the
// successor keys a chain walk reaches sit in the slot of KEYS[1].
const luaHelpers = `
local function read_be64(s, i)
  local n = 0
  for k = 0, 7 do
    local b = string.byte(s, i + k)
    if not b then return nil end
    n = n * 256 + b
  end
  return n
end

local function write_be64(n)
  local out = {}
  for k = 8, 1, -1 do
    out[k] = string.char(n % 256)
    n = math.floor(n / 256)
  end
  return table.concat(out)
end

local function principal_of(data)
  if #data < 28 or string.byte(data, 1) ~= 2 then return nil end
  local len = string.byte(data, 27) * 256 + string.byte(data, 28)
  if len == 0 or #data < 28 + len then return nil end
  return string.sub(data, 29, 28 + len)
end

-- successor_pos returns the offset of the successor length byte.
local function successor_pos(data)
  local len = string.byte(data, 27) * 256 + string.byte(data, 28)
  local i = 29 + len
  local role = string.byte(data, i)
  if not role then return nil end
  i = i + 1 + role
  local count = string.byte(data, i)
  if not count then return nil end
  i = i + 1
  for _ = 1, count do
    local n = string.byte(data, i)
    if not n then return nil end
    i = i + 1 + n
  end
  local n = string.byte(data, i)
  if not n or i + n ~= #data then return nil end
  return i
end

local function successor_of(data, pos)
  local n = string.byte(data, pos)
  if n == 0 then return "" end
  return string.sub(data, pos + 1, pos + n)
end

-- retire flips the status to revoked and records the successor id.
local function retire(data, pos, successor)
  return string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3, pos - 1)
    .. string.char(#successor) .. successor
end

local function parse(data, principal)
  if principal_of(data) ~= principal then return nil end
  return successor_pos(data)
end
`

// KEYS[1]=session key KEYS[2]=principal index
// ARGV[1]=blob ARGV[2]=ttl ms ARGV[3]=session id
var createScript = redis.NewScript(`
local ok = redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2], "NX")
if not ok then return 0 end
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = tonumber(ARGV[2])
if redis.call("PTTL", KEYS[2]) < ttl then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`)

// KEYS[1]=old session key KEYS[2]=new session key KEYS[3]=principal index
// ARGV[1]=old id ARGV[2]=new id ARGV[3]=now ms ARGV[4]=ttl ms
// ARGV[5]=absolute lifetime ms (0 disables) ARGV[6]=principal
//
// The retired record keeps its remaining TTL and links to the successor.
var rotateScript = redis.NewScript(luaHelpers + `
local data = redis.call("GET", KEYS[1])
if not data then return {0} end

local pos = parse(data, ARGV[6])
if not pos then return {4} end
if string.byte(data, 2) ~= 0 then return {2} end

local now_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])
local absolute_ms = tonumber(ARGV[5])

local expires_at = read_be64(data, 19)
if expires_at <= now_ms then return {1} end

local next_expiry = now_ms + ttl_ms
if absolute_ms > 0 then
  local hard_stop = read_be64(data, 3) + absolute_ms
  if hard_stop < next_expiry then next_expiry = hard_stop end
end
if next_expiry <= now_ms then return {1} end

if redis.call("EXISTS", KEYS[2]) == 1 then return {5} end

local remaining = redis.call("PTTL", KEYS[1])
if remaining <= 0 then remaining = ttl_ms end
redis.call("SET", KEYS[1], retire(data, pos, ARGV[2]), "PX", remaining)

local successor = string.sub(data, 1, 1) .. string.char(0) .. string.sub(data, 3, 10)
  .. write_be64(now_ms) .. write_be64(next_expiry) .. string.sub(data, 27, pos - 1)
  .. string.char(0)
local successor_ttl = next_expiry - now_ms
redis.call("SET", KEYS[2], successor, "PX", successor_ttl)

redis.call("SREM", KEYS[3], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[2])
if redis.call("PTTL", KEYS[3]) < successor_ttl then
  redis.call("PEXPIRE", KEYS[3], successor_ttl)
end
return {3, successor}
`)

// KEYS[1]=session key KEYS[2]=principal index
// ARGV[1]=session id ARGV[2]=principal ARGV[3]=session key prefix
// ARGV[4]=max chain hops
//
// A record retired by Rotate is followed to its successor until the live
// head of the chain is found and revoked. Returns 1 when an active record
// was revoked, 0 otherwise.
var revokeScript = redis.NewScript(luaHelpers + `
local key, id = KEYS[1], ARGV[1]
for _ = 1, tonumber(ARGV[4]) do
  local data = redis.call("GET", key)
  if not data then return 0 end

  local pos = parse(data, ARGV[2])
  if not pos then
    redis.call("DEL", key)
    redis.call("SREM", KEYS[2], id)
    return 0
  end

  if string.byte(data, 2) == 0 then
    redis.call("SREM", KEYS[2], id)
    local remaining = redis.call("PTTL", key)
    if remaining <= 0 then
      redis.call("DEL", key)
    else
      redis.call("SET", key, retire(data, pos, ""), "PX", remaining)
    end
    return 1
  end

  local successor = successor_of(data, pos)
  if successor == "" then return 0 end
  id = successor
  key = ARGV[3] .. successor
end
return 0
`)
