package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// DefaultPrefix namespaces presence keys.
const DefaultPrefix = "rooms:presence"

// RedisPresenceStore implements repository.PresenceRepository on Redis.
//
// Key patterns:
// {prefix}:{room}:seen    ZSET<identity>  - score is last seen, unix ms
// {prefix}:{room}:names   HASH            - identity -> display name
// {prefix}:rooms          SET<room>       - rooms with at least one record
type RedisPresenceStore struct {
	client *redis.Client
	prefix string
}

// NewRedisPresenceStore creates a presence store on an existing client.
// The caller owns the client.
func NewRedisPresenceStore(client *redis.Client, prefix string) *RedisPresenceStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisPresenceStore{client: client, prefix: prefix}
}

func (s *RedisPresenceStore) seenKey(room string) string {
	return fmt.Sprintf("%s:%s:seen", s.prefix, room)
}

func (s *RedisPresenceStore) namesKey(room string) string {
	return fmt.Sprintf("%s:%s:names", s.prefix, room)
}

func (s *RedisPresenceStore) roomsKey() string {
	return s.prefix + ":rooms"
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func minScore(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Upsert inserts or refreshes the record for (room, identity).
func (s *RedisPresenceStore) Upsert(ctx context.Context, p *domain.Presence) error {
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.seenKey(p.RoomName), redis.Z{Score: score(p.LastSeen), Member: p.Identity})
	pipe.HSet(ctx, s.namesKey(p.RoomName), p.Identity, p.DisplayName)
	pipe.SAdd(ctx, s.roomsKey(), p.RoomName)
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, p.RoomName).Msg("failed to upsert presence in redis")
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// Delete removes the record for (room, identity) if present.
func (s *RedisPresenceStore) Delete(ctx context.Context, room, identity string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.seenKey(room), identity)
	pipe.HDel(ctx, s.namesKey(room), identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete presence: %w", err)
	}
	return nil
}

// LastSeen returns the last heartbeat time for (room, identity).
func (s *RedisPresenceStore) LastSeen(ctx context.Context, room, identity string) (time.Time, bool, error) {
	ms, err := s.client.ZScore(ctx, s.seenKey(room), identity).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get presence: %w", err)
	}
	return time.UnixMilli(int64(ms)).UTC(), true, nil
}

// Tally counts records seen at or after since for each room, in one round trip.
func (s *RedisPresenceStore) Tally(ctx context.Context, hosts map[string]string, since time.Time) (map[string]repository.PresenceTally, error) {
	out := make(map[string]repository.PresenceTally, len(hosts))
	if len(hosts) == 0 {
		return out, nil
	}

	type pending struct {
		count *redis.IntCmd
		host  *redis.FloatCmd
	}
	cmds := make(map[string]pending, len(hosts))
	min := minScore(since)

	pipe := s.client.Pipeline()
	for room, host := range hosts {
		p := pending{count: pipe.ZCount(ctx, s.seenKey(room), min, "+inf")}
		if host != "" {
			p.host = pipe.ZScore(ctx, s.seenKey(room), host)
		}
		cmds[room] = p
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int("rooms", len(hosts)).Msg("failed to tally presence in redis")
		return nil, fmt.Errorf("tally presence: %w", err)
	}

	for room, p := range cmds {
		t := repository.PresenceTally{Active: int(p.count.Val())}
		if p.host != nil {
			if ms, err := p.host.Result(); err == nil && ms >= score(since) {
				t.HostOnline = true
			}
		}
		out[room] = t
	}
	return out, nil
}

// expireScript removes members of the seen ZSET (KEYS[1]) scored at or
// below ARGV[1], drops their names from KEYS[2], and removes room ARGV[2]
// from the rooms set KEYS[3] once it is empty. It returns the number of
// members removed.
var expireScript = redis.NewScript(`
local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if #stale == 0 then
  return 0
end
for i = 1, #stale, 500 do
  redis.call('HDEL', KEYS[2], unpack(stale, i, math.min(i + 499, #stale)))
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) == 0 then
  redis.call('SREM', KEYS[3], ARGV[2])
end
return #stale
`)

// DeleteExpired removes records last seen before the cutoff and forgets
// rooms left without records. Each room is expired atomically, so a record
// refreshed concurrently keeps both its score and its display name.
func (s *RedisPresenceStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	rooms, err := s.client.SMembers(ctx, s.roomsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("list presence rooms: %w", err)
	}

	// Exclusive upper bound: records seen exactly at the cutoff survive.
	max := "(" + minScore(before)
	var deleted int64
	for _, room := range rooms {
		keys := []string{s.seenKey(room), s.namesKey(room), s.roomsKey()}
		n, err := expireScript.Run(ctx, s.client, keys, max, room).Int64()
		if err != nil {
			return deleted, fmt.Errorf("delete expired presence: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}
