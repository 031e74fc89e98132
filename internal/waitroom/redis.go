package waitroom

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultQueueKey    = "purchase:queue"
	defaultEligibleKey = "purchase:processing"
	defaultSeqKey      = "purchase:queue:seq"
)

// seqSlots bounds the insertion-order tie-break.  The stored score is
// arrival_ms*seqSlots + seq, where seq counts inserts within that arrival
// millisecond and starts at 0.  The score stays below 2^53 (exact in a
// float64 sorted-set score) for timestamps until roughly year 2255.
const seqSlots = 1000

// seqTTL keeps a per-millisecond counter around long enough for late
// buffer deliveries of the same millisecond to keep counting up.
const seqTTL = time.Minute

// ErrSequenceExhausted is returned by RedisStore.Insert when more than
// seqSlots entries arrive in one millisecond.
var ErrSequenceExhausted = errors.New("waitroom: insertion sequence exhausted for this millisecond")

// insertScript adds a member only when it is neither waiting nor eligible.
// KEYS[3] is the counter for the arrival millisecond.  The score is
// assembled as a string so that no precision is lost in the Lua number
// conversion.
var insertScript = redis.NewScript(`
	if redis.call('ZSCORE', KEYS[1], ARGV[1]) then return 0 end
	if redis.call('ZSCORE', KEYS[2], ARGV[1]) then return 0 end
	local n = redis.call('INCR', KEYS[3])
	if n == 1 then redis.call('PEXPIRE', KEYS[3], ARGV[4]) end
	if n > tonumber(ARGV[3]) then return -1 end
	local seq = tostring(n - 1)
	while #seq < 3 do seq = '0' .. seq end
	redis.call('ZADD', KEYS[1], ARGV[2] .. seq, ARGV[1])
	return 1
`)

// retireScript removes an eligible member and returns its promotion score,
// or nil when it was not eligible.
var retireScript = redis.NewScript(`
	local s = redis.call('ZSCORE', KEYS[1], ARGV[1])
	if not s then return false end
	redis.call('ZREM', KEYS[1], ARGV[1])
	return s
`)

// promoteScript pops the head of the waiting room into the eligible set.
var promoteScript = redis.NewScript(`
	local members = redis.call('ZRANGE', KEYS[1], 0, tonumber(ARGV[1]) - 1)
	if #members == 0 then return members end
	for _, m in ipairs(members) do
		redis.call('ZREM', KEYS[1], m)
		redis.call('ZADD', KEYS[2], ARGV[2], m)
	end
	return members
`)

// RedisStore keeps the waiting room in a sorted set and the eligible set in
// a second sorted set scored by promotion time, which makes TTL expiry a
// single ZREMRANGEBYSCORE.
type RedisStore struct {
	rdb         redis.UniversalClient
	queueKey    string
	eligibleKey string
	seqKey      string
}

// RedisOption customizes the keys used by a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces all keys, e.g. for running tests side by side.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.queueKey = prefix + defaultQueueKey
		s.eligibleKey = prefix + defaultEligibleKey
		s.seqKey = prefix + defaultSeqKey
	}
}

// NewRedisStore returns a Store backed by rdb.
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:         rdb,
		queueKey:    defaultQueueKey,
		eligibleKey: defaultEligibleKey,
		seqKey:      defaultSeqKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Insert(ctx context.Context, key string, score int64) error {
	ms := strconv.FormatInt(score, 10)
	keys := []string{s.queueKey, s.eligibleKey, s.seqKey + ":" + ms}
	res, err := insertScript.Run(ctx, s.rdb, keys, key, ms, seqSlots, seqTTL.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		return fmt.Errorf("%w: %s", ErrSequenceExhausted, ms)
	}
	return nil
}

func (s *RedisStore) Rank(ctx context.Context, key string) (int64, error) {
	rank, err := s.rdb.ZRank(ctx, s.queueKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	return rank, err
}

func (s *RedisStore) Size(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, s.queueKey).Result()
}

func (s *RedisStore) TakeHead(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.rdb.ZPopMin(ctx, s.queueKey, int64(n)).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(zs))
	for _, z := range zs {
		if m, ok := z.Member.(string); ok {
			keys = append(keys, m)
		}
	}
	return keys, nil
}

func (s *RedisStore) Promote(ctx context.Context, n int, now time.Time) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	keys := []string{s.queueKey, s.eligibleKey}
	res, err := promoteScript.Run(ctx, s.rdb, keys, n, strconv.FormatInt(now.UnixMilli(), 10)).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

func (s *RedisStore) IsEligible(ctx context.Context, key string) (bool, error) {
	err := s.rdb.ZScore(ctx, s.eligibleKey, key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Retire(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := retireScript.Run(ctx, s.rdb, []string{s.eligibleKey}, key).Text()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("eligible score %q: %w", raw, err)
	}
	return time.UnixMilli(int64(ms)), true, nil
}

func (s *RedisStore) Reinstate(ctx context.Context, key string, promotedAt time.Time) error {
	return s.rdb.ZAddNX(ctx, s.eligibleKey, redis.Z{Score: float64(promotedAt.UnixMilli()), Member: key}).Err()
}

func (s *RedisStore) ExpireEligible(ctx context.Context, cutoff time.Time) (int64, error) {
	// "(" makes the bound exclusive: keys promoted exactly at cutoff survive.
	bound := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	return s.rdb.ZRemRangeByScore(ctx, s.eligibleKey, "-inf", bound).Result()
}

func (s *RedisStore) EligibleCount(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, s.eligibleKey).Result()
}
