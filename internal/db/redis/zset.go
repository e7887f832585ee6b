package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/db"
)

// ZAdd adds member with score, replacing any previous score.
func (s *Store) ZAdd(ctx context.Context, key, member string, score float64) error {
	cmd := s.b().Zadd().Key(key).ScoreMember().ScoreMember(score, member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

var zclaim = rueidis.NewLuaScriptNoSha(`
local cur = redis.call("ZSCORE", KEYS[1], ARGV[1])
if cur and tonumber(cur) <= tonumber(ARGV[2]) then
	redis.call("ZADD", KEYS[1], ARGV[3], ARGV[1])
	return 1
end
return 0
`)

// ZClaim atomically re-scores member to score while its current score is still <= maxScore.
// Returns false when member is absent or another caller already moved it.
func (s *Store) ZClaim(ctx context.Context, key, member string, maxScore, score float64) (bool, error) {
	n, err := zclaim.Exec(ctx, s.client, []string{key}, []string{
		member,
		strconv.FormatFloat(maxScore, 'f', -1, 64),
		strconv.FormatFloat(score, 'f', -1, 64),
	}).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	return n > 0, nil
}

// ZRangeByScore returns up to limit members with score <= maxScore, lowest first.
func (s *Store) ZRangeByScore(ctx context.Context, key string, maxScore float64, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	cmd := s.b().Zrangebyscore().Key(key).
		Min("-inf").
		Max(strconv.FormatFloat(maxScore, 'f', -1, 64)).
		Limit(0, int64(limit)).
		Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRangeByScore, Err: err}
	}
	return members, nil
}

// ZScore returns the score of member, or ErrKeyNotFound when absent.
func (s *Store) ZScore(ctx context.Context, key, member string) (float64, error) {
	cmd := s.b().Zscore().Key(key).Member(member).Build()
	score, err := s.do(ctx, cmd).AsFloat64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, db.ErrKeyNotFound
		}
		return 0, &db.Error{Op: db.OpZScore, Err: err}
	}
	return score, nil
}

// ZRem removes member from the set.
func (s *Store) ZRem(ctx context.Context, key, member string) error {
	cmd := s.b().Zrem().Key(key).Member(member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}
