package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport-level failure returned by the [Store].
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "authd"

// extendSessionScript swaps one set member for another only if the old member is present.
const extendSessionScript = `
if redis.call("SREM", KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call("SADD", KEYS[1], ARGV[2])
redis.call("EXPIRE", KEYS[1], ARGV[3])
return 1
`

var extendSessionLua = redis.NewScript(extendSessionScript)

// reserveIssuanceScript returns ARGV[1], or one past the last value handed out for the
// subject if that is not strictly greater.
const reserveIssuanceScript = `
local last = tonumber(redis.call("GET", KEYS[1]) or "0")
local issued = tonumber(ARGV[1])
if issued <= last then
  issued = last + 1
end
redis.call("SET", KEYS[1], issued, "EX", ARGV[2])
return issued
`

var reserveIssuanceLua = redis.NewScript(reserveIssuanceScript)

// Entry identifies one session of a subject. Several entries per subject model several devices.
type Entry struct {
	SubjectID string
	IssuedAt  int64
	Secret    string
}

func (e Entry) member() string {
	return strconv.FormatInt(e.IssuedAt, 10) + "." + e.Secret
}

// Config controls key naming and the lifetimes the store enforces.
type Config struct {
	Prefix     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	// Clock overrides time.Now for staleness checks.
	Clock func() time.Time
}

// Store is the token cache. It holds one shared go-redis handle and needs no locking of its
// own; every cross-request invariant is pushed into an atomic Redis command.
type Store struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewStore builds a [Store] over a shared Redis client.
func NewStore(client redis.UniversalClient, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		redis:  client,
		config: cfg,
		now:    now,
	}
}

func (s *Store) tokenKey(subjectID string) string {
	return s.config.Prefix + ":token:" + subjectID
}

func (s *Store) refreshKey(subjectID string, issuedAt int64) string {
	return s.config.Prefix + ":refresh:" + subjectID + ":" + strconv.FormatInt(issuedAt, 10)
}

func (s *Store) issuanceKey(subjectID string) string {
	return s.config.Prefix + ":issued:" + subjectID
}

func (s *Store) verifyKey(code string) string {
	return s.config.Prefix + ":verify:" + code
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// AddSession inserts e into the subject's session set. Inserting an existing entry is a no-op.
//
//	Performance: 1 MULTI/EXEC (SADD + EXPIRE).
func (s *Store) AddSession(ctx context.Context, e Entry) error {
	key := s.tokenKey(e.SubjectID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, e.member())
		// Set-level TTL reclaims abandoned subjects; per-entry age is checked lazily on read.
		pipe.Expire(ctx, key, s.config.RefreshTTL)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// AuthorizeSession reports whether e is live. An entry older than the access TTL is evicted
// and reported as not live.
//
//	Performance: 1 SISMEMBER, plus 1 SREM on eviction.
func (s *Store) AuthorizeSession(ctx context.Context, e Entry) (bool, error) {
	key := s.tokenKey(e.SubjectID)
	member := e.member()

	ok, err := s.redis.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, unavailable(err)
	}
	if !ok {
		return false, nil
	}

	if !s.stale(e) {
		return true, nil
	}

	if err := s.redis.SRem(ctx, key, member).Err(); err != nil {
		return false, unavailable(err)
	}
	return false, nil
}

func (s *Store) stale(e Entry) bool {
	return s.now().Unix()-e.IssuedAt > int64(s.config.AccessTTL/time.Second)
}

// ExtendSession replaces e with an entry carrying the same secret and a fresh issuance time.
// It returns the new issuance time, or false when e was not present.
func (s *Store) ExtendSession(ctx context.Context, e Entry) (int64, bool, error) {
	if s.stale(e) {
		if _, err := s.RemoveSession(ctx, e); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	next := Entry{SubjectID: e.SubjectID, IssuedAt: s.now().Unix(), Secret: e.Secret}
	if next.IssuedAt <= e.IssuedAt {
		next.IssuedAt = e.IssuedAt + 1
	}

	ttl := int64(s.config.RefreshTTL / time.Second)
	swapped, err := extendSessionLua.Run(ctx, s.redis, []string{s.tokenKey(e.SubjectID)}, e.member(), next.member(), ttl).Int64()
	if err != nil {
		return 0, false, unavailable(err)
	}
	if swapped == 0 {
		return 0, false, nil
	}
	return next.IssuedAt, true, nil
}

// RemoveSession revokes a single entry. It reports whether the entry existed.
func (s *Store) RemoveSession(ctx context.Context, e Entry) (bool, error) {
	removed, err := s.redis.SRem(ctx, s.tokenKey(e.SubjectID), e.member()).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return removed > 0, nil
}

// RemoveAllSessions revokes every entry of the subject and drops its outstanding refresh
// markers, so no existing refresh token can mint a new session.
func (s *Store) RemoveAllSessions(ctx context.Context, subjectID string) error {
	keys := []string{s.tokenKey(subjectID)}

	pattern := globEscape(s.config.Prefix+":refresh:"+subjectID) + ":*"
	iter := s.redis.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return unavailable(err)
	}

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ReserveIssuance returns the issuance time for a new session of subjectID: the current
// second, pushed forward when needed so that no two sessions of one subject share a value
// within the refresh window. Refresh markers are keyed by it, so a rotation in the same second
// as the login it replaces cannot recreate the consumed marker.
func (s *Store) ReserveIssuance(ctx context.Context, subjectID string) (int64, error) {
	ttl := int64(s.config.RefreshTTL / time.Second)
	issued, err := reserveIssuanceLua.Run(ctx, s.redis, []string{s.issuanceKey(subjectID)}, s.now().Unix(), ttl).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return issued, nil
}

// AddRefreshMarker records a single-use refresh grant that expires with the refresh window.
func (s *Store) AddRefreshMarker(ctx context.Context, subjectID string, issuedAt int64) error {
	if err := s.redis.Set(ctx, s.refreshKey(subjectID, issuedAt), 1, s.config.RefreshTTL).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// PermitRefresh consumes the refresh marker. Only the first caller for a given
// (subject, issued_at) pair observes true.
//
//	Performance: 1 GETDEL.
func (s *Store) PermitRefresh(ctx context.Context, subjectID string, issuedAt int64) (bool, error) {
	err := s.redis.GetDel(ctx, s.refreshKey(subjectID, issuedAt)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, unavailable(err)
	}
	return true, nil
}

// AddVerifyCode stores a pending email verification code for subjectID.
func (s *Store) AddVerifyCode(ctx context.Context, code, subjectID string) error {
	if err := s.redis.Set(ctx, s.verifyKey(code), subjectID, s.config.VerifyTTL).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// PermitVerifyCode consumes code and returns the subject it was issued for.
func (s *Store) PermitVerifyCode(ctx context.Context, code string) (string, bool, error) {
	subjectID, err := s.redis.GetDel(ctx, s.verifyKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return subjectID, true, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
