package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/quickbite-auth/internal/domain"
	"github.com/utafrali/quickbite-auth/internal/repository"
	"github.com/utafrali/quickbite-auth/pkg/database"
	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
)

const (
	sessionKeyPrefix     = "quickbite:session:"
	userSessionKeyPrefix = "quickbite:user_sessions:"
)

// SessionStore implements repository.SessionStore on Redis. Each session is
// a key holding the user ID with a TTL matching the token expiry; a per-user
// set indexes the session keys for RevokeAll. Put and RevokeAll run as Lua
// scripts and touch keys they do not name, so the store needs a single
// Redis node rather than a cluster.
type SessionStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewSessionStore creates a Redis-backed session store. A nil clock uses
// time.Now.
func NewSessionStore(client redis.UniversalClient, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{client: client, now: now}
}

func sessionKey(digest string) string { return sessionKeyPrefix + digest }
func userKey(userID string) string    { return userSessionKeyPrefix + userID }

// putScript creates the session key and indexes it in one step. The index
// lives as long as its longest session.
//
// KEYS[1] session key, KEYS[2] user index
// ARGV[1] user ID, ARGV[2] TTL in ms, ARGV[3] digest
var putScript = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[3])
if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[2]) then
	redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
return 1
`)

// revokeScript deletes every indexed session and the index itself. Running
// as one script, no Put can land between reading and clearing the index.
//
// KEYS[1] user index
// ARGV[1] session key prefix
var revokeScript = redis.NewScript(`
local digests = redis.call('SMEMBERS', KEYS[1])
for _, d in ipairs(digests) do
	redis.call('DEL', ARGV[1] .. d)
end
redis.call('DEL', KEYS[1])
return #digests
`)

// Put stores the session unless the token is already present. A session
// already past expiresAt is rejected with repository.ErrSessionExpired.
func (s *SessionStore) Put(ctx context.Context, userID, token string, expiresAt time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "PutSession", "EVALSHA put")
	defer func() { end(err) }()

	ttl := expiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		return repository.ErrSessionExpired
	}

	digest := repository.TokenDigest(token)
	created, err := putScript.Run(ctx, s.client,
		[]string{sessionKey(digest), userKey(userID)},
		userID, ttl.Milliseconds(), digest,
	).Int()
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	if created == 0 {
		return domain.ErrSessionConflict
	}
	return nil
}

// Consume removes the session with GETDEL, so only one caller can observe
// it. Expired keys are already gone.
func (s *SessionStore) Consume(ctx context.Context, token string) (_ string, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "ConsumeSession", "GETDEL")
	defer func() { end(err) }()

	digest := repository.TokenDigest(token)
	userID, err := s.client.GetDel(ctx, sessionKey(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("session", "token")
		}
		return "", fmt.Errorf("consume session: %w", err)
	}

	// The index entry is only used by RevokeAll; a stale member is harmless.
	_ = s.client.SRem(ctx, userKey(userID), digest).Err()
	return userID, nil
}

// RevokeAll deletes every indexed session of the user along with the index.
func (s *SessionStore) RevokeAll(ctx context.Context, userID string) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "RevokeUserSessions", "EVALSHA revoke")
	defer func() { end(err) }()

	if err = revokeScript.Run(ctx, s.client, []string{userKey(userID)}, sessionKeyPrefix).Err(); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}
