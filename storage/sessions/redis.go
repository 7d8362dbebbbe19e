package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/studentportal/core/session"
)

const redisKeyPrefix = "portal:session:"

// RedisStore keeps sessions in redis; expiry is delegated to the key TTL.
type RedisStore struct {
	Client *redis.Client
}

var _ session.Store = (*RedisStore)(nil)

// NewRedisStore connects to redis with short timeouts.
func NewRedisStore(addr string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisStore{Client: client}
}

// Healthy verifies redis connectivity.
func (s *RedisStore) Healthy(ctx context.Context) bool {
	if s == nil || s.Client == nil {
		return false
	}
	return s.Client.Ping(ctx).Err() == nil
}

func (s *RedisStore) Save(ctx context.Context, sess session.Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "marshalling session")
	}
	return errors.Wrap(s.Client.Set(ctx, redisKeyPrefix+sess.ID, data, ttl).Err(), "storing session")
}

func (s *RedisStore) Get(ctx context.Context, id string) (session.Session, error) {
	data, err := s.Client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "loading session")
	}
	var sess session.Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, errors.Wrap(err, "unmarshalling session")
	}
	return sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.Client.Del(ctx, redisKeyPrefix+id).Err(), "deleting session")
}

func (s *RedisStore) Close() error { return s.Client.Close() }
