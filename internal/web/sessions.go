// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/session"
	"github.com/authscope/authscope/internal/token"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "_authscope_session"

// DefaultSessionTTL is how long an idle session survives in Redis.
const DefaultSessionTTL = 24 * time.Hour

// RedisSessions loads and saves server-side sessions kept as Redis hashes.
type RedisSessions struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	policy scope.CookiePolicy
}

// NewRedisSessions creates a RedisSessions. Keys are "<prefix>:<id>".
func NewRedisSessions(client redis.UniversalClient, prefix string, ttl time.Duration, policy scope.CookiePolicy) *RedisSessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessions{client: client, prefix: prefix, ttl: ttl, policy: policy}
}

func (s *RedisSessions) key(id string) string {
	return s.prefix + ":" + id
}

// Ping checks the Redis connection.
func (s *RedisSessions) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("WEB_SESSION_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Load returns the session named by the request cookie. A missing or
// unknown id yields a new empty session.
func (s *RedisSessions) Load(ctx context.Context, r *http.Request) (*RedisSession, error) {
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		values, err := s.client.HGetAll(ctx, s.key(ck.Value)).Result()
		if err != nil {
			return nil, oops.Code("WEB_SESSION_LOAD_FAILED").
				With("operation", "hgetall").
				Wrap(err)
		}
		if len(values) > 0 {
			return &RedisSession{id: ck.Value, values: values, fromCookie: true}, nil
		}
	}
	id, err := token.Generate()
	if err != nil {
		return nil, oops.Code("WEB_SESSION_ID_FAILED").Wrap(err)
	}
	return &RedisSession{id: id, values: make(map[string]string)}, nil
}

// Save persists a changed session and writes or clears the session cookie.
func (s *RedisSessions) Save(ctx context.Context, w http.ResponseWriter, sess *RedisSession) error {
	if !sess.dirty {
		return nil
	}
	key := s.key(sess.id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, old := range sess.stale {
			pipe.Del(ctx, s.key(old))
		}
		pipe.Del(ctx, key)
		if len(sess.values) > 0 {
			fields := make([]string, 0, 2*len(sess.values))
			for k, v := range sess.values {
				fields = append(fields, k, v)
			}
			pipe.HSet(ctx, key, fields)
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return oops.Code("WEB_SESSION_SAVE_FAILED").
			With("operation", "save session").
			Wrap(err)
	}

	if len(sess.values) == 0 {
		if sess.fromCookie || len(sess.stale) > 0 {
			http.SetCookie(w, &http.Cookie{Name: SessionCookie, Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})
		}
	} else {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.id,
			Path:     "/",
			MaxAge:   int(s.ttl.Seconds()),
			Secure:   s.policy.Secure,
			HttpOnly: true,
			SameSite: s.policy.SameSite.HTTP(),
		})
	}
	sess.dirty = false
	sess.stale = nil
	return nil
}

// RedisSession is one request's view of a session. It implements
// session.Store; changes reach Redis on RedisSessions.Save.
type RedisSession struct {
	id         string
	values     map[string]string
	stale      []string
	dirty      bool
	fromCookie bool
}

// ID returns the current session id.
func (s *RedisSession) ID() string {
	return s.id
}

// Get implements session.Store.
func (s *RedisSession) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set implements session.Store.
func (s *RedisSession) Set(key, value string) {
	s.values[key] = value
	s.dirty = true
}

// Delete implements session.Store.
func (s *RedisSession) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Renew implements session.Store. The previous id is deleted on save.
func (s *RedisSession) Renew() error {
	id, err := token.Generate()
	if err != nil {
		return oops.Code("WEB_SESSION_ID_FAILED").Wrap(err)
	}
	if s.fromCookie {
		s.stale = append(s.stale, s.id)
	}
	s.id = id
	s.values = make(map[string]string)
	s.dirty = true
	return nil
}

var _ session.Store = (*RedisSession)(nil)
