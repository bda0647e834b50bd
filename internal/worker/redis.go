package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"complaintbot/internal/models"
	"complaintbot/internal/redis"
)

const (
	redisSessionTTL = 30 * time.Minute
	redisGuardTTL   = 15 * time.Minute
)

// stateRedis caches sessions so a hot chat avoids a DB round trip per event.
// The cache is an optimization only: every method degrades to a no-op or a
// miss when the client is absent.
type stateRedis struct {
	client *redis.Client
}

func newStateCache(client *redis.Client) *stateRedis {
	return &stateRedis{client: client}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("bot:session:%d", chatID)
}

func (r *stateRedis) cacheSession(session *models.UserSession) {
	if r == nil || r.client == nil || session == nil || session.ChatID == 0 {
		return
	}
	data, err := json.Marshal(session)
	if err != nil {
		log.Printf("session cache marshal failed: %v", err)
		return
	}
	if err := r.client.Set(context.Background(), sessionKey(session.ChatID), data, redisSessionTTL); err != nil {
		log.Printf("session cache write failed: %v", err)
	}
}

func (r *stateRedis) loadSession(ctx context.Context, chatID int64) (*models.UserSession, bool) {
	if r == nil || r.client == nil || chatID == 0 {
		return nil, false
	}
	raw, err := r.client.Get(ctx, sessionKey(chatID))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("session cache read failed: %v", err)
		}
		return nil, false
	}
	var session models.UserSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Printf("session cache decode failed: %v", err)
		return nil, false
	}
	if session.ChatID != chatID || !session.Step.Valid() {
		return nil, false
	}
	return &session, true
}

func (r *stateRedis) invalidateSession(chatID int64) {
	if r == nil || r.client == nil || chatID == 0 {
		return
	}
	if err := r.client.Del(context.Background(), sessionKey(chatID)); err != nil && err != redis.ErrCacheMiss {
		log.Printf("session cache invalidate failed: %v", err)
	}
}

// finalizeGuard marks a terminal event as already finalized so a retry of
// the same input cannot insert a second record. Redis-backed when available,
// with an in-process table as the fallback.
type finalizeGuard struct {
	client *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
}

func newFinalizeGuard(client *redis.Client) *finalizeGuard {
	return &finalizeGuard{
		client: client,
		local:  make(map[string]time.Time),
	}
}

// finalizeKey derives the idempotency key from the terminal event and the
// flow it completes. The session's last-save timestamp discriminates between
// flows: a replay of the same in-flight finalize loads the session unchanged
// and maps to the same key, while a later flow ending in the same payload has
// been saved since and maps to a fresh one.
func finalizeKey(ev models.Event, session *models.UserSession) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s:%d:%d",
		ev.ChatID, ev.Kind, ev.Payload, session.ID, session.UpdatedAt.UTC().UnixNano())))
	return "bot:finalized:" + hex.EncodeToString(sum[:])
}

// acquire reports whether this event has not been finalized before and marks
// it. On redis failure it falls through to the local table rather than
// blocking the flow.
func (g *finalizeGuard) acquire(ctx context.Context, key string) bool {
	if g.client != nil {
		ok, err := g.client.SetNX(ctx, key, 1, redisGuardTTL)
		if err == nil {
			return ok
		}
		log.Printf("finalize guard redis failed, using local table: %v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for k, exp := range g.local {
		if now.After(exp) {
			delete(g.local, k)
		}
	}
	if _, exists := g.local[key]; exists {
		return false
	}
	g.local[key] = now.Add(redisGuardTTL)
	return true
}

// release frees the key after a failed insert so a retry may run again.
func (g *finalizeGuard) release(ctx context.Context, key string) {
	if g.client != nil {
		if err := g.client.Del(ctx, key); err != nil && err != redis.ErrCacheMiss {
			log.Printf("finalize guard release failed: %v", err)
		}
	}
	g.mu.Lock()
	delete(g.local, key)
	g.mu.Unlock()
}
