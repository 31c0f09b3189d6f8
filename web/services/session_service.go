package services

import (
	"context"
	"fmt"
	"sync"

	"fleetwise/database"
	"fleetwise/orders"
	"fleetwise/web/types"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// SessionContext is the per-session state: the chat transcript and the order
// draft under review. Callers hold the lock for the duration of a turn.
type SessionContext struct {
	ID       uuid.UUID
	Messages []types.AgentMessage
	Draft    *orders.Draft

	mu sync.Mutex
}

func (sc *SessionContext) Lock()   { sc.mu.Lock() }
func (sc *SessionContext) Unlock() { sc.mu.Unlock() }

// SessionService keeps recently used sessions in memory. When a store is
// configured, transcripts of sessions not in memory are reloaded from it.
type SessionService struct {
	cache  *lru.Cache
	store  *database.PostgresStore
	logger *zap.Logger
	mu     sync.Mutex
}

func NewSessionService(size int, store *database.PostgresStore, logger *zap.Logger) (*SessionService, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &SessionService{
		cache:  cache,
		store:  store,
		logger: logger,
	}, nil
}

// Get returns the session context for id, creating it on first use.
func (ss *SessionService) Get(ctx context.Context, id uuid.UUID) *SessionContext {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if v, ok := ss.cache.Get(id); ok {
		return v.(*SessionContext)
	}

	sc := &SessionContext{ID: id, Messages: []types.AgentMessage{}}
	if ss.store != nil {
		if err := ss.store.EnsureSession(ctx, id); err != nil {
			ss.logger.Warn("Failed to ensure session row", zap.Error(err), zap.String("session_id", id.String()))
		}
		stored, err := ss.store.GetMessagesBySession(ctx, id)
		if err != nil {
			ss.logger.Warn("Failed to load session transcript, starting empty",
				zap.Error(err),
				zap.String("session_id", id.String()))
		}
		for _, m := range stored {
			sc.Messages = append(sc.Messages, types.AgentMessage{Role: m.Role, Content: m.Content})
		}
	}
	ss.cache.Add(id, sc)
	return sc
}

// Reset clears a session's transcript and draft.
func (ss *SessionService) Reset(ctx context.Context, id uuid.UUID) error {
	sc := ss.Get(ctx, id)
	sc.Lock()
	defer sc.Unlock()

	sc.Messages = []types.AgentMessage{}
	sc.Draft = nil
	if ss.store != nil {
		if err := ss.store.DeleteMessagesBySession(ctx, id); err != nil {
			return fmt.Errorf("delete session messages: %w", err)
		}
	}
	return nil
}

// Forget drops a session from memory.
func (ss *SessionService) Forget(id uuid.UUID) {
	ss.cache.Remove(id)
}

// Len reports how many sessions are held in memory.
func (ss *SessionService) Len() int {
	return ss.cache.Len()
}
