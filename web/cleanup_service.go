package web

import (
	"context"
	"fmt"
	"time"

	"fleetwise/database"
	"fleetwise/web/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CleanupService removes sessions that have been idle past the retention age.
type CleanupService struct {
	store    *database.PostgresStore
	sessions *services.SessionService
	logger   *zap.Logger
}

// NewCleanupService creates a new cleanup service instance
func NewCleanupService(store *database.PostgresStore, sessions *services.SessionService, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// CleanupStaleSessions finds and deletes sessions inactive for longer than maxAge.
// Returns the number of sessions deleted and any error encountered
func (cs *CleanupService) CleanupStaleSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoffTime := time.Now().Add(-maxAge)

	cs.logger.Info("Starting stale session cleanup",
		zap.Time("cutoff_time", cutoffTime),
		zap.Duration("max_age", maxAge))

	staleSessions, err := cs.store.GetStaleSessions(ctx, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to get stale sessions: %w", err)
	}

	if len(staleSessions) == 0 {
		cs.logger.Debug("No stale sessions found")
		return 0, nil
	}

	deletedCount := 0
	for _, sessionID := range staleSessions {
		if err := cs.DeleteSession(ctx, sessionID); err != nil {
			cs.logger.Error("Failed to delete stale session",
				zap.Error(err),
				zap.String("session_id", sessionID.String()))
			// Continue with other sessions even if one fails
			continue
		}
		deletedCount++
	}

	cs.logger.Info("Stale session cleanup completed",
		zap.Int("sessions_deleted", deletedCount),
		zap.Int("sessions_failed", len(staleSessions)-deletedCount))

	return deletedCount, nil
}

// DeleteSession removes a session from the store (messages cascade) and
// from memory.
func (cs *CleanupService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if err := cs.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session from database: %w", err)
	}
	cs.sessions.Forget(sessionID)
	return nil
}

// Run cleans up once immediately and then on every interval until ctx is done.
func (cs *CleanupService) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := cs.CleanupStaleSessions(ctx, maxAge); err != nil {
			cs.logger.Error("Session cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
