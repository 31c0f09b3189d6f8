package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "fleetwise/errors"
	"fleetwise/web/types"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// PostgresStore persists chat transcripts and created orders. It is optional:
// the chat and order pipelines work without it.
type PostgresStore struct {
	DB     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, apperrors.Kind(apperrors.ErrDatabaseOperation, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Kind(apperrors.ErrDatabaseOperation, err)
	}
	logger.Info("Successfully connected to the database")
	return &PostgresStore{DB: db, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id UUID PRIMARY KEY,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            last_active TIMESTAMPTZ DEFAULT NOW(),
            title TEXT DEFAULT '',
            is_active BOOLEAN DEFAULT TRUE
        )`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active DESC)`,
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            session_id UUID REFERENCES sessions(id) ON DELETE CASCADE,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session_created_at ON messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY,
            session_id UUID REFERENCES sessions(id) ON DELETE SET NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// EnsureSession inserts the session row if it is missing.
func (s *PostgresStore) EnsureSession(ctx context.Context, sessionID uuid.UUID) error {
	now := time.Now()
	title := fmt.Sprintf("Chat from %s", now.Format("January 2, 2006"))
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO sessions (id, created_at, last_active, title, is_active)
        VALUES ($1, $2, $3, $4, true)
        ON CONFLICT (id) DO NOTHING
    `, sessionID, now, now, title)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg types.ChatMessage) error {
	messageUUID, err := uuid.Parse(msg.ID)
	if err != nil {
		return fmt.Errorf("invalid message ID: %w", err)
	}
	sessionUUID, err := uuid.Parse(msg.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session ID in message: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, messageUUID, sessionUUID, msg.Role, msg.Content, time.Now())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE sessions SET last_active = $1 WHERE id = $2`, time.Now(), sessionUUID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) GetMessagesBySession(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, session_id, role, content FROM messages
		WHERE session_id = $1 ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		var sessionUUID uuid.UUID
		if err := rows.Scan(&msg.ID, &sessionUUID, &msg.Role, &msg.Content); err != nil {
			return nil, err
		}
		msg.SessionID = sessionUUID.String()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteMessagesBySession clears a session's transcript (chat reset).
func (s *PostgresStore) DeleteMessagesBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
	return err
}

// CreateOrder stores a created order's JSON payload.
func (s *PostgresStore) CreateOrder(ctx context.Context, orderID, sessionID uuid.UUID, payload []byte) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, orderID, sessionID, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetStaleSessions returns ids of sessions inactive since before cutoff.
func (s *PostgresStore) GetStaleSessions(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM sessions WHERE last_active < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession removes a session and, by cascade, its messages.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}
