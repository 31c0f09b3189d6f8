package services

import (
	"context"
	"time"

	"fleetwise/database"
	"fleetwise/web/format"
	"fleetwise/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Responder answers one chat turn.
type Responder interface {
	Respond(ctx context.Context, question string, history []types.AgentMessage) types.Response
}

type ChatService struct {
	agent    Responder
	sessions *SessionService
	store    *database.PostgresStore
	logger   *zap.Logger
}

func NewChatService(agent Responder, sessions *SessionService, store *database.PostgresStore, logger *zap.Logger) *ChatService {
	return &ChatService{
		agent:    agent,
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// HandleMessage runs one turn for the session. Turns of the same session are
// serialized.
func (cs *ChatService) HandleMessage(ctx context.Context, sessionID uuid.UUID, text string) types.Response {
	sc := cs.sessions.Get(ctx, sessionID)
	sc.Lock()
	defer sc.Unlock()

	userMsg := types.AgentMessage{Role: types.RoleUser, Content: text}
	sc.Messages = append(sc.Messages, userMsg)

	resp := cs.agent.Respond(ctx, text, sc.Messages)
	resp.AnswerHTML = format.ToHTML(resp.Answer)

	assistantMsg := types.AgentMessage{Role: types.RoleAssistant, Content: resp.Answer}
	sc.Messages = append(sc.Messages, assistantMsg)

	cs.persist(sessionID, userMsg, assistantMsg)
	return resp
}

// persist saves the turn. It runs on a fresh context so a cancelled request
// does not lose the transcript.
func (cs *ChatService) persist(sessionID uuid.UUID, msgs ...types.AgentMessage) {
	if cs.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, m := range msgs {
		err := cs.store.CreateMessage(ctx, types.ChatMessage{
			ID:        uuid.New().String(),
			SessionID: sessionID.String(),
			Role:      m.Role,
			Content:   m.Content,
		})
		if err != nil {
			cs.logger.Error("Failed to save chat message",
				zap.Error(err),
				zap.String("session_id", sessionID.String()),
				zap.String("role", m.Role))
			return
		}
	}
}
