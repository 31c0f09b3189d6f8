package agent

import (
	"context"
	"fmt"

	"fleetwise/config"
	"fleetwise/database"
	apperrors "fleetwise/errors"
	"fleetwise/metrics"
	"fleetwise/query"
	"fleetwise/web/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ApologyText is returned when neither the query path nor the small-talk
// fallback could produce an answer.
const ApologyText = "Sorry, I couldn't process your request right now. Please try again in a moment."

// Completer is the completion service the agent talks to.
type Completer interface {
	Chat(ctx context.Context, messages []types.AgentMessage) (string, error)
}

type Agent struct {
	cfg             *config.Config
	logger          *zap.Logger
	synthesizer     *Synthesizer
	executor        *query.Executor
	responseHandler *ResponseHandler
}

func NewAgent(cfg *config.Config, llm Completer, store database.DocumentStore, logger *zap.Logger) *Agent {
	logger.Info("Agent initialized",
		zap.Int("history_window", cfg.HistoryWindow),
		zap.Int("data_keywords", len(cfg.DataQueryKeywords)))

	return &Agent{
		cfg:             cfg,
		logger:          logger,
		synthesizer:     NewSynthesizer(cfg, llm, store, logger),
		executor:        query.NewExecutor(store, cfg.StoreQueryTimeout, logger),
		responseHandler: NewResponseHandler(llm, logger),
	}
}

// IsDataQuestion reports whether question mentions any data-intent keyword.
func (a *Agent) IsDataQuestion(question string) bool {
	return mentionsAny(question, a.cfg.DataQueryKeywords)
}

// Respond answers one chat turn. history holds the recent conversation,
// including the current question. The small-talk fallback is prepared
// alongside the query attempt and used whenever the query path fails. Respond
// never returns an error.
func (a *Agent) Respond(ctx context.Context, question string, history []types.AgentMessage) types.Response {
	historyText := FormatHistory(history, a.cfg.HistoryWindow)

	var (
		fallback    types.Response
		fallbackErr error
		answer      types.Response
		queryErr    error
	)

	var g errgroup.Group
	g.Go(func() error {
		fallback, fallbackErr = a.responseHandler.SmallTalk(ctx, question, historyText)
		return nil
	})
	dataQuestion := a.IsDataQuestion(question)
	if dataQuestion {
		g.Go(func() error {
			answer, queryErr = a.answerWithQuery(ctx, question, historyText)
			return nil
		})
	}
	_ = g.Wait()

	if dataQuestion {
		if queryErr == nil {
			metrics.RecordTurn(metrics.OutcomeAnswered)
			return answer
		}
		a.logger.Warn("Query path failed, using fallback response",
			zap.String("question", question),
			zap.Error(queryErr))
	}

	if fallbackErr != nil {
		a.logger.Error("Fallback response failed", zap.Error(fallbackErr))
		metrics.RecordTurn(metrics.OutcomeCannedReply)
		return types.Response{
			Answer: ApologyText,
			Query:  types.NoQueryMarker,
			Table:  types.Table{Columns: []string{}, Rows: [][]any{}},
		}
	}

	metrics.RecordTurn(outcomeFor(dataQuestion, queryErr))
	return fallback
}

func (a *Agent) answerWithQuery(ctx context.Context, question, history string) (types.Response, error) {
	q, err := a.synthesizer.Synthesize(ctx, question, history)
	if err != nil {
		return types.Response{}, err
	}
	if !query.IsValid(q) {
		return types.Response{}, apperrors.Kind(apperrors.ErrInvalidQuery, fmt.Errorf("unsupported query form: %q", q))
	}

	intent, err := query.ParseIntent(q)
	if err != nil {
		return types.Response{}, err
	}
	a.logger.Info("Executing query",
		zap.String("collection", intent.Collection),
		zap.String("op", string(intent.Op)))

	res, err := a.executor.Execute(ctx, intent)
	if err != nil {
		return types.Response{}, err
	}

	resp, err := a.responseHandler.ComposeAnswer(ctx, question, history, q, query.Normalize(res))
	if err != nil {
		return types.Response{}, apperrors.Kind(apperrors.ErrLLMCommunication, err)
	}
	return resp, nil
}

func outcomeFor(dataQuestion bool, err error) string {
	switch {
	case !dataQuestion:
		return metrics.OutcomeSmallTalk
	case apperrors.Is(err, apperrors.ErrInvalidQuery):
		return metrics.OutcomeInvalidQuery
	case apperrors.Is(err, apperrors.ErrExecution):
		return metrics.OutcomeExecutionError
	case apperrors.Is(err, apperrors.ErrSynthesis):
		return metrics.OutcomeSynthesisError
	default:
		return metrics.OutcomeSmallTalk
	}
}
