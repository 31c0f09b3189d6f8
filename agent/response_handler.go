package agent

import (
	"context"
	"fmt"

	"fleetwise/prompts"
	"fleetwise/query"
	"fleetwise/web/types"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ResponseHandler turns query results, or the lack of them, into the
// user-facing answer.
type ResponseHandler struct {
	llm    Completer
	logger *zap.Logger
}

// NewResponseHandler creates a new response handler instance.
func NewResponseHandler(llm Completer, logger *zap.Logger) *ResponseHandler {
	return &ResponseHandler{
		llm:    llm,
		logger: logger,
	}
}

// ComposeAnswer summarizes rows for the question. The full serialized result
// set goes into the prompt.
func (r *ResponseHandler) ComposeAnswer(ctx context.Context, question, history, q string, rows []bson.D) (types.Response, error) {
	results, err := query.RowsJSON(rows)
	if err != nil {
		return types.Response{}, fmt.Errorf("serialize results: %w", err)
	}

	system := prompts.Render(prompts.AnswerSummary(), map[string]string{
		"history":  history,
		"question": question,
		"query":    q,
		"results":  results,
	})
	messages := []types.AgentMessage{
		{Role: types.RoleSystem, Content: system},
		{Role: types.RoleUser, Content: question},
		{Role: types.RoleUser, Content: "The MongoDB query executed was: " + q},
		{Role: types.RoleUser, Content: "The raw results are: " + results},
	}

	answer, err := r.llm.Chat(ctx, messages)
	if err != nil {
		return types.Response{}, err
	}
	return types.Response{
		Answer: answer,
		Query:  q,
		Table:  query.ToTable(rows),
	}, nil
}

// SmallTalk answers without consulting the database.
func (r *ResponseHandler) SmallTalk(ctx context.Context, question, history string) (types.Response, error) {
	system := prompts.Render(prompts.SmallTalk(), map[string]string{
		"history":  history,
		"question": question,
	})
	messages := []types.AgentMessage{
		{Role: types.RoleSystem, Content: system},
		{Role: types.RoleUser, Content: question},
	}

	answer, err := r.llm.Chat(ctx, messages)
	if err != nil {
		return types.Response{}, err
	}
	return types.Response{
		Answer: answer,
		Query:  types.NoQueryMarker,
		Table:  types.Table{Columns: []string{}, Rows: [][]any{}},
	}, nil
}
