package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetwise/config"
	"fleetwise/database"
	"fleetwise/web/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// routedCompleter answers by prompt shape: one user message is a synthesis
// call, four messages an answer summary, two messages small talk.
type routedCompleter struct {
	mu        sync.Mutex
	synthesis string
	summary   string
	smallTalk string
	err       error
	prompts   [][]types.AgentMessage
}

func (c *routedCompleter) Chat(ctx context.Context, messages []types.AgentMessage) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, messages)
	c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	switch len(messages) {
	case 1:
		return c.synthesis, nil
	case 4:
		return c.summary, nil
	default:
		return c.smallTalk, nil
	}
}

func (c *routedCompleter) synthesisPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.prompts {
		if len(p) == 1 {
			return p[0].Content
		}
	}
	return ""
}

type fleetStore struct {
	findCalls int
	docs      []bson.D
}

func (s *fleetStore) ListCollections(ctx context.Context) ([]string, error) {
	return []string{"fleets"}, nil
}

func (s *fleetStore) FindOne(ctx context.Context, collection string, filter bson.D) (bson.D, error) {
	if len(s.docs) == 0 {
		return nil, nil
	}
	return s.docs[0], nil
}

func (s *fleetStore) Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.D, error) {
	return s.docs, nil
}

func (s *fleetStore) Find(ctx context.Context, collection string, filter bson.D, opts database.FindOptions) ([]bson.D, error) {
	s.findCalls++
	return s.docs, nil
}

func (s *fleetStore) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return int64(len(s.docs)), nil
}

func testConfig() *config.Config {
	return &config.Config{
		StoreQueryTimeout:      time.Second,
		SchemaFieldCap:         20,
		SchemaCharBudget:       5000,
		SchemaExpandCollection: "tripplanners",
		HistoryWindow:          5,
		DataQueryKeywords:      config.DefaultDataQueryKeywords,
		BusinessCodeFields:     []string{"package_code"},
	}
}

func newFleetStore() *fleetStore {
	return &fleetStore{docs: []bson.D{
		{{Key: "short_name", Value: "Fleet A"}},
		{{Key: "short_name", Value: "Fleet B"}},
	}}
}

func TestRespondAnswersDataQuestion(t *testing.T) {
	llm := &routedCompleter{
		synthesis: "```javascript\ndb.fleets.find({}, {\"short_name\": 1, \"_id\": 0})\n```",
		summary:   "There are two fleets: Fleet A and Fleet B.",
		smallTalk: "Hello!",
	}
	store := newFleetStore()
	a := NewAgent(testConfig(), llm, store, zap.NewNop())

	resp := a.Respond(context.Background(), "list all fleets", []types.AgentMessage{
		{Role: types.RoleUser, Content: "list all fleets"},
	})

	assert.Equal(t, "There are two fleets: Fleet A and Fleet B.", resp.Answer)
	assert.Equal(t, `db.fleets.find({}, {"short_name": 1, "_id": 0})`, resp.Query)
	assert.True(t, resp.HasQuery())
	assert.Equal(t, []string{"short_name"}, resp.Table.Columns)
	assert.Equal(t, [][]any{{"Fleet A"}, {"Fleet B"}}, resp.Table.Rows)
	assert.Equal(t, 1, store.findCalls)

	prompt := llm.synthesisPrompt()
	assert.Contains(t, prompt, "Current User Question: list all fleets")
	assert.Contains(t, prompt, `"short_name"`)
	assert.Contains(t, prompt, "User: list all fleets")
}

func TestRespondDropsContractFilterForOrdinaryQuestions(t *testing.T) {
	llm := &routedCompleter{
		synthesis: "db.fleets.find({\"contracter_details.contract_number\": {\"$ne\": \"\"}, \"short_name\": \"Fleet A\"})",
		summary:   "Fleet A is in the fleet list.",
		smallTalk: "Hello!",
	}
	store := newFleetStore()
	a := NewAgent(testConfig(), llm, store, zap.NewNop())

	resp := a.Respond(context.Background(), "show fleet A", nil)

	assert.Equal(t, "Fleet A is in the fleet list.", resp.Answer)
	assert.Equal(t, `db.fleets.find({"short_name": "Fleet A"})`, resp.Query)
	assert.Equal(t, 1, store.findCalls)
}

func TestSynthesisPromptAsksForContractFilterOnlyOnRequest(t *testing.T) {
	llm := &routedCompleter{synthesis: "db.fleets.find({})"}
	s := NewSynthesizer(testConfig(), llm, newFleetStore(), zap.NewNop())

	_, err := s.Synthesize(context.Background(), "list contract fleets", "")
	require.NoError(t, err)

	prompt := llm.synthesisPrompt()
	assert.Contains(t, prompt, `Only when the user asks about contract fleets, filter with "contracter_details.contract_number": {"$ne": ""}.`)
	assert.NotContains(t, prompt, "exclude them")
}

func TestRespondFallsBackToApologyWhenCompletionAlwaysFails(t *testing.T) {
	llm := &routedCompleter{err: errors.New("completion service unavailable")}
	store := newFleetStore()
	a := NewAgent(testConfig(), llm, store, zap.NewNop())

	resp := a.Respond(context.Background(), "how many trips are scheduled", nil)

	assert.Equal(t, ApologyText, resp.Answer)
	assert.Equal(t, types.NoQueryMarker, resp.Query)
	assert.False(t, resp.HasQuery())
	assert.Empty(t, resp.Table.Rows)
	assert.Zero(t, store.findCalls)
}

func TestRespondSmallTalkSkipsQueryPath(t *testing.T) {
	llm := &routedCompleter{smallTalk: "Hi! Ask me about trips or fleets."}
	store := newFleetStore()
	a := NewAgent(testConfig(), llm, store, zap.NewNop())

	resp := a.Respond(context.Background(), "hello there", nil)

	assert.Equal(t, "Hi! Ask me about trips or fleets.", resp.Answer)
	assert.Equal(t, types.NoQueryMarker, resp.Query)
	assert.Empty(t, llm.synthesisPrompt())
	assert.Zero(t, store.findCalls)
}

func TestRespondFallsBackOnRejectedQuery(t *testing.T) {
	tests := []struct {
		name      string
		synthesis string
	}{
		{"forbidden operator", "```\ndb.fleets.find({\"$where\": \"sleep(100)\"})\n```"},
		{"no query", "I am not sure how to answer that."},
		{"write operation", "db.fleets.drop()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &routedCompleter{synthesis: tt.synthesis, smallTalk: "I could not find that."}
			store := newFleetStore()
			a := NewAgent(testConfig(), llm, store, zap.NewNop())

			resp := a.Respond(context.Background(), "list all fleets", nil)

			assert.Equal(t, "I could not find that.", resp.Answer)
			assert.Equal(t, types.NoQueryMarker, resp.Query)
			assert.Zero(t, store.findCalls)
		})
	}
}

func TestSynthesizeMapsTripStatuses(t *testing.T) {
	llm := &routedCompleter{synthesis: "db.tripplanners.countDocuments({\"status\": 1})"}
	s := NewSynthesizer(testConfig(), llm, newFleetStore(), zap.NewNop())

	q, err := s.Synthesize(context.Background(), "how many scheduled trips", "")
	require.NoError(t, err)
	assert.Equal(t, `db.tripplanners.countDocuments({"status": 1})`, q)
	assert.Contains(t, llm.synthesisPrompt(), "Current User Question: how many scheduled trips with status 1")

	_, err = s.Synthesize(context.Background(), "how many scheduled fleets", "")
	require.NoError(t, err)
	prompts := llm.prompts
	last := prompts[len(prompts)-1][0].Content
	assert.True(t, strings.Contains(last, "Current User Question: how many scheduled fleets\n"))
}

func TestFormatHistory(t *testing.T) {
	history := []types.AgentMessage{
		{Role: types.RoleUser, Content: "one"},
		{Role: types.RoleAssistant, Content: "two"},
		{Role: types.RoleUser, Content: "three"},
		{Role: types.RoleAssistant, Content: "four"},
		{Role: types.RoleUser, Content: "five"},
		{Role: types.RoleAssistant, Content: "six"},
	}

	assert.Equal(t, "Assistant: two\nUser: three\nAssistant: four\nUser: five\nAssistant: six", FormatHistory(history, 5))
	assert.Equal(t, "User: five\nAssistant: six", FormatHistory(history, 2))
	assert.Equal(t, "", FormatHistory(nil, 5))
}
