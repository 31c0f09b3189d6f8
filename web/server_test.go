package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fleetwise/config"
	"fleetwise/orders"
	"fleetwise/web/middleware"
	"fleetwise/web/services"
	"fleetwise/web/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoResponder struct {
	mu        sync.Mutex
	histories [][]types.AgentMessage
}

func (r *echoResponder) Respond(ctx context.Context, question string, history []types.AgentMessage) types.Response {
	r.mu.Lock()
	r.histories = append(r.histories, append([]types.AgentMessage(nil), history...))
	r.mu.Unlock()
	return types.Response{
		Answer: "**Answer:** " + question,
		Query:  types.NoQueryMarker,
		Table:  types.Table{Columns: []string{}, Rows: [][]any{}},
	}
}

type fixedParser struct{}

func (fixedParser) Parse(ctx context.Context, message string) *orders.ParsedOrder {
	return &orders.ParsedOrder{
		CustomerName: "Aavin Depot 1",
		SalesArea:    "Chennai",
		Items: []orders.Item{
			{Item: "Toned Milk 1L", Quantity: 5, UOM: "Packet"},
			{Item: "Paneer 200g", Quantity: 2, UOM: "Packet"},
		},
	}
}

type testClient struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (tc *testClient) do(method, path, body string) *httptest.ResponseRecorder {
	tc.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}
	w := httptest.NewRecorder()
	tc.handler.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			tc.cookie = c
		}
	}
	return w
}

func newTestServer(t *testing.T, responder services.Responder) *testClient {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{RateLimitMessagesPerMin: 600, RateLimitBurstSize: 100}

	sessions, err := services.NewSessionService(16, nil, logger)
	require.NoError(t, err)
	chat := services.NewChatService(responder, sessions, nil, logger)
	orderService := services.NewOrderService(fixedParser{}, sessions, nil, logger)

	srv := NewServer(chat, orderService, sessions, logger, cfg)
	t.Cleanup(srv.rateLimiter.Stop)
	return &testClient{t: t, handler: srv.Handler()}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	tc := newTestServer(t, &echoResponder{})
	w := tc.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestChatKeepsSessionHistory(t *testing.T) {
	responder := &echoResponder{}
	tc := newTestServer(t, responder)

	w := tc.do(http.MethodPost, "/api/chat", `{"message":"how many trips today"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, tc.cookie)

	var resp types.Response
	decode(t, w, &resp)
	assert.Equal(t, "**Answer:** how many trips today", resp.Answer)
	assert.Contains(t, resp.AnswerHTML, "<strong>Answer:</strong>")
	assert.Equal(t, types.NoQueryMarker, resp.Query)

	w = tc.do(http.MethodPost, "/api/chat", `{"message":"and yesterday"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, responder.histories, 2)
	assert.Equal(t, []types.AgentMessage{
		{Role: types.RoleUser, Content: "how many trips today"},
		{Role: types.RoleAssistant, Content: "**Answer:** how many trips today"},
		{Role: types.RoleUser, Content: "and yesterday"},
	}, responder.histories[1])

	w = tc.do(http.MethodDelete, "/api/chat", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	tc.do(http.MethodPost, "/api/chat", `{"message":"hello"}`)
	require.Len(t, responder.histories, 3)
	assert.Equal(t, []types.AgentMessage{{Role: types.RoleUser, Content: "hello"}}, responder.histories[2])
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	tc := newTestServer(t, &echoResponder{})
	w := tc.do(http.MethodPost, "/api/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderDraftFlow(t *testing.T) {
	tc := newTestServer(t, &echoResponder{})

	w := tc.do(http.MethodGet, "/api/orders/draft", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = tc.do(http.MethodPost, "/api/orders/parse", `{"message":"Toned milk - 5\nPaneer - 2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var view orders.DraftView
	decode(t, w, &view)
	assert.Equal(t, "Aavin Depot 1", view.CustomerName)
	require.Len(t, view.Items, 2)

	w = tc.do(http.MethodPatch, "/api/orders/draft", `{"sales_area":"Madurai"}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, "Aavin Depot 1", view.CustomerName)
	assert.Equal(t, "Madurai", view.SalesArea)

	w = tc.do(http.MethodPost, "/api/orders/draft/items", `{"item":"Curd 500g","quantity":3,"uom":"Cup"}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	require.Len(t, view.Items, 3)
	assert.Equal(t, 2, view.Items[2].Index)

	w = tc.do(http.MethodPut, "/api/orders/draft/items/0", `{"item":"Toned Milk 1L","quantity":0,"uom":"Packet"}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Paneer 200g", view.Items[0].Item.Item)

	w = tc.do(http.MethodDelete, "/api/orders/draft/items/9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = tc.do(http.MethodDelete, "/api/orders/draft/items/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do(http.MethodPut, "/api/orders/draft/items/1", `{"item":"Paneer 200g","quantity":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = tc.do(http.MethodPost, "/api/orders", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var created services.CreatedOrder
	decode(t, w, &created)
	assert.Equal(t, "Madurai", created.SalesArea)
	assert.Len(t, created.Items, 2)
	assert.NotEmpty(t, created.OrderedDate)

	w = tc.do(http.MethodGet, "/api/orders/draft", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrderRequiresVisibleItems(t *testing.T) {
	tc := newTestServer(t, &echoResponder{})

	tc.do(http.MethodPost, "/api/orders/parse", `{"message":"order"}`)
	tc.do(http.MethodPut, "/api/orders/draft/items/0", `{"item":"Toned Milk 1L","quantity":0}`)
	tc.do(http.MethodDelete, "/api/orders/draft/items/1", "")

	w := tc.do(http.MethodPost, "/api/orders", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestChatRateLimited(t *testing.T) {
	logger := zap.NewNop()
	sessions, err := services.NewSessionService(16, nil, logger)
	require.NoError(t, err)
	chat := services.NewChatService(&echoResponder{}, sessions, nil, logger)
	orderService := services.NewOrderService(fixedParser{}, sessions, nil, logger)
	srv := NewServer(chat, orderService, sessions, logger, &config.Config{RateLimitMessagesPerMin: 1, RateLimitBurstSize: 1})
	t.Cleanup(srv.rateLimiter.Stop)
	tc := &testClient{t: t, handler: srv.Handler()}

	assert.Equal(t, http.StatusOK, tc.do(http.MethodPost, "/api/chat", `{"message":"hi"}`).Code)
	w := tc.do(http.MethodPost, "/api/chat", `{"message":"hi again"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
