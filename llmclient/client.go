package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"fleetwise/config"
	apperrors "fleetwise/errors"
	"fleetwise/metrics"
	"fleetwise/web/types"

	"go.uber.org/zap"
)

// ErrContextWindowExceeded is returned when the model reports the prompt
// exceeds the available context size.
var ErrContextWindowExceeded = apperrors.New("context window exceeded")

type chatRequest struct {
	Model       string               `json:"model,omitempty"`
	Messages    []types.AgentMessage `json:"messages"`
	N           int                  `json:"n"`
	Stream      bool                 `json:"stream"`
	Temperature *float64             `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message types.AgentMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint. One
// candidate is requested per call; there is no streaming or tool calling.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMRequestTimeout},
		logger:     logger,
	}
}

// Chat performs a non-streaming chat completion call and returns the text of
// the first choice. An empty completion is reported as an error.
func (c *Client) Chat(ctx context.Context, messages []types.AgentMessage) (string, error) {
	if c.cfg.LLMRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LLMRequestTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.chat(ctx, messages)
	metrics.ObserveCompletion(time.Since(start), err)
	return text, err
}

func (c *Client) chat(ctx context.Context, messages []types.AgentMessage) (string, error) {
	reqBody := chatRequest{
		Model:    c.cfg.LLMModel,
		Messages: messages,
		N:        1,
		Stream:   false,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.cfg.LLMHost, "/"))

	attempts := c.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return "", fmt.Errorf("create chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.LLMAPIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			resp = nil
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			c.backoffSleep(ctx, attempt)
			continue
		}
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("llm server status %s", resp.Status)
			resp = nil
			c.logger.Warn("LLM service unavailable, retrying", zap.Int("attempt", attempt+1))
			c.backoffSleep(ctx, attempt)
			continue
		}
		break
	}
	if resp == nil {
		var netErr net.Error
		if ctx.Err() == context.DeadlineExceeded || (apperrors.As(lastErr, &netErr) && netErr.Timeout()) {
			return "", apperrors.Kind(apperrors.ErrTimeout, lastErr)
		}
		return "", apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("no response from LLM server: %w", lastErr))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("read chat response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(string(bodyBytes), "exceeds the available context size") {
			return "", apperrors.Kind(apperrors.ErrLLMCommunication, ErrContextWindowExceeded)
		}
		return "", apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("llm server status %s: %s", resp.Status, string(bodyBytes)))
	}

	var cr chatResponse
	if err := json.Unmarshal(bodyBytes, &cr); err != nil {
		return "", apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("decode chat response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return "", apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("no response choices from llm server"))
	}
	content := cr.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("empty completion"))
	}
	return content, nil
}

func (c *Client) backoffSleep(ctx context.Context, attempt int) {
	// Exponential backoff with configurable jitter and cap
	base := c.cfg.RetryDelaySeconds
	if base <= 0 {
		base = time.Second
	}
	d := base * time.Duration(1<<attempt)
	maxWait := c.cfg.LLMBackoffMaxSeconds
	if maxWait > 0 && d > maxWait {
		d = maxWait
	}
	jitterRatio := c.cfg.LLMBackoffJitterRatio
	if jitterRatio < 0 || jitterRatio > 1 {
		jitterRatio = 0.1
	}
	jitter := time.Duration(float64(d) * jitterRatio)
	wait := d - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter+1))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
