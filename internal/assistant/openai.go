package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultHTTPTimeout = 60 * time.Second
	betaHeaderValue    = "assistants=v2"
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient implements Client against the Assistants v2 REST API.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  httpDoer
	logger  *zap.Logger
}

func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIClient{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type createRunRequest struct {
	AssistantID string      `json:"assistant_id"`
	Tools       []toolSpec  `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
}

type toolSpec struct {
	Type string `json:"type"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type messageList struct {
	Data    []Message `json:"data"`
	HasMore bool      `json:"has_more"`
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (Thread, error) {
	var thread Thread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

func (c *OpenAIClient) CreateMessage(ctx context.Context, threadID string, msg MessageInput) (Message, error) {
	var message Message
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, msg, &message); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return message, nil
}

func (c *OpenAIClient) CreateRun(ctx context.Context, threadID string, params RunParams) (Run, error) {
	payload := createRunRequest{AssistantID: params.AssistantID}
	if params.ForceFileSearch {
		payload.Tools = []toolSpec{{Type: ToolFileSearch}}
		payload.ToolChoice = &toolChoice{Type: ToolFileSearch}
	}

	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs"
	if err := c.do(ctx, http.MethodPost, path, payload, &run); err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (c *OpenAIClient) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return Run{}, fmt.Errorf("retrieve run: %w", err)
	}
	return run, nil
}

// ListMessages returns the first page of thread messages in the provider's
// default order, newest first.
func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var list messageList
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return list.Data, nil
}

func (c *OpenAIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("OpenAI-Beta", betaHeaderValue)
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("call assistant api: %w", err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("assistant api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return buildAPIError(response.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
