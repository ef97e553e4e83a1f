package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wuwenbin0122/assistant-relay/internal/assistant"
	"github.com/wuwenbin0122/assistant-relay/internal/assistant/assistanttest"
	"github.com/wuwenbin0122/assistant-relay/internal/chat"
	"github.com/wuwenbin0122/assistant-relay/internal/limiter"
)

func setupTestRouter(t *testing.T, fake *assistanttest.Fake, registry *chat.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if registry == nil {
		registry = chat.NewSingleAssistant("asst_default")
	}

	lim := limiter.New(10)
	client := assistant.NewLimitedClient(fake, lim)
	poller := chat.NewPoller(client, time.Millisecond, 0, nil)
	service := chat.NewService(client, registry, poller, nil, nil)

	router := gin.New()
	router.Use(RequestLogger(nil))
	NewHandler(service, lim, nil).RegisterRoutes(router)

	return router
}

func variantRegistry(t *testing.T) *chat.Registry {
	t.Helper()
	registry, err := chat.NewRegistry(
		chat.Variant{Label: "tutor", AssistantID: "asst_tutor", ForceFileSearch: true},
		chat.Variant{Label: "grader", AssistantID: "asst_grader", ForceFileSearch: true},
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func TestChatCreatesThread(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusQueued, assistant.RunStatusCompleted)
	fake.Reply = assistanttest.TextReply("Hello")
	router := setupTestRouter(t, fake, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/chat", map[string]string{"message": "hi"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["message"] != "Hello" {
		t.Fatalf("expected Hello, got %q", resp["message"])
	}
	if !strings.HasPrefix(resp["thread_id"], "thread_") {
		t.Fatalf("expected new thread id, got %q", resp["thread_id"])
	}
	if got := rec.Header().Get(HeaderRunStatus); got != "completed" {
		t.Fatalf("expected run status header completed, got %q", got)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestChatExistingThreadEchoesThreadID(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusCompleted)
	fake.Reply = assistanttest.TextReply("again")
	router := setupTestRouter(t, fake, nil)

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/chat_existing_thread", map[string]string{
		"message":   "hi",
		"thread_id": "thread_abc",
	})
	req.Header.Set(HeaderRequestID, "req-42")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["thread_id"] != "thread_abc" || resp["message"] != "again" {
		t.Fatalf("unexpected response %v", resp)
	}
	if got := rec.Header().Get(HeaderRequestID); got != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
	if got := fake.Calls(assistanttest.MethodCreateThread); got != 0 {
		t.Fatalf("expected no thread creation, got %d", got)
	}
}

func TestChatFailedRunIsStillOK(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusFailed)
	router := setupTestRouter(t, fake, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/chat_existing_thread", map[string]string{
		"message":   "hi",
		"thread_id": "thread_abc",
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["message"] != "Assistant run failed" || resp["thread_id"] != "thread_abc" {
		t.Fatalf("unexpected response %v", resp)
	}
	if got := rec.Header().Get(HeaderRunStatus); got != "failed" {
		t.Fatalf("expected run status header failed, got %q", got)
	}
}

func TestChatInvalidAssistantType(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusCompleted)
	router := setupTestRouter(t, fake, variantRegistry(t))

	for _, header := range []string{"unknown_label", ""} {
		rec := httptest.NewRecorder()
		req := newJSONRequest(t, http.MethodPost, "/chat", map[string]string{"message": "hi"})
		if header != "" {
			req.Header.Set(HeaderAssistantType, header)
		}
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("header %q: expected status 400, got %d", header, rec.Code)
		}

		var resp map[string]string
		decodeBody(t, rec.Body.Bytes(), &resp)
		if resp["detail"] != "Invalid assistant type" {
			t.Fatalf("unexpected detail %q", resp["detail"])
		}
	}

	if got := fake.Calls(assistanttest.MethodCreateRun); got != 0 {
		t.Fatalf("expected no runs to be created, got %d", got)
	}
}

func TestChatSelectsVariantFromHeader(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusCompleted)
	fake.Reply = assistanttest.TextReply("graded")
	router := setupTestRouter(t, fake, variantRegistry(t))

	rec := httptest.NewRecorder()
	req := newJSONRequest(t, http.MethodPost, "/chat", map[string]string{"message": "grade this"})
	req.Header.Set(HeaderAssistantType, "grader")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	params := fake.RunParams()
	if len(params) != 1 || params[0].AssistantID != "asst_grader" || !params[0].ForceFileSearch {
		t.Fatalf("unexpected run params %+v", params)
	}
}

func TestChatUpstreamErrorIs500(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusCompleted)
	fake.Errors = map[string]error{
		assistanttest.MethodCreateThread: errors.New("create thread: assistant api error (401): Incorrect API key provided"),
	}
	router := setupTestRouter(t, fake, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/chat", map[string]string{"message": "hi"}))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}

	var resp map[string]string
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["detail"] != "create thread: assistant api error (401): Incorrect API key provided" {
		t.Fatalf("unexpected detail %q", resp["detail"])
	}
}

func TestChatRejectsInvalidPayload(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusCompleted)
	router := setupTestRouter(t, fake, nil)

	cases := []struct {
		path string
		body any
	}{
		{"/chat", map[string]string{}},
		{"/chat_existing_thread", map[string]string{"message": "hi"}},
		{"/chat_existing_thread", map[string]string{"message": "hi", "thread_id": "  "}},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, tc.path, tc.body))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s %v: expected status 422, got %d", tc.path, tc.body, rec.Code)
		}
	}

	if got := fake.Calls(assistanttest.MethodCreateMessage); got != 0 {
		t.Fatalf("expected no upstream messages, got %d", got)
	}
}

func TestChatAcceptsEmptyMessage(t *testing.T) {
	fake := assistanttest.New(assistant.RunStatusCompleted)
	router := setupTestRouter(t, fake, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newJSONRequest(t, http.MethodPost, "/chat", map[string]string{"message": ""}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(t, assistanttest.New(), variantRegistry(t))

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]any
	decodeBody(t, rec.Body.Bytes(), &resp)
	if resp["status"] != "ok" || resp["mode"] != "variants" {
		t.Fatalf("unexpected health response %v", resp)
	}
	limiterInfo, ok := resp["limiter"].(map[string]any)
	if !ok || limiterInfo["capacity"] != float64(10) {
		t.Fatalf("unexpected limiter info %v", resp["limiter"])
	}
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req, err := http.NewRequest(method, path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
