// Package assistanttest provides an in-memory assistant.Client for tests.
package assistanttest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wuwenbin0122/assistant-relay/internal/assistant"
)

const (
	MethodCreateThread  = "CreateThread"
	MethodCreateMessage = "CreateMessage"
	MethodCreateRun     = "CreateRun"
	MethodRetrieveRun   = "RetrieveRun"
	MethodListMessages  = "ListMessages"
)

// Fake walks every run through Statuses, one entry per RetrieveRun call; the
// last entry repeats. When a run is first observed as completed, an assistant
// message carrying Reply is added to the thread unless SkipReply is set.
type Fake struct {
	Statuses  []assistant.RunStatus
	Reply     []assistant.ContentBlock
	SkipReply bool
	Delay     time.Duration
	Errors    map[string]error

	mu      sync.Mutex
	threads map[string][]assistant.Message
	runs    map[string]*fakeRun
	calls   map[string]int
	params  []assistant.RunParams

	inFlight atomic.Int64
	peak     atomic.Int64
}

type fakeRun struct {
	threadID string
	polls    int
	replied  bool
}

func New(statuses ...assistant.RunStatus) *Fake {
	return &Fake{Statuses: statuses}
}

// TextReply returns a single text content block.
func TextReply(value string) []assistant.ContentBlock {
	return []assistant.ContentBlock{{Type: assistant.ContentTypeText, Text: &assistant.TextContent{Value: value}}}
}

func (f *Fake) CreateThread(ctx context.Context) (assistant.Thread, error) {
	defer f.enter(MethodCreateThread)()
	if err := f.err(MethodCreateThread); err != nil {
		return assistant.Thread{}, err
	}

	id := "thread_" + uuid.NewString()
	f.mu.Lock()
	f.ensureLocked()
	f.threads[id] = nil
	f.mu.Unlock()

	return assistant.Thread{ID: id}, nil
}

func (f *Fake) CreateMessage(ctx context.Context, threadID string, msg assistant.MessageInput) (assistant.Message, error) {
	defer f.enter(MethodCreateMessage)()
	if err := f.err(MethodCreateMessage); err != nil {
		return assistant.Message{}, err
	}

	message := assistant.Message{
		ID:       "msg_" + uuid.NewString(),
		ThreadID: threadID,
		Role:     msg.Role,
		Content:  TextReply(msg.Content),
	}

	f.mu.Lock()
	f.ensureLocked()
	f.threads[threadID] = prepend(f.threads[threadID], message)
	f.mu.Unlock()

	return message, nil
}

func (f *Fake) CreateRun(ctx context.Context, threadID string, params assistant.RunParams) (assistant.Run, error) {
	defer f.enter(MethodCreateRun)()
	if err := f.err(MethodCreateRun); err != nil {
		return assistant.Run{}, err
	}

	id := "run_" + uuid.NewString()
	f.mu.Lock()
	f.ensureLocked()
	f.runs[id] = &fakeRun{threadID: threadID}
	f.params = append(f.params, params)
	f.mu.Unlock()

	return assistant.Run{ID: id, ThreadID: threadID, AssistantID: params.AssistantID, Status: assistant.RunStatusQueued}, nil
}

func (f *Fake) RetrieveRun(ctx context.Context, threadID, runID string) (assistant.Run, error) {
	defer f.enter(MethodRetrieveRun)()
	if err := f.err(MethodRetrieveRun); err != nil {
		return assistant.Run{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLocked()

	run, ok := f.runs[runID]
	if !ok {
		run = &fakeRun{threadID: threadID}
		f.runs[runID] = run
	}

	status := assistant.RunStatusCompleted
	if len(f.Statuses) > 0 {
		idx := run.polls
		if idx >= len(f.Statuses) {
			idx = len(f.Statuses) - 1
		}
		status = f.Statuses[idx]
	}
	run.polls++

	if status == assistant.RunStatusCompleted && !run.replied && !f.SkipReply {
		run.replied = true
		f.threads[threadID] = prepend(f.threads[threadID], assistant.Message{
			ID:       "msg_" + uuid.NewString(),
			ThreadID: threadID,
			Role:     assistant.RoleAssistant,
			Content:  f.Reply,
		})
	}

	return assistant.Run{ID: runID, ThreadID: threadID, Status: status}, nil
}

// ListMessages returns messages newest first.
func (f *Fake) ListMessages(ctx context.Context, threadID string) ([]assistant.Message, error) {
	defer f.enter(MethodListMessages)()
	if err := f.err(MethodListMessages); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLocked()

	return append([]assistant.Message(nil), f.threads[threadID]...), nil
}

// Calls reports how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// RunParams returns the parameters of every CreateRun call in order.
func (f *Fake) RunParams() []assistant.RunParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assistant.RunParams(nil), f.params...)
}

// PeakConcurrency is the highest number of calls observed executing at once.
func (f *Fake) PeakConcurrency() int64 {
	return f.peak.Load()
}

func (f *Fake) enter(method string) func() {
	f.mu.Lock()
	f.ensureLocked()
	f.calls[method]++
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	for {
		old := f.peak.Load()
		if n <= old || f.peak.CompareAndSwap(old, n) {
			break
		}
	}

	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	return func() { f.inFlight.Add(-1) }
}

func (f *Fake) err(method string) error {
	if f.Errors == nil {
		return nil
	}
	return f.Errors[method]
}

func (f *Fake) ensureLocked() {
	if f.threads == nil {
		f.threads = make(map[string][]assistant.Message)
	}
	if f.runs == nil {
		f.runs = make(map[string]*fakeRun)
	}
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
}

func prepend(list []assistant.Message, msg assistant.Message) []assistant.Message {
	return append([]assistant.Message{msg}, list...)
}
