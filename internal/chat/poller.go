package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/assistant-relay/internal/assistant"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

// FailedRunReply is returned as the reply text when the run ends in failure.
const FailedRunReply = "Assistant run failed"

const DefaultPollInterval = 100 * time.Millisecond

var ErrRunTimeout = errors.New("chat: run did not reach a terminal state before the poll deadline")

type Completion struct {
	Text     string
	ThreadID string
	RunID    string
	Status   assistant.RunStatus
	Polls    int
}

// Poller waits for a run to finish by querying its status at a fixed
// interval. Only completed and failed stop the loop; every other status,
// including cancelled and expired, keeps it going.
type Poller struct {
	client   assistant.Client
	interval time.Duration
	maxWait  time.Duration
	logger   *zap.Logger
}

// NewPoller builds a poller. maxWait <= 0 polls without a deadline.
func NewPoller(client assistant.Client, interval, maxWait time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{client: client, interval: interval, maxWait: maxWait, logger: logger}
}

func (p *Poller) AwaitCompletion(ctx context.Context, threadID, runID string) (*Completion, error) {
	logger := utils.LoggerFrom(ctx, p.logger).With(zap.String("thread_id", threadID), zap.String("run_id", runID))

	var deadline time.Time
	if p.maxWait > 0 {
		deadline = time.Now().Add(p.maxWait)
	}

	completion := &Completion{ThreadID: threadID, RunID: runID}
	for {
		run, err := p.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return nil, err
		}
		completion.Polls++
		completion.Status = run.Status

		switch run.Status {
		case assistant.RunStatusCompleted:
			text, err := p.latestReply(ctx, threadID)
			if err != nil {
				return nil, err
			}
			completion.Text = text
			logger.Debug("run completed", zap.Int("polls", completion.Polls))
			return completion, nil

		case assistant.RunStatusFailed:
			completion.Text = FailedRunReply
			fields := []zap.Field{zap.Int("polls", completion.Polls)}
			if run.LastError != nil {
				fields = append(fields, zap.String("code", run.LastError.Code), zap.String("reason", run.LastError.Message))
			}
			logger.Warn("run failed", fields...)
			return completion, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			logger.Warn("run poll deadline exceeded", zap.String("status", string(run.Status)), zap.Int("polls", completion.Polls))
			return nil, ErrRunTimeout
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// latestReply takes the first assistant message in list order and returns
// its first text block, or "" when there is none.
func (p *Poller) latestReply(ctx context.Context, threadID string) (string, error) {
	messages, err := p.client.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}

	for _, msg := range messages {
		if msg.Role != assistant.RoleAssistant {
			continue
		}
		text, _ := msg.FirstText()
		return text, nil
	}
	return "", nil
}
