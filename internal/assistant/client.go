// Package assistant talks to the hosted assistant provider. Threads, messages
// and runs live upstream; this package only moves identifiers and text.
package assistant

import (
	"context"

	"github.com/wuwenbin0122/assistant-relay/internal/limiter"
)

type Client interface {
	CreateThread(ctx context.Context) (Thread, error)
	CreateMessage(ctx context.Context, threadID string, msg MessageInput) (Message, error)
	CreateRun(ctx context.Context, threadID string, params RunParams) (Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// LimitedClient holds one limiter permit for the duration of each upstream
// call and never across calls.
type LimitedClient struct {
	inner   Client
	limiter *limiter.Limiter
}

func NewLimitedClient(inner Client, l *limiter.Limiter) *LimitedClient {
	if l == nil {
		l = limiter.New(0)
	}
	return &LimitedClient{inner: inner, limiter: l}
}

func (c *LimitedClient) CreateThread(ctx context.Context) (thread Thread, err error) {
	err = c.limiter.Do(ctx, func() error {
		thread, err = c.inner.CreateThread(ctx)
		return err
	})
	return thread, err
}

func (c *LimitedClient) CreateMessage(ctx context.Context, threadID string, msg MessageInput) (message Message, err error) {
	err = c.limiter.Do(ctx, func() error {
		message, err = c.inner.CreateMessage(ctx, threadID, msg)
		return err
	})
	return message, err
}

func (c *LimitedClient) CreateRun(ctx context.Context, threadID string, params RunParams) (run Run, err error) {
	err = c.limiter.Do(ctx, func() error {
		run, err = c.inner.CreateRun(ctx, threadID, params)
		return err
	})
	return run, err
}

func (c *LimitedClient) RetrieveRun(ctx context.Context, threadID, runID string) (run Run, err error) {
	err = c.limiter.Do(ctx, func() error {
		run, err = c.inner.RetrieveRun(ctx, threadID, runID)
		return err
	})
	return run, err
}

func (c *LimitedClient) ListMessages(ctx context.Context, threadID string) (messages []Message, err error) {
	err = c.limiter.Do(ctx, func() error {
		messages, err = c.inner.ListMessages(ctx, threadID)
		return err
	})
	return messages, err
}
