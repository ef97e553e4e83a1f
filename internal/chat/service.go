// Package chat forwards a user message to the assistant provider and waits
// for the assistant's reply.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/assistant-relay/internal/assistant"
	"github.com/wuwenbin0122/assistant-relay/internal/journal"
	"github.com/wuwenbin0122/assistant-relay/internal/models"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

const journalTimeout = 5 * time.Second

type ChatRequest struct {
	Message string
	// ThreadID is empty when the caller wants a fresh conversation.
	ThreadID string
	Variant  string
}

type ChatResponse struct {
	Message  string
	ThreadID string
	Status   assistant.RunStatus
}

type Service struct {
	client   assistant.Client
	registry *Registry
	poller   *Poller
	journal  journal.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(client assistant.Client, registry *Registry, poller *Poller, recorder journal.Recorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = journal.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if poller == nil {
		poller = NewPoller(client, DefaultPollInterval, 0, logger)
	}
	return &Service{
		client:   client,
		registry: registry,
		poller:   poller,
		journal:  recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// Handle runs one chat exchange. The variant is resolved before anything is
// sent upstream. The caller going away does not stop the exchange; it runs
// until the provider reports completed or failed.
func (s *Service) Handle(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx = context.WithoutCancel(ctx)

	variant, err := s.registry.Resolve(req.Variant)
	if err != nil {
		return nil, err
	}

	record := models.RunRecord{
		ID:          uuid.NewString(),
		ThreadID:    req.ThreadID,
		AssistantID: variant.AssistantID,
		Variant:     variant.Label,
		StartedAt:   s.now().UTC(),
	}

	logger := utils.LoggerFrom(ctx, s.logger).With(zap.String("assistant_id", variant.AssistantID))

	if record.ThreadID == "" {
		thread, err := s.client.CreateThread(ctx)
		if err != nil {
			return nil, s.fail(ctx, logger, record, err)
		}
		record.ThreadID = thread.ID
		record.NewThread = true
	}
	logger = logger.With(zap.String("thread_id", record.ThreadID))

	if _, err := s.client.CreateMessage(ctx, record.ThreadID, assistant.MessageInput{
		Role:    assistant.RoleUser,
		Content: req.Message,
	}); err != nil {
		return nil, s.fail(ctx, logger, record, err)
	}

	run, err := s.client.CreateRun(ctx, record.ThreadID, assistant.RunParams{
		AssistantID:     variant.AssistantID,
		ForceFileSearch: variant.ForceFileSearch,
	})
	if err != nil {
		return nil, s.fail(ctx, logger, record, err)
	}
	record.RunID = run.ID

	completion, err := s.poller.AwaitCompletion(ctx, record.ThreadID, run.ID)
	if err != nil {
		return nil, s.fail(ctx, logger, record, err)
	}

	record.Polls = completion.Polls
	record.Outcome = models.RunOutcomeCompleted
	if completion.Status == assistant.RunStatusFailed {
		record.Outcome = models.RunOutcomeFailed
	}
	s.finish(ctx, logger, record)

	logger.Info("chat dispatched",
		zap.String("run_id", run.ID),
		zap.String("status", string(completion.Status)),
		zap.Bool("new_thread", record.NewThread),
		zap.Int("polls", completion.Polls),
	)

	return &ChatResponse{
		Message:  completion.Text,
		ThreadID: record.ThreadID,
		Status:   completion.Status,
	}, nil
}

func (s *Service) fail(ctx context.Context, logger *zap.Logger, record models.RunRecord, err error) error {
	record.Outcome = models.RunOutcomeError
	record.Error = err.Error()
	s.finish(ctx, logger, record)

	logger.Error("chat dispatch failed", zap.String("run_id", record.RunID), zap.Error(err))
	return err
}

func (s *Service) finish(ctx context.Context, logger *zap.Logger, record models.RunRecord) {
	record.FinishedAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	if err := s.journal.Record(ctx, record); err != nil {
		logger.Warn("journal write failed", zap.String("record_id", record.ID), zap.Error(err))
	}
}
