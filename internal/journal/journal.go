// Package journal keeps an audit trail of dispatched runs. Entries hold
// identifiers, outcome and timing; message text is never written.
package journal

import (
	"context"
	"errors"

	"github.com/wuwenbin0122/assistant-relay/internal/models"
)

type Recorder interface {
	Record(ctx context.Context, record models.RunRecord) error
}

type Nop struct{}

func (Nop) Record(context.Context, models.RunRecord) error { return nil }

// Multi writes every record to each recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, record models.RunRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
