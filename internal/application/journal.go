package application

import (
	"context"

	"voice-relay/internal/domain"
)

// Journal keeps a record of handled messages for the health endpoint.
type Journal interface {
	Record(ctx context.Context, outcome domain.Outcome) error
	// Stats returns the number of recorded outcomes per status.
	Stats(ctx context.Context) (map[string]int64, error)
}

type NoopJournal struct{}

func (n *NoopJournal) Record(_ context.Context, _ domain.Outcome) error {
	return nil
}

func (n *NoopJournal) Stats(_ context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}
