package app

import (
	"context"

	"github.com/evanschultz/tally/internal/domain"
)

// evaluateCompletion completes an in-progress session once every item is counted or verified.
// It runs after each item mutation and returns the possibly updated session.
func (s *Service) evaluateCompletion(ctx context.Context, session domain.CountSession) (domain.CountSession, error) {
	current, err := s.repo.GetCountSession(ctx, session.ID)
	if err != nil {
		return domain.CountSession{}, err
	}
	if current.Status != domain.SessionStatusInProgress {
		return current, nil
	}
	items, err := s.repo.ListCountItems(ctx, current.ID)
	if err != nil {
		return domain.CountSession{}, err
	}
	progress := domain.ComputeProgress(items)
	if !progress.Complete() {
		return current, nil
	}
	if err := current.Complete(s.clock()); err != nil {
		return domain.CountSession{}, err
	}
	if err := s.repo.UpdateCountSession(ctx, current); err != nil {
		return domain.CountSession{}, err
	}
	s.log.Info("count session completed", "session_id", current.ID, "items", progress.TotalItems, "with_variance", progress.WithVariance)
	return current, nil
}
