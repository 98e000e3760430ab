package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

type PathwayGateway interface {
	StartPathway(ctx context.Context, pathwayID int64) (entities.Pathway, *entities.PathwayProgress, error)
}

// PathwayService loads pathways and keeps their progress in sync with the
// server.
type PathwayService struct {
	api    PathwayGateway
	logger *zap.Logger
}

func NewPathwayService(api PathwayGateway, logger *zap.Logger) *PathwayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PathwayService{api: api, logger: logger}
}

// Start starts or resumes a pathway and returns a tracker over it.
func (s *PathwayService) Start(ctx context.Context, pathwayID int64) (*entities.PathwayTracker, error) {
	p, progress, err := s.api.StartPathway(ctx, pathwayID)
	if err != nil {
		return nil, err
	}

	t, err := entities.NewPathwayTracker(p, progress)
	if err != nil {
		return nil, fmt.Errorf("pathway %d: %w", pathwayID, err)
	}

	s.logger.Debug("pathway loaded",
		zap.Int64("pathway_id", pathwayID),
		zap.Int("completed", len(t.Progress().CompletedOrders)),
		zap.Int("total", len(p.Quizzes)),
	)

	return t, nil
}

// Refresh re-reads progress from the server and merges it into t. Orders
// completed locally are kept even if the server does not report them yet.
func (s *PathwayService) Refresh(ctx context.Context, t *entities.PathwayTracker) error {
	id := t.Pathway().ID

	_, progress, err := s.api.StartPathway(ctx, id)
	if err != nil {
		return err
	}
	if err := t.Merge(progress); err != nil {
		return fmt.Errorf("pathway %d: %w", id, err)
	}
	return nil
}

// Complete applies a finished attempt to the pathway and returns the quiz to
// take next, or nil when the pathway is done.
func (s *PathwayService) Complete(t *entities.PathwayTracker, c entities.QuizCompletion) *entities.PathwayQuiz {
	if t.ConsumeCompletion(c) {
		s.logger.Info("pathway progress updated",
			zap.Int64("pathway_id", t.Pathway().ID),
			zap.Int64("quiz_id", c.QuizID),
			zap.Int("percent", t.CompletionPercentage()),
			zap.String("status", string(t.Progress().Status)),
		)
	}
	return t.NextQuiz()
}
