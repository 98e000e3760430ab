package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

// StartPathway starts or resumes a pathway and returns it with the student's
// progress.
func (a *API) StartPathway(ctx context.Context, pathwayID int64) (entities.Pathway, *entities.PathwayProgress, error) {
	var res pathwayAttemptDTO
	path := fmt.Sprintf("/pathways/%d/attempt/", pathwayID)
	if _, err := a.do(ctx, http.MethodPost, path, nil, &res); err != nil {
		return entities.Pathway{}, nil, fmt.Errorf("start pathway: %w", err)
	}
	if res.Pathway.ID == 0 {
		res.Pathway.ID = pathwayID
	}
	if len(res.Pathway.Quizzes) == 0 {
		return entities.Pathway{}, nil, errors.New("start pathway: response has no quizzes")
	}

	p, progress := res.toEntity()
	return p, progress, nil
}
