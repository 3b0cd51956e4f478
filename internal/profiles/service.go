package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

// Service resolves profiles for authenticated users, granting a trial on first sight.
type Service interface {
	Ensure(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	Overview(ctx context.Context, userID uuid.UUID) (*Overview, error)
}

// ServiceParams groups dependencies for the profile service.
type ServiceParams struct {
	Repo        *Repository
	Clock       countdown.Clock
	TrialPeriod time.Duration
}

type service struct {
	repo  *Repository
	clock countdown.Clock
	trial time.Duration
}

// Overview is the profile plus its reward aggregates.
type Overview struct {
	Profile     *models.UserProfile `json:"profile"`
	Activations int                 `json:"activations"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("profile repo required")
	}
	clock := params.Clock
	if clock == nil {
		clock = countdown.SystemClock{}
	}
	return &service{repo: params.Repo, clock: clock, trial: params.TrialPeriod}, nil
}

func (s *service) Ensure(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.Ensure(ctx, userID, s.clock.Now(), s.trial)
}

func (s *service) Overview(ctx context.Context, userID uuid.UUID) (*Overview, error) {
	profile, err := s.Ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListActivations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Overview{Profile: profile, Activations: len(records)}, nil
}
