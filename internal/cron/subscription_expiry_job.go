package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

const (
	defaultExpiryBatchSize = 500
	maxExpiryBatches       = 20
)

type lapsedProfiles interface {
	FindLapsed(ctx context.Context, now time.Time, limit int) ([]models.UserProfile, error)
	MarkExpired(ctx context.Context, userIDs []uuid.UUID) (int64, error)
}

// SubscriptionExpiryJobParams configures the stored-status expiry job.
type SubscriptionExpiryJobParams struct {
	Logger    *logger.Logger
	Profiles  lapsedProfiles
	BatchSize int
	Now       func() time.Time
}

// NewSubscriptionExpiryJob builds the job that flips lapsed trial and active
// profiles to expired. Access is always evaluated from the end date, so the
// job only keeps the stored status in line with it.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionExpiryJob{
		logg:     params.Logger,
		profiles: params.Profiles,
		batch:    batch,
		now:      now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg     *logger.Logger
	profiles lapsedProfiles
	batch    int
	now      func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var (
		errs    error
		scanned int
		expired int64
	)
	for i := 0; i < maxExpiryBatches; i++ {
		lapsed, err := j.profiles.FindLapsed(ctx, now, j.batch)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("find lapsed: %w", err))
			break
		}
		if len(lapsed) == 0 {
			break
		}
		scanned += len(lapsed)

		ids := make([]uuid.UUID, 0, len(lapsed))
		for _, p := range lapsed {
			ids = append(ids, p.UserID)
		}
		rows, err := j.profiles.MarkExpired(ctx, ids)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark expired: %w", err))
			break
		}
		expired += rows
		if len(lapsed) < j.batch {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned": scanned,
		"expired": expired,
		"now":     now,
	}), "subscription expiry sweep complete")
	return errs
}
