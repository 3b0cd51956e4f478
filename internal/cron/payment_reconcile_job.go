package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

const (
	defaultReconcileLimit    = 250
	defaultReconcileMinAge   = time.Hour
	defaultReconcileLookback = 7 * 24 * time.Hour
)

type stalePayments interface {
	ListUnsettled(ctx context.Context, since, before time.Time, limit int) ([]models.PaymentRecord, error)
}

type paymentStatusSource interface {
	PaymentStatus(ctx context.Context, paymentIntentID string) (*payments.IntentStatus, error)
}

// OutcomeHandlerFunc adapts a dispatcher method to the job.
type OutcomeHandlerFunc func(ctx context.Context, out payments.Outcome) error

// PaymentReconcileJobParams configures the stale payment reconciliation job.
type PaymentReconcileJobParams struct {
	Logger   *logger.Logger
	Payments stalePayments
	Gateway  paymentStatusSource
	Handle   OutcomeHandlerFunc
	Limit    int
	MinAge   time.Duration
	Lookback time.Duration
	Now      func() time.Time
}

// NewPaymentReconcileJob builds the job that settles payments whose webhook
// never arrived. Records still pending after MinAge are checked against the
// gateway and terminal outcomes go through the normal dispatcher.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Handle == nil {
		return nil, fmt.Errorf("outcome handler required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultReconcileMinAge
	}
	lookback := params.Lookback
	if lookback <= minAge {
		lookback = defaultReconcileLookback
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		payments: params.Payments,
		gateway:  params.Gateway,
		handle:   params.Handle,
		limit:    limit,
		minAge:   minAge,
		lookback: lookback,
		now:      now,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	payments stalePayments
	gateway  paymentStatusSource
	handle   OutcomeHandlerFunc
	limit    int
	minAge   time.Duration
	lookback time.Duration
	now      func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	records, err := j.payments.ListUnsettled(ctx, now.Add(-j.lookback), now.Add(-j.minAge), j.limit)
	if err != nil {
		return fmt.Errorf("list stale payments: %w", err)
	}

	var errs error
	settled := 0
	for i := range records {
		done, err := j.reconcile(ctx, &records[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", records[i].PaymentIntentID, err))
			continue
		}
		if done {
			settled++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(records),
		"settled":    settled,
	}), "payment reconcile loop complete")
	return errs
}

func (j *paymentReconcileJob) reconcile(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	status, err := j.gateway.PaymentStatus(ctx, record.PaymentIntentID)
	if err != nil {
		return false, err
	}
	if !terminal(status) {
		return false, nil
	}
	// a failed record only needs attention once the retry went through
	if record.Status == enums.PaymentStatusFailed && !status.Succeeded() {
		return false, nil
	}

	out := payments.OutcomeFromStatus(status)
	// The user has long left the countdown screen; complete directly.
	meta := make(map[string]string, len(out.Metadata)+1)
	for k, v := range out.Metadata {
		meta[k] = v
	}
	meta[payments.MetaShowCountdown] = "false"
	out.Metadata = meta

	if err := j.handle(ctx, out); err != nil {
		return false, err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"payment_intent_id": record.PaymentIntentID,
		"status":            status.Status,
		"purpose":           record.Purpose.String(),
	}), "stale payment settled")
	return true, nil
}

func terminal(status *payments.IntentStatus) bool {
	switch stripe.PaymentIntentStatus(status.Status) {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusCanceled:
		return true
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return status.LastPaymentError != nil
	}
	return false
}
