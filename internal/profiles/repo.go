package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kairos100/swissluca-backend/internal/repo"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

// Repository persists user profiles and their activation history.
type Repository struct {
	repo.Base
}

// NewRepository constructs a profile repository bound to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository whose operations run inside tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.Bound(tx)}
}

// Get loads the profile for userID.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.DB(ctx).First(&profile, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return &profile, nil
}

// Ensure returns the profile for userID, creating it with a trial ending at
// now+trial when none exists yet.
func (r *Repository) Ensure(ctx context.Context, userID uuid.UUID, now time.Time, trial time.Duration) (*models.UserProfile, error) {
	profile := &models.UserProfile{
		UserID:             userID,
		SubscriptionStatus: enums.SubscriptionStatusTrial,
		SubscriptionEnd:    now.UTC().Add(trial),
		SubscriptionPlan:   enums.SubscriptionPlanNone,
		TotalPaid:          decimal.Zero,
		TotalSaved:         decimal.Zero,
		Level:              1,
	}
	err := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(profile).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure profile")
	}
	return r.Get(ctx, userID)
}

// Save writes every column of profile.
func (r *Repository) Save(ctx context.Context, profile *models.UserProfile) error {
	if err := r.DB(ctx).Save(profile).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
	}
	return nil
}

// UpdateFields applies a partial update to the profile columns.
func (r *Repository) UpdateFields(ctx context.Context, userID uuid.UUID, fields map[string]any) error {
	res := r.DB(ctx).Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(fields)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update profile")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return nil
}

// AppendActivation inserts an activation record. Records are never updated.
func (r *Repository) AppendActivation(ctx context.Context, record *models.ActivationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.DB(ctx).Create(record).Error
}

// ApplyActivationRewards adds saved and points to the running totals and
// recomputes the level in the same statement.
func (r *Repository) ApplyActivationRewards(ctx context.Context, userID uuid.UUID, saved decimal.Decimal, points int) error {
	res := r.DB(ctx).Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"total_saved": gorm.Expr("total_saved + ?", saved.StringFixed(2)),
			"points":      gorm.Expr("points + ?", points),
			"level":       gorm.Expr("((points + ?) / ?) + 1", points, pointsPerLevel),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "apply activation rewards")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return nil
}

// ApplySubscriptionPayment marks the profile active on plan until end and adds amount to total_paid.
func (r *Repository) ApplySubscriptionPayment(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan, end time.Time, amount decimal.Decimal) error {
	res := r.DB(ctx).Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"subscription_status": enums.SubscriptionStatusActive,
			"subscription_plan":   plan,
			"subscription_end":    end.UTC(),
			"total_paid":          gorm.Expr("total_paid + ?", amount.StringFixed(2)),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "apply subscription payment")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return nil
}

// AddPaid increases total_paid by amount.
func (r *Repository) AddPaid(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	err := r.DB(ctx).Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Update("total_paid", gorm.Expr("total_paid + ?", amount.StringFixed(2))).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add paid amount")
	}
	return nil
}

// ListActivations returns every record for userID, oldest first.
func (r *Repository) ListActivations(ctx context.Context, userID uuid.UUID) ([]models.ActivationRecord, error) {
	var records []models.ActivationRecord
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("activated_at ASC").
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activations")
	}
	return records, nil
}

// LatestActivation returns the most recent record for the user and offer, or nil when there is none.
func (r *Repository) LatestActivation(ctx context.Context, userID, offerID uuid.UUID) (*models.ActivationRecord, error) {
	var records []models.ActivationRecord
	err := r.DB(ctx).
		Where("user_id = ? AND offer_id = ?", userID, offerID).
		Order("activated_at DESC").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest activation")
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ActivationByPaymentIntent finds the record produced by a payment intent, or nil.
func (r *Repository) ActivationByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.ActivationRecord, error) {
	var records []models.ActivationRecord
	err := r.DB(ctx).Where("payment_intent_id = ?", paymentIntentID).Limit(1).Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load activation by payment intent")
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// FindLapsed returns up to limit profiles still marked trial/active whose end is at or before now.
func (r *Repository) FindLapsed(ctx context.Context, now time.Time, limit int) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := r.DB(ctx).
		Where("subscription_status IN ?", []enums.SubscriptionStatus{enums.SubscriptionStatusTrial, enums.SubscriptionStatusActive}).
		Where("subscription_end <= ?", now.UTC()).
		Order("subscription_end ASC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find lapsed subscriptions")
	}
	return profiles, nil
}

// MarkExpired flips the given profiles to expired when they still hold a granting status.
func (r *Repository) MarkExpired(ctx context.Context, userIDs []uuid.UUID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).Model(&models.UserProfile{}).
		Where("user_id IN ?", userIDs).
		Where("subscription_status IN ?", []enums.SubscriptionStatus{enums.SubscriptionStatusTrial, enums.SubscriptionStatusActive}).
		Update("subscription_status", enums.SubscriptionStatusExpired)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark subscriptions expired")
	}
	return res.RowsAffected, nil
}
