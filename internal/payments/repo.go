package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kairos100/swissluca-backend/internal/repo"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/pagination"
)

// Repository stores the payment intents this service created.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository whose operations run inside tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.Bound(tx)}
}

func (r *Repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Status == "" {
		record.Status = enums.PaymentStatusPending
	}
	if err := r.DB(ctx).Create(record).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
	}
	return nil
}

// FindByIntent returns the record for paymentIntentID, or nil when unknown.
func (r *Repository) FindByIntent(ctx context.Context, paymentIntentID string) (*models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.DB(ctx).Where("payment_intent_id = ?", paymentIntentID).Limit(1).Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// transitionSources lists the states each target may be reached from.
// A failed record can still succeed when the customer retries the same intent.
var transitionSources = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusFailed:    {enums.PaymentStatusPending},
	enums.PaymentStatusSucceeded: {enums.PaymentStatusPending, enums.PaymentStatusFailed},
}

// Transition moves a record to status. It reports false when the record is
// unknown or not in a source state for status, so repeated signals are no-ops.
func (r *Repository) Transition(ctx context.Context, paymentIntentID string, status enums.PaymentStatus, reason *string) (bool, error) {
	from, ok := transitionSources[status]
	if !ok {
		return false, pkgerrors.Newf(pkgerrors.CodeValidation, "cannot move a payment to %s", status)
	}
	updates := map[string]any{"status": status}
	switch {
	case status == enums.PaymentStatusSucceeded:
		updates["failure_reason"] = nil
	case reason != nil:
		updates["failure_reason"] = *reason
	}
	res := r.DB(ctx).Model(&models.PaymentRecord{}).
		Where("payment_intent_id = ? AND status IN ?", paymentIntentID, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update payment record")
	}
	return res.RowsAffected > 0, nil
}

// ListByUser returns up to limit of the user's payments, newest first,
// starting after cursor when one is given.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PaymentRecord, error) {
	query := r.DB(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var records []models.PaymentRecord
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return records, nil
}

// ListUnsettled returns pending or failed records created between since and
// before, oldest first.
func (r *Repository) ListUnsettled(ctx context.Context, since, before time.Time, limit int) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.DB(ctx).
		Where("status IN ?", []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}).
		Where("created_at >= ? AND created_at < ?", since.UTC(), before.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payment records")
	}
	return records, nil
}
