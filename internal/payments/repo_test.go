package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/pkg/db/dbtest"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
)

func TestRepository_TransitionIsOneShot(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB())
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, &models.PaymentRecord{
		PaymentIntentID: "pi_1",
		UserID:          userID,
		Purpose:         enums.PaymentPurposeActivation,
		Amount:          decimal.RequireFromString("5.00"),
		Currency:        "chf",
	}))

	changed, err := repo.Transition(ctx, "pi_1", enums.PaymentStatusSucceeded, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Transition(ctx, "pi_1", enums.PaymentStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, changed, "terminal records must not flip")

	record, err := repo.FindByIntent(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, enums.PaymentStatusSucceeded, record.Status)

	missing, err := repo.FindByIntent(ctx, "pi_unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	history, err := repo.ListByUser(ctx, userID, nil, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRepository_DeclinedIntentCanStillSucceed(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.PaymentRecord{
		PaymentIntentID: "pi_retry",
		UserID:          uuid.New(),
		Purpose:         enums.PaymentPurposeSubscription,
		Amount:          decimal.RequireFromString("9.90"),
		Currency:        "chf",
	}))

	reason := "card_declined"
	changed, err := repo.Transition(ctx, "pi_retry", enums.PaymentStatusFailed, &reason)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Transition(ctx, "pi_retry", enums.PaymentStatusFailed, &reason)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.Transition(ctx, "pi_retry", enums.PaymentStatusSucceeded, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	record, err := repo.FindByIntent(ctx, "pi_retry")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, enums.PaymentStatusSucceeded, record.Status)
	assert.Nil(t, record.FailureReason)

	_, err = repo.Transition(ctx, "pi_retry", enums.PaymentStatusPending, nil)
	require.Error(t, err)
}
