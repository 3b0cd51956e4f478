package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/pkg/db/dbtest"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/pagination"
)

func TestService_CreateIntentDropsReservedMetadata(t *testing.T) {
	api := &fakeIntentAPI{}
	gateway, err := NewStripeGateway(api)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Gateway: gateway, Repo: NewRepository(dbtest.New(t).DB())})
	require.NoError(t, err)

	handle, err := svc.CreateIntent(context.Background(), IntentInput{
		Amount:      decimal.RequireFromString("12.50"),
		Currency:    " CHF ",
		Description: "Coffee",
		Metadata: map[string]string{
			MetaPurpose: "activation",
			MetaUserID:  "someone",
			MetaOrderID: "order-1",
			"note":      "table 4",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", handle.PaymentIntentID)

	require.Len(t, api.created, 1)
	sent := api.created[0]
	assert.Equal(t, "chf", sent.Currency)
	assert.EqualValues(t, 1250, sent.AmountMinor)
	assert.Equal(t, "order-1", sent.Metadata[MetaOrderID])
	assert.Equal(t, "table 4", sent.Metadata["note"])
	assert.NotContains(t, sent.Metadata, MetaPurpose)
	assert.NotContains(t, sent.Metadata, MetaUserID)
}

func TestService_CreateIntentRequiresFields(t *testing.T) {
	gateway, err := NewStripeGateway(&fakeIntentAPI{})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Gateway: gateway, Repo: NewRepository(dbtest.New(t).DB())})
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), IntentInput{Amount: decimal.Zero, Currency: "chf", Description: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestService_HistoryPagesNewestFirst(t *testing.T) {
	repo := NewRepository(dbtest.New(t).DB())
	gateway, err := NewStripeGateway(&fakeIntentAPI{})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Gateway: gateway, Repo: repo})
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, intent := range []string{"pi_a", "pi_b", "pi_c"} {
		require.NoError(t, repo.Create(ctx, &models.PaymentRecord{
			PaymentIntentID: intent,
			UserID:          userID,
			Purpose:         enums.PaymentPurposeSubscription,
			Plan:            enums.SubscriptionPlanMonthly,
			Amount:          decimal.RequireFromString("9.90"),
			Currency:        "chf",
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
	}

	first, err := svc.History(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "pi_c", first.Items[0].PaymentIntentID)
	assert.Equal(t, "pi_b", first.Items[1].PaymentIntentID)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.History(ctx, userID, pagination.Params{Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "pi_a", second.Items[0].PaymentIntentID)
	assert.Empty(t, second.Cursor)

	_, err = svc.History(ctx, userID, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
