package offers

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestSaved_IsOldPriceMinusPrice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		price := decimal.New(rng.Int63n(100000), -2)
		old := decimal.New(rng.Int63n(100000), -2)
		offer := &models.Offer{ID: uuid.New(), Price: &price, OldPrice: &old}

		saved := FromOffer(offer).Saved()
		require.True(t, saved.Equal(old.Sub(price)), "old=%s price=%s", old, price)
		if old.GreaterThanOrEqual(price) {
			require.False(t, saved.IsNegative())
		}
	}
}

func TestSaved_ZeroWhenPricesMissing(t *testing.T) {
	assert.True(t, FromOffer(&models.Offer{}).Saved().IsZero())
	assert.True(t, FromOffer(&models.Offer{Price: dec("5")}).Saved().IsZero())
	assert.True(t, FromOffer(&models.Offer{OldPrice: dec("5")}).Saved().IsZero())
}

func TestFlashDealVariant(t *testing.T) {
	deal := &models.FlashDeal{
		ID:              uuid.New(),
		Name:            "Half price ramen",
		OriginalPrice:   decimal.RequireFromString("24.00"),
		DiscountedPrice: decimal.RequireFromString("12.00"),
		MaxQuantity:     10,
		SoldQuantity:    4,
	}
	r := FromFlashDeal(deal)

	assert.Equal(t, enums.RedeemableKindFlashDeal, r.Kind())
	_, isOffer := r.Offer()
	assert.False(t, isOffer)
	require.NotNil(t, r.Price())
	assert.True(t, r.Saved().Equal(decimal.RequireFromString("12")))

	view := r.View()
	require.NotNil(t, view.Remaining)
	assert.Equal(t, 6, *view.Remaining)
	assert.Equal(t, deal.ID, view.ID)
}

func TestPrice_NilForFreeEntries(t *testing.T) {
	assert.Nil(t, FromOffer(&models.Offer{}).Price())
	assert.Nil(t, FromOffer(&models.Offer{Price: dec("0")}).Price())
	assert.Nil(t, FromFlashDeal(&models.FlashDeal{}).Price())
}

func TestCheckRedeemable_FlashDealWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	deal := &models.FlashDeal{
		IsActive:  true,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
	require.NoError(t, FromFlashDeal(deal).CheckRedeemable(now, time.UTC))

	err := FromFlashDeal(deal).CheckRedeemable(now.Add(time.Hour), time.UTC)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	deal.MaxQuantity, deal.SoldQuantity = 3, 3
	err = FromFlashDeal(deal).CheckRedeemable(now, time.UTC)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCheckRedeemable_OfferSchedule(t *testing.T) {
	monday := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	offer := &models.Offer{
		IsActive: true,
		Schedule: &models.AvailabilitySchedule{Days: []string{"sunday"}},
	}
	err := FromOffer(offer).CheckRedeemable(monday, time.UTC)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	offer.Schedule = nil
	assert.NoError(t, FromOffer(offer).CheckRedeemable(monday, time.UTC))
}
