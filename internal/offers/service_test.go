package offers

import (
	"context"
	"sync"
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
	"github.com/kairos100/swissluca-backend/pkg/geo"
	"github.com/kairos100/swissluca-backend/pkg/maps"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type stubPlaces struct {
	place *maps.Place
	err   error
}

func (s stubPlaces) ResolvePlace(context.Context, string) (*maps.Place, error) {
	return s.place, s.err
}

func (s stubPlaces) Autocomplete(context.Context, string, string) ([]maps.Suggestion, error) {
	return []maps.Suggestion{{PlaceID: "p1", Description: "Bahnhofstrasse"}}, s.err
}

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, places PlaceResolver) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.New(t).DB())
	svc, err := NewService(ServiceParams{Repo: repo, Places: places, Clock: &fixedClock{now: now}})
	require.NoError(t, err)
	return svc, repo
}

func seedOffer(t *testing.T, repo *Repository, name string, at geo.Point) *models.Offer {
	t.Helper()
	offer := &models.Offer{
		Name:         name,
		MerchantName: name + " GmbH",
		Category:     "food",
		Address:      "Zürich",
		Lat:          at.Lat,
		Lng:          at.Lng,
		Price:        dec("8.00"),
		OldPrice:     dec("12.50"),
		IsActive:     true,
	}
	require.NoError(t, repo.CreateOffer(context.Background(), offer))
	return offer
}

func TestListOffers_SortedByDistance(t *testing.T) {
	svc, repo := newService(t, nil)
	origin := geo.Point{Lat: 47.3769, Lng: 8.5417}
	seedOffer(t, repo, "Geneva", geo.Point{Lat: 46.2044, Lng: 6.1432})
	seedOffer(t, repo, "Zurich", origin)
	seedOffer(t, repo, "Basel", geo.Point{Lat: 47.5596, Lng: 7.5886})

	views, err := svc.ListOffers(context.Background(), ListParams{Origin: &origin})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Zurich", views[0].Name)
	assert.Equal(t, "Basel", views[1].Name)
	assert.Equal(t, "Geneva", views[2].Name)
	require.NotNil(t, views[0].DistanceKm)
	assert.Zero(t, *views[0].DistanceKm)
	require.NotNil(t, views[0].Savings)
	assert.Equal(t, "4.5", views[0].Savings.String())
}

func TestListFlashDeals_HidesExpired(t *testing.T) {
	svc, repo := newService(t, nil)
	ctx := context.Background()
	live := &models.FlashDeal{PartnerID: uuid.New(), Name: "live", Category: "food", Address: "x", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour), IsActive: true, OriginalPrice: decimal.NewFromInt(10), DiscountedPrice: decimal.NewFromInt(5)}
	gone := &models.FlashDeal{PartnerID: uuid.New(), Name: "gone", Category: "food", Address: "x", StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-time.Hour), IsActive: true, OriginalPrice: decimal.NewFromInt(10), DiscountedPrice: decimal.NewFromInt(5)}
	require.NoError(t, repo.CreateFlashDeal(ctx, live))
	require.NoError(t, repo.CreateFlashDeal(ctx, gone))

	views, err := svc.ListFlashDeals(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "live", views[0].Name)

	pins, err := svc.MapPins(ctx)
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, enums.RedeemableKindFlashDeal, pins[0].Kind)
}

func TestCreateFlashDeal_DerivesEndTimeAndResolvesPlace(t *testing.T) {
	places := stubPlaces{place: &maps.Place{PlaceID: "place_1", Name: "Café Luca", Address: "Limmatquai 1, Zürich", Location: geo.Point{Lat: 47.37, Lng: 8.54}}}
	svc, _ := newService(t, places)
	partner := uuid.New()

	deal, err := svc.CreateFlashDeal(context.Background(), partner, CreateFlashDealInput{
		Name:            "Espresso for 1 CHF",
		Category:        "coffee",
		PlaceID:         "place_1",
		OriginalPrice:   decimal.RequireFromString("4.50"),
		DiscountedPrice: decimal.RequireFromString("1.00"),
		DurationHours:   3,
		MaxQuantity:     20,
	})
	require.NoError(t, err)
	assert.True(t, deal.StartTime.Equal(now))
	assert.True(t, deal.EndTime.Equal(now.Add(3*time.Hour)))
	assert.Equal(t, "Café Luca", deal.MerchantName)
	assert.Equal(t, "Limmatquai 1, Zürich", deal.Address)
	require.NotNil(t, deal.GooglePlaceID)

	listed, err := svc.ListPartnerFlashDeals(context.Background(), partner)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestCreateFlashDeal_Validation(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.CreateFlashDeal(context.Background(), uuid.New(), CreateFlashDealInput{
		Name:            "bad",
		OriginalPrice:   decimal.NewFromInt(5),
		DiscountedPrice: decimal.NewFromInt(6),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "duration_hours")
	assert.Contains(t, details, "discounted_price")
	assert.Contains(t, details, "location")
}

func TestResolve(t *testing.T) {
	svc, repo := newService(t, nil)
	offer := seedOffer(t, repo, "Zurich", geo.Point{Lat: 47.37, Lng: 8.54})

	r, err := svc.Resolve(context.Background(), Ref{Kind: enums.RedeemableKindOffer, ID: offer.ID})
	require.NoError(t, err)
	assert.Equal(t, offer.ID, r.ID())

	_, err = svc.Resolve(context.Background(), Ref{Kind: enums.RedeemableKindFlashDeal, ID: offer.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestIncrementSold_StopsAtMax(t *testing.T) {
	_, repo := newService(t, nil)
	ctx := context.Background()
	deal := &models.FlashDeal{PartnerID: uuid.New(), Name: "d", Category: "c", Address: "a", StartTime: now, EndTime: now.Add(time.Hour), IsActive: true, MaxQuantity: 1}
	require.NoError(t, repo.CreateFlashDeal(ctx, deal))

	require.NoError(t, repo.IncrementSold(ctx, deal.ID))
	err := repo.IncrementSold(ctx, deal.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
