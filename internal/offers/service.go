package offers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/geo"
	"github.com/kairos100/swissluca-backend/pkg/maps"
)

const (
	defaultListLimit     = 50
	maxListLimit         = 200
	maxFlashDealDuration = 7 * 24
)

// PlaceResolver looks up merchant places for flash deal creation.
type PlaceResolver interface {
	ResolvePlace(ctx context.Context, placeID string) (*maps.Place, error)
	Autocomplete(ctx context.Context, input, language string) ([]maps.Suggestion, error)
}

// Service exposes the catalog to the API and the activation machine.
type Service interface {
	ListOffers(ctx context.Context, params ListParams) ([]View, error)
	GetOffer(ctx context.Context, id uuid.UUID) (View, error)
	ListFlashDeals(ctx context.Context, params ListParams) ([]View, error)
	MapPins(ctx context.Context) ([]Pin, error)
	Resolve(ctx context.Context, ref Ref) (Redeemable, error)
	CreateFlashDeal(ctx context.Context, partnerID uuid.UUID, input CreateFlashDealInput) (*models.FlashDeal, error)
	ListPartnerFlashDeals(ctx context.Context, partnerID uuid.UUID) ([]View, error)
	SuggestPlaces(ctx context.Context, input, language string) ([]maps.Suggestion, error)
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Repo     *Repository
	Places   PlaceResolver
	Clock    countdown.Clock
	Location *time.Location
}

type service struct {
	repo   *Repository
	places PlaceResolver
	clock  countdown.Clock
	loc    *time.Location
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("offers repo required")
	}
	clock := params.Clock
	if clock == nil {
		clock = countdown.SystemClock{}
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{repo: params.Repo, places: params.Places, clock: clock, loc: loc}, nil
}

// ListParams filters and orders catalog listings.
type ListParams struct {
	Origin   *geo.Point
	Category string
	Limit    int
}

func (p ListParams) limit() int {
	switch {
	case p.Limit <= 0:
		return defaultListLimit
	case p.Limit > maxListLimit:
		return maxListLimit
	default:
		return p.Limit
	}
}

func (s *service) ListOffers(ctx context.Context, params ListParams) ([]View, error) {
	rows, err := s.repo.ListOffers(ctx, OfferFilter{Category: strings.TrimSpace(params.Category)})
	if err != nil {
		return nil, err
	}
	items := make([]Redeemable, 0, len(rows))
	for i := range rows {
		items = append(items, FromOffer(&rows[i]))
	}
	return project(items, params), nil
}

func (s *service) GetOffer(ctx context.Context, id uuid.UUID) (View, error) {
	offer, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return View{}, err
	}
	return FromOffer(offer).View(), nil
}

func (s *service) ListFlashDeals(ctx context.Context, params ListParams) ([]View, error) {
	items, err := s.liveFlashDeals(ctx)
	if err != nil {
		return nil, err
	}
	if category := strings.TrimSpace(params.Category); category != "" {
		filtered := items[:0]
		for _, item := range items {
			if deal, _ := item.FlashDeal(); deal.Category == category {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	return project(items, params), nil
}

func (s *service) liveFlashDeals(ctx context.Context) ([]Redeemable, error) {
	rows, err := s.repo.ListFlashDeals(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	items := make([]Redeemable, 0, len(rows))
	for i := range rows {
		if rows[i].EndTime.After(now) {
			items = append(items, FromFlashDeal(&rows[i]))
		}
	}
	return items, nil
}

func (s *service) MapPins(ctx context.Context) ([]Pin, error) {
	offerRows, err := s.repo.ListOffers(ctx, OfferFilter{})
	if err != nil {
		return nil, err
	}
	deals, err := s.liveFlashDeals(ctx)
	if err != nil {
		return nil, err
	}
	pins := make([]Pin, 0, len(offerRows)+len(deals))
	for i := range offerRows {
		pins = append(pins, FromOffer(&offerRows[i]).Pin())
	}
	for _, deal := range deals {
		pins = append(pins, deal.Pin())
	}
	return pins, nil
}

func (s *service) Resolve(ctx context.Context, ref Ref) (Redeemable, error) {
	switch ref.Kind {
	case enums.RedeemableKindOffer:
		offer, err := s.repo.GetOffer(ctx, ref.ID)
		if err != nil {
			return Redeemable{}, err
		}
		return FromOffer(offer), nil
	case enums.RedeemableKindFlashDeal:
		deal, err := s.repo.GetFlashDeal(ctx, ref.ID)
		if err != nil {
			return Redeemable{}, err
		}
		return FromFlashDeal(deal), nil
	default:
		return Redeemable{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown redeemable kind %q", ref.Kind))
	}
}

// CreateFlashDealInput is the partner payload for a new flash deal.
type CreateFlashDealInput struct {
	Name            string
	MerchantName    string
	Description     *string
	ImageURL        *string
	Category        string
	Address         string
	Location        *geo.Point
	PlaceID         string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	DurationHours   int
	MaxQuantity     int
	StartTime       *time.Time
}

func (in CreateFlashDealInput) validate() error {
	details := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "is required"
	}
	if in.DurationHours <= 0 || in.DurationHours > maxFlashDealDuration {
		details["duration_hours"] = fmt.Sprintf("must be between 1 and %d", maxFlashDealDuration)
	}
	if in.DiscountedPrice.IsNegative() {
		details["discounted_price"] = "must not be negative"
	}
	if in.DiscountedPrice.GreaterThan(in.OriginalPrice) {
		details["discounted_price"] = "must not exceed original_price"
	}
	if in.MaxQuantity < 0 {
		details["max_quantity"] = "must not be negative"
	}
	if strings.TrimSpace(in.PlaceID) == "" {
		if in.Location == nil || !in.Location.Valid() {
			details["location"] = "place_id or valid coordinates are required"
		}
		if strings.TrimSpace(in.Address) == "" {
			details["address"] = "place_id or address is required"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid flash deal").WithDetails(details)
	}
	return nil
}

func (s *service) CreateFlashDeal(ctx context.Context, partnerID uuid.UUID, input CreateFlashDealInput) (*models.FlashDeal, error) {
	if partnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	start := s.clock.Now().UTC()
	if input.StartTime != nil && input.StartTime.After(start) {
		start = input.StartTime.UTC()
	}

	deal := &models.FlashDeal{
		ID:              uuid.New(),
		PartnerID:       partnerID,
		MerchantName:    strings.TrimSpace(input.MerchantName),
		Name:            strings.TrimSpace(input.Name),
		ImageURL:        input.ImageURL,
		Category:        strings.TrimSpace(input.Category),
		Description:     input.Description,
		Address:         strings.TrimSpace(input.Address),
		OriginalPrice:   input.OriginalPrice,
		DiscountedPrice: input.DiscountedPrice,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(input.DurationHours) * time.Hour),
		IsActive:        true,
		MaxQuantity:     input.MaxQuantity,
	}
	if input.Location != nil {
		deal.Lat, deal.Lng = input.Location.Lat, input.Location.Lng
	}

	if placeID := strings.TrimSpace(input.PlaceID); placeID != "" {
		if s.places == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "place lookup is not configured")
		}
		place, err := s.places.ResolvePlace(ctx, placeID)
		if err != nil {
			return nil, err
		}
		deal.GooglePlaceID = &place.PlaceID
		deal.Address = place.Address
		deal.Lat, deal.Lng = place.Location.Lat, place.Location.Lng
		if deal.MerchantName == "" {
			deal.MerchantName = place.Name
		}
	}

	if err := s.repo.CreateFlashDeal(ctx, deal); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *service) ListPartnerFlashDeals(ctx context.Context, partnerID uuid.UUID) ([]View, error) {
	rows, err := s.repo.ListPartnerFlashDeals(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, FromFlashDeal(&rows[i]).View())
	}
	return views, nil
}

func (s *service) SuggestPlaces(ctx context.Context, input, language string) ([]maps.Suggestion, error) {
	if s.places == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "place lookup is not configured")
	}
	return s.places.Autocomplete(ctx, input, language)
}

func project(items []Redeemable, params ListParams) []View {
	var distances []float64
	if params.Origin != nil {
		distances = geo.SortByDistance(*params.Origin, items)
	}
	limit := params.limit()
	if len(items) > limit {
		items = items[:limit]
	}
	views := make([]View, 0, len(items))
	for i, item := range items {
		view := item.View()
		if distances != nil {
			d := distances[i]
			view.DistanceKm = &d
		}
		views = append(views, view)
	}
	return views
}
