package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/api/middleware"
	"github.com/kairos100/swissluca-backend/api/responses"
	"github.com/kairos100/swissluca-backend/api/validators"
	"github.com/kairos100/swissluca-backend/internal/offers"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/geo"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

type createFlashDealRequest struct {
	Name            string          `json:"name" validate:"required,max=120"`
	MerchantName    string          `json:"merchant_name" validate:"max=120"`
	Description     *string         `json:"description,omitempty"`
	ImageURL        *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	Category        string          `json:"category" validate:"max=64"`
	Address         string          `json:"address"`
	Lat             *float64        `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng             *float64        `json:"lng,omitempty" validate:"omitempty,longitude"`
	PlaceID         string          `json:"place_id"`
	OriginalPrice   decimal.Decimal `json:"original_price" validate:"gte=0"`
	DiscountedPrice decimal.Decimal `json:"discounted_price" validate:"gte=0"`
	DurationHours   int             `json:"duration_hours" validate:"required,gte=1"`
	MaxQuantity     int             `json:"max_quantity" validate:"gte=0"`
	StartTime       *time.Time      `json:"start_time,omitempty"`
}

func (p createFlashDealRequest) toInput() offers.CreateFlashDealInput {
	in := offers.CreateFlashDealInput{
		Name:            p.Name,
		MerchantName:    p.MerchantName,
		Description:     p.Description,
		ImageURL:        p.ImageURL,
		Category:        p.Category,
		Address:         p.Address,
		PlaceID:         p.PlaceID,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.DiscountedPrice,
		DurationHours:   p.DurationHours,
		MaxQuantity:     p.MaxQuantity,
		StartTime:       p.StartTime,
	}
	if p.Lat != nil && p.Lng != nil {
		in.Location = &geo.Point{Lat: *p.Lat, Lng: *p.Lng}
	}
	return in
}

// PartnerCreateFlashDeal lets partners and admins publish a time-boxed deal.
func PartnerCreateFlashDeal(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		partnerID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createFlashDealRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		deal, err := svc.CreateFlashDeal(ctx, partnerID, payload.toInput())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithOfferID(ctx, deal.ID.String()), "flash deal created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offers.FromFlashDeal(deal).View())
	}
}

func PartnerListFlashDeals(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		partnerID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		views, err := svc.ListPartnerFlashDeals(ctx, partnerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// PartnerPlaceSuggestions proxies Google Places autocomplete for the deal form.
func PartnerPlaceSuggestions(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		query := validators.QueryString(r, "q", 200)
		if len(query) < 2 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "query must be at least 2 characters").
				WithDetails(map[string]any{"field": "q"}))
			return
		}
		lang := strings.TrimSpace(r.URL.Query().Get("lang"))
		if lang == "" {
			lang = "de"
		}
		suggestions, err := svc.SuggestPlaces(ctx, query, lang)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, suggestions)
	}
}
