package controllers

import (
	"net/http"
	"strings"

	"github.com/kairos100/swissluca-backend/api/responses"
	"github.com/kairos100/swissluca-backend/api/validators"
	"github.com/kairos100/swissluca-backend/internal/offers"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/geo"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

func ListOffers(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.ListOffers(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func GetOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "offerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetOffer(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListFlashDeals returns live flash deals only; expiry is checked at read time.
func ListFlashDeals(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.ListFlashDeals(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func MapPins(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		pins, err := svc.MapPins(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pins)
	}
}

func parseListParams(r *http.Request) (offers.ListParams, error) {
	lat, err := validators.ParseQueryFloat(r, "lat", -90, 90)
	if err != nil {
		return offers.ListParams{}, err
	}
	lng, err := validators.ParseQueryFloat(r, "lng", -180, 180)
	if err != nil {
		return offers.ListParams{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 200)
	if err != nil {
		return offers.ListParams{}, err
	}

	params := offers.ListParams{
		Category: validators.QueryString(r, "category", 64),
		Limit:    limit,
	}
	switch {
	case lat != nil && lng != nil:
		params.Origin = &geo.Point{Lat: *lat, Lng: *lng}
	case lat != nil || lng != nil:
		return offers.ListParams{}, pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must be provided together")
	}
	params.Category = strings.TrimSpace(params.Category)
	return params, nil
}
