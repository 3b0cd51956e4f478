package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

type dealBody struct {
	Name          string          `json:"name" validate:"required,max=20"`
	DurationHours int             `json:"duration_hours" validate:"gte=1,lte=168"`
	Price         decimal.Decimal `json:"price" validate:"gt=0"`
}

func newBodyRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	var dest dealBody
	err := DecodeJSONBody(newBodyRequest(`{"name":"","duration_hours":0,"price":"0"}`), &dest)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be at least 1", details["duration_hours"])
	assert.Equal(t, "must be greater than 0", details["price"])
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest dealBody
	require.NoError(t, DecodeJSONBody(newBodyRequest(`{"name":"Kebab","duration_hours":3,"price":12.5}`), &dest))
	assert.True(t, dest.Price.Equal(decimal.RequireFromString("12.5")))
}

func TestDecodeJSONBodyStrictness(t *testing.T) {
	var strict dealBody
	err := DecodeJSONBody(newBodyRequest(`{"name":"x","duration_hours":1,"price":1,"extra":true}`), &strict)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var lenient dealBody
	assert.NoError(t, DecodeJSONBodyLenient(newBodyRequest(`{"name":"x","duration_hours":1,"price":1,"extra":true}`), &lenient))
}

func TestParseQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&lat=46.2&lng=abc", nil)

	limit, err := ParseQueryInt(r, "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	lat, err := ParseQueryFloat(r, "lat", -90, 90)
	require.NoError(t, err)
	require.NotNil(t, lat)
	assert.InDelta(t, 46.2, *lat, 1e-9)

	_, err = ParseQueryFloat(r, "lng", -180, 180)
	assert.Error(t, err)

	missing, err := ParseQueryFloat(r, "radius", 0, 100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryInt(r, "lat", 0, 0, 10)
	assert.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(r, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(r, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", Truncate("  abcdef ", 3))
	assert.Equal(t, "abc", Truncate(" abc ", 0))
	assert.Equal(t, "Zürich", Truncate("Zürich Altstadt", 6))
	assert.Equal(t, "Café", Truncate("Café crème", 5))

	r := httptest.NewRequest(http.MethodGet, "/?q=%20Gen%C3%A8ve%20", nil)
	assert.Equal(t, "Genève", QueryString(r, "q", 10))
}

func TestDecodeJSONBodyRejectsEmptyAndTrailing(t *testing.T) {
	var dest dealBody
	err := DecodeJSONBody(newBodyRequest(``), &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	err = DecodeJSONBody(newBodyRequest(`{"name":"x","duration_hours":1,"price":1}{"name":"y"}`), &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Message(), "single JSON object")
}

func TestDecodeJSONBodyUpperBoundMessage(t *testing.T) {
	var dest dealBody
	err := DecodeJSONBody(newBodyRequest(`{"name":"x","duration_hours":200,"price":1}`), &dest)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "must be at most 168", details["duration_hours"])
}
