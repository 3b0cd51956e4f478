package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos100/swissluca-backend/api/middleware"
	"github.com/kairos100/swissluca-backend/internal/activation"
	"github.com/kairos100/swissluca-backend/internal/offers"
	"github.com/kairos100/swissluca-backend/internal/payments"
	stripewebhook "github.com/kairos100/swissluca-backend/internal/webhooks/stripe"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/pagination"
)

type stubPayments struct {
	input  payments.IntentInput
	handle payments.PaymentHandle
	status *payments.IntentStatus
	params pagination.Params
	err    error
}

func (s *stubPayments) CreateIntent(_ context.Context, in payments.IntentInput) (payments.PaymentHandle, error) {
	s.input = in
	return s.handle, s.err
}

func (s *stubPayments) Status(context.Context, string) (*payments.IntentStatus, error) {
	return s.status, s.err
}

func (s *stubPayments) History(_ context.Context, _ uuid.UUID, params pagination.Params) (*payments.HistoryPage, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &payments.HistoryPage{Items: []payments.RecordView{}}, nil
}

type stubActivations struct {
	ref     offers.Ref
	quick   bool
	result  *activation.Result
	err     error
	records []models.ActivationRecord
}

func (s *stubActivations) RequestActivation(_ context.Context, _ uuid.UUID, ref offers.Ref) (*activation.Result, error) {
	s.ref = ref
	return s.result, s.err
}

func (s *stubActivations) QuickActivate(_ context.Context, _ uuid.UUID, ref offers.Ref) (*activation.Result, error) {
	s.ref = ref
	s.quick = true
	return s.result, s.err
}

func (s *stubActivations) Status(_ context.Context, _ uuid.UUID, offerID uuid.UUID) (*activation.StatusView, error) {
	return &activation.StatusView{OfferID: offerID, State: enums.ActivationStateAvailable}, s.err
}

func (s *stubActivations) Locked(context.Context, uuid.UUID) ([]activation.LockedOffer, error) {
	return nil, s.err
}

func (s *stubActivations) History(context.Context, uuid.UUID) ([]models.ActivationRecord, error) {
	return s.records, s.err
}

func withParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	Health(func() time.Time { return fixed })(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "2025-03-01T09:00:00Z", body["timestamp"])
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	svc := &stubPayments{handle: payments.PaymentHandle{PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret"}}
	body := `{"amount":12.5,"currency":"chf","description":"Coffee","metadata":{"table":4,"note":"window"}}`
	rec := httptest.NewRecorder()
	CreatePaymentIntent(svc, logger.Nop())(rec, httptest.NewRequest(http.MethodPost, "/api/create-payment-intent", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeMap(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "pi_1", out["paymentIntentId"])
	assert.Equal(t, "pi_1_secret", out["clientSecret"])
	assert.Equal(t, "12.5", svc.input.Amount.String())
	assert.Equal(t, "4", svc.input.Metadata["table"])
}

func TestCreatePaymentIntent_MissingFields(t *testing.T) {
	rec := httptest.NewRecorder()
	CreatePaymentIntent(&stubPayments{}, nil)(rec, httptest.NewRequest(http.MethodPost, "/api/create-payment-intent", strings.NewReader(`{"amount":10}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, missingPaymentFields, decodeMap(t, rec)["error"])
}

func TestCreatePaymentIntent_GatewayFailure(t *testing.T) {
	svc := &stubPayments{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("card network down"), "create payment intent")}
	body := `{"amount":10,"currency":"chf","description":"Coffee"}`
	rec := httptest.NewRecorder()
	CreatePaymentIntent(svc, logger.Nop())(rec, httptest.NewRequest(http.MethodPost, "/api/create-payment-intent", strings.NewReader(body)))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decodeMap(t, rec)
	assert.Equal(t, "Failed to create payment intent", out["error"])
	assert.Equal(t, "card network down", out["details"])
}

func TestPaymentStatus(t *testing.T) {
	reason := "declined"
	svc := &stubPayments{status: &payments.IntentStatus{
		PaymentIntentID:  "pi_9",
		Status:           "requires_payment_method",
		Amount:           450,
		Currency:         "chf",
		LastPaymentError: &reason,
	}}
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/payment-status/pi_9", nil), "paymentIntentID", "pi_9")
	rec := httptest.NewRecorder()
	PaymentStatus(svc, nil)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeMap(t, rec)
	assert.Equal(t, "pi_9", out["paymentIntentId"])
	assert.Equal(t, "requires_payment_method", out["status"])
	assert.EqualValues(t, 450, out["amount"])
	assert.Equal(t, "declined", out["lastPaymentError"])
	assert.NotContains(t, out, "Metadata")
}

type stubConfirmer struct {
	conf *stripewebhook.Confirmation
	err  error
}

func (s stubConfirmer) Confirm(context.Context, uuid.UUID, string) (*stripewebhook.Confirmation, error) {
	return s.conf, s.err
}

func TestPaymentConfirm(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodPost, "/api/v1/payments/pi_1/confirm", nil), "paymentIntentID", "pi_1")
	req = asUser(req, uuid.New())
	rec := httptest.NewRecorder()
	PaymentConfirm(stubConfirmer{conf: &stripewebhook.Confirmation{PaymentIntentID: "pi_1", Status: "succeeded"}}, nil)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	failed := pkgerrors.New(pkgerrors.CodePaymentFailed, "payment was not completed")
	PaymentConfirm(stubConfirmer{err: failed}, nil)(rec, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestActivateOffer_PendingPaymentIsAccepted(t *testing.T) {
	offerID := uuid.New()
	svc := &stubActivations{result: &activation.Result{State: enums.ActivationStatePaymentPending, OfferID: offerID, PaymentIntentID: "pi_1"}}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "offerID", offerID.String())
	rec := httptest.NewRecorder()
	ActivateOffer(svc, logger.Nop())(rec, asUser(req, uuid.New()))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, offers.Ref{Kind: enums.RedeemableKindOffer, ID: offerID}, svc.ref)
	assert.False(t, svc.quick)
}

func TestQuickActivateFlashDeal_CompletedIsCreated(t *testing.T) {
	dealID := uuid.New()
	svc := &stubActivations{result: &activation.Result{
		State:      enums.ActivationStateBlocked,
		OfferID:    dealID,
		Completion: &activation.Completion{Celebrate: true},
	}}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "dealID", dealID.String())
	rec := httptest.NewRecorder()
	QuickActivateFlashDeal(svc, nil)(rec, asUser(req, uuid.New()))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, svc.quick)
	assert.Equal(t, enums.RedeemableKindFlashDeal, svc.ref.Kind)
}

func TestActivate_BlockedIs422(t *testing.T) {
	svc := &stubActivations{err: pkgerrors.New(pkgerrors.CodeStateConflict, "offer is blocked for this user")}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "offerID", uuid.NewString())
	rec := httptest.NewRecorder()
	ActivateOffer(svc, nil)(rec, asUser(req, uuid.New()))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestActivate_RejectsBadIDAndMissingUser(t *testing.T) {
	svc := &stubActivations{}
	req := withParam(httptest.NewRequest(http.MethodPost, "/", nil), "offerID", "nope")
	rec := httptest.NewRecorder()
	ActivateOffer(svc, nil)(rec, asUser(req, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = withParam(httptest.NewRequest(http.MethodPost, "/", nil), "offerID", uuid.NewString())
	rec = httptest.NewRecorder()
	ActivateOffer(svc, nil)(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLockedOffers_EmptyListNotNull(t *testing.T) {
	rec := httptest.NewRecorder()
	LockedOffers(&stubActivations{}, nil)(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestActivationHistory(t *testing.T) {
	userID := uuid.New()
	svc := &stubActivations{records: []models.ActivationRecord{{ID: uuid.New(), UserID: userID, OfferName: "Espresso"}}}
	rec := httptest.NewRecorder()
	ActivationHistory(svc, nil)(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil), userID))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []activation.RecordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Espresso", body.Data[0].OfferName)
}

func TestParseListParams(t *testing.T) {
	params, err := parseListParams(httptest.NewRequest(http.MethodGet, "/?lat=47.37&lng=8.54&category=%20food%20&limit=5", nil))
	require.NoError(t, err)
	require.NotNil(t, params.Origin)
	assert.InDelta(t, 47.37, params.Origin.Lat, 1e-9)
	assert.Equal(t, "food", params.Category)
	assert.Equal(t, 5, params.Limit)

	_, err = parseListParams(httptest.NewRequest(http.MethodGet, "/?lat=47.37", nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = parseListParams(httptest.NewRequest(http.MethodGet, "/?lat=123&lng=8", nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPaymentHistoryPassesPageParams(t *testing.T) {
	svc := &stubPayments{}
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments?limit=5&cursor=abc", nil), uuid.New())
	rec := httptest.NewRecorder()

	PaymentHistory(svc, nil)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.Params{Limit: 5, Cursor: "abc"}, svc.params)
	assert.JSONEq(t, `{"data":{"items":[]}}`, rec.Body.String())
}

func TestPaymentHistoryRejectsOversizedLimit(t *testing.T) {
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/payments?limit=1000", nil), uuid.New())
	rec := httptest.NewRecorder()

	PaymentHistory(&stubPayments{}, nil)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
