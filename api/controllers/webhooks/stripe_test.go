package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	stripewebhook "github.com/kairos100/swissluca-backend/internal/webhooks/stripe"
	"github.com/kairos100/swissluca-backend/pkg/config"
	pkgredis "github.com/kairos100/swissluca-backend/pkg/redis"
	pkgstripe "github.com/kairos100/swissluca-backend/pkg/stripe"
)

const testSecret = "whsec_test"

type fakeService struct {
	calls    int
	lastType stripe.EventType
	err      error
}

func (f *fakeService) HandleEvent(_ context.Context, event *stripe.Event) error {
	f.calls++
	f.lastType = event.Type
	return f.err
}

func newVerifier(t *testing.T) *pkgstripe.Client {
	t.Helper()
	c, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_webhooks", Secret: testSecret, Env: "test"}, nil)
	require.NoError(t, err)
	return c
}

func redisGuard(t *testing.T) *stripewebhook.IdempotencyGuard {
	t.Helper()
	mr := miniredis.RunT(t)
	store := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	g, err := stripewebhook.NewIdempotencyGuard(store, time.Hour, "stripe-webhook")
	require.NoError(t, err)
	return g
}

func memoryGuard(t *testing.T) *stripewebhook.MemoryGuard {
	t.Helper()
	g, err := stripewebhook.NewMemoryGuard(16)
	require.NoError(t, err)
	return g
}

func signedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	intent, err := json.Marshal(&stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Amount:   450,
		Currency: "chf",
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: map[string]string{"purpose": "activation", "user_id": uuid.NewString(), "offer_id": uuid.NewString(), "kind": "offer"},
	})
	require.NoError(t, err)
	payload, err := json.Marshal(&stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypePaymentIntentSucceeded,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: intent},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func post(h http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookProcessesOnce(t *testing.T) {
	payload, sig := signedEvent(t)
	svc := &fakeService{}
	h := StripeWebhook(svc, newVerifier(t), redisGuard(t), nil)

	rec := post(h, payload, sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, stripe.EventTypePaymentIntentSucceeded, svc.lastType)

	rec = post(h, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls, "a redelivered event is acknowledged without reprocessing")
}

func TestStripeWebhookRejectsBadSignatures(t *testing.T) {
	payload, _ := signedEvent(t)
	svc := &fakeService{}
	h := StripeWebhook(svc, newVerifier(t), memoryGuard(t), nil)

	for name, sig := range map[string]string{"forged": "t=1,v1=deadbeef", "missing": ""} {
		t.Run(name, func(t *testing.T) {
			rec := post(h, payload, sig)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
			assert.Regexp(t, `^Webhook Error: `, rec.Body.String())
		})
	}
	assert.Zero(t, svc.calls)
}

func TestStripeWebhookRejectsOversizedPayload(t *testing.T) {
	h := StripeWebhook(&fakeService{}, newVerifier(t), memoryGuard(t), nil)
	rec := post(h, bytes.Repeat([]byte("a"), maxWebhookBytes+1), "t=1,v1=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestStripeWebhookFailureAllowsRetry(t *testing.T) {
	payload, sig := signedEvent(t)
	svc := &fakeService{err: errors.New("db down")}
	h := StripeWebhook(svc, newVerifier(t), memoryGuard(t), nil)

	rec := post(h, payload, sig)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	svc.err = nil
	rec = post(h, payload, sig)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.calls)
}

func TestStripeWebhookUnconfigured(t *testing.T) {
	rec := post(StripeWebhook(nil, nil, nil, nil), []byte("{}"), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
