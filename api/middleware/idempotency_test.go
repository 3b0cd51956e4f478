package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/kairos100/swissluca-backend/pkg/redis"
)

const checkoutPath = "/api/v1/subscriptions/checkout"

type countingHandler struct {
	calls  int
	status int
	body   string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(h.body))
}

// newIdempotentRouter mounts h the way the API does: inside a group so the
// full pattern is known when the middleware runs.
func newIdempotentRouter(t *testing.T, h http.Handler) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(WithUserID(req.Context(), "user-1")))
			})
		})
		r.Use(Idempotency(store, nil))
		r.Method(http.MethodPost, checkoutPath, h)
		r.Method(http.MethodGet, "/api/v1/me", h)
	})
	return r, mr
}

func send(h http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouteTTL(t *testing.T) {
	cases := []struct {
		method, pattern string
		want            time.Duration
		ok              bool
	}{
		{http.MethodPost, checkoutPath, criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/payments/{paymentIntentID}/confirm", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/offers/{offerID}/activate", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/flash-deals/{dealID}/quick-activate", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/partner/v1/flash-deals", defaultIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/offers/{offerID}/activation", 0, false},
		{http.MethodPost, "/api/create-payment-intent", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, tc.pattern)
		assert.Equal(t, tc.ok, ok, tc.pattern)
		assert.Equal(t, tc.want, ttl, tc.pattern)
	}
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	h := &countingHandler{status: http.StatusAccepted, body: `{"data":{"status":"pending"}}`}
	router, mr := newIdempotentRouter(t, h)

	first := send(router, http.MethodPost, checkoutPath, "k-1", `{"plan":"monthly"}`)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	again := send(router, http.MethodPost, checkoutPath, "k-1", `{"plan":"monthly"}`)
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, "true", again.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.JSONEq(t, first.Body.String(), again.Body.String())
	assert.Equal(t, 1, h.calls)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "sl:idempotency:user-1|POST|"))
	assert.Equal(t, criticalIdempotencyTTL, mr.TTL(keys[0]))
}

func TestIdempotencyRejectsReusedKeyWithNewBody(t *testing.T) {
	h := &countingHandler{status: http.StatusOK, body: `{}`}
	router, _ := newIdempotentRouter(t, h)

	send(router, http.MethodPost, checkoutPath, "k-2", `{"plan":"monthly"}`)
	rec := send(router, http.MethodPost, checkoutPath, "k-2", `{"plan":"yearly"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", errorCode(t, rec))
	assert.Equal(t, 1, h.calls)
}

func TestIdempotencyLeavesOtherRequestsAlone(t *testing.T) {
	cases := map[string]struct {
		method, path, key string
		status            int
	}{
		"no key":         {http.MethodPost, checkoutPath, "", http.StatusCreated},
		"unlisted route": {http.MethodGet, "/api/v1/me", "k-3", http.StatusOK},
		"server error":   {http.MethodPost, checkoutPath, "k-4", http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := &countingHandler{status: tc.status, body: `{}`}
			router, mr := newIdempotentRouter(t, h)

			send(router, tc.method, tc.path, tc.key, `{}`)
			send(router, tc.method, tc.path, tc.key, `{}`)
			assert.Equal(t, 2, h.calls)
			assert.Empty(t, mr.Keys())
		})
	}
}

func TestIdempotencyNilStorePassesThrough(t *testing.T) {
	h := &countingHandler{status: http.StatusOK}
	wrapped := Idempotency(nil, nil)(h)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, checkoutPath, nil))
	assert.Equal(t, 1, h.calls)
}
