package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/restclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRepo answers the calls these tests make. Anything else panics through
// the nil embedded interface.
type stubRepo struct {
	repository.Repository
	listings map[string]*models.Listing
	listErr  error
	promoErr error
}

func (r *stubRepo) GetListing(_ context.Context, id string) (*models.Listing, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	l, ok := r.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l, nil
}

func (r *stubRepo) FindPromoByCode(context.Context, string) (*models.PromoCode, error) {
	if r.promoErr != nil {
		return nil, r.promoErr
	}
	return nil, repository.ErrNotFound
}

func (r *stubRepo) GetCategory(context.Context, string) (*models.Category, error) {
	return nil, repository.ErrNotFound
}

func (r *stubRepo) ListPaymentMethods(context.Context, string) ([]models.PaymentMethod, error) {
	return nil, repository.ErrNotConfigured
}

type noopKV struct{}

func (noopKV) ReserveIdempotencyKey(context.Context, string, time.Duration) (string, bool, error) {
	return "", true, nil
}
func (noopKV) SetIdempotencyKey(context.Context, string, string, time.Duration) error { return nil }
func (noopKV) ReleaseIdempotencyKey(context.Context, string) error                    { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error { return nil }
func (noopPublisher) PublishListingPublished(context.Context, *models.ListingPublishedEvent) error {
	return nil
}

type testServer struct {
	router *gin.Engine
	repo   *stubRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &stubRepo{listings: map[string]*models.Listing{
		"l1":   {ID: "l1", SellerID: "s1", PriceCents: ptr(int64(2000)), Currency: "USD", Status: models.ListingStatusPublished},
		"free": {ID: "free", SellerID: "s1", Status: models.ListingStatusPublished},
	}}

	rates, err := pricing.ParseRates("10", "0")
	require.NoError(t, err)
	calc := pricing.NewCalculator(rates)

	promos := service.NewPromoService(repo, nil)
	h := NewHandler(Services{
		Sessions: session.NewManager(session.NewMemoryStore(), time.Hour),
		Checkout: service.NewCheckoutService(service.CheckoutDeps{
			Listings: repo, Orders: repo, Promos: promos, Calculator: calc,
			Idempotency: noopKV{}, Publisher: noopPublisher{},
		}),
		Promos: promos,
		Listings: service.NewListingService(service.ListingDeps{
			Listings: repo, Categories: repo, Wizards: service.NewMemoryWizardStore(),
			Publisher: noopPublisher{}, Calculator: calc,
		}),
		Payouts:  service.NewPayoutService(repo, nil, 0),
		Accounts: service.NewAccountService(repo),
	})

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, repo: repo}
}

func ptr[T any](v T) *T { return &v }

func (s *testServer) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{}
	if sessionID != "" {
		headers[SessionHeader] = sessionID
	}
	return s.send(t, method, path, headers, body)
}

// as sends a request on behalf of a user
func (s *testServer) as(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.send(t, method, path, map[string]string{UserHeader: userID}, body)
}

func (s *testServer) send(t *testing.T, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/session", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(SessionHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, false, decode(t, w)["authenticated"])

	w = s.do(t, http.MethodPost, "/api/v1/session", id, map[string]string{"token": "tok"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, w.Header().Get(SessionHeader))
	assert.Equal(t, true, decode(t, w)["authenticated"])

	w = s.do(t, http.MethodPatch, "/api/v1/session/preferences", id, map[string]bool{"sidebar_collapsed": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["sidebar_collapsed"])

	w = s.do(t, http.MethodDelete, "/api/v1/session", id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, true, body["sidebar_collapsed"])
}

func TestLoginRequiresToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/session", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidatePromoNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/promos/validate", "", map[string]string{"code": "nope"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, service.PromoMsgNotFound, body["message"])
}

func TestValidatePromoNotConfigured(t *testing.T) {
	s := newTestServer(t)
	s.repo.promoErr = repository.ErrNotConfigured

	w := s.do(t, http.MethodPost, "/api/v1/promos/validate", "", map[string]string{"code": "any"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, notConfiguredMessage, decode(t, w)["error"])
}

func TestQuote(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "l1", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	breakdown := decode(t, w)["breakdown"].(map[string]any)
	assert.Equal(t, float64(4400), breakdown["total_cents"])
	assert.Equal(t, float64(3600), breakdown["seller_payout_cents"])
}

func TestQuoteErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "free"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "l1", "promo_code": "bad"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, service.PromoMsgNotFound, body["error"])
	assert.NotNil(t, body["promo"])

	w = s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "l1", "quantity": 10001})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteClampsNegativeQuantity(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "l1", "quantity": -1})
	require.Equal(t, http.StatusOK, w.Code)
	line := decode(t, w)["line_item"].(map[string]any)
	assert.Equal(t, float64(1), line["quantity"])
}

func TestUnauthorizedClearsSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/session", "", map[string]string{"token": "expired"})
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(SessionHeader)

	s.repo.listErr = repository.ErrUnauthorized
	w = s.do(t, http.MethodPost, "/api/v1/checkout/quote", id, map[string]any{"listing_id": "l1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, loginPath, decode(t, w)["redirect"])

	w = s.do(t, http.MethodGet, "/api/v1/session", id, nil)
	assert.Equal(t, false, decode(t, w)["authenticated"])
}

func TestBackendErrorIsBadGateway(t *testing.T) {
	s := newTestServer(t)
	s.repo.listErr = &restclient.APIError{Status: http.StatusInternalServerError, Message: "database exploded"}

	w := s.do(t, http.MethodPost, "/api/v1/checkout/quote", "", map[string]any{"listing_id": "l1"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "database exploded", decode(t, w)["error"])
}

func TestWizardNextBlocked(t *testing.T) {
	s := newTestServer(t)

	w := s.as(t, "s1", http.MethodPost, "/api/v1/listings/wizard", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = s.as(t, "s1", http.MethodPost, "/api/v1/listings/wizard/"+id+"/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Contains(t, body["fields"], "category_id")
	assert.Equal(t, "category", body["wizard"].(map[string]any)["step"])

	w = s.as(t, "s1", http.MethodPost, "/api/v1/listings/wizard/"+id+"/prev", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "category", decode(t, w)["step"])
}

func TestWizardNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.as(t, "s1", http.MethodGet, "/api/v1/listings/wizard/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWizardRequiresOwner(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/listings/wizard", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.as(t, "s1", http.MethodPost, "/api/v1/listings/wizard", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/api/v1/listings/wizard/"+id, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.as(t, "s2", http.MethodGet, "/api/v1/listings/wizard/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.as(t, "s2", http.MethodPatch, "/api/v1/listings/wizard/"+id, map[string]string{"title": "mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.as(t, "s1", http.MethodGet, "/api/v1/listings/wizard/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentMethods(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/me/payment-methods", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/payment-methods", nil)
	req.Header.Set(UserHeader, "u1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
