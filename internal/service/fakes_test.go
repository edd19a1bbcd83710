package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
)

var errBackendDown = errors.New("backend down")

// fakeRepo is an in-memory repository.Repository
type fakeRepo struct {
	mu         sync.Mutex
	seq        int
	listings   map[string]*models.Listing
	categories map[string]*models.Category
	promos     map[string]*models.PromoCode
	orders     map[string]*models.Order
	payouts    []models.Payout

	created   []models.ListingPayload
	updated   []models.ListingPayload
	published []string

	failCreateListing  error
	failUpdateListing  error
	failPublishListing error
	failCreatePayout   error
	failCreateOrder    error
	failFindPromo      error

	// beforeCreateOrder runs ahead of the insert, standing in for a
	// concurrent request that lands between quote and insert
	beforeCreateOrder func()
}

var _ repository.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		listings:   make(map[string]*models.Listing),
		categories: make(map[string]*models.Category),
		promos:     make(map[string]*models.PromoCode),
		orders:     make(map[string]*models.Order),
	}
}

func (r *fakeRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *fakeRepo) GetListing(_ context.Context, id string) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) CreateListing(_ context.Context, sellerID string, p models.ListingPayload) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, p)
	if r.failCreateListing != nil {
		return nil, r.failCreateListing
	}
	status := p.Status
	if status == "" {
		status = models.ListingStatusDraft
	}
	l := &models.Listing{
		ID:         r.nextID("listing"),
		SellerID:   sellerID,
		CategoryID: p.CategoryID,
		Title:      p.Title,
		Summary:    p.Summary,
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
		MediaURLs:  p.MediaURLs,
		Attributes: p.Attributes,
		Status:     status,
	}
	r.listings[l.ID] = l
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) UpdateListing(_ context.Context, id string, p models.ListingPayload) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, p)
	if r.failUpdateListing != nil {
		return nil, r.failUpdateListing
	}
	l, ok := r.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l.Title, l.Summary, l.CategoryID = p.Title, p.Summary, p.CategoryID
	l.PriceCents, l.Currency, l.MediaURLs, l.Attributes = p.PriceCents, p.Currency, p.MediaURLs, p.Attributes
	if p.Status != "" {
		l.Status = p.Status
	}
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) PublishListing(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPublishListing != nil {
		return r.failPublishListing
	}
	l, ok := r.listings[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Status = models.ListingStatusPublished
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) GetCategory(_ context.Context, id string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) ListCategories(context.Context) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeRepo) FindPromoByCode(_ context.Context, code string) (*models.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFindPromo != nil {
		return nil, r.failFindPromo
	}
	p, ok := r.promos[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) CreateOrder(_ context.Context, o *models.Order) error {
	if r.beforeCreateOrder != nil {
		r.beforeCreateOrder()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateOrder != nil {
		return r.failCreateOrder
	}
	if o.PromoCodeID != nil {
		if err := r.redeemLocked(*o.PromoCodeID); err != nil {
			return err
		}
	}
	o.ID = r.nextID("order")
	o.CreatedAt = time.Now()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

// redeemLocked mirrors the conditional usage increment of the hosted store
func (r *fakeRepo) redeemLocked(id string) error {
	for _, p := range r.promos {
		if p.ID != id {
			continue
		}
		if p.MaxUses != nil && p.UsesCount >= *p.MaxUses {
			return repository.ErrPromoExhausted
		}
		p.UsesCount++
		return nil
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) GetOrder(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) CreatePayout(_ context.Context, p *models.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreatePayout != nil {
		return r.failCreatePayout
	}
	p.ID = r.nextID("payout")
	r.payouts = append(r.payouts, *p)
	return nil
}

func (r *fakeRepo) ListPayoutsBySeller(_ context.Context, sellerID string) ([]models.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payout
	for _, p := range r.payouts {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListPaymentMethods(context.Context, string) ([]models.PaymentMethod, error) {
	return nil, repository.ErrNotConfigured
}

func (r *fakeRepo) ListKYCDocuments(context.Context, string) ([]models.KYCDocument, error) {
	return nil, repository.ErrNotConfigured
}

func (r *fakeRepo) Close() error { return nil }

// fakeKV stands in for the Redis idempotency and dedupe keys
type fakeKV struct {
	mu        sync.Mutex
	keys      map[string]string
	processed map[string]bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{keys: make(map[string]string), processed: make(map[string]bool)}
}

// ReserveIdempotencyKey stores "" for a key that is claimed but unfinished
func (k *fakeKV) ReserveIdempotencyKey(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if orderID, ok := k.keys[key]; ok {
		return orderID, false, nil
	}
	k.keys[key] = ""
	return "", true, nil
}

func (k *fakeKV) ReleaseIdempotencyKey(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, key)
	return nil
}

func (k *fakeKV) SetIdempotencyKey(_ context.Context, key, orderID string, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[key] = orderID
	return nil
}

func (k *fakeKV) MarkEventProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.processed[eventID] {
		return false, nil
	}
	k.processed[eventID] = true
	return true, nil
}

func (k *fakeKV) UnmarkEventProcessed(_ context.Context, eventID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.processed, eventID)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	orders   []*models.OrderPlacedEvent
	listings []*models.ListingPublishedEvent
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, e)
	return nil
}

func (p *fakePublisher) PublishListingPublished(_ context.Context, e *models.ListingPublishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listings = append(p.listings, e)
	return nil
}

func i64(v int64) *int64 { return &v }
func intp(v int) *int    { return &v }
func str(s string) *string {
	return &s
}

func tenPercentCalculator() *pricing.Calculator {
	rates, err := pricing.ParseRates("10", "0")
	if err != nil {
		panic(err)
	}
	return pricing.NewCalculator(rates)
}
