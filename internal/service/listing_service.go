package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/util"
	"marketplace-service/internal/wizard"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrWizardNotFound is returned for unknown or expired wizard sessions
	ErrWizardNotFound = errors.New("wizard session not found or expired")
	// ErrNotListingOwner is returned when editing another seller's listing
	ErrNotListingOwner = errors.New("listing belongs to another seller")
	// ErrNotWizardOwner is returned when a seller touches another seller's wizard
	ErrNotWizardOwner = errors.New("wizard session belongs to another seller")
	// ErrSellerRequired is returned when a wizard call carries no seller
	ErrSellerRequired = errors.New("a seller id is required")
)

// WizardStore keeps wizard state between requests. LoadWizard returns nil,
// nil for unknown ids.
type WizardStore interface {
	LoadWizard(ctx context.Context, id string) (*wizard.Wizard, error)
	SaveWizard(ctx context.Context, w *wizard.Wizard, ttl time.Duration) error
	DeleteWizard(ctx context.Context, id string) error
}

type listingEventPublisher interface {
	PublishListingPublished(ctx context.Context, event *models.ListingPublishedEvent) error
}

// ListingService runs the listing wizard against the configured backend
type ListingService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
	wizards    WizardStore
	publisher  listingEventPublisher
	calc       *pricing.Calculator
	ttl        time.Duration
	logger     *zap.Logger
}

// ListingDeps bundles the collaborators of a ListingService
type ListingDeps struct {
	Listings   repository.ListingRepository
	Categories repository.CategoryRepository
	Wizards    WizardStore
	Publisher  listingEventPublisher
	Calculator *pricing.Calculator
	WizardTTL  time.Duration
}

// NewListingService creates a new listing service
func NewListingService(deps ListingDeps) *ListingService {
	ttl := deps.WizardTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &ListingService{
		listings:   deps.Listings,
		categories: deps.Categories,
		wizards:    deps.Wizards,
		publisher:  deps.Publisher,
		calc:       deps.Calculator,
		ttl:        ttl,
		logger:     util.GetLogger(),
	}
}

// StartWizardRequest opens a wizard. A ListingID switches to edit mode.
type StartWizardRequest struct {
	ListingID  string `json:"listing_id"`
	CategoryID string `json:"category_id"`
}

// WizardView is the client projection of a wizard
type WizardView struct {
	ID        string             `json:"id"`
	Mode      wizard.Mode        `json:"mode"`
	ListingID string             `json:"listing_id,omitempty"`
	Step      wizard.Step        `json:"step"`
	Steps     []wizard.StepState `json:"steps"`
	Form      wizard.Form        `json:"form"`
	Controls  []wizard.Control   `json:"controls,omitempty"`
	Preview   *pricing.Breakdown `json:"preview,omitempty"`
	Errors    wizard.FieldErrors `json:"errors,omitempty"`
}

func (s *ListingService) view(w *wizard.Wizard, schema wizard.Schema) *WizardView {
	v := &WizardView{
		ID:        w.ID,
		Mode:      w.Mode,
		ListingID: w.ListingID,
		Step:      w.Step(),
		Steps:     w.Statuses(),
		Form:      w.Form,
		Preview:   w.Preview(s.calc),
	}
	if len(schema) > 0 {
		v.Controls = schema.Controls()
	}
	return v
}

// Start opens a wizard for a seller. Edit mode prefills from the stored
// listing; both modes begin at the first step.
func (s *ListingService) Start(ctx context.Context, sellerID string, req StartWizardRequest) (*WizardView, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.Start")
	defer span.End()

	if sellerID == "" {
		return nil, ErrSellerRequired
	}

	var w *wizard.Wizard
	if req.ListingID != "" {
		done := observeBackend("get_listing")
		listing, err := s.listings.GetListing(ctx, req.ListingID)
		done()
		if err != nil {
			util.RecordError(span, err)
			return nil, fmt.Errorf("failed to load listing: %w", err)
		}
		if listing.SellerID != sellerID {
			return nil, ErrNotListingOwner
		}
		w = wizard.New(uuid.New().String(), wizard.ModeEdit, wizard.FormFromListing(listing))
		w.ListingID = listing.ID
	} else {
		w = wizard.New(uuid.New().String(), wizard.ModeCreate, wizard.Form{CategoryID: req.CategoryID})
	}
	w.SellerID = sellerID

	if err := s.wizards.SaveWizard(ctx, w, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save wizard: %w", err)
	}

	s.logger.Info("Listing wizard started",
		zap.String("wizard_id", w.ID),
		zap.String("mode", string(w.Mode)),
		zap.String("listing_id", w.ListingID))
	return s.view(w, nil), nil
}

// load fetches a wizard on behalf of the seller who started it
func (s *ListingService) load(ctx context.Context, sellerID, id string) (*wizard.Wizard, error) {
	if sellerID == "" {
		return nil, ErrSellerRequired
	}
	w, err := s.wizards.LoadWizard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load wizard: %w", err)
	}
	if w == nil {
		return nil, ErrWizardNotFound
	}
	if w.SellerID != sellerID {
		return nil, ErrNotWizardOwner
	}
	return w, nil
}

// schemaFor loads the category field schema. An unset category yields an
// empty schema.
func (s *ListingService) schemaFor(ctx context.Context, categoryID string) (wizard.Schema, error) {
	if categoryID == "" {
		return nil, nil
	}
	done := observeBackend("get_category")
	category, err := s.categories.GetCategory(ctx, categoryID)
	done()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, wizard.FieldErrors{"category_id": "unknown category"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return wizard.Schema(category.Fields), nil
}

// Get returns the current wizard projection
func (s *ListingService) Get(ctx context.Context, sellerID, id string) (*WizardView, error) {
	w, err := s.load(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	schema, err := s.schemaFor(ctx, w.Form.CategoryID)
	if err != nil {
		var fe wizard.FieldErrors
		if !errors.As(err, &fe) {
			return nil, err
		}
	}
	return s.view(w, schema), nil
}

// Update merges a form patch without moving the cursor
func (s *ListingService) Update(ctx context.Context, sellerID, id string, patch wizard.Patch) (*WizardView, error) {
	w, err := s.load(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	w.Apply(patch)
	if err := s.wizards.SaveWizard(ctx, w, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save wizard: %w", err)
	}
	return s.view(w, nil), nil
}

// Next advances one step. A failed guard returns the unchanged view with
// its field errors alongside a wizard.FieldErrors error.
func (s *ListingService) Next(ctx context.Context, sellerID, id string) (*WizardView, error) {
	w, err := s.load(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	cursor := w.Cursor
	if err := w.Next(); err != nil {
		util.WizardTransitionsTotal.WithLabelValues("next", "blocked").Inc()
		v := s.view(w, nil)
		var fe wizard.FieldErrors
		if errors.As(err, &fe) {
			v.Errors = fe
		}
		return v, err
	}

	schema, err := s.schemaFor(ctx, w.Form.CategoryID)
	if err != nil {
		var fe wizard.FieldErrors
		if errors.As(err, &fe) {
			w.Cursor = cursor
			util.WizardTransitionsTotal.WithLabelValues("next", "blocked").Inc()
			v := s.view(w, nil)
			v.Errors = fe
			return v, fe
		}
		return nil, err
	}

	if err := s.wizards.SaveWizard(ctx, w, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save wizard: %w", err)
	}
	util.WizardTransitionsTotal.WithLabelValues("next", "ok").Inc()
	return s.view(w, schema), nil
}

// Prev goes back one step
func (s *ListingService) Prev(ctx context.Context, sellerID, id string) (*WizardView, error) {
	w, err := s.load(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	w.Prev()
	if err := s.wizards.SaveWizard(ctx, w, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save wizard: %w", err)
	}
	util.WizardTransitionsTotal.WithLabelValues("prev", "ok").Inc()
	return s.view(w, nil), nil
}

// SaveDraft submits the form as a draft without validation
func (s *ListingService) SaveDraft(ctx context.Context, sellerID, id string) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.SaveDraft")
	defer span.End()

	w, err := s.load(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	listing, err := s.submit(ctx, w, models.ListingStatusDraft)
	util.RecordError(span, err)
	return listing, err
}

// Publish validates the whole form against the category schema and submits
// it as published.
func (s *ListingService) Publish(ctx context.Context, sellerID, id string) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingService.Publish")
	defer span.End()

	w, err := s.load(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	schema, err := s.schemaFor(ctx, w.Form.CategoryID)
	var fe wizard.FieldErrors
	if err != nil && !errors.As(err, &fe) {
		return nil, err
	}
	if err := w.ValidateAll(schema); err != nil {
		var verr wizard.FieldErrors
		if errors.As(err, &verr) {
			for k, v := range fe {
				verr[k] = v
			}
		}
		return nil, err
	}
	if len(fe) > 0 {
		return nil, fe
	}

	listing, err := s.submit(ctx, w, models.ListingStatusPublished)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	event := &models.ListingPublishedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeListingPublished,
			Timestamp: time.Now(),
		},
		ListingID:  listing.ID,
		SellerID:   listing.SellerID,
		CategoryID: listing.CategoryID,
	}
	if err := s.publisher.PublishListingPublished(ctx, event); err != nil {
		s.logger.Error("Failed to publish ListingPublished event", zap.Error(err))
	}
	return listing, nil
}

// submit sends the payload to the backend. The wizard is deleted on
// success and kept on failure so the seller can retry.
func (s *ListingService) submit(ctx context.Context, w *wizard.Wizard, status string) (*models.Listing, error) {
	payload := w.BuildPayload(status)

	var (
		listing *models.Listing
		err     error
	)
	switch w.Mode {
	case wizard.ModeEdit:
		done := observeBackend("update_listing")
		listing, err = s.listings.UpdateListing(ctx, w.ListingID, payload)
		done()
	default:
		done := observeBackend("create_listing")
		listing, err = s.listings.CreateListing(ctx, w.SellerID, payload)
		done()
		if err == nil && status == models.ListingStatusPublished {
			// A retry after a failed publish must not create a second listing.
			w.Mode = wizard.ModeEdit
			w.ListingID = listing.ID
			if perr := s.listings.PublishListing(ctx, listing.ID); perr != nil {
				if serr := s.wizards.SaveWizard(ctx, w, s.ttl); serr != nil {
					s.logger.Error("Failed to save wizard after partial submit", zap.Error(serr))
				}
				err = perr
			} else {
				listing.Status = models.ListingStatusPublished
			}
		}
	}
	if err != nil {
		util.ListingsSubmittedTotal.WithLabelValues(status+"_failed", string(w.Mode)).Inc()
		s.logger.Warn("Listing submission failed",
			zap.String("wizard_id", w.ID),
			zap.String("status", status),
			zap.Error(err))
		return nil, fmt.Errorf("failed to submit listing: %w", err)
	}

	if err := s.wizards.DeleteWizard(ctx, w.ID); err != nil {
		s.logger.Error("Failed to delete wizard", zap.String("wizard_id", w.ID), zap.Error(err))
	}
	util.ListingsSubmittedTotal.WithLabelValues(status, string(w.Mode)).Inc()
	s.logger.Info("Listing submitted",
		zap.String("listing_id", listing.ID),
		zap.String("status", status))
	return listing, nil
}

// CategoryForm returns the rendered attribute controls of a category
func (s *ListingService) CategoryForm(ctx context.Context, categoryID string) ([]wizard.Control, error) {
	done := observeBackend("get_category")
	category, err := s.categories.GetCategory(ctx, categoryID)
	done()
	if err != nil {
		return nil, err
	}
	return wizard.Schema(category.Fields).Controls(), nil
}

// ListCategories returns every category
func (s *ListingService) ListCategories(ctx context.Context) ([]models.Category, error) {
	done := observeBackend("list_categories")
	defer done()
	return s.categories.ListCategories(ctx)
}

// MemoryWizardStore keeps wizards in process memory. TTLs are ignored.
type MemoryWizardStore struct {
	mu      sync.Mutex
	wizards map[string][]byte
}

// NewMemoryWizardStore creates an empty in-memory wizard store
func NewMemoryWizardStore() *MemoryWizardStore {
	return &MemoryWizardStore{wizards: make(map[string][]byte)}
}

func (m *MemoryWizardStore) LoadWizard(_ context.Context, id string) (*wizard.Wizard, error) {
	m.mu.Lock()
	raw, ok := m.wizards[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var w wizard.Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (m *MemoryWizardStore) SaveWizard(_ context.Context, w *wizard.Wizard, _ time.Duration) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.wizards[w.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryWizardStore) DeleteWizard(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.wizards, id)
	m.mu.Unlock()
	return nil
}
