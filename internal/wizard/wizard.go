// Package wizard drives the listing creation flow: a strictly sequential
// cursor over seven steps with validation gates on the first two, and the
// payload assembly used for draft and publish submissions.
package wizard

import (
	"encoding/json"
	"strings"

	"marketplace-service/internal/models"
	"marketplace-service/internal/pricing"
)

// Step identifies one wizard screen.
type Step string

const (
	StepCategory     Step = "category"
	StepDetails      Step = "details"
	StepMedia        Step = "media"
	StepPricing      Step = "pricing"
	StepAvailability Step = "availability"
	StepPolicies     Step = "policies"
	StepPreview      Step = "preview"
)

// Steps is the fixed step order.
var Steps = []Step{
	StepCategory,
	StepDetails,
	StepMedia,
	StepPricing,
	StepAvailability,
	StepPolicies,
	StepPreview,
}

// StepStatus is how the stepper shows a step relative to the cursor.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusActive    StepStatus = "active"
	StatusPending   StepStatus = "pending"
)

// Mode distinguishes creating a listing from editing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

const (
	attrAvailabilitySlots = "availability_slots"
	attrPolicies          = "policies"
)

// Wizard is the controller state. It is serialisable so it can be kept
// between requests.
type Wizard struct {
	ID        string `json:"id"`
	Mode      Mode   `json:"mode"`
	ListingID string `json:"listing_id,omitempty"`
	SellerID  string `json:"seller_id,omitempty"`
	Cursor    int    `json:"cursor"`
	Form      Form   `json:"form"`
}

// New starts a wizard at the first step, whatever the mode.
func New(id string, mode Mode, form Form) *Wizard {
	if form.Attributes == nil {
		form.Attributes = make(map[string]any)
	}
	return &Wizard{ID: id, Mode: mode, Form: form}
}

// UnmarshalJSON decodes stored state and clamps the cursor into the step
// range, so a damaged blob cannot index past Steps.
func (w *Wizard) UnmarshalJSON(data []byte) error {
	type stored Wizard
	var s stored
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*w = Wizard(s)
	w.clampCursor()
	return nil
}

func (w *Wizard) clampCursor() {
	switch {
	case w.Cursor < 0:
		w.Cursor = 0
	case w.Cursor >= len(Steps):
		w.Cursor = len(Steps) - 1
	}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return Steps[w.Cursor]
}

// Next advances one step if the current step's guard passes. A failed guard
// leaves the cursor unchanged and returns FieldErrors.
func (w *Wizard) Next() error {
	if errs := w.guard(); len(errs) > 0 {
		return errs
	}
	if w.Cursor < len(Steps)-1 {
		w.Cursor++
	}
	return nil
}

// Prev goes back one step, stopping at the first.
func (w *Wizard) Prev() {
	if w.Cursor > 0 {
		w.Cursor--
	}
}

func (w *Wizard) guard() FieldErrors {
	switch w.Step() {
	case StepCategory:
		if strings.TrimSpace(w.Form.CategoryID) == "" {
			return FieldErrors{"category_id": "select a category to continue"}
		}
	case StepDetails:
		return w.Form.validateDetails()
	}
	return nil
}

// StepState is one stepper entry.
type StepState struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
}

// Statuses projects every step against the cursor.
func (w *Wizard) Statuses() []StepState {
	states := make([]StepState, len(Steps))
	for i, s := range Steps {
		status := StatusPending
		switch {
		case i < w.Cursor:
			status = StatusCompleted
		case i == w.Cursor:
			status = StatusActive
		}
		states[i] = StepState{Step: s, Status: status}
	}
	return states
}

// Apply mutates form state.
func (w *Wizard) Apply(p Patch) {
	w.Form.Apply(p)
}

// ValidateAll runs full-form validation, including the category schema.
func (w *Wizard) ValidateAll(schema Schema) error {
	if errs := w.Form.validateAll(schema); len(errs) > 0 {
		return errs
	}
	return nil
}

// BuildPayload assembles the submission body. Availability slots and
// policies join the attributes bag only when non-empty, and status is sent
// only when editing.
func (w *Wizard) BuildPayload(status string) models.ListingPayload {
	attrs := make(map[string]any, len(w.Form.Attributes)+2)
	for k, v := range w.Form.Attributes {
		attrs[k] = v
	}
	if len(w.Form.AvailabilitySlots) > 0 {
		attrs[attrAvailabilitySlots] = w.Form.AvailabilitySlots
	}
	if len(w.Form.Policies) > 0 {
		attrs[attrPolicies] = w.Form.Policies
	}

	media := w.Form.MediaURLs
	if media == nil {
		media = []string{}
	}

	payload := models.ListingPayload{
		Title:      strings.TrimSpace(w.Form.Title),
		Summary:    strings.TrimSpace(w.Form.Summary),
		CategoryID: w.Form.CategoryID,
		PriceCents: w.Form.PriceCents,
		Currency:   w.Form.Currency,
		MediaURLs:  media,
		Attributes: attrs,
	}
	if w.Mode == ModeEdit {
		payload.Status = status
	}
	return payload
}

// Preview is the computed preview step: a one-unit breakdown when a price
// is set, nil otherwise.
func (w *Wizard) Preview(calc *pricing.Calculator) *pricing.Breakdown {
	line, err := pricing.NewLineItem(w.ListingID, w.Form.PriceCents, 1, w.Form.Currency)
	if err != nil {
		return nil
	}
	b := calc.Compute(line, 0)
	return &b
}
