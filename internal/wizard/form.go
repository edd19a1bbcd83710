package wizard

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"marketplace-service/internal/models"

	"github.com/go-playground/validator/v10"
)

// Form is the state collected across every wizard step.
type Form struct {
	CategoryID        string                    `json:"category_id" validate:"required"`
	Title             string                    `json:"title" validate:"required,max=200"`
	Summary           string                    `json:"summary" validate:"max=2000"`
	MediaURLs         []string                  `json:"media_urls" validate:"dive,url"`
	PriceCents        *int64                    `json:"price_cents,omitempty" validate:"omitempty,gte=0,lte=100000000000000"`
	Currency          string                    `json:"currency" validate:"omitempty,len=3,alpha"`
	AvailabilitySlots []models.AvailabilitySlot `json:"availability_slots" validate:"dive"`
	Policies          []models.Policy           `json:"policies" validate:"dive"`
	Attributes        map[string]any            `json:"attributes"`
	Status            string                    `json:"status,omitempty" validate:"omitempty,oneof=draft published"`
}

// Patch carries a partial form update. Nil fields are left untouched; an
// attribute set to nil is removed.
type Patch struct {
	CategoryID        *string                    `json:"category_id"`
	Title             *string                    `json:"title"`
	Summary           *string                    `json:"summary"`
	MediaURLs         *[]string                  `json:"media_urls"`
	PriceCents        *int64                     `json:"price_cents"`
	ClearPrice        bool                       `json:"clear_price"`
	Currency          *string                    `json:"currency"`
	AvailabilitySlots *[]models.AvailabilitySlot `json:"availability_slots"`
	Policies          *[]models.Policy           `json:"policies"`
	Attributes        map[string]any             `json:"attributes"`
	Status            *string                    `json:"status"`
}

// Apply merges a patch into the form.
func (f *Form) Apply(p Patch) {
	if p.CategoryID != nil {
		f.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.Title != nil {
		f.Title = strings.TrimSpace(*p.Title)
	}
	if p.Summary != nil {
		f.Summary = strings.TrimSpace(*p.Summary)
	}
	if p.MediaURLs != nil {
		f.MediaURLs = append([]string(nil), (*p.MediaURLs)...)
	}
	if p.ClearPrice {
		f.PriceCents = nil
	} else if p.PriceCents != nil {
		v := *p.PriceCents
		f.PriceCents = &v
	}
	if p.Currency != nil {
		f.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.AvailabilitySlots != nil {
		f.AvailabilitySlots = append([]models.AvailabilitySlot(nil), (*p.AvailabilitySlots)...)
	}
	if p.Policies != nil {
		f.Policies = append([]models.Policy(nil), (*p.Policies)...)
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	for k, v := range p.Attributes {
		if v == nil {
			delete(f.Attributes, k)
			continue
		}
		if f.Attributes == nil {
			f.Attributes = make(map[string]any)
		}
		f.Attributes[k] = v
	}
}

// FormFromListing loads an existing listing into form state. Availability
// slots and policies are lifted back out of the attributes bag.
func FormFromListing(l *models.Listing) Form {
	form := Form{
		CategoryID: l.CategoryID,
		Title:      l.Title,
		Summary:    l.Summary,
		MediaURLs:  append([]string(nil), l.MediaURLs...),
		Currency:   l.Currency,
		Status:     l.Status,
		Attributes: make(map[string]any, len(l.Attributes)),
	}
	if l.PriceCents != nil {
		v := *l.PriceCents
		form.PriceCents = &v
	}
	for k, v := range l.Attributes {
		switch k {
		case attrAvailabilitySlots:
			_ = remarshal(v, &form.AvailabilitySlots)
		case attrPolicies:
			_ = remarshal(v, &form.Policies)
		default:
			form.Attributes[k] = v
		}
	}
	return form
}

func remarshal(src any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// FieldErrors maps a form field name to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) merge(other FieldErrors) {
	for k, v := range other {
		fe[k] = v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// translate turns validator errors into FieldErrors keyed by JSON path.
func translate(err error) FieldErrors {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"form": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out[ns] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "alpha":
		return "must contain only letters"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}

// validateDetails checks only the fields gated by the details step.
func (f *Form) validateDetails() FieldErrors {
	return translate(validate.StructPartial(f, "Title", "Summary"))
}

// validateAll runs every struct rule plus the category schema.
func (f *Form) validateAll(schema Schema) FieldErrors {
	errs := FieldErrors{}
	errs.merge(translate(validate.Struct(f)))
	errs.merge(schema.Validate(f.Attributes))
	if len(errs) == 0 {
		return nil
	}
	return errs
}
