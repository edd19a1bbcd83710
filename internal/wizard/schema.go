package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace-service/internal/models"
)

const dateLayout = "2006-01-02"

// Schema is a category's attribute field list.
type Schema []models.FieldDescriptor

// Control is a rendered input for one field descriptor.
type Control struct {
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Input    string            `json:"input"`
	Required bool              `json:"required"`
	Options  []string          `json:"options,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Controls renders every descriptor into an input control.
func (s Schema) Controls() []Control {
	controls := make([]Control, 0, len(s))
	for _, fd := range s {
		c := Control{
			Name:     fd.Key,
			Label:    fd.Label,
			Input:    string(fd.Kind),
			Required: fd.Required,
			Attrs:    map[string]string{},
		}
		switch fd.Kind {
		case models.FieldText:
			if fd.MaxLength > 0 {
				c.Attrs["maxlength"] = strconv.Itoa(fd.MaxLength)
			}
		case models.FieldNumber:
			if fd.Min != nil {
				c.Attrs["min"] = strconv.FormatFloat(*fd.Min, 'f', -1, 64)
			}
			if fd.Max != nil {
				c.Attrs["max"] = strconv.FormatFloat(*fd.Max, 'f', -1, 64)
			}
		case models.FieldSelect:
			c.Options = append([]string(nil), fd.Options...)
		case models.FieldDate:
			c.Attrs["pattern"] = `\d{4}-\d{2}-\d{2}`
		}
		if len(c.Attrs) == 0 {
			c.Attrs = nil
		}
		controls = append(controls, c)
	}
	return controls
}

// Validate checks attribute values against the descriptors. Errors are keyed
// as attributes.<key>.
func (s Schema) Validate(values map[string]any) FieldErrors {
	errs := FieldErrors{}
	for _, fd := range s {
		v, present := values[fd.Key]
		if !present || isBlank(v) {
			if fd.Required {
				errs["attributes."+fd.Key] = "is required"
			}
			continue
		}
		if msg := checkField(fd, v); msg != "" {
			errs["attributes."+fd.Key] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func checkField(fd models.FieldDescriptor, v any) string {
	switch fd.Kind {
	case models.FieldText:
		s, ok := v.(string)
		if !ok {
			return "must be text"
		}
		if fd.MaxLength > 0 && utf8.RuneCountInString(s) > fd.MaxLength {
			return fmt.Sprintf("must be at most %d characters", fd.MaxLength)
		}
	case models.FieldNumber:
		n, ok := toFloat(v)
		if !ok {
			return "must be a number"
		}
		if fd.Min != nil && n < *fd.Min {
			return fmt.Sprintf("must be at least %s", strconv.FormatFloat(*fd.Min, 'f', -1, 64))
		}
		if fd.Max != nil && n > *fd.Max {
			return fmt.Sprintf("must be at most %s", strconv.FormatFloat(*fd.Max, 'f', -1, 64))
		}
	case models.FieldSelect:
		s, ok := v.(string)
		if !ok || !contains(fd.Options, s) {
			return "must be one of: " + strings.Join(fd.Options, ", ")
		}
	case models.FieldCheckbox:
		b, ok := v.(bool)
		if !ok {
			return "must be true or false"
		}
		if fd.Required && !b {
			return "must be checked"
		}
	case models.FieldDate:
		s, ok := v.(string)
		if !ok {
			return "must be a date"
		}
		if _, err := time.Parse(dateLayout, s); err != nil {
			return "must be a date (YYYY-MM-DD)"
		}
	default:
		return "has an unsupported field type"
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}
