package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidValue = errors.New("invalid value")

// EnumFields maps each enumerated record field to the values it accepts.
var EnumFields = map[string][]string{
	"implementation_status": ImplementationStatuses,
	"promotion_status":      PromotionStates,
	"tier":                  Tiers,
	"revenue_model":         RevenueModels,
	"revenue_status":        RevenueStatuses,
}

// UpdateField sets field on the named repository and describes the change as
// "name.field: old -> new". value must be JSON-encodable; a field the record
// models must also decode into its Go type. Fields the record does not model
// are stored as given.
func (r *Registry) UpdateField(name, field string, value any) (string, error) {
	e, err := r.FindRepo(name)
	if err != nil {
		return "", err
	}
	if valid, ok := EnumFields[field]; ok {
		if s, isString := value.(string); !isString || !slices.Contains(valid, s) {
			return "", fmt.Errorf("%w: %s '%v' (valid: %s)", ErrInvalidValue, field, value, joinSorted(valid))
		}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
	}
	b, err := json.Marshal(e.Repo)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	doc, err := decodeObject(b)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	old := "<unset>"
	if doc.has(field) {
		old = displayJSON(doc.raw[field])
	}
	doc.set(field, raw)

	var updated Repo
	if err := json.Unmarshal(doc.encode(), &updated); err != nil {
		return "", fmt.Errorf("%w: %s '%v': %v", ErrInvalidValue, field, value, err)
	}
	*e.Repo = updated
	return fmt.Sprintf("%s.%s: %s -> %v", name, field, old, value), nil
}

// displayJSON renders a raw JSON string without quotes and anything else as
// its JSON text.
func displayJSON(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}
