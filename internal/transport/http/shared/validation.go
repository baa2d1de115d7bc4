package shared

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"worklog/internal/platform/money"
	"worklog/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field issues for one request. The zero value is not
// usable; call NewValidator.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

// Check records reason against field unless ok holds.
func (v *Validator) Check(ok bool, field, reason string) {
	if !ok {
		v.Add(field, reason)
	}
}

func (v *Validator) Required(field, value, reason string) {
	v.Check(strings.TrimSpace(value) != "", field, reason)
}

// Enum accepts a blank value or one of allowed, ignoring case.
func (v *Validator) Enum(field, value string, allowed []string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	ok := slices.ContainsFunc(allowed, func(candidate string) bool {
		return strings.EqualFold(value, candidate)
	})
	v.Check(ok, field, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	v.Add(startField, "must be on or before "+endField)
	v.Add(endField, "must be on or after "+startField)
}

// NonNegative checks an optional amount lies in [0, limit]; nil passes.
func (v *Validator) NonNegative(field string, amount *decimal.Decimal, limit decimal.Decimal) {
	if v.bounded(field, amount, limit) {
		v.Check(!amount.IsNegative(), field, "must not be negative")
	}
}

// Positive checks an optional amount lies in (0, limit]; nil passes.
func (v *Validator) Positive(field string, amount *decimal.Decimal, limit decimal.Decimal) {
	if v.bounded(field, amount, limit) {
		v.Check(amount.IsPositive(), field, "must be greater than 0")
	}
}

// bounded records an issue for amounts beyond limit and reports whether
// further checks apply.
func (v *Validator) bounded(field string, amount *decimal.Decimal, limit decimal.Decimal) bool {
	if amount == nil {
		return false
	}
	if !money.Within(*amount, limit) {
		v.Add(field, "must not exceed "+limit.StringFixed(2))
		return false
	}
	return true
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns a copy ordered by field then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		if c := cmp.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
	return out
}

// Reject writes a validation_error response when issues were recorded.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	details := map[string]any{"fields": issues}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed", details, requestID)
}
