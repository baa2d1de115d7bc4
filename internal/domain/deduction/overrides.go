package deduction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"worklog/internal/platform/money"
)

// ParseOverrides converts a finalize request's deductionOverrides object.
// Keys are deduction ids; values are null, a JSON number or a numeric string.
func ParseOverrides(raw map[string]json.RawMessage) (Overrides, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(Overrides, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: key %q is not a deduction id", ErrInvalidOverride, key)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: deduction %d is given more than once", ErrInvalidOverride, id)
		}
		amount, skip, err := parseOverrideValue(value)
		if err != nil {
			return nil, fmt.Errorf("%w: deduction %d", ErrInvalidOverride, id)
		}
		if skip {
			out[id] = nil
			continue
		}
		out[id] = &amount
	}
	return out, nil
}

func parseOverrideValue(value json.RawMessage) (decimal.Decimal, bool, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, true, nil
	}
	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return decimal.Zero, false, err
		}
		text = strings.TrimSpace(text)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !money.Within(amount, money.MaxAmount) {
		return decimal.Zero, false, fmt.Errorf("amount %s is out of range", text)
	}
	return amount, false, nil
}

func (o Overrides) validate() error {
	for id, amount := range o {
		if id <= 0 {
			return fmt.Errorf("%w: deduction %d", ErrInvalidOverride, id)
		}
		if amount != nil && !money.Within(*amount, money.MaxAmount) {
			return fmt.Errorf("%w: deduction %d is out of range", ErrInvalidOverride, id)
		}
	}
	return nil
}
