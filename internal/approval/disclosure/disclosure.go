// Package disclosure renders requested-field selectors for people and turns
// them into the data actually disclosed on approval.
package disclosure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"seeddid/internal/approval/models"
)

// ErrFieldNotFound is returned by a Source when the subject's credential has
// no such field (or there is no credential of that type).
var ErrFieldNotFound = errors.New("credential field not found")

// Value is the result of an unconstrained field read. Sealed values are held
// by the confidential compute side and carry no Raw value.
type Value struct {
	Raw    any
	Sealed bool
}

// Source reads a subject's credential fields.
type Source interface {
	FieldValue(ctx context.Context, subject string, dataType models.DataType, field string) (Value, error)
	// RevealComparison evaluates cmp against a sealed field without revealing it.
	RevealComparison(ctx context.Context, subject string, dataType models.DataType, field string, cmp models.Comparison) (bool, error)
}

// Summarize describes the requested fields, e.g. "Name, Age less than 30".
// Fields are listed in name order.
func Summarize(selector models.FieldSelector) string {
	requested := selector.Requested()
	names := sortedNames(requested)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		req := requested[name]
		if req.Comparison == nil {
			parts = append(parts, models.Capitalize(name))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s %s",
			models.Capitalize(name),
			req.Comparison.Operator.Word(),
			strconv.FormatFloat(req.Comparison.Value, 'f', -1, 64),
		))
	}
	return strings.Join(parts, ", ")
}

// Build reads every requested field of subject's credential from source.
// Flag fields carry the raw value; comparison fields carry the boolean result.
// Missing fields are omitted, as are sealed fields requested in raw form and
// non-numeric fields requested as comparisons.
func Build(ctx context.Context, selector models.FieldSelector, subject string, dataType models.DataType, source Source) (map[string]any, error) {
	requested := selector.Requested()
	out := make(map[string]any, len(requested))
	for _, name := range sortedNames(requested) {
		req := requested[name]
		value, err := source.FieldValue(ctx, subject, dataType, name)
		if errors.Is(err, ErrFieldNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read field %s: %w", name, err)
		}

		if req.Comparison == nil {
			if !value.Sealed {
				out[name] = value.Raw
			}
			continue
		}

		if value.Sealed {
			result, err := source.RevealComparison(ctx, subject, dataType, name, *req.Comparison)
			if errors.Is(err, ErrFieldNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("reveal comparison on %s: %w", name, err)
			}
			out[name] = result
			continue
		}

		stored, ok := ToFloat(value.Raw)
		if !ok {
			continue
		}
		out[name] = req.Comparison.Operator.Evaluate(stored, req.Comparison.Value)
	}
	return out, nil
}

// ToFloat converts numeric credential values, including numeric strings from
// form input, to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func sortedNames(selector models.FieldSelector) []string {
	names := make([]string, 0, len(selector))
	for name := range selector {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
