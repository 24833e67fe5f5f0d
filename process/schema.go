package process

import (
	"fmt"

	"github.com/BaSui01/agentprocessor/api"
)

// ValidateInput checks a decoded request body against h's derived schema,
// applying declared defaults for missing optional fields and coercing
// between numerically compatible types (e.g. a JSON number 3 satisfying an
// "integer" param). It returns the validated, possibly-defaulted body plus
// the list of field failures to surface as a 422 "detail" array; a non-nil
// detail slice means the request was rejected.
func ValidateInput(h *HandlerDescriptor, body map[string]any) (map[string]any, []api.ValidationDetail) {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}

	known := make(map[string]struct{}, len(h.Params))
	for _, p := range h.Params {
		known[p.Name] = struct{}{}
	}

	var details []api.ValidationDetail
	for field := range body {
		if _, ok := known[field]; !ok {
			details = append(details, api.ValidationDetail{
				Field:   field,
				Reason:  "unknown_field",
				Message: fmt.Sprintf("%q is not a recognized field", field),
			})
		}
	}

	for _, p := range h.Params {
		v, present := out[p.Name]
		if !present {
			if p.Default != nil {
				out[p.Name] = p.Default
				continue
			}
			details = append(details, api.ValidationDetail{
				Field:   p.Name,
				Reason:  "required",
				Message: fmt.Sprintf("%q is required", p.Name),
			})
			continue
		}

		coerced, ok := coerceTyped(v, string(p.Type))
		if !ok {
			details = append(details, api.ValidationDetail{
				Field:   p.Name,
				Reason:  "type",
				Message: fmt.Sprintf("%q must be of type %s", p.Name, p.Type),
			})
			continue
		}
		out[p.Name] = coerced
	}

	return out, details
}

// coerceTyped attempts to make v conform to want, allowing only numerically
// compatible conversions (integer<->number); every other mismatch fails.
func coerceTyped(v any, want string) (any, bool) {
	switch want {
	case "string":
		s, ok := v.(string)
		return s, ok
	case "boolean":
		b, ok := v.(bool)
		return b, ok
	case "object":
		m, ok := v.(map[string]any)
		return m, ok
	case "array":
		a, ok := v.([]any)
		return a, ok
	case "number":
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		return nil, false
	case "integer":
		switch n := v.(type) {
		case float64:
			if n == float64(int64(n)) {
				return int64(n), true
			}
			return nil, false
		case int:
			return int64(n), true
		case int64:
			return n, true
		}
		return nil, false
	default:
		return nil, false
	}
}
