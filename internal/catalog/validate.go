package catalog

import "fmt"

// ValidationResult is the complete validation report for one call.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateParameters checks params against the named function's rules. All
// applicable violations are collected so the caller sees the full report in
// one round trip. Pure: no I/O, deterministic for identical input.
func (r *Registry) ValidateParameters(function string, params map[string]any) ValidationResult {
	fn, ok := r.Get(function)
	if !ok {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("unknown function: %q", function)},
		}
	}

	var errs []string
	for _, rule := range fn.Rules {
		value, present := params[rule.Name]
		if !present {
			if rule.Required {
				errs = append(errs, fmt.Sprintf("%s: required parameter is missing", rule.Name))
			}
			continue
		}
		errs = append(errs, checkRule(rule, value)...)
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// checkRule validates a present value against one rule. A type mismatch
// short-circuits the remaining checks for that field.
func checkRule(rule Rule, value any) []string {
	switch rule.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s: expected string, got %s", rule.Name, jsonTypeName(value))}
		}
		return checkString(rule, s)
	case TypeNumber:
		n, ok := asNumber(value)
		if !ok {
			return []string{fmt.Sprintf("%s: expected number, got %s", rule.Name, jsonTypeName(value))}
		}
		return checkNumber(rule, n)
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected array, got %s", rule.Name, jsonTypeName(value))}
		}
		return checkArray(rule, items)
	default:
		return []string{fmt.Sprintf("%s: unsupported rule type %q", rule.Name, rule.Type)}
	}
}

func checkString(rule Rule, s string) []string {
	var errs []string
	if rule.MinLen > 0 && len(s) < rule.MinLen {
		errs = append(errs, fmt.Sprintf("%s: must be at least %d characters", rule.Name, rule.MinLen))
	}
	if rule.MaxLen > 0 && len(s) > rule.MaxLen {
		errs = append(errs, fmt.Sprintf("%s: must be at most %d characters", rule.Name, rule.MaxLen))
	}
	if rule.Pattern != nil && !rule.Pattern.MatchString(s) {
		errs = append(errs, fmt.Sprintf("%s: does not match required pattern", rule.Name))
	}
	return errs
}

func checkNumber(rule Rule, n float64) []string {
	var errs []string
	if rule.Min != nil && n < *rule.Min {
		errs = append(errs, fmt.Sprintf("%s: must be at least %v", rule.Name, *rule.Min))
	}
	if rule.Max != nil && n > *rule.Max {
		errs = append(errs, fmt.Sprintf("%s: must be at most %v", rule.Name, *rule.Max))
	}
	return errs
}

func checkArray(rule Rule, items []any) []string {
	var errs []string
	if rule.MinItems > 0 && len(items) < rule.MinItems {
		errs = append(errs, fmt.Sprintf("%s: must contain at least %d items", rule.Name, rule.MinItems))
	}
	if rule.MaxItems > 0 && len(items) > rule.MaxItems {
		errs = append(errs, fmt.Sprintf("%s: must contain at most %d items", rule.Name, rule.MaxItems))
	}
	return errs
}

// asNumber accepts the numeric shapes JSON decoding can produce.
func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}
