// Package validate implements per-type constraint checking for parameter
// values. Every write path (direct edits, template application, revert)
// runs values through Validate before they reach the store; inherited
// reads never do.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/expr-lang/expr"

	"github.com/modelforge/paramd/internal/model"
)

// ValidationError reports a value that failed a constraint. Rule names
// the check that rejected the value ("type", "min", "regex", ...) and
// Value carries the offending raw encoding.
type ValidationError struct {
	Rule   string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validate: " + e.Reason
}

// IsValidationError returns true if the error (or any error in its chain)
// is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// fail builds a ValidationError for rule. A custom_message on the rules
// replaces the default reason text for every rule, not just custom_expr.
func fail(rules model.Rules, rule, value, reason string) error {
	if rules.CustomMessage != "" {
		reason = rules.CustomMessage
	}
	return &ValidationError{Rule: rule, Value: value, Reason: reason}
}

// Validate checks a raw value against its declared type and rules.
// The zero Rules value accepts any well-formed value of the type.
func Validate(typ model.ValueType, raw string, rules model.Rules) error {
	parsed, err := model.ParseValue(typ, raw)
	if err != nil {
		return fail(rules, "type", raw, fmt.Sprintf("value %q is not a valid %s", raw, typ))
	}

	switch typ {
	case model.TypeNumber:
		if err := checkNumber(parsed.(float64), raw, rules); err != nil {
			return err
		}
	case model.TypeString:
		if err := checkString(raw, rules); err != nil {
			return err
		}
	}

	if rules.CustomExpr != "" {
		return checkExpr(typ, parsed, raw, rules)
	}
	return nil
}

func checkNumber(v float64, raw string, rules model.Rules) error {
	if rules.Min != nil && v < *rules.Min {
		return fail(rules, "min", raw, fmt.Sprintf("value %s is below minimum %v", raw, *rules.Min))
	}
	if rules.Max != nil && v > *rules.Max {
		return fail(rules, "max", raw, fmt.Sprintf("value %s is above maximum %v", raw, *rules.Max))
	}
	return nil
}

func checkString(v string, rules model.Rules) error {
	if rules.Regex != "" {
		re, err := regexp.Compile(rules.Regex)
		if err != nil {
			return fail(rules, "regex", v, fmt.Sprintf("pattern %q does not compile: %v", rules.Regex, err))
		}
		if !re.MatchString(v) {
			return fail(rules, "regex", v, fmt.Sprintf("value %q does not match pattern %q", v, rules.Regex))
		}
	}
	if rules.MinLength != nil && len(v) < *rules.MinLength {
		return fail(rules, "min_length", v, fmt.Sprintf("value %q is shorter than %d characters", v, *rules.MinLength))
	}
	if rules.MaxLength != nil && len(v) > *rules.MaxLength {
		return fail(rules, "max_length", v, fmt.Sprintf("value %q is longer than %d characters", v, *rules.MaxLength))
	}
	if len(rules.EnumValues) > 0 && !slices.Contains(rules.EnumValues, v) {
		return fail(rules, "enum_values", v, fmt.Sprintf("value %q is not one of %v", v, rules.EnumValues))
	}
	return nil
}

// checkExpr runs the custom_expr rule with the parsed value in scope.
// The expression must evaluate to a boolean; anything else rejects.
func checkExpr(typ model.ValueType, parsed any, raw string, rules model.Rules) error {
	env := map[string]any{
		"value": parsed,
		"raw":   raw,
		"type":  string(typ),
	}
	program, err := expr.Compile(rules.CustomExpr,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return fail(rules, "custom_expr", raw, fmt.Sprintf("custom rule %q does not compile: %v", rules.CustomExpr, err))
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return fail(rules, "custom_expr", raw, fmt.Sprintf("custom rule %q failed: %v", rules.CustomExpr, err))
	}
	ok, isBool := out.(bool)
	if !isBool {
		return fail(rules, "custom_expr", raw, fmt.Sprintf("custom rule %q did not return a boolean", rules.CustomExpr))
	}
	if !ok {
		return fail(rules, "custom_expr", raw, fmt.Sprintf("value %q rejected by custom rule", raw))
	}
	return nil
}
