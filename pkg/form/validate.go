package form

import (
	"fmt"
	"sort"
	"strings"

	"docassist/pkg/sections"
)

// Rule is the validation rule a field failed.
type Rule string

const (
	RuleRequired Rule = "required"
	RuleTooShort Rule = "too_short"
	RuleTooLong  Rule = "too_long"
	RuleUnknown  Rule = "unknown_field"
)

// FieldError is a validation failure for one field.
type FieldError struct {
	Field   sections.Field `json:"field"`
	Rule    Rule           `json:"rule"`
	Message string         `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Message
}

// Errors collects field errors keyed by field.
type Errors map[sections.Field]*FieldError

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f, e[sections.Field(f)].Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Messages flattens the errors to field → message.
func (e Errors) Messages() map[sections.Field]string {
	out := make(map[sections.Field]string, len(e))
	for f, fe := range e {
		out[f] = fe.Message
	}
	return out
}

// Validator checks a fixed set of fields.
type Validator struct {
	fields []sections.Field
}

// BuildValidator composes a validator over fields from the constraint table.
// Fields without a constraint are reported as unknown when validated.
func BuildValidator(fields []sections.Field) Validator {
	return Validator{fields: append([]sections.Field(nil), fields...)}
}

// Fields returns the fields this validator checks.
func (v Validator) Fields() []sections.Field {
	return append([]sections.Field(nil), v.fields...)
}

// Validate returns nil when every field passes, otherwise an Errors value
// holding one entry per failing field.
func (v Validator) Validate(values map[sections.Field]string) Errors {
	var errs Errors
	for _, f := range v.fields {
		var fe *FieldError
		if c, ok := constraints[f]; ok {
			fe = c.Check(values[f])
		} else {
			fe = &FieldError{Field: f, Rule: RuleUnknown, Message: fmt.Sprintf("unknown field %q", f)}
		}
		if fe == nil {
			continue
		}
		if errs == nil {
			errs = make(Errors)
		}
		errs[f] = fe
	}
	return errs
}
