package form

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docassist/pkg/sections"
)

// Constraint bounds the trimmed length of one field.
type Constraint struct {
	Field    sections.Field
	Label    string
	Min      int
	Max      int
	Required string
}

var constraints = map[sections.Field]Constraint{
	sections.FieldProjectName: {
		Field: sections.FieldProjectName, Label: "Project name", Min: 3, Max: 100,
		Required: "Project name is required",
	},
	sections.FieldDescription: {
		Field: sections.FieldDescription, Label: "Description", Min: 20, Max: 1000,
		Required: "Description is required",
	},
	sections.FieldPrerequisites: {
		Field: sections.FieldPrerequisites, Label: "Prerequisites", Min: 10, Max: 1000,
		Required: "Prerequisites are required",
	},
	sections.FieldEnvironmentalSetup: {
		Field: sections.FieldEnvironmentalSetup, Label: "Setup steps", Min: 10, Max: 2000,
		Required: "Setup steps are required",
	},
	sections.FieldLocalDevServer: {
		Field: sections.FieldLocalDevServer, Label: "Local development instructions", Min: 10, Max: 1000,
		Required: "Local development instructions are required",
	},
	sections.FieldDeploymentInfo: {
		Field: sections.FieldDeploymentInfo, Label: "Deployment instructions", Min: 10, Max: 1000,
		Required: "Deployment instructions are required",
	},
	sections.FieldTesting: {
		Field: sections.FieldTesting, Label: "Testing procedures", Min: 10, Max: 1000,
		Required: "Testing procedures are required",
	},
	sections.FieldAdditionalInformation: {
		Field: sections.FieldAdditionalInformation, Label: "Additional information", Min: 10, Max: 1000,
		Required: "Additional information is required",
	},
}

// ConstraintFor returns the constraint for f.
func ConstraintFor(f sections.Field) (Constraint, bool) {
	c, ok := constraints[f]
	return c, ok
}

// Check applies the constraint to value. The first failing rule wins:
// required, then too short, then too long. Lengths count runes after
// trimming surrounding whitespace.
func (c Constraint) Check(value string) *FieldError {
	trimmed := strings.TrimSpace(value)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return &FieldError{Field: c.Field, Rule: RuleRequired, Message: c.Required}
	case n < c.Min:
		return &FieldError{
			Field: c.Field, Rule: RuleTooShort,
			Message: fmt.Sprintf("%s must be at least %d characters long", c.Label, c.Min),
		}
	case n > c.Max:
		return &FieldError{
			Field: c.Field, Rule: RuleTooLong,
			Message: fmt.Sprintf("%s must be less than %d characters", c.Label, c.Max),
		}
	}
	return nil
}
