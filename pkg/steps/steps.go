// Package steps holds the static step catalog and resolves it against a
// section configuration into the live, ordered list of form steps.
package steps

import (
	"fmt"
	"sort"

	"docassist/pkg/sections"
)

// ID identifies a step.
type ID string

const (
	Basics      ID = "basics"
	Technical   ID = "technical"
	Development ID = "development"
	Testing     ID = "testing"
	Additional  ID = "additional"
	Review      ID = "review"
)

// NotFound is returned by Resolved.Index for absent steps.
const NotFound = -1

// Kind tells a renderer how to draw a step.
type Kind int8

const (
	// KindFields is a step that renders and validates its own fields.
	KindFields Kind = iota
	// KindReview is the synthetic summary step. It owns no fields.
	KindReview
)

func (k Kind) String() string {
	switch k {
	case KindFields:
		return "fields"
	case KindReview:
		return "review"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fields":
		*k = KindFields
	case "review":
		*k = KindReview
	default:
		return fmt.Errorf("unknown step kind %q", text)
	}
	return nil
}

// Definition describes one step of the form.
type Definition struct {
	ID          ID               `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Section     sections.Section `json:"section"`
	Fields      []sections.Field `json:"fields"`
	Required    bool             `json:"required"`
	Order       int              `json:"order"`
	Kind        Kind             `json:"kind"`
}

func (d Definition) clone() Definition {
	d.Fields = append([]sections.Field(nil), d.Fields...)
	return d
}

var catalog = []Definition{
	{
		ID:          Basics,
		Title:       "Basics",
		Description: "Project Info",
		Section:     sections.ProjectName,
		Fields:      []sections.Field{sections.FieldProjectName, sections.FieldDescription},
		Required:    true,
		Order:       1,
	},
	{
		ID:          Technical,
		Title:       "Technical",
		Description: "Setup Details",
		Section:     sections.Prerequisites,
		Fields:      []sections.Field{sections.FieldPrerequisites, sections.FieldEnvironmentalSetup},
		Order:       2,
	},
	{
		ID:          Development,
		Title:       "Development",
		Description: "Dev & Deploy",
		Section:     sections.LocalDevServer,
		Fields:      []sections.Field{sections.FieldLocalDevServer, sections.FieldDeploymentInfo},
		Order:       3,
	},
	{
		ID:          Testing,
		Title:       "Testing",
		Description: "Test Procedures",
		Section:     sections.Testing,
		Fields:      []sections.Field{sections.FieldTesting},
		Order:       4,
	},
	{
		ID:          Additional,
		Title:       "Additional",
		Description: "Extra Notes",
		Section:     sections.AdditionalInformation,
		Fields:      []sections.Field{sections.FieldAdditionalInformation},
		Order:       5,
	},
}

// Catalog returns a copy of the built-in step catalog.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	for i := range catalog {
		out[i] = catalog[i].clone()
	}
	return out
}

// GatedFields maps each gating section to the fields its step owns. Turning
// a section off drops all of them from a submission.
func GatedFields() map[sections.Section][]sections.Field {
	out := make(map[sections.Section][]sections.Field)
	for i := range catalog {
		if catalog[i].Required {
			continue
		}
		out[catalog[i].Section] = append(out[catalog[i].Section], catalog[i].Fields...)
	}
	return out
}

// Resolved is an ordered list of live steps for one configuration.
type Resolved struct {
	steps []Definition
}

// Resolve resolves the built-in catalog against cfg.
func Resolve(cfg sections.Config) Resolved {
	return ResolveFrom(catalog, cfg)
}

// ResolveFrom keeps entries that are required or whose section is on,
// stable-sorts them by Order, and appends the review step when cfg enables
// any optional section.
func ResolveFrom(defs []Definition, cfg sections.Config) Resolved {
	cfg = cfg.Normalize()

	live := make([]Definition, 0, len(defs)+1)
	for i := range defs {
		if defs[i].Required || cfg.Enabled(defs[i].Section) {
			live = append(live, defs[i].clone())
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Order < live[j].Order
	})

	if cfg.HasOptional() {
		live = append(live, Definition{
			ID:          Review,
			Title:       "Review",
			Description: "Final Check",
			Section:     sections.None,
			Order:       len(live) + 1,
			Kind:        KindReview,
		})
	}
	return Resolved{steps: live}
}

// Steps returns a copy of the resolved steps.
func (r Resolved) Steps() []Definition {
	out := make([]Definition, len(r.steps))
	for i := range r.steps {
		out[i] = r.steps[i].clone()
	}
	return out
}

// Total is the number of resolved steps.
func (r Resolved) Total() int {
	return len(r.steps)
}

// At returns the step at the zero-based index.
func (r Resolved) At(index int) (Definition, bool) {
	if index < 0 || index >= len(r.steps) {
		return Definition{}, false
	}
	return r.steps[index].clone(), true
}

// Fields returns the fields of the step at the zero-based index, or nil
// when the index is out of range.
func (r Resolved) Fields(index int) []sections.Field {
	if index < 0 || index >= len(r.steps) {
		return nil
	}
	return append([]sections.Field(nil), r.steps[index].Fields...)
}

// IsEnabled reports whether a step with id is present.
func (r Resolved) IsEnabled(id ID) bool {
	return r.Index(id) != NotFound
}

// Index returns the zero-based position of id, or NotFound.
func (r Resolved) Index(id ID) int {
	for i := range r.steps {
		if r.steps[i].ID == id {
			return i
		}
	}
	return NotFound
}

// AllFields returns the union of fields over every resolved step, in step order.
func (r Resolved) AllFields() []sections.Field {
	var out []sections.Field
	for i := range r.steps {
		out = append(out, r.steps[i].Fields...)
	}
	return out
}
