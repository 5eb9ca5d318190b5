// Package sections defines the section toggles that decide which parts of
// the documentation form are shown, validated, and submitted.
package sections

import (
	"encoding/json"
	"fmt"
)

// Section names a toggle key. Step definitions gate on a Section.
type Section string

// Section keys. ProjectName and Description are the identity sections and
// are always enabled.
const (
	None                  Section = ""
	ProjectName           Section = "projectName"
	Description           Section = "description"
	Prerequisites         Section = "prerequisites"
	EnvironmentalSetup    Section = "environmentalSetup"
	LocalDevServer        Section = "localDevServer"
	DeploymentInfo        Section = "deploymentInfo"
	Testing               Section = "testing"
	AdditionalInformation Section = "additionalInformation"
)

// Field names a form value. Field names coincide with section keys but a
// step may own fields from more than one section.
type Field string

const (
	FieldProjectName           Field = "projectName"
	FieldDescription           Field = "description"
	FieldPrerequisites         Field = "prerequisites"
	FieldEnvironmentalSetup    Field = "environmentalSetup"
	FieldLocalDevServer        Field = "localDevServer"
	FieldDeploymentInfo        Field = "deploymentInfo"
	FieldTesting               Field = "testing"
	FieldAdditionalInformation Field = "additionalInformation"
)

// AllFields lists every form field in display order.
var AllFields = []Field{
	FieldProjectName,
	FieldDescription,
	FieldPrerequisites,
	FieldEnvironmentalSetup,
	FieldLocalDevServer,
	FieldDeploymentInfo,
	FieldTesting,
	FieldAdditionalInformation,
}

// All lists every section key in display order.
var All = []Section{
	ProjectName,
	Description,
	Prerequisites,
	EnvironmentalSetup,
	LocalDevServer,
	DeploymentInfo,
	Testing,
	AdditionalInformation,
}

// IsIdentity reports whether s is one of the always-on sections.
func (s Section) IsIdentity() bool {
	return s == ProjectName || s == Description
}

// Valid reports whether s is a known section key.
func (s Section) Valid() bool {
	for _, k := range All {
		if k == s {
			return true
		}
	}
	return false
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, k := range AllFields {
		if k == f {
			return true
		}
	}
	return false
}

// Config is the set of section toggles. It is a value type: edits go
// through With, which returns a new Config.
type Config struct {
	ProjectName           bool `json:"projectName"`
	Description           bool `json:"description"`
	Prerequisites         bool `json:"prerequisites"`
	EnvironmentalSetup    bool `json:"environmentalSetup"`
	LocalDevServer        bool `json:"localDevServer"`
	DeploymentInfo        bool `json:"deploymentInfo"`
	Testing               bool `json:"testing"`
	AdditionalInformation bool `json:"additionalInformation"`
}

// Default enables every section.
func Default() Config {
	return Config{
		ProjectName:           true,
		Description:           true,
		Prerequisites:         true,
		EnvironmentalSetup:    true,
		LocalDevServer:        true,
		DeploymentInfo:        true,
		Testing:               true,
		AdditionalInformation: true,
	}
}

// Basics enables only the identity sections.
func Basics() Config {
	return Config{ProjectName: true, Description: true}
}

// Normalize forces the identity sections on.
func (c Config) Normalize() Config {
	c.ProjectName = true
	c.Description = true
	return c
}

// Enabled reports whether s is on. The None sentinel is never enabled.
func (c Config) Enabled(s Section) bool {
	switch s {
	case ProjectName:
		return c.ProjectName
	case Description:
		return c.Description
	case Prerequisites:
		return c.Prerequisites
	case EnvironmentalSetup:
		return c.EnvironmentalSetup
	case LocalDevServer:
		return c.LocalDevServer
	case DeploymentInfo:
		return c.DeploymentInfo
	case Testing:
		return c.Testing
	case AdditionalInformation:
		return c.AdditionalInformation
	default:
		return false
	}
}

// With returns a copy of c with s set to on. Unknown keys and the identity
// sections are ignored.
func (c Config) With(s Section, on bool) Config {
	switch s {
	case Prerequisites:
		c.Prerequisites = on
	case EnvironmentalSetup:
		c.EnvironmentalSetup = on
	case LocalDevServer:
		c.LocalDevServer = on
	case DeploymentInfo:
		c.DeploymentInfo = on
	case Testing:
		c.Testing = on
	case AdditionalInformation:
		c.AdditionalInformation = on
	}
	return c
}

// HasOptional reports whether any non-identity section is on.
func (c Config) HasOptional() bool {
	return len(c.Optional()) > 0
}

// Optional returns the enabled non-identity sections in display order.
func (c Config) Optional() []Section {
	var out []Section
	for _, s := range All {
		if !s.IsIdentity() && c.Enabled(s) {
			out = append(out, s)
		}
	}
	return out
}

// Map returns the toggles keyed by section name.
func (c Config) Map() map[Section]bool {
	m := make(map[Section]bool, len(All))
	for _, s := range All {
		m[s] = c.Enabled(s)
	}
	return m
}

// FromMap builds a Config from toggles keyed by section name. Missing keys
// are off, the identity sections are forced on, unknown keys are an error.
func FromMap(m map[string]bool) (Config, error) {
	var c Config
	for k, on := range m {
		s := Section(k)
		if !s.Valid() {
			return Config{}, fmt.Errorf("unknown section %q", k)
		}
		c = c.With(s, on)
	}
	return c.Normalize(), nil
}

// Parse decodes a JSON object of toggles, as sent under config.sections.
func Parse(data []byte) (Config, error) {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("failed to parse sections: %w", err)
	}
	return FromMap(m)
}
