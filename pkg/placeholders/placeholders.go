// Package placeholders supplies example project answers used as input hints.
package placeholders

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"sync"

	"gopkg.in/yaml.v3"

	"docassist/pkg/sections"
)

//go:embed examples.yaml
var examplesYAML []byte

// Example is one complete set of sample answers.
type Example struct {
	ProjectName           string `yaml:"projectName" json:"projectName"`
	Description           string `yaml:"description" json:"description"`
	Prerequisites         string `yaml:"prerequisites" json:"prerequisites"`
	EnvironmentalSetup    string `yaml:"environmentalSetup" json:"environmentalSetup"`
	LocalDevServer        string `yaml:"localDevServer" json:"localDevServer"`
	DeploymentInfo        string `yaml:"deploymentInfo" json:"deploymentInfo"`
	Testing               string `yaml:"testing" json:"testing"`
	AdditionalInformation string `yaml:"additionalInformation" json:"additionalInformation"`
}

// For returns the sample answer for field.
func (e Example) For(field sections.Field) string {
	switch field {
	case sections.FieldProjectName:
		return e.ProjectName
	case sections.FieldDescription:
		return e.Description
	case sections.FieldPrerequisites:
		return e.Prerequisites
	case sections.FieldEnvironmentalSetup:
		return e.EnvironmentalSetup
	case sections.FieldLocalDevServer:
		return e.LocalDevServer
	case sections.FieldDeploymentInfo:
		return e.DeploymentInfo
	case sections.FieldTesting:
		return e.Testing
	case sections.FieldAdditionalInformation:
		return e.AdditionalInformation
	}
	return ""
}

//nolint:gochecknoglobals // parsed once
var (
	loadOnce sync.Once
	examples []Example
	loadErr  error
)

// Parse decodes a YAML list of examples. Every example needs a project name.
func Parse(data []byte) ([]Example, error) {
	var out []Example
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse placeholder examples: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no placeholder examples defined")
	}
	for i := range out {
		if out[i].ProjectName == "" {
			return nil, fmt.Errorf("placeholder example %d has no projectName", i)
		}
	}
	return out, nil
}

// All returns the embedded examples.
func All() ([]Example, error) {
	loadOnce.Do(func() {
		examples, loadErr = Parse(examplesYAML)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	out := make([]Example, len(examples))
	copy(out, examples)
	return out, nil
}

// Random picks one embedded example.
func Random() (Example, error) {
	all, err := All()
	if err != nil {
		return Example{}, err
	}
	return all[rand.IntN(len(all))], nil //nolint:gosec // not security relevant
}
