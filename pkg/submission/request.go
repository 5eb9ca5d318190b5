package submission

import (
	"encoding/json"
	"fmt"

	"docassist/pkg/sections"
	"docassist/pkg/steps"
)

// Request is the body of POST /generate-documentation: the enabled fields
// at the top level plus an optional config.sections object.
type Request struct {
	Fields   map[sections.Field]string
	Sections *sections.Config
}

type requestConfig struct {
	Sections *sections.Config `json:"sections,omitempty"`
}

// MarshalJSON flattens the fields next to the config object.
func (r Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for f, v := range r.Fields {
		out[string(f)] = v
	}
	if r.Sections != nil {
		out["config"] = requestConfig{Sections: r.Sections}
	}
	return json.Marshal(out) //nolint:wrapcheck
}

// UnmarshalJSON accepts known string fields and an optional config object.
// Unknown keys and non-string values are rejected.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("request body must be a JSON object: %w", err)
	}

	r.Fields = make(map[sections.Field]string, len(raw))
	r.Sections = nil
	for k, v := range raw {
		if k == "config" {
			var cfg struct {
				Sections json.RawMessage `json:"sections"`
			}
			if err := json.Unmarshal(v, &cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if len(cfg.Sections) > 0 && string(cfg.Sections) != "null" {
				parsed, err := sections.Parse(cfg.Sections)
				if err != nil {
					return err
				}
				r.Sections = &parsed
			}
			continue
		}
		f := sections.Field(k)
		if !f.Valid() {
			return fmt.Errorf("unknown field %q", k)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("field %q must be a string", k)
		}
		r.Fields[f] = s
	}
	return nil
}

// Filter returns a shallow copy of values without the fields of every
// disabled gated step. Turning prerequisites off also drops
// environmentalSetup; turning localDevServer off also drops deploymentInfo.
func Filter(values map[sections.Field]string, cfg sections.Config) map[sections.Field]string {
	out := make(map[sections.Field]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	for section, fields := range steps.GatedFields() {
		if cfg.Enabled(section) {
			continue
		}
		for _, f := range fields {
			delete(out, f)
		}
	}
	return out
}
