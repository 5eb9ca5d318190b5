package form

import "docassist/pkg/sections"

// Record holds one value per form field. Values survive toggling a section
// off and on; only SetConfiguration and Reset clear them.
type Record map[sections.Field]string

// NewRecord returns a record with every field present and empty.
func NewRecord() Record {
	r := make(Record, len(sections.AllFields))
	for _, f := range sections.AllFields {
		r[f] = ""
	}
	return r
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
