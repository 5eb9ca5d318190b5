// Package form drives a multi-step documentation form: it tracks the
// current step, validates only the fields of the step being left, and
// submits the whole record from the last step.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docassist/pkg/logx"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
)

// ErrUnknownField is returned by Set for fields outside the catalog.
var ErrUnknownField = errors.New("unknown field")

// Transition is the outcome of Next.
type Transition int8

const (
	// Advanced moved to the following step.
	Advanced Transition = iota
	// Blocked stayed put because the current step failed validation.
	Blocked
	// Submitted sent the record and produced a document.
	Submitted
	// Failed sent the record but the submission failed.
	Failed
	// Busy ignored the call because a submission is in flight.
	Busy
)

func (t Transition) String() string {
	switch t {
	case Advanced:
		return "advanced"
	case Blocked:
		return "blocked"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// MarshalText encodes the transition by name.
func (t Transition) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Submitter delivers a validated record. Release drops any document it holds.
type Submitter interface {
	Submit(ctx context.Context, values map[sections.Field]string, cfg sections.Config) (*submission.Document, error)
	Release()
}

// Observer is told about every Next outcome.
type Observer interface {
	ObserveTransition(step steps.ID, t Transition)
}

// State is a serialisable snapshot of a controller.
type State struct {
	Config  sections.Config `json:"config"`
	Current int             `json:"current"`
	Values  Record          `json:"values"`
}

// Controller holds one form session. All methods are safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	cfg       sections.Config
	resolved  steps.Resolved
	current   int
	values    Record
	errors    Errors
	loading   bool
	submitErr error
	document  *submission.Document
	epoch     uint64

	submitter Submitter
	observer  Observer
	logger    *logx.Logger
}

// Option configures a Controller.
type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

func WithLogger(l *logx.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController starts a session at step 1 with every value empty.
func NewController(cfg sections.Config, submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		submitter: submitter,
		logger:    logx.NewLogger("form"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resetLocked(cfg.Normalize())
	return c
}

// Restore rebuilds a controller from a snapshot. The step is clamped into
// the resolved range.
func Restore(state State, submitter Submitter, opts ...Option) *Controller {
	c := NewController(state.Config, submitter, opts...)
	c.mu.Lock()
	defer c.mu.Unlock()
	for f, v := range state.Values {
		if f.Valid() {
			c.values[f] = v
		}
	}
	c.current = clamp(state.Current, 1, c.resolved.Total())
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c *Controller) resetLocked(cfg sections.Config) {
	c.cfg = cfg
	c.resolved = steps.Resolve(cfg)
	c.current = 1
	c.values = NewRecord()
	c.errors = nil
	c.submitErr = nil
	c.document = nil
	c.epoch++
}

// Snapshot captures config, step and values.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Config: c.cfg, Current: c.current, Values: c.values.Clone()}
}

// Config returns the active section configuration.
func (c *Controller) Config() sections.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Steps returns the resolved step list.
func (c *Controller) Steps() steps.Resolved {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

// Current is the 1-based step number.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Total is the number of resolved steps.
func (c *Controller) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved.Total()
}

// Step returns the definition of the current step.
func (c *Controller) Step() steps.Definition {
	c.mu.Lock()
	defer c.mu.Unlock()
	def, _ := c.resolved.At(c.current - 1)
	return def
}

// IsLast reports whether the current step submits on Next.
func (c *Controller) IsLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == c.resolved.Total()
}

// Set stores value for field and clears that field's error.
func (c *Controller) Set(field sections.Field, value string) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[field] = value
	delete(c.errors, field)
	return nil
}

// Value returns the stored value for field.
func (c *Controller) Value(field sections.Field) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[field]
}

// Record returns a copy of every stored value.
func (c *Controller) Record() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Clone()
}

// Errors returns a copy of the current field errors.
func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errors) == 0 {
		return nil
	}
	out := make(Errors, len(c.errors))
	for k, v := range c.errors {
		fe := *v
		out[k] = &fe
	}
	return out
}

// Loading reports whether a submission is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Document returns the last generated document, or nil.
func (c *Controller) Document() *submission.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.document == nil {
		return nil
	}
	doc := *c.document
	return &doc
}

// SubmitError returns the last submission failure, or nil.
func (c *Controller) SubmitError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitErr
}

// DismissError clears the submission failure.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitErr = nil
}

// Next validates the current step. Before the last step it advances on
// success; on the last step it validates every resolved field and submits.
// Field errors are returned as Errors, submission failures as the
// submitter's error.
func (c *Controller) Next(ctx context.Context) (Transition, error) {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return Busy, nil
	}

	stepID := c.stepIDLocked()
	if c.current < c.resolved.Total() {
		errs := BuildValidator(c.resolved.Fields(c.current - 1)).Validate(c.values)
		if len(errs) > 0 {
			c.errors = errs
			c.mu.Unlock()
			c.observe(stepID, Blocked)
			return Blocked, errs
		}
		c.errors = nil
		c.current++
		c.logger.Debug("advanced to step %d of %d", c.current, c.resolved.Total())
		c.mu.Unlock()
		c.observe(stepID, Advanced)
		return Advanced, nil
	}

	errs := BuildValidator(c.resolved.AllFields()).Validate(c.values)
	if len(errs) > 0 {
		c.errors = errs
		c.mu.Unlock()
		c.observe(stepID, Blocked)
		return Blocked, errs
	}
	c.errors = nil

	if c.submitter == nil {
		c.mu.Unlock()
		return Failed, errors.New("no submitter configured")
	}

	c.loading = true
	c.submitErr = nil
	values := c.values.Clone()
	cfg := c.cfg
	epoch := c.epoch
	c.mu.Unlock()

	doc, err := c.submitter.Submit(ctx, values, cfg)

	c.mu.Lock()
	c.loading = false
	if epoch != c.epoch {
		// Reconfigured or reset while in flight; the result belongs to a
		// record that no longer exists.
		c.mu.Unlock()
		if err == nil {
			c.submitter.Release()
		}
		return Failed, errors.New("form was reset during submission")
	}
	if err != nil {
		c.submitErr = err
		c.mu.Unlock()
		c.observe(stepID, Failed)
		return Failed, err
	}
	c.document = doc
	c.mu.Unlock()
	c.observe(stepID, Submitted)
	return Submitted, nil
}

func (c *Controller) stepIDLocked() steps.ID {
	def, _ := c.resolved.At(c.current - 1)
	return def.ID
}

// Previous moves back one step without validating. On step 1 it does nothing.
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current > 1 {
		c.current--
		c.errors = nil
	}
}

// SetConfiguration replaces the section configuration, returns to step 1,
// clears every value, and releases any generated document.
func (c *Controller) SetConfiguration(cfg sections.Config) {
	c.mu.Lock()
	c.resetLocked(cfg.Normalize())
	total := c.resolved.Total()
	c.mu.Unlock()

	c.logger.Debug("configuration changed, %d steps", total)
	if c.submitter != nil {
		c.submitter.Release()
	}
}

// Reset clears the form under the current configuration.
func (c *Controller) Reset() {
	c.SetConfiguration(c.Config())
}

func (c *Controller) observe(step steps.ID, t Transition) {
	if c.observer != nil {
		c.observer.ObserveTransition(step, t)
	}
}
