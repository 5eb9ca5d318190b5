package form

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/logx"
	"docassist/pkg/sections"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	calls    []map[sections.Field]string
	releases int
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, values map[sections.Field]string, cfg sections.Config) (*submission.Document, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submission.Filter(values, cfg))
	if f.err != nil {
		return nil, f.err
	}
	return &submission.Document{Markdown: "# " + values[sections.FieldProjectName], Filename: "README.md"}, nil
}

func (f *fakeSubmitter) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

func validValues() map[sections.Field]string {
	return map[sections.Field]string{
		sections.FieldProjectName:           "Documentation Assistant",
		sections.FieldDescription:           "Generates README files from a short form.",
		sections.FieldPrerequisites:         "Go 1.24 and an API key",
		sections.FieldEnvironmentalSetup:    "export OPENAI_API_KEY=...",
		sections.FieldLocalDevServer:        "docassist serve --port 3001",
		sections.FieldDeploymentInfo:        "docker build -t docassist .",
		sections.FieldTesting:               "go test ./... from the repo root",
		sections.FieldAdditionalInformation: "Issues and PRs are welcome.",
	}
}

func fill(t *testing.T, c *Controller, values map[sections.Field]string) {
	t.Helper()
	for f, v := range values {
		require.NoError(t, c.Set(f, v))
	}
}

func quiet(t *testing.T) {
	t.Helper()
	logx.SetOutput(io.Discard)
}

func TestNext_EmptyProjectNameBlocks(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{}
	c := NewController(sections.Default(), sub)
	require.NoError(t, c.Set(sections.FieldDescription, "A sufficiently long description."))

	tr, err := c.Next(context.Background())
	assert.Equal(t, Blocked, tr)
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "Project name is required", errs[sections.FieldProjectName].Message)
	assert.NotContains(t, errs, sections.FieldDescription)
	assert.Equal(t, 1, c.Current())
	assert.Empty(t, sub.calls)

	// Editing the field clears just its error.
	require.NoError(t, c.Set(sections.FieldProjectName, "x"))
	assert.Empty(t, c.Errors())
}

func TestNext_ValidatesOnlyCurrentStep(t *testing.T) {
	quiet(t)
	c := NewController(sections.Default(), &fakeSubmitter{})
	require.NoError(t, c.Set(sections.FieldProjectName, "Valid name"))
	require.NoError(t, c.Set(sections.FieldDescription, "Twenty characters or more here."))

	tr, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Advanced, tr)
	assert.Equal(t, 2, c.Current())
	assert.Equal(t, steps.Technical, c.Step().ID)

	tr, err = c.Next(context.Background())
	assert.Equal(t, Blocked, tr)
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, sections.FieldPrerequisites)
	assert.Contains(t, errs, sections.FieldEnvironmentalSetup)
}

func TestPrevious(t *testing.T) {
	quiet(t)
	c := NewController(sections.Default(), &fakeSubmitter{})
	c.Previous()
	assert.Equal(t, 1, c.Current())

	fill(t, c, validValues())
	_, err := c.Next(context.Background())
	require.NoError(t, err)
	c.Previous()
	assert.Equal(t, 1, c.Current())
	assert.Equal(t, "Documentation Assistant", c.Value(sections.FieldProjectName))
}

func TestSixKeyConfiguration(t *testing.T) {
	quiet(t)
	cfg := sections.Default().With(sections.Testing, false).With(sections.AdditionalInformation, false)
	sub := &fakeSubmitter{}
	c := NewController(cfg, sub)
	require.Equal(t, 4, c.Total())
	fill(t, c, validValues())

	for i := 1; i < 4; i++ {
		tr, err := c.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, Advanced, tr)
	}
	assert.True(t, c.IsLast())
	assert.Equal(t, steps.KindReview, c.Step().Kind)

	tr, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Submitted, tr)
	require.Len(t, sub.calls, 1)
	assert.Len(t, sub.calls[0], 6)
	assert.Equal(t, 4, c.Current(), "submitting does not advance")
	require.NotNil(t, c.Document())
	assert.Equal(t, "# Documentation Assistant", c.Document().Markdown)
}

func TestBasicsOnlySubmitsFromFirstStep(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{}
	c := NewController(sections.Basics(), sub)
	require.Equal(t, 1, c.Total())
	fill(t, c, validValues())

	tr, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Submitted, tr)
	require.Len(t, sub.calls, 1)
	assert.Len(t, sub.calls[0], 2)
}

func TestDisabledPrerequisitesExcludedFromPayload(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{}
	c := NewController(sections.Default().With(sections.Prerequisites, false), sub)
	fill(t, c, validValues())
	for !c.IsLast() {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}
	_, err := c.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, sub.calls, 1)
	assert.NotContains(t, sub.calls[0], sections.FieldPrerequisites)
	assert.NotContains(t, sub.calls[0], sections.FieldEnvironmentalSetup)
}

func TestSubmissionFailureKeepsRecord(t *testing.T) {
	quiet(t)
	apiErr := &submission.Error{Category: submission.CategoryAPI, Message: "OpenAI API error", StatusCode: 500}
	sub := &fakeSubmitter{err: apiErr}
	c := NewController(sections.Basics(), sub)
	fill(t, c, validValues())
	before := c.Record()

	tr, err := c.Next(context.Background())
	assert.Equal(t, Failed, tr)
	require.ErrorIs(t, err, apiErr)

	var subErr *submission.Error
	require.True(t, errors.As(c.SubmitError(), &subErr))
	assert.Equal(t, "Server error. Please try again later.", subErr.UserMessage())
	assert.Equal(t, before, c.Record())
	assert.Equal(t, 1, c.Current())
	assert.Nil(t, c.Document())

	c.DismissError()
	assert.NoError(t, c.SubmitError())
}

func TestLastStepValidatesEveryResolvedField(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{}
	c := NewController(sections.Default(), sub)
	fill(t, c, validValues())
	for !c.IsLast() {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}
	// Break a field from an earlier step after passing it.
	require.NoError(t, c.Set(sections.FieldDeploymentInfo, "short"))

	tr, err := c.Next(context.Background())
	assert.Equal(t, Blocked, tr)
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, RuleTooShort, errs[sections.FieldDeploymentInfo].Rule)
	assert.Empty(t, sub.calls)
}

func TestSetConfigurationResets(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{}
	c := NewController(sections.Default(), sub)
	fill(t, c, validValues())
	_, err := c.Next(context.Background())
	require.NoError(t, err)

	c.SetConfiguration(sections.Basics())
	assert.Equal(t, 1, c.Current())
	assert.Equal(t, 1, c.Total())
	for _, v := range c.Record() {
		assert.Empty(t, v)
	}
	assert.Equal(t, 1, sub.releases)

	assert.ErrorIs(t, c.Set("bogus", "x"), ErrUnknownField)
}

func TestBusyWhileSubmitting(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{block: make(chan struct{}), started: make(chan struct{})}
	c := NewController(sections.Basics(), sub)
	fill(t, c, validValues())

	done := make(chan Transition)
	go func() {
		tr, _ := c.Next(context.Background())
		done <- tr
	}()
	<-sub.started
	assert.True(t, c.Loading())

	tr, err := c.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Busy, tr)

	close(sub.block)
	assert.Equal(t, Submitted, <-done)
	assert.False(t, c.Loading())
}

func TestResetDuringSubmissionDiscardsResult(t *testing.T) {
	quiet(t)
	sub := &fakeSubmitter{block: make(chan struct{}), started: make(chan struct{})}
	c := NewController(sections.Basics(), sub)
	fill(t, c, validValues())

	done := make(chan Transition)
	go func() {
		tr, _ := c.Next(context.Background())
		done <- tr
	}()
	<-sub.started
	c.Reset()
	close(sub.block)

	assert.Equal(t, Failed, <-done)
	assert.Nil(t, c.Document())
	assert.Equal(t, 2, sub.releases, "reset and the discarded result both release")
}

func TestRestoreClampsStep(t *testing.T) {
	quiet(t)
	c := Restore(State{Config: sections.Basics(), Current: 9, Values: Record{sections.FieldProjectName: "kept"}}, nil)
	assert.Equal(t, 1, c.Current())
	assert.Equal(t, "kept", c.Value(sections.FieldProjectName))

	snap := c.Snapshot()
	assert.Equal(t, sections.Basics(), snap.Config)
	assert.Equal(t, "kept", snap.Values[sections.FieldProjectName])
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[Transition]int
}

func (o *countingObserver) ObserveTransition(_ steps.ID, t Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[t]++
}

func TestObserver(t *testing.T) {
	quiet(t)
	obs := &countingObserver{counts: map[Transition]int{}}
	c := NewController(sections.Basics(), &fakeSubmitter{}, WithObserver(obs))
	_, _ = c.Next(context.Background())
	fill(t, c, validValues())
	_, _ = c.Next(context.Background())
	assert.Equal(t, 1, obs.counts[Blocked])
	assert.Equal(t, 1, obs.counts[Submitted])
}

// Random walks of Next/Previous keep the step inside [1, Total] and move it
// by at most one per call.
func TestController_WalkProperty(t *testing.T) {
	quiet(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("step stays in range and moves by one", prop.ForAll(
		func(moves []bool, prereq, local, tests bool, valid bool) bool {
			cfg := sections.Basics().
				With(sections.Prerequisites, prereq).
				With(sections.LocalDevServer, local).
				With(sections.Testing, tests)
			c := NewController(cfg, &fakeSubmitter{})
			if valid {
				for f, v := range validValues() {
					_ = c.Set(f, v)
				}
			}
			for _, forward := range moves {
				before := c.Current()
				if forward {
					tr, _ := c.Next(context.Background())
					after := c.Current()
					switch tr {
					case Advanced:
						if after != before+1 {
							return false
						}
					default:
						if after != before {
							return false
						}
					}
				} else {
					c.Previous()
					want := before - 1
					if want < 1 {
						want = 1
					}
					if c.Current() != want {
						return false
					}
				}
				if c.Current() < 1 || c.Current() > c.Total() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}
