// Package submission sends a completed form to the documentation service
// and owns the downloadable result.
package submission

import (
	"context"
	"sync"
	"time"

	"docassist/pkg/logx"
	"docassist/pkg/sections"
)

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 30 * time.Second

// Document is a generated README exposed for preview and download.
type Document struct {
	Markdown  string    `json:"markdown"`
	Filename  string    `json:"filename"`
	BlobID    string    `json:"blobId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Observer is notified after every submission attempt.
type Observer interface {
	ObserveSubmission(category Category, duration time.Duration)
}

// Adapter filters values to enabled sections, calls the generator with a
// bounded timeout, and keeps exactly one live blob.
type Adapter struct {
	generator Generator
	blobs     BlobStore
	timeout   time.Duration
	logger    *logx.Logger
	observer  Observer
	now       func() time.Time

	mu     sync.Mutex
	liveID string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *logx.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithObserver reports submission outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func NewAdapter(gen Generator, blobs BlobStore, opts ...Option) *Adapter {
	a := &Adapter{
		generator: gen,
		blobs:     blobs,
		timeout:   DefaultTimeout,
		logger:    logx.NewLogger("submission"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit sends the enabled subset of values. Failures are returned as *Error.
func (a *Adapter) Submit(ctx context.Context, values map[sections.Field]string, cfg sections.Config) (*Document, error) {
	cfg = cfg.Normalize()
	req := Request{Fields: Filter(values, cfg), Sections: &cfg}

	start := a.now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.logger.Debug("submitting %d fields", len(req.Fields))
	resp, err := a.generator.Generate(ctx, req)
	if err != nil {
		classified := Classify(err, a.now())
		a.logger.Error("submission failed: category=%s status=%d message=%q timestamp=%s",
			classified.Category, classified.StatusCode, classified.Message,
			classified.Timestamp.UTC().Format(logx.TimestampLayout))
		a.observe(classified.Category, start)
		return nil, classified
	}

	filename := resp.Filename
	if filename == "" {
		filename = DefaultFilename
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.liveID != "" {
		a.blobs.Revoke(a.liveID)
		a.liveID = ""
	}
	id, err := a.blobs.Create([]byte(resp.Markdown), filename, "text/markdown")
	if err != nil {
		classified := Classify(err, a.now())
		a.logger.Error("failed to store document: %v", err)
		a.observe(classified.Category, start)
		return nil, classified
	}
	a.liveID = id
	a.observe("", start)

	return &Document{
		Markdown:  resp.Markdown,
		Filename:  filename,
		BlobID:    id,
		CreatedAt: a.now(),
	}, nil
}

// Release revokes the live blob, if any.
func (a *Adapter) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.liveID != "" {
		a.blobs.Revoke(a.liveID)
		a.liveID = ""
	}
}

// LiveBlob returns the id of the current blob, or "".
func (a *Adapter) LiveBlob() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveID
}

func (a *Adapter) observe(category Category, start time.Time) {
	if a.observer != nil {
		a.observer.ObserveSubmission(category, a.now().Sub(start))
	}
}
