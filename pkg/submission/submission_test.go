package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docassist/pkg/logx"
	"docassist/pkg/sections"
)

func fullValues() map[sections.Field]string {
	return map[sections.Field]string{
		sections.FieldProjectName:           "My Project",
		sections.FieldDescription:           "A description long enough to pass.",
		sections.FieldPrerequisites:         "Go 1.24 installed",
		sections.FieldEnvironmentalSetup:    "cp .env.example .env",
		sections.FieldLocalDevServer:        "go run ./cmd/server",
		sections.FieldDeploymentInfo:        "docker build -t app .",
		sections.FieldTesting:               "go test ./...",
		sections.FieldAdditionalInformation: "MIT licensed project",
	}
}

func TestFilter(t *testing.T) {
	values := fullValues()

	cfg := sections.Default().With(sections.Prerequisites, false)
	out := Filter(values, cfg)
	assert.NotContains(t, out, sections.FieldPrerequisites)
	assert.NotContains(t, out, sections.FieldEnvironmentalSetup, "environmentalSetup goes with prerequisites")
	assert.Contains(t, out, sections.FieldLocalDevServer)
	assert.Len(t, values, 8, "input must not be modified")

	out = Filter(values, sections.Default().With(sections.LocalDevServer, false))
	assert.NotContains(t, out, sections.FieldLocalDevServer)
	assert.NotContains(t, out, sections.FieldDeploymentInfo)

	out = Filter(values, sections.Basics())
	assert.Equal(t, map[sections.Field]string{
		sections.FieldProjectName: "My Project",
		sections.FieldDescription: "A description long enough to pass.",
	}, out)

	six := sections.Default().With(sections.Testing, false).With(sections.AdditionalInformation, false)
	assert.Len(t, Filter(values, six), 6)
}

func TestRequestJSON(t *testing.T) {
	cfg := sections.Basics()
	data, err := json.Marshal(Request{
		Fields:   map[sections.Field]string{sections.FieldProjectName: "x"},
		Sections: &cfg,
	})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "x", generic["projectName"])
	assert.Contains(t, generic, "config")

	var back Request
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "x", back.Fields[sections.FieldProjectName])
	require.NotNil(t, back.Sections)
	assert.Equal(t, cfg, *back.Sections)

	assert.Error(t, json.Unmarshal([]byte(`{"nope":"x"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"projectName":3}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &back))

	require.NoError(t, json.Unmarshal([]byte(`{"projectName":"p"}`), &back))
	assert.Nil(t, back.Sections)
}

func newAdapter(t *testing.T, url string, opts ...Option) (*Adapter, *MemoryBlobs) {
	t.Helper()
	logx.SetOutput(io.Discard)
	t.Cleanup(func() { logx.SetOutput(io.Discard) })
	blobs := NewMemoryBlobs()
	return NewAdapter(NewHTTPGenerator(url, nil), blobs, opts...), blobs
}

func TestAdapter_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-documentation", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/markdown")
		w.Header().Set("Content-Disposition", Disposition("README.md"))
		_, _ = w.Write([]byte("# My Project\n"))
	}))
	defer srv.Close()

	a, blobs := newAdapter(t, srv.URL)
	cfg := sections.Default().With(sections.Prerequisites, false)

	doc, err := a.Submit(context.Background(), fullValues(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "# My Project\n", doc.Markdown)
	assert.Equal(t, "README.md", doc.Filename)
	assert.NotContains(t, got, "prerequisites")
	assert.NotContains(t, got, "environmentalSetup")
	assert.Contains(t, got, "config")

	blob, err := blobs.Get(doc.BlobID)
	require.NoError(t, err)
	assert.Equal(t, []byte("# My Project\n"), blob.Content)

	// A second success supersedes the first blob.
	doc2, err := a.Submit(context.Background(), fullValues(), cfg)
	require.NoError(t, err)
	_, err = blobs.Get(doc.BlobID)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.Equal(t, 1, blobs.Len())
	assert.Equal(t, doc2.BlobID, a.LiveBlob())

	a.Release()
	assert.Equal(t, 0, blobs.Len())
	assert.Empty(t, a.LiveBlob())
}

func TestAdapter_ErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category Category
		message  string
	}{
		{"server error", 500, `{"error":"OpenAI API error","details":"quota"}`, CategoryAPI, "OpenAI API error"},
		{"bad request", 400, `{"error":"Invalid request body"}`, CategoryValidation, "Invalid request body"},
		{"plain text", 502, "bad gateway", CategoryAPI, "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var logs bytes.Buffer
			a, blobs := newAdapter(t, srv.URL)
			logx.SetOutput(&logs)

			doc, err := a.Submit(context.Background(), fullValues(), sections.Default())
			require.Nil(t, doc)

			var subErr *Error
			require.True(t, errors.As(err, &subErr))
			assert.Equal(t, tt.category, subErr.Category)
			assert.Equal(t, tt.status, subErr.StatusCode)
			assert.Equal(t, tt.message, subErr.Message)
			assert.Equal(t, tt.category.UserMessage(), subErr.UserMessage())
			assert.Equal(t, 0, blobs.Len())

			assert.Contains(t, logs.String(), string(tt.category))
			assert.Contains(t, logs.String(), tt.message)
		})
	}
}

func TestAdapter_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	a, _ := newAdapter(t, srv.URL, WithTimeout(50*time.Millisecond))
	_, err := a.Submit(context.Background(), fullValues(), sections.Default())

	var subErr *Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, CategoryTimeout, subErr.Category)
	assert.Equal(t, "Request timed out. Please try again.", subErr.UserMessage())
}

func TestAdapter_Network(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a, _ := newAdapter(t, url)
	_, err := a.Submit(context.Background(), fullValues(), sections.Default())

	var subErr *Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, CategoryNetwork, subErr.Category)
}

type recordingObserver struct {
	categories []Category
}

func (r *recordingObserver) ObserveSubmission(c Category, _ time.Duration) {
	r.categories = append(r.categories, c)
}

func TestAdapter_GeneratorFuncAndObserver(t *testing.T) {
	obs := &recordingObserver{}
	gen := GeneratorFunc(func(_ context.Context, req Request) (*Response, error) {
		if _, ok := req.Fields[sections.FieldTesting]; ok {
			return nil, errors.New("something odd")
		}
		return &Response{Markdown: "ok"}, nil
	})
	logx.SetOutput(io.Discard)
	a := NewAdapter(gen, NewMemoryBlobs(), WithObserver(obs))

	doc, err := a.Submit(context.Background(), fullValues(), sections.Basics())
	require.NoError(t, err)
	assert.Equal(t, DefaultFilename, doc.Filename)

	_, err = a.Submit(context.Background(), fullValues(), sections.Default())
	var subErr *Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, CategoryUnknown, subErr.Category)

	assert.Equal(t, []Category{"", CategoryUnknown}, obs.categories)
}

func TestFilenameFromDisposition(t *testing.T) {
	assert.Equal(t, "README.md", FilenameFromDisposition(""))
	assert.Equal(t, "docs.md", FilenameFromDisposition(`attachment; filename="docs.md"`))
	assert.Equal(t, "README.md", FilenameFromDisposition("attachment"))
	assert.Equal(t, `attachment; filename="README.md"`, Disposition("README.md"))
	assert.True(t, strings.HasPrefix(Disposition("x.md"), "attachment;"))
}

func TestAdapter_CanceledIsTimeout(t *testing.T) {
	logx.SetOutput(io.Discard)
	gen := GeneratorFunc(func(ctx context.Context, _ Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	a := NewAdapter(gen, NewMemoryBlobs())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := a.Submit(ctx, fullValues(), sections.Default())

	var subErr *Error
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, CategoryTimeout, subErr.Category)
}

func TestHTTPGenerator_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write(bytes.Repeat([]byte("x"), maxResponseBytes+1))
	}))
	defer srv.Close()

	_, err := NewHTTPGenerator(srv.URL, nil).Generate(context.Background(), Request{Fields: fullValues()})
	assert.ErrorIs(t, err, ErrResponseTooLarge)

	small := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), maxResponseBytes))
	}))
	defer small.Close()
	resp, err := NewHTTPGenerator(small.URL, nil).Generate(context.Background(), Request{Fields: fullValues()})
	require.NoError(t, err)
	assert.Len(t, resp.Markdown, maxResponseBytes)
}
