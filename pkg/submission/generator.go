package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// DefaultFilename is used when the service does not name the document.
const DefaultFilename = "README.md"

// Response is a generated document.
type Response struct {
	Markdown string
	Filename string
}

// Generator turns a filtered request into a markdown document.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPGenerator posts requests to a remote documentation service.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
}

// maxResponseBytes caps the documentation service's response body.
const maxResponseBytes = 4 << 20

// ErrResponseTooLarge is returned when the service answers with more than
// maxResponseBytes.
var ErrResponseTooLarge = errors.New("documentation response too large")

// NewHTTPGenerator targets baseURL + "/generate-documentation". A nil client
// uses http.DefaultClient.
func NewHTTPGenerator(baseURL string, client *http.Client) *HTTPGenerator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGenerator{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate-documentation", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/markdown, application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err //nolint:wrapcheck // classified by the adapter
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, &statusErr.Body); jsonErr != nil {
			statusErr.Body.Error = strings.TrimSpace(string(data))
		}
		return nil, statusErr
	}

	return &Response{
		Markdown: string(data),
		Filename: FilenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}, nil
}

// FilenameFromDisposition extracts the attachment filename, falling back to
// DefaultFilename.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return DefaultFilename
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil || params["filename"] == "" {
		return DefaultFilename
	}
	return params["filename"]
}

// Disposition builds the attachment header for filename.
func Disposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
