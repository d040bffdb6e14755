// Package client talks to the acdc HTTP API: schemas, the analysis
// document, model import, path validation and evaluation control.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/acdc/internal/analysis"
)

// DefaultBaseURL is the API root of a locally running server.
const DefaultBaseURL = "http://localhost:8080/acdc/api"

// APIError is a non-2xx response. Message is the server's error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Client is an HTTP client for one API server.
type Client struct {
	base string
	hc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets a per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc = &http.Client{Timeout: d}
		}
	}
}

// New creates a client rooted at baseURL (DefaultBaseURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base }

// Schema returns the raw JSON entry list of a named schema.
func (c *Client) Schema(ctx context.Context, name string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/schemas/"+url.PathEscape(name), "", nil)
}

// SchemaNames lists the schemas the server offers.
func (c *Client) SchemaNames(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/schemas", "", nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("decoding schema names: %w", err)
	}
	return names, nil
}

// GetAnalysis fetches the current analysis document as raw JSON.
func (c *Client) GetAnalysis(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/analysis", "", nil)
}

// PutAnalysis replaces the remote document and returns the server's copy.
func (c *Client) PutAnalysis(ctx context.Context, doc *analysis.Document) (*analysis.Document, error) {
	body, err := c.doJSON(ctx, http.MethodPut, "/analysis", doc)
	if err != nil {
		return nil, err
	}
	return analysis.Decode(body)
}

// ResetAnalysis starts a new analysis under a fresh ID and returns it.
func (c *Client) ResetAnalysis(ctx context.Context) (*analysis.Document, error) {
	body, err := c.do(ctx, http.MethodDelete, "/analysis", "", nil)
	if err != nil {
		return nil, err
	}
	return analysis.Decode(body)
}

// UpdateConditions replaces the remote condition list and returns it as
// stored (sorted and numbered).
func (c *Client) UpdateConditions(ctx context.Context, cs []analysis.ConditionEntry) ([]analysis.ConditionEntry, error) {
	if cs == nil {
		cs = []analysis.ConditionEntry{}
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/conditions", cs)
	if err != nil {
		return nil, err
	}
	var out []analysis.ConditionEntry
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding conditions: %w", err)
	}
	return out, nil
}

// ImportModelPath asks the server to read a model from a path it can
// reach. It returns the parsed model.
func (c *Client) ImportModelPath(ctx context.Context, path string) (json.RawMessage, error) {
	body, ctype, err := multipartBody(func(w *multipart.Writer) error {
		return w.WriteField("path", path)
	})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/model", ctype, body)
}

// File is one uploaded model file. Path is relative to the chosen
// directory, including the directory itself ("5MW/5MW.fst").
type File struct {
	Path    string
	Content io.Reader
}

// UploadModel uploads a model directory. It returns the parsed turbine.
func (c *Client) UploadModel(ctx context.Context, files []File) (json.RawMessage, error) {
	body, ctype, err := multipartBody(func(w *multipart.Writer) error {
		for _, f := range files {
			if err := w.WriteField("paths", f.Path); err != nil {
				return err
			}
		}
		for _, f := range files {
			part, err := w.CreateFormFile("files", f.Path)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				return fmt.Errorf("reading %s: %w", f.Path, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/model", ctype, body)
}

// ValidatePath reports whether the server can reach path. A rejection by
// the server is a negative answer, not an error.
func (c *Client) ValidatePath(ctx context.Context, path string) (bool, error) {
	body, ctype, err := multipartBody(func(w *multipart.Writer) error {
		return w.WriteField("path", path)
	})
	if err != nil {
		return false, err
	}
	_, err = c.do(ctx, http.MethodPost, "/validate-path", ctype, body)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StartEvaluation submits the document for evaluation.
func (c *Client) StartEvaluation(ctx context.Context, doc *analysis.Document) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/evaluate", doc)
	return err
}

// CancelEvaluation stops the running evaluation.
func (c *Client) CancelEvaluation(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/evaluate", "", nil)
	return err
}

// StatusURL returns the websocket URL of the status channel for one
// analysis.
func (c *Client) StatusURL(analysisID string) string {
	u := c.base + "/evaluate"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if analysisID != "" {
		u += "?analysis=" + url.QueryEscape(analysisID)
	}
	return u
}

func multipartBody(write func(*multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := write(w); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, v any) ([]byte, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(bs))
}

func (c *Client) do(ctx context.Context, method, path, ctype string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", uuid.NewString())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts the "error" field of a JSON error body, falling
// back to the body text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimRight(string(body), "\r\n")
}
