// Package jarclient talks to the panel's /jar endpoints.
package jarclient

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
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"jarconsole/internal/models"
)

var (
	// ErrTransport wraps every failure to complete a request: dial errors,
	// timeouts, non-2xx HTTP statuses and undecodable bodies.
	ErrTransport = errors.New("transport failed")
	// ErrMissingID is returned before any I/O when an action gets an empty id.
	ErrMissingID = errors.New("missing jar id")
	// ErrNotJar is returned by Create when the file name does not end in .jar.
	ErrNotJar = errors.New("file is not a .jar archive")
)

const (
	pathStatus   = "/jar/status"
	pathDelete   = "/jar/delete"
	pathStart    = "/jar/start"
	pathStop     = "/jar/stop"
	pathNew      = "/jar/new"
	pathFiles    = "/jar/files"
	pathDownload = "/jar/download"
	pathUpload   = "/jar/upload"
)

// Client issues fire-once requests against a panel. It never retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for the panel rooted at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		// Never mutate a caller-supplied client.
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// Status fetches the JAR status listing.
func (c *Client) Status(ctx context.Context) (models.Envelope[[]models.ServiceItem], error) {
	var env models.Envelope[[]models.ServiceItem]
	if err := c.getJSON(ctx, pathStatus, nil, &env); err != nil {
		return env, err
	}
	return env, nil
}

// Delete removes the JAR service with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.action(ctx, http.MethodDelete, pathDelete, id)
}

// Start launches the JAR service with the given id.
func (c *Client) Start(ctx context.Context, id string) error {
	return c.action(ctx, http.MethodPut, pathStart, id)
}

// Stop terminates the JAR service with the given id.
func (c *Client) Stop(ctx context.Context, id string) error {
	return c.action(ctx, http.MethodPut, pathStop, id)
}

// Create registers a new service named name from the uploaded archive.
func (c *Client) Create(ctx context.Context, name, fileName string, file io.Reader) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("missing service name")
	}
	if filepath.Ext(fileName) != ".jar" {
		return ErrNotJar
	}
	return c.upload(ctx, pathNew, nil, map[string]string{"name": name}, fileName, file)
}

// Files lists the files stored for the service with the given id.
func (c *Client) Files(ctx context.Context, id string) (models.Envelope[[]string], error) {
	var env models.Envelope[[]string]
	if id == "" {
		return env, ErrMissingID
	}
	err := c.getJSON(ctx, pathFiles, url.Values{"id": {id}}, &env)
	return env, err
}

// Download streams the named file of a service into w.
func (c *Client) Download(ctx context.Context, id, name string, w io.Writer) (int64, error) {
	if id == "" {
		return 0, ErrMissingID
	}
	resp, err := c.do(ctx, http.MethodGet, pathDownload, url.Values{"id": {id}, "name": {name}}, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read %s: %w", ErrTransport, pathDownload, err)
	}
	return n, nil
}

// Upload stores a file next to the service's archives. Uploaded .jar files
// are renamed by the panel after their upload time.
func (c *Client) Upload(ctx context.Context, id, name string, file io.Reader) error {
	if id == "" {
		return ErrMissingID
	}
	if name == "" {
		return errors.New("missing file name")
	}
	return c.upload(ctx, pathUpload, url.Values{"id": {id}, "name": {name}}, nil, name, file)
}

func (c *Client) action(ctx context.Context, method, path, id string) error {
	if id == "" {
		return ErrMissingID
	}
	resp, err := c.do(ctx, method, path, url.Values{"id": {id}}, nil, "")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrTransport, path, err)
	}
	return nil
}

func (c *Client) upload(ctx context.Context, path string, query url.Values, fields map[string]string, fileName string, file io.Reader) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, query, &body, mw.FormDataContentType())
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do sends the request and returns the response only for 2xx statuses.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: http %d", ErrTransport, method, path, resp.StatusCode)
	}
	return resp, nil
}
