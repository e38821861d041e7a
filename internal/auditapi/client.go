// Package auditapi is a client for the remote AuditSmart audit service.
package auditapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/auditsmart/internal/observability/metrics"
)

// DefaultBaseURL is the hosted audit service.
const DefaultBaseURL = "https://auditsmartai-mvp.onrender.com/api/v1"

const (
	endpointAudit         = "/audit-only"
	endpointCompile       = "/compile-only"
	endpointPinMetadata   = "/pin-metadata"
	endpointNFTConfig     = "/nft-config"
	endpointMintingReport = "/minting-report"
)

// Client talks to the audit service. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// New creates a new audit API client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Analysis runs static analysis and an LLM rewrite server side.
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// response is a fully read HTTP response.
type response struct {
	*http.Response
	body []byte
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *response) isJSON() bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func (c *Client) get(ctx context.Context, endpoint string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(endpoint, req)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body any) (*response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(endpoint, req)
}

// postFile uploads content as the multipart "file" field.
func (c *Client) postFile(ctx context.Context, endpoint, fileName, content string, headers map[string]string) (*response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.do(endpoint, req)
}

func (c *Client) do(endpoint string, req *http.Request) (*response, error) {
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.AuditAPIRequest(endpoint, "error", time.Since(start))
		c.logger.Error("audit API request failed", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.AuditAPIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	c.logger.Debug("audit API response", "endpoint", endpoint, "status", resp.StatusCode, "bytes", len(body))
	return &response{Response: resp, body: body}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
}

func decode(endpoint string, resp *response, result any) error {
	if err := json.Unmarshal(resp.body, result); err != nil {
		return &ResponseShapeError{
			Endpoint:    endpoint,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        excerpt(resp.body),
			Reason:      fmt.Sprintf("failed to decode %s response: %v", endpoint, err),
		}
	}
	return nil
}

// requireJSON rejects responses that do not declare a JSON content type,
// before the status code is inspected.
func requireJSON(endpoint string, resp *response) error {
	if resp.isJSON() {
		return nil
	}
	return &ResponseShapeError{
		Endpoint:    endpoint,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        excerpt(resp.body),
	}
}
