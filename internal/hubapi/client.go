// Package hubapi talks to the remote upload API on behalf of a visitor.
package hubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/producthub/producthub/internal/models"
)

const (
	pathStatus   = "/auth/status"
	pathLoginURL = "/auth/url"
	pathUpload   = "/upload"
	pathHealth   = "/health"

	// maxErrorBody bounds how much of a JSON answer is read
	maxErrorBody = 1 << 20
)

// Credentials carries the visitor's cookies to the API and hands back any
// cookie the API sets, so the browser keeps one session with the API.
type Credentials struct {
	Cookies   []*http.Cookie
	SetCookie func(*http.Cookie)
}

// CredentialsFor forwards the cookies of r and relays Set-Cookie answers to w
func CredentialsFor(w http.ResponseWriter, r *http.Request) Credentials {
	return Credentials{
		Cookies: r.Cookies(),
		SetCookie: func(c *http.Cookie) {
			http.SetCookie(w, c)
		},
	}
}

func (c Credentials) apply(req *http.Request) {
	for _, cookie := range c.Cookies {
		req.AddCookie(cookie)
	}
}

func (c Credentials) relay(resp *http.Response) {
	if c.SetCookie == nil {
		return
	}
	for _, cookie := range resp.Cookies() {
		c.SetCookie(cookie)
	}
}

// UploadResult is the answer to a successful upload
type UploadResult struct {
	StatusCode int
	Message    string
}

// Client wraps an HTTP client bound to the upload API base URL
type Client struct {
	baseURL *url.URL
	client  *http.Client
	logger  logrus.FieldLogger
}

// NewClient creates a client for the API at baseURL. A zero timeout leaves
// requests unbounded, like the browser page this replaces.
func NewClient(baseURL string, timeout time.Duration, logger logrus.FieldLogger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute: %q", baseURL)
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(cleanhttp.DefaultPooledTransport()),
		Timeout:   timeout,
	}

	return &Client{
		baseURL: u,
		client:  httpClient,
		logger:  logger.WithField("component", "hubapi"),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(req *http.Request, creds Credentials) (*http.Response, error) {
	creds.apply(req)
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", req.URL.Path).Warn("api request failed")
		return nil, err
	}
	creds.relay(resp)
	c.logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("api request")
	return resp, nil
}

// Status asks whether the visitor holds a valid session. Any truthy
// isAuthenticated counts as authenticated; the body is read whatever the
// status code, since the API reports failures as isAuthenticated=false.
func (c *Client) Status(ctx context.Context, creds Credentials) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathStatus), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, creds)
	if err != nil {
		return false, fmt.Errorf("failed to check authentication status: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		IsAuthenticated any `json:"isAuthenticated"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode status response: %w", err)
	}

	return truthy(body.IsAuthenticated), nil
}

// LoginURL requests the provider login URL the browser should navigate to
func (c *Client) LoginURL(ctx context.Context, creds Credentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathLoginURL), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build login url request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, creds)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Op: "auth url", StatusCode: resp.StatusCode}
	}

	var body struct {
		AuthURL string `json:"auth_url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode auth url response: %w", err)
	}
	if body.AuthURL == "" {
		return "", ErrNoLoginURL
	}

	return body.AuthURL, nil
}

// Upload posts the submission as multipart form data. A non-2xx answer is
// returned as *StatusError; 401 also matches ErrUnauthorized.
func (c *Client) Upload(ctx context.Context, creds Credentials, sub *models.Submission) (*UploadResult, error) {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pathUpload), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.WithFields(logrus.Fields{
		"brand_name": sub.BrandName,
		"company":    sub.Company,
		"season":     sub.Season,
		"file":       sub.FileName,
		"size":       humanize.Bytes(uint64(sub.Size())),
	}).Debug("attempting upload")

	resp, err := c.do(req, creds)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	message := decodeMessage(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: "upload", StatusCode: resp.StatusCode, Message: message}
	}

	if message == "" {
		message = "Upload successful"
	}
	return &UploadResult{StatusCode: resp.StatusCode, Message: message}, nil
}

// Health probes the API liveness endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(pathHealth), nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.do(req, Credentials{})
	if err != nil {
		return fmt.Errorf("failed to reach api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "health", StatusCode: resp.StatusCode}
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if body.Status != "healthy" {
		return fmt.Errorf("api reports status %q", body.Status)
	}
	return nil
}

// encodeSubmission writes the four form fields the API expects
func encodeSubmission(sub *models.Submission) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{models.FieldBrandName, sub.BrandName},
		{models.FieldCompany, string(sub.Company)},
		{models.FieldSeason, sub.Season},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	contentType := sub.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, models.FieldFile, sub.FileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Content); err != nil {
		return nil, "", err
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// decodeMessage extracts the optional message field, tolerating any body
func decodeMessage(r io.Reader) string {
	var body struct {
		Message any `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&body); err != nil {
		return ""
	}
	if s, ok := body.Message.(string); ok {
		return s
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case nil:
		return false
	default:
		// objects and arrays
		return true
	}
}
