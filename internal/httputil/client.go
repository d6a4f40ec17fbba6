// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil is the HTTP transport shared by every call to the
// conversion service. It centralizes the connect timeout, redirect limit,
// and User-Agent so that each call site behaves the same way. It never
// retries; callers decide what a failure means.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/docconv/pkg/types"
)

// Client executes requests against the conversion service.
type Client struct {
	http      *http.Client
	userAgent string
	token     string
}

// NewClient builds a Client from cfg. Zero values fall back to the package
// defaults (10s connect timeout, 10 redirects). The connect timeout bounds
// dialing only; transfers of large result files are not cut short.
func NewClient(cfg types.HTTPConfig, token string) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = types.DefaultConnectTimeout
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = types.DefaultMaxRedirects
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = types.DefaultUserAgent
	}

	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &Client{
		http: &http.Client{
			Transport:     transport,
			CheckRedirect: limitRedirects(maxRedirects),
		},
		userAgent: userAgent,
		token:     strings.TrimSpace(token),
	}
}

func limitRedirects(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// FetchJSON performs a GET and decodes a 2xx JSON body into v.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newError(ErrNetwork, req, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, body, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(ErrHTTPStatus, req, resp.StatusCode, nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return newError(ErrDecode, req, resp.StatusCode, err)
	}
	return nil
}

// FetchStatusCode performs a HEAD request and returns the final status code.
// No body is transferred.
func (c *Client) FetchStatusCode(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, newError(ErrNetwork, req, 0, fmt.Errorf("creating request: %w", err))
	}
	resp, _, err := c.do(req)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// Download streams the body of a GET on url into w and returns the number
// of bytes written. The service token is not sent, since url is usually a
// third-party document host.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, newError(ErrNetwork, req, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, newError(ErrNetwork, req, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, newError(ErrHTTPStatus, req, resp.StatusCode, nil)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, newError(ErrNetwork, req, resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}
	return n, nil
}

// Field is one multipart form field. When Content is non-nil the field is
// sent as a file part named Filename; otherwise Value is sent as text.
type Field struct {
	Name     string
	Value    string
	Filename string
	Content  io.Reader
}

// PostMultipart POSTs fields as multipart/form-data and decodes the JSON
// response into v. The body is decoded whatever the status code, because
// the service reports rejections as JSON; a non-2xx response whose body is
// not JSON is reported as ErrHTTPStatus.
func (c *Client) PostMultipart(ctx context.Context, url string, fields []Field, v any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeFields(mw, fields))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.CloseWithError(err)
		return newError(ErrNetwork, req, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newError(ErrHTTPStatus, req, resp.StatusCode, nil)
		}
		return newError(ErrDecode, req, resp.StatusCode, err)
	}
	return nil
}

// writeFields streams fields into mw and closes it. The body is produced
// while the request is sent, so a staged file is never held in memory.
func writeFields(mw *multipart.Writer, fields []Field) error {
	for _, f := range fields {
		if err := writeField(mw, f); err != nil {
			return fmt.Errorf("encoding field %q: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart body: %w", err)
	}
	return nil
}

func writeField(mw *multipart.Writer, f Field) error {
	if f.Content == nil {
		return mw.WriteField(f.Name, f.Value)
	}
	part, err := mw.CreateFormFile(f.Name, f.Filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f.Content)
	return err
}

// do sends req with the shared headers and reads the whole body.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, newError(ErrNetwork, req, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, newError(ErrNetwork, req, resp.StatusCode, fmt.Errorf("reading body: %w", err))
	}
	return resp, body, nil
}

// Failure kinds carried by TransportError.
var (
	ErrNetwork    = errors.New("network failure")
	ErrDecode     = errors.New("decode failure")
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// TransportError describes a failed request. Kind is one of ErrNetwork,
// ErrDecode or ErrHTTPStatus and matches with errors.Is.
type TransportError struct {
	Kind       error
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func newError(kind error, req *http.Request, status int, err error) *TransportError {
	te := &TransportError{Kind: kind, StatusCode: status, Err: err}
	if req != nil {
		te.Method = req.Method
		te.URL = req.URL.String()
	}
	return te
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Method != "" {
		fmt.Fprintf(&b, ": %s %s", e.Method, e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// JoinURL appends path to base with exactly one slash between them.
// A trailing slash on path is preserved.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
