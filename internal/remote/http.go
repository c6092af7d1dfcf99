package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aweris/assetsync"
	"go.trai.ch/zerr"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// API paths relative to the base URL.
const (
	EnumeratePath = "enumerate"
	GetPath       = "get"
)

var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewTransportClient returns an http.Client on a clone of the shared transport.
func NewTransportClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// EnumerateResponse is the body of the enumerate endpoint.
type EnumerateResponse struct {
	Resources []assetsync.ResourceDescriptor `json:"resources"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// HTTPClient talks to the enumerate/get API.
type HTTPClient struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPClient creates a client for the API rooted at baseURL. A nil client
// uses NewTransportClient(DefaultTimeout).
func NewHTTPClient(baseURL string, client *http.Client) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("remote url required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid remote url"), "url", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, zerr.With(errors.New("remote url must be http or https"), "url", baseURL)
	}
	if client == nil {
		client = NewTransportClient(DefaultTimeout)
	}
	return &HTTPClient{base: u, client: client}, nil
}

func (c *HTTPClient) String() string { return c.base.String() }

// FetchManifest returns the resources listed by the enumerate endpoint.
func (c *HTTPClient) FetchManifest(ctx context.Context) ([]assetsync.ResourceDescriptor, error) {
	body, err := c.get(ctx, c.base.JoinPath(EnumeratePath))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp EnumerateResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, zerr.Wrap(err, "failed to decode manifest")
	}
	if resp.Resources == nil {
		return []assetsync.ResourceDescriptor{}, nil
	}
	return resp.Resources, nil
}

// FetchContent returns the bytes served for name. A 404 maps to
// assetsync.ErrResourceNotFound.
func (c *HTTPClient) FetchContent(ctx context.Context, name string) ([]byte, error) {
	u := c.base.JoinPath(GetPath)
	u.RawQuery = url.Values{"name": {name}}.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, zerr.With(err, "resource", name)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read content"), "resource", name)
	}
	return data, nil
}

func (c *HTTPClient) get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "request failed"), "url", u.String())
	}

	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, zerr.With(zerr.Wrap(assetsync.ErrResourceNotFound, "request failed"), "url", u.String())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: u.String()}
	}
	return resp.Body, nil
}
