package hue

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request defaults.
const (
	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is kept for logs.
	maxErrorBody = 512

	headerAppKey = "hue-application-key"
)

// Options configures a Client.
type Options struct {
	// BridgeIP is the bridge host, with optional port.
	BridgeIP string

	// AppKey is the whitelisted application key.
	AppKey string

	// InsecureSkipVerify accepts the bridge's self-signed certificate.
	InsecureSkipVerify bool

	// Timeout bounds REST calls. Zero means 10s. The event stream is exempt.
	Timeout time.Duration

	// BaseURL overrides https://<BridgeIP>. Used by tests.
	BaseURL string
}

// Client talks to a Hue bridge over the CLIP v2 REST and event stream API.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL string
	appKey  string

	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient validates opts and builds a Client. No request is made.
//
// Returns:
//   - *Client: ready for use
//   - error: ErrNotConfigured if the address or key is missing
func NewClient(opts Options) (*Client, error) {
	if (opts.BridgeIP == "" && opts.BaseURL == "") || opts.AppKey == "" {
		return nil, ErrNotConfigured
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := opts.BaseURL
	if base == "" {
		base = "https://" + opts.BridgeIP
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // bridge certificates are self-signed
	}

	return &Client{
		baseURL:      strings.TrimRight(base, "/"),
		appKey:       opts.AppKey,
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
	}, nil
}

// UpdateLight sends a state change to a light or grouped_light.
//
// Parameters:
//   - ctx: Context for cancellation
//   - rtype: TypeLight or TypeGroupedLight
//   - id: Resource id
//   - update: Fields to change
//
// Returns:
//   - error: *StatusError for non-2xx responses, ErrRequestFailed otherwise
func (c *Client) UpdateLight(ctx context.Context, rtype ResourceType, id string, update LightUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("hue: encoding update: %w", err)
	}

	url := fmt.Sprintf("%s/clip/v2/resource/%s/%s", c.baseURL, rtype, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// listResponse is the CLIP v2 envelope for GET requests.
type listResponse struct {
	Errors []struct {
		Description string `json:"description"`
	} `json:"errors"`
	Data []Resource `json:"data"`
}

// List returns every resource of the given type.
func (c *Client) List(ctx context.Context, rtype ResourceType) ([]Resource, error) {
	url := fmt.Sprintf("%s/clip/v2/resource/%s", c.baseURL, rtype)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("hue: decoding %s list: %w", rtype, err)
	}
	if len(out.Errors) > 0 && len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, out.Errors[0].Description)
	}

	return out.Data, nil
}

// OpenEventStream opens the long-lived event stream. The returned body has
// no read deadline; closing it tears the connection down.
func (c *Client) OpenEventStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/eventstream/clip/v2", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(c.streamClient, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do sets the app key, performs the request and converts non-2xx answers
// into *StatusError. On error the body is already closed.
func (c *Client) do(client *http.Client, req *http.Request) (*http.Response, error) {
	req.Header.Set(headerAppKey, c.appKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp, nil
}
