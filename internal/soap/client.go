package soap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client invokes SOAP actions against device control endpoints.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a SOAP client with the given timeout.
// Uses connection pooling for better performance when making multiple requests.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Invoke sends an action to the endpoint's control URL and returns the
// ordered response arguments. Failures surface as *TransportError, *Fault or
// *MalformedError; no retries happen here, retry policy belongs to the
// caller because idempotency is action-specific.
func (c *Client) Invoke(ctx context.Context, endpoint ServiceEndpoint, action string, args Args) (Args, error) {
	body := Encode(endpoint.ServiceType, action, args)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.ControlURL(), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}

	req.Header.Set("Content-Type", "text/xml; charset=\"utf-8\"")
	req.Header.Set("SOAPACTION", fmt.Sprintf("\"%s#%s\"", endpoint.ServiceType, action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Action: action, Timeout: true, Err: err}
		}
		return nil, &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Action: action, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if fault := ParseFault(payload); fault != nil {
			fault.Action = action
			return nil, fault
		}
		return nil, &TransportError{Action: action, Status: resp.StatusCode}
	}

	return Decode(action, payload)
}

// ExecuteAction is a convenience wrapper that resolves the endpoint for a
// well-known service on a device IP before invoking.
func (c *Client) ExecuteAction(ctx context.Context, ip string, service Service, action string, args Args) (Args, error) {
	endpoint, err := Endpoint(ip, service)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, endpoint, action, args)
}
