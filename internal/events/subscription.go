package events

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ramesius/wez-sonos/internal/soap"
)

// SubscriptionClient speaks the GENA side of UPnP eventing: SUBSCRIBE,
// renewal and UNSUBSCRIBE requests against a service's event URL.
type SubscriptionClient struct {
	httpClient *http.Client
}

// NewSubscriptionClient creates a subscription client with the given timeout.
func NewSubscriptionClient(timeout time.Duration) *SubscriptionClient {
	return &SubscriptionClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Subscribe sends a SUBSCRIBE request carrying the callback URL and the
// requested duration. Returns the device-assigned SID and the granted
// duration in seconds, which may be shorter than requested.
func (c *SubscriptionClient) Subscribe(ctx context.Context, endpoint soap.ServiceEndpoint, callbackURL string, requestedSeconds int) (sid string, granted int, err error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", endpoint.EventURL(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("CALLBACK", fmt.Sprintf("<%s>", callbackURL))
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("TIMEOUT", fmt.Sprintf("Second-%d", requestedSeconds))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("subscribe request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("subscribe failed: %s", resp.Status)
	}

	sid = resp.Header.Get("SID")
	if sid == "" {
		return "", 0, fmt.Errorf("no SID in subscribe response")
	}

	granted = ParseTimeout(resp.Header.Get("TIMEOUT"))
	if granted == 0 {
		granted = requestedSeconds
	}
	return sid, granted, nil
}

// Renew refreshes an existing subscription. A 412 response means the device
// no longer knows the SID and is reported as ErrSubscriptionGone.
func (c *SubscriptionClient) Renew(ctx context.Context, endpoint soap.ServiceEndpoint, sid string, requestedSeconds int) (granted int, err error) {
	req, err := http.NewRequestWithContext(ctx, "SUBSCRIBE", endpoint.EventURL(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	// Renewals carry the SID instead of CALLBACK/NT.
	req.Header.Set("SID", sid)
	req.Header.Set("TIMEOUT", fmt.Sprintf("Second-%d", requestedSeconds))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("renew request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPreconditionFailed {
		return 0, ErrSubscriptionGone
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("renew failed: %s", resp.Status)
	}

	granted = ParseTimeout(resp.Header.Get("TIMEOUT"))
	if granted == 0 {
		granted = requestedSeconds
	}
	return granted, nil
}

// Unsubscribe tells the device to drop the subscription. Best-effort: local
// bookkeeping is authoritative once the caller asked to leave, so network
// errors and an already-gone SID are not failures.
func (c *SubscriptionClient) Unsubscribe(ctx context.Context, endpoint soap.ServiceEndpoint, sid string) error {
	req, err := http.NewRequestWithContext(ctx, "UNSUBSCRIBE", endpoint.EventURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("SID", sid)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusPreconditionFailed {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unsubscribe failed: %s", resp.Status)
	}
	return nil
}
