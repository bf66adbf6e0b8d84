package soap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testEndpoint(baseURL string) ServiceEndpoint {
	return ServiceEndpoint{
		BaseURL:     baseURL,
		ControlPath: "/MediaRenderer/RenderingControl/Control",
		EventPath:   "/MediaRenderer/RenderingControl/Event",
		ServiceType: "urn:schemas-upnp-org:service:RenderingControl:1",
	}
}

func TestInvoke_SendsSoapHeadersAndOrderedArgs(t *testing.T) {
	var gotAction, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPACTION")
		gotContentType = r.Header.Get("Content-Type")
		payload, _ := io.ReadAll(r.Body)
		gotBody = string(payload)
		w.Write(responseBody("SetVolume", nil))
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	_, err := client.Invoke(context.Background(), testEndpoint(server.URL), "SetVolume", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: "20"},
	})

	require.NoError(t, err)
	require.Equal(t, `"urn:schemas-upnp-org:service:RenderingControl:1#SetVolume"`, gotAction)
	require.Equal(t, `text/xml; charset="utf-8"`, gotContentType)

	// Argument order in the wire body must match the order given.
	instance := strings.Index(gotBody, "<InstanceID>")
	channel := strings.Index(gotBody, "<Channel>")
	volume := strings.Index(gotBody, "<DesiredVolume>")
	require.True(t, instance >= 0 && channel > instance && volume > channel, "body: %s", gotBody)
}

func TestInvoke_DeviceFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(faultBody("402", "Invalid Args"))
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	_, err := client.Invoke(context.Background(), testEndpoint(server.URL), "SetVolume", Args{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: "200"},
	})

	fault, ok := err.(*Fault)
	require.True(t, ok, "expected *Fault, got %T: %v", err, err)
	require.Equal(t, "402", fault.Code)
	require.Equal(t, "Invalid Args", fault.Description)
	require.Equal(t, "SetVolume", fault.Action)
}

func TestInvoke_HTTPErrorWithoutFaultBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	_, err := client.Invoke(context.Background(), testEndpoint(server.URL), "Play", nil)

	transportErr, ok := err.(*TransportError)
	require.True(t, ok, "expected *TransportError, got %T: %v", err, err)
	require.Equal(t, http.StatusNotFound, transportErr.Status)
	require.False(t, transportErr.Timeout)
}

func TestInvoke_RedirectStatusIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Location header, so the HTTP client surfaces the 300 as-is.
		w.WriteHeader(http.StatusMultipleChoices)
		w.Write(responseBody("Play", nil))
	}))
	defer server.Close()

	client := NewClient(2 * time.Second)
	_, err := client.Invoke(context.Background(), testEndpoint(server.URL), "Play", nil)

	transportErr, ok := err.(*TransportError)
	require.True(t, ok, "expected *TransportError, got %T: %v", err, err)
	require.Equal(t, http.StatusMultipleChoices, transportErr.Status)
}

func TestInvoke_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Invoke(ctx, testEndpoint(server.URL), "Play", nil)

	transportErr, ok := err.(*TransportError)
	require.True(t, ok, "expected *TransportError, got %T: %v", err, err)
	require.True(t, transportErr.Timeout)
}

func TestInvoke_ConnectionRefused(t *testing.T) {
	client := NewClient(1 * time.Second)
	_, err := client.Invoke(context.Background(), testEndpoint("http://127.0.0.1:1"), "Play", nil)

	transportErr, ok := err.(*TransportError)
	require.True(t, ok, "expected *TransportError, got %T: %v", err, err)
	require.False(t, transportErr.Timeout)
}
