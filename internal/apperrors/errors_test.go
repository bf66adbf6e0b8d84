package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramesius/wez-sonos/internal/soap"
)

func TestFromSoapError_Fault(t *testing.T) {
	appErr := FromSoapError(&soap.Fault{
		Action:      "SetVolume",
		Code:        "402",
		Description: "Invalid Args",
	})

	require.Equal(t, ErrorCodeDeviceRejected, appErr.Code)
	require.Equal(t, 502, appErr.StatusCode)
	require.Equal(t, "402", appErr.Details["upnp_code"])
	require.Equal(t, "Invalid Args", appErr.Details["upnp_description"])
}

func TestFromSoapError_Timeout(t *testing.T) {
	appErr := FromSoapError(&soap.TransportError{Action: "Play", Timeout: true})

	require.Equal(t, ErrorCodeDeviceTimeout, appErr.Code)
	require.Equal(t, 504, appErr.StatusCode)
}

func TestFromSoapError_Unreachable(t *testing.T) {
	appErr := FromSoapError(&soap.TransportError{Action: "Play", Err: errors.New("connection refused")})

	require.Equal(t, ErrorCodeDeviceUnreachable, appErr.Code)
	require.Equal(t, 502, appErr.StatusCode)
}

func TestFromSoapError_Malformed(t *testing.T) {
	appErr := FromSoapError(&soap.MalformedError{Action: "Play", Err: errors.New("no soap body found")})

	require.Equal(t, ErrorCodeDeviceMalformed, appErr.Code)
	require.Equal(t, 502, appErr.StatusCode)
}

func TestEnsureAppError(t *testing.T) {
	original := NewValidationError("volume out of range", nil)
	require.Same(t, original, EnsureAppError(original))

	wrapped := EnsureAppError(errors.New("plain"))
	require.Equal(t, ErrorCodeInternalError, wrapped.Code)
	require.Equal(t, 500, wrapped.StatusCode)
}
