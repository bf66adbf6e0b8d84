package device

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramesius/wez-sonos/internal/config"
	"github.com/ramesius/wez-sonos/internal/soap"
)

func TestRegistry_GetAndList(t *testing.T) {
	reg := NewRegistry([]config.DeviceEntry{
		{Name: "Kitchen", IP: "192.168.1.60"},
		{Name: "Bedroom", IP: "192.168.1.61"},
	})

	dev, ok := reg.Get("192.168.1.60")
	require.True(t, ok)
	require.Equal(t, "Kitchen", dev.Name)

	_, ok = reg.Get("192.168.1.99")
	require.False(t, ok)

	list := reg.List()
	require.Len(t, list, 2)
	require.Equal(t, "Bedroom", list[0].Name)
	require.Equal(t, "Kitchen", list[1].Name)
}

func TestRegistry_Endpoint(t *testing.T) {
	reg := NewRegistry([]config.DeviceEntry{{Name: "Kitchen", IP: "192.168.1.60"}})

	endpoint, err := reg.Endpoint("192.168.1.60", soap.ServiceAVTransport)
	require.NoError(t, err)
	require.Equal(t, "http://192.168.1.60:1400/MediaRenderer/AVTransport/Control", endpoint.ControlURL())
	require.Equal(t, "http://192.168.1.60:1400/MediaRenderer/AVTransport/Event", endpoint.EventURL())

	_, err = reg.Endpoint("192.168.1.99", soap.ServiceAVTransport)
	require.Error(t, err)
}
