package events

import (
	"fmt"
	"html"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ramesius/wez-sonos/internal/soap"
)

// notifyBody wraps inner LastChange XML in a propertyset the way Sonos does:
// the event payload arrives entity-escaped inside the LastChange element.
func notifyBody(lastChange string) []byte {
	return []byte(fmt.Sprintf(
		`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0"><e:property><LastChange>%s</LastChange></e:property></e:propertyset>`,
		html.EscapeString(lastChange)))
}

const avTransportLastChange = `<Event xmlns="urn:schemas-upnp-org:metadata-1-0/AVT/">` +
	`<InstanceID val="0">` +
	`<TransportState val="PLAYING"/>` +
	`<TransportStatus val="OK"/>` +
	`<CurrentTrackURI val="x-sonos-spotify:track123"/>` +
	`<CurrentTrackDuration val="0:03:45"/>` +
	`</InstanceID></Event>`

const renderingControlLastChange = `<Event xmlns="urn:schemas-upnp-org:metadata-1-0/RCS/">` +
	`<InstanceID val="0">` +
	`<Volume channel="Master" val="25"/>` +
	`<Volume channel="LF" val="100"/>` +
	`<Volume channel="RF" val="100"/>` +
	`<Mute channel="Master" val="1"/>` +
	`</InstanceID></Event>`

func TestParseNotifyBody_AVTransport(t *testing.T) {
	change, err := ParseNotifyBody(notifyBody(avTransportLastChange), soap.ServiceAVTransport)

	require.NoError(t, err)
	require.NotNil(t, change.Transport)
	require.Nil(t, change.Rendering)
	require.Equal(t, "PLAYING", change.Transport.TransportState)
	require.Equal(t, "OK", change.Transport.TransportStatus)
	require.Equal(t, "x-sonos-spotify:track123", change.Transport.CurrentTrackURI)
	require.Equal(t, "0:03:45", change.Transport.TrackDuration)
	require.Equal(t, "PLAYING", change.Properties["TransportState"])
}

func TestParseNotifyBody_RenderingControlMasterChannelOnly(t *testing.T) {
	change, err := ParseNotifyBody(notifyBody(renderingControlLastChange), soap.ServiceRenderingControl)

	require.NoError(t, err)
	require.NotNil(t, change.Rendering)
	require.True(t, change.Rendering.HasVolume)
	require.Equal(t, 25, change.Rendering.Volume)
	require.True(t, change.Rendering.HasMute)
	require.True(t, change.Rendering.Muted)
	require.Equal(t, "25", change.Properties["Volume"])
	require.Equal(t, "1", change.Properties["Mute"])
}

func TestParseNotifyBody_UnknownServiceKeepsRawLastChange(t *testing.T) {
	change, err := ParseNotifyBody(notifyBody("<ZoneGroupState/>"), soap.ServiceZoneGroupTopology)

	require.NoError(t, err)
	require.Equal(t, "<ZoneGroupState/>", change.Properties["LastChange"])
}

func TestParseNotifyBody_Malformed(t *testing.T) {
	_, err := ParseNotifyBody([]byte("not xml at all"), soap.ServiceAVTransport)
	require.Error(t, err)

	_, err = ParseNotifyBody(notifyBody("<unclosed"), soap.ServiceAVTransport)
	require.Error(t, err)
}

func TestParseTimeout(t *testing.T) {
	require.Equal(t, 1800, ParseTimeout("Second-1800"))
	require.Equal(t, 3600, ParseTimeout("Second-3600"))
	require.Equal(t, 86400, ParseTimeout("infinite"))
	require.Equal(t, 86400, ParseTimeout("Infinite"))
	require.Equal(t, 0, ParseTimeout("Second-0"))
	require.Equal(t, 0, ParseTimeout("Second--5"))
	require.Equal(t, 0, ParseTimeout("garbage"))
	require.Equal(t, 0, ParseTimeout(""))
}
