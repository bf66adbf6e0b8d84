package soap

import "fmt"

// Service identifies a UPnP service on a Sonos device.
type Service string

const (
	ServiceAVTransport       Service = "AVTransport"
	ServiceRenderingControl  Service = "RenderingControl"
	ServiceContentDirectory  Service = "ContentDirectory"
	ServiceZoneGroupTopology Service = "ZoneGroupTopology"
	ServiceDeviceProperties  Service = "DeviceProperties"
)

var serviceTypes = map[Service]string{
	ServiceAVTransport:       "urn:schemas-upnp-org:service:AVTransport:1",
	ServiceRenderingControl:  "urn:schemas-upnp-org:service:RenderingControl:1",
	ServiceContentDirectory:  "urn:schemas-upnp-org:service:ContentDirectory:1",
	ServiceZoneGroupTopology: "urn:schemas-upnp-org:service:ZoneGroupTopology:1",
	ServiceDeviceProperties:  "urn:schemas-upnp-org:service:DeviceProperties:1",
}

var controlPaths = map[Service]string{
	ServiceAVTransport:       "/MediaRenderer/AVTransport/Control",
	ServiceRenderingControl:  "/MediaRenderer/RenderingControl/Control",
	ServiceContentDirectory:  "/MediaServer/ContentDirectory/Control",
	ServiceZoneGroupTopology: "/ZoneGroupTopology/Control",
	ServiceDeviceProperties:  "/DeviceProperties/Control",
}

var eventPaths = map[Service]string{
	ServiceAVTransport:       "/MediaRenderer/AVTransport/Event",
	ServiceRenderingControl:  "/MediaRenderer/RenderingControl/Event",
	ServiceZoneGroupTopology: "/ZoneGroupTopology/Event",
}

// ServiceEndpoint addresses one service on one device. It is resolved once
// (discovery is someone else's job, we only need the base URL) and passed by
// value to whichever component issues a request against it.
type ServiceEndpoint struct {
	BaseURL     string // e.g. http://192.168.1.10:1400
	ControlPath string
	EventPath   string
	ServiceType string // URN, e.g. urn:schemas-upnp-org:service:AVTransport:1
}

// ControlURL is the full URL for SOAP action requests.
func (e ServiceEndpoint) ControlURL() string {
	return e.BaseURL + e.ControlPath
}

// EventURL is the full URL for GENA subscription requests.
func (e ServiceEndpoint) EventURL() string {
	return e.BaseURL + e.EventPath
}

// Endpoint builds the ServiceEndpoint for a service on the device at the
// given IP. Sonos devices always expose UPnP on port 1400.
func Endpoint(ip string, service Service) (ServiceEndpoint, error) {
	serviceType := serviceTypes[service]
	controlPath := controlPaths[service]
	if serviceType == "" || controlPath == "" {
		return ServiceEndpoint{}, fmt.Errorf("unknown service: %s", service)
	}
	return ServiceEndpoint{
		BaseURL:     fmt.Sprintf("http://%s:1400", ip),
		ControlPath: controlPath,
		EventPath:   eventPaths[service],
		ServiceType: serviceType,
	}, nil
}
