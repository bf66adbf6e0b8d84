package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ramesius/wez-sonos/internal/config"
	"github.com/ramesius/wez-sonos/internal/soap"
)

// Device is one configured renderer. ID doubles as the API identifier.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// Registry resolves configured devices to service endpoints. Discovery is
// out of scope here: the device list comes from configuration and stays
// fixed for the process lifetime, so the registry is effectively read-only
// after construction.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device // keyed by ID
}

// NewRegistry builds a registry from the configured device entries.
func NewRegistry(entries []config.DeviceEntry) *Registry {
	devices := make(map[string]Device, len(entries))
	for _, entry := range entries {
		devices[entry.IP] = Device{
			ID:   entry.IP,
			Name: entry.Name,
			IP:   entry.IP,
		}
	}
	return &Registry{devices: devices}
}

// Get returns the device for id.
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	return dev, ok
}

// List returns all devices sorted by name.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices
}

// Endpoint resolves a service endpoint on a registered device.
func (r *Registry) Endpoint(id string, service soap.Service) (soap.ServiceEndpoint, error) {
	dev, ok := r.Get(id)
	if !ok {
		return soap.ServiceEndpoint{}, fmt.Errorf("device not found: %s", id)
	}
	return soap.Endpoint(dev.IP, service)
}
