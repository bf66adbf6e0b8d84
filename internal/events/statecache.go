package events

import (
	"sync"
	"time"
)

// DeviceState is the last-known playback state of a device, accumulated from
// dispatched events.
type DeviceState struct {
	DeviceIP string `json:"device_ip"`

	TransportState       string `json:"transport_state,omitempty"`
	TransportStatus      string `json:"transport_status,omitempty"`
	CurrentTrackURI      string `json:"current_track_uri,omitempty"`
	CurrentTrackMetaData string `json:"current_track_metadata,omitempty"`
	TrackDuration        string `json:"track_duration,omitempty"`
	RelativeTime         string `json:"relative_time,omitempty"`

	Volume int  `json:"volume"`
	Muted  bool `json:"muted"`

	UpdatedAt time.Time `json:"updated_at"`
}

// IsFresh returns true if the state was updated within the TTL.
func (s *DeviceState) IsFresh(ttl time.Duration) bool {
	return time.Since(s.UpdatedAt) <= ttl
}

// StateCache holds per-device state fed by the dispatcher and read by API
// handlers. Reads past the TTL come back empty.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*DeviceState // keyed by device IP
	ttl    time.Duration
}

// NewStateCache creates a state cache with the given freshness TTL.
func NewStateCache(ttl time.Duration) *StateCache {
	return &StateCache{
		states: make(map[string]*DeviceState),
		ttl:    ttl,
	}
}

// Get returns a copy of the device state if present and fresh, else nil.
func (c *StateCache) Get(deviceIP string) *DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[deviceIP]
	if !ok || !state.IsFresh(c.ttl) {
		return nil
	}
	stateCopy := *state
	return &stateCopy
}

// States returns copies of all fresh device states.
func (c *StateCache) States() []DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make([]DeviceState, 0, len(c.states))
	for _, state := range c.states {
		if state.IsFresh(c.ttl) {
			states = append(states, *state)
		}
	}
	return states
}

// Apply folds a decoded change into the device's state.
func (c *StateCache) Apply(deviceIP string, change *Change) {
	if change == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[deviceIP]
	if !ok {
		state = &DeviceState{DeviceIP: deviceIP}
		c.states[deviceIP] = state
	}

	if t := change.Transport; t != nil {
		if t.TransportState != "" {
			state.TransportState = t.TransportState
		}
		if t.TransportStatus != "" {
			state.TransportStatus = t.TransportStatus
		}
		if t.CurrentTrackURI != "" {
			state.CurrentTrackURI = t.CurrentTrackURI
		}
		if t.CurrentTrackMetaData != "" {
			state.CurrentTrackMetaData = t.CurrentTrackMetaData
		}
		if t.TrackDuration != "" {
			state.TrackDuration = t.TrackDuration
		}
		if t.RelTime != "" {
			state.RelativeTime = t.RelTime
		}
	}

	if r := change.Rendering; r != nil {
		if r.HasVolume {
			state.Volume = r.Volume
		}
		if r.HasMute {
			state.Muted = r.Muted
		}
	}

	state.UpdatedAt = time.Now()
}
