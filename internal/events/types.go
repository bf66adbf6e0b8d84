package events

import (
	"errors"
	"time"

	"github.com/ramesius/wez-sonos/internal/soap"
)

// ErrSubscriptionGone means the device no longer knows the subscription
// identifier. It is terminal: the entry is removed and the subscriber's
// channel closes after this error is delivered.
var ErrSubscriptionGone = errors.New("subscription gone")

// Event is delivered on a subscription handle's channel for every
// notification that correlates to it. Exactly one of Change and Err is set,
// except for the terminal ErrSubscriptionGone event which carries no Change.
type Event struct {
	SID      string
	Service  soap.Service
	DeviceIP string
	Seq      uint32

	// SeqGap means one or more notifications were missed before this one.
	// OutOfOrder means this notification carries a lower sequence number
	// than one already seen. Both are advisory: the event is delivered
	// either way, in arrival order.
	SeqGap     bool
	OutOfOrder bool

	Change *Change
	Err    error
}

// Change is the typed payload decoded from a notification body.
type Change struct {
	Service    soap.Service
	Properties map[string]string
	Transport  *TransportChange
	Rendering  *RenderingChange
}

// TransportChange carries AVTransport LastChange state.
type TransportChange struct {
	TransportState         string
	TransportStatus        string
	CurrentTrackURI        string
	CurrentTrackMetaData   string
	TrackDuration          string
	RelTime                string
	AVTransportURI         string
	AVTransportURIMetaData string
}

// RenderingChange carries RenderingControl LastChange state. HasVolume and
// HasMute distinguish "not present in this event" from zero values.
type RenderingChange struct {
	Volume    int
	HasVolume bool
	Muted     bool
	HasMute   bool
}

// Handle is what the caller holds for an active subscription. The live
// subscription entry stays inside the Manager; the handle only carries the
// identifier and the receive side of the event channel. The channel closes
// when the subscription ends, by unsubscribe or by the device expiring it.
type Handle struct {
	SID      string
	Service  soap.Service
	DeviceIP string
	Events   <-chan Event
}

// Info is a read-only snapshot of a live subscription for inspection.
type Info struct {
	SID        string       `json:"sid"`
	DeviceIP   string       `json:"device_ip"`
	Service    soap.Service `json:"service"`
	Callback   string       `json:"callback"`
	GrantedSec int          `json:"granted_sec"`
	ExpiresAt  time.Time    `json:"expires_at"`
	RenewAt    time.Time    `json:"renew_at"`
	LastSeq    uint32       `json:"last_seq"`
}

// Stats counts manager activity.
type Stats struct {
	ActiveSubscriptions int       `json:"active_subscriptions"`
	EventsReceived      int64     `json:"events_received"`
	EventsDelivered     int64     `json:"events_delivered"`
	EventsDropped       int64     `json:"events_dropped"`
	UnknownSIDDropped   int64     `json:"unknown_sid_dropped"`
	RenewalFailures     int64     `json:"renewal_failures"`
	LastEventAt         time.Time `json:"last_event_at"`
}

// Config holds tunables for the subscription manager.
type Config struct {
	// CallbackBase is the externally reachable base URL of the embedded
	// listener, e.g. http://192.168.1.5:3400. Subscription callback URLs
	// are built beneath it.
	CallbackBase string

	// RequestedSeconds is the duration asked of the device; the granted
	// value in the response governs expiry, not this one.
	RequestedSeconds int

	// RenewalBufferSec is how long before expiry a renewal is attempted.
	RenewalBufferSec int

	// TickInterval is how often the renewal loop wakes up.
	TickInterval time.Duration

	// ChannelBuffer is the per-subscription event channel capacity.
	ChannelBuffer int
}

// DefaultConfig returns the default manager tunables.
func DefaultConfig() Config {
	return Config{
		RequestedSeconds: 3600,
		RenewalBufferSec: 60,
		TickInterval:     10 * time.Second,
		ChannelBuffer:    16,
	}
}
