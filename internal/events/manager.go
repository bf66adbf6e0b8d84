package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ramesius/wez-sonos/internal/events/listener"
	"github.com/ramesius/wez-sonos/internal/soap"
)

// genaClient is the outbound subscription protocol the manager drives.
type genaClient interface {
	Subscribe(ctx context.Context, endpoint soap.ServiceEndpoint, callbackURL string, requestedSeconds int) (string, int, error)
	Renew(ctx context.Context, endpoint soap.ServiceEndpoint, sid string, requestedSeconds int) (int, error)
	Unsubscribe(ctx context.Context, endpoint soap.ServiceEndpoint, sid string) error
}

// subscription is the live table entry. It is owned by the Manager; callers
// only ever hold a Handle. Lifecycle operations and notification delivery
// for the same SID serialize on mu so a renew can never race an unsubscribe
// or interleave with a half-updated entry.
type subscription struct {
	mu sync.Mutex

	sid         string
	deviceIP    string
	service     soap.Service
	endpoint    soap.ServiceEndpoint
	callbackURL string

	grantedSec int
	expiresAt  time.Time
	renewAt    time.Time

	seq     uint32
	seqSeen bool

	events chan Event
	ended  bool // terminal signal delivered and channel closed
}

// Manager owns the subscription table: it issues SUBSCRIBE/RENEW/UNSUBSCRIBE
// requests, schedules renewals ahead of expiry, and correlates inbound
// notifications back to live subscriptions.
type Manager struct {
	config Config
	client genaClient
	cache  *StateCache

	mu      sync.Mutex
	subs    map[string]*subscription
	stopCh  chan struct{}
	stopped bool
	stats   Stats

	// Time function for testing
	now func() time.Time
}

// NewManager creates a subscription manager. cache may be nil when no state
// snapshot is wanted.
func NewManager(config Config, cache *StateCache) *Manager {
	if config.RequestedSeconds <= 0 {
		config.RequestedSeconds = DefaultConfig().RequestedSeconds
	}
	if config.RenewalBufferSec <= 0 {
		config.RenewalBufferSec = DefaultConfig().RenewalBufferSec
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	if config.ChannelBuffer <= 0 {
		config.ChannelBuffer = DefaultConfig().ChannelBuffer
	}
	return &Manager{
		config: config,
		client: NewSubscriptionClient(10 * time.Second),
		cache:  cache,
		subs:   make(map[string]*subscription),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Start launches the renewal loop.
func (m *Manager) Start() {
	go m.renewalLoop()
}

// Stop unsubscribes everything and stops the renewal loop.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stopCh)
	sids := make([]string, 0, len(m.subs))
	for sid := range m.subs {
		sids = append(sids, sid)
	}
	m.mu.Unlock()

	for _, sid := range sids {
		if err := m.Unsubscribe(ctx, sid); err != nil {
			log.Printf("UPNP: Unsubscribe %s on shutdown: %v", sid, err)
		}
	}
}

// Subscribe resolves the service endpoint for a device IP and subscribes.
func (m *Manager) Subscribe(ctx context.Context, deviceIP string, service soap.Service) (*Handle, error) {
	endpoint, err := soap.Endpoint(deviceIP, service)
	if err != nil {
		return nil, err
	}
	return m.SubscribeEndpoint(ctx, deviceIP, service, endpoint)
}

// SubscribeEndpoint subscribes against an already-resolved endpoint. On
// success the entry is keyed by the device-returned SID and its expiry is
// governed by the granted duration, which may be shorter than requested.
func (m *Manager) SubscribeEndpoint(ctx context.Context, deviceIP string, service soap.Service, endpoint soap.ServiceEndpoint) (*Handle, error) {
	if m.config.CallbackBase == "" {
		return nil, fmt.Errorf("no callback base configured")
	}
	callbackURL := fmt.Sprintf("%s/notify/%s", m.config.CallbackBase, uuid.NewString())

	sid, granted, err := m.client.Subscribe(ctx, endpoint, callbackURL, m.config.RequestedSeconds)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sub := &subscription{
		sid:         sid,
		deviceIP:    deviceIP,
		service:     service,
		endpoint:    endpoint,
		callbackURL: callbackURL,
		grantedSec:  granted,
		expiresAt:   now.Add(time.Duration(granted) * time.Second),
		renewAt:     now.Add(renewDelay(granted, m.config.RenewalBufferSec)),
		events:      make(chan Event, m.config.ChannelBuffer),
	}

	m.mu.Lock()
	m.subs[sid] = sub
	m.mu.Unlock()

	log.Printf("UPNP: Subscribed to %s on %s (SID: %s, granted: %ds)", service, deviceIP, sid, granted)

	return &Handle{
		SID:      sid,
		Service:  service,
		DeviceIP: deviceIP,
		Events:   sub.events,
	}, nil
}

// renewDelay places the renewal attempt a safety margin before expiry. For
// very short grants the margin is clamped to half the granted duration so
// the renewal still lands before the device drops the subscription.
func renewDelay(grantedSec, bufferSec int) time.Duration {
	renewIn := grantedSec - bufferSec
	if renewIn < grantedSec/2 {
		renewIn = grantedSec / 2
	}
	if renewIn < 1 {
		renewIn = 1
	}
	return time.Duration(renewIn) * time.Second
}

// Renew refreshes a subscription's expiry with the device. When the device
// reports the SID as unknown the entry is removed, the subscriber receives a
// terminal ErrSubscriptionGone, and ErrSubscriptionGone is returned.
func (m *Manager) Renew(ctx context.Context, sid string) error {
	sub := m.lookup(sid)
	if sub == nil {
		return ErrSubscriptionGone
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.ended {
		return ErrSubscriptionGone
	}

	granted, err := m.client.Renew(ctx, sub.endpoint, sid, m.config.RequestedSeconds)
	if errors.Is(err, ErrSubscriptionGone) {
		m.endSubscriptionLocked(sub, ErrSubscriptionGone)
		return err
	}
	if err != nil {
		m.mu.Lock()
		m.stats.RenewalFailures++
		m.mu.Unlock()
		return err
	}

	now := m.now()
	sub.grantedSec = granted
	sub.expiresAt = now.Add(time.Duration(granted) * time.Second)
	sub.renewAt = now.Add(renewDelay(granted, m.config.RenewalBufferSec))
	return nil
}

// Unsubscribe removes the subscription locally regardless of the device's
// answer and cancels its pending renewal. The subscriber's channel closes
// without an error value: ending the stream was the caller's own doing.
func (m *Manager) Unsubscribe(ctx context.Context, sid string) error {
	sub := m.lookup(sid)
	if sub == nil {
		return nil
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.ended {
		return nil
	}

	err := m.client.Unsubscribe(ctx, sub.endpoint, sid)
	m.endSubscriptionLocked(sub, nil)
	return err
}

// endSubscriptionLocked removes the entry and closes the subscriber channel.
// Called with sub.mu held. When terminal is non-nil it is delivered first,
// exactly once; the channel close is the definitive end-of-stream signal
// either way.
func (m *Manager) endSubscriptionLocked(sub *subscription, terminal error) {
	if sub.ended {
		return
	}
	sub.ended = true

	m.mu.Lock()
	delete(m.subs, sub.sid)
	m.mu.Unlock()

	if terminal != nil {
		select {
		case sub.events <- Event{SID: sub.sid, Service: sub.service, DeviceIP: sub.deviceIP, Err: terminal}:
		default:
			log.Printf("UPNP: Subscriber for %s not draining, terminal error conveyed by close", sub.sid)
		}
	}
	close(sub.events)
}

// Dispatch correlates a validated notification to its subscription and
// delivers the decoded event to the subscriber. Unknown or ended SIDs are
// dropped: the acknowledgement already went out and the device cannot act on
// anything we would tell it.
func (m *Manager) Dispatch(n listener.Notification) {
	m.mu.Lock()
	m.stats.EventsReceived++
	m.stats.LastEventAt = m.now()
	sub := m.subs[n.SID]
	m.mu.Unlock()

	if sub == nil {
		m.mu.Lock()
		m.stats.UnknownSIDDropped++
		m.mu.Unlock()
		log.Printf("UPNP: Dropping event for unknown SID %s", n.SID)
		return
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.ended {
		return
	}

	ev := Event{
		SID:      sub.sid,
		Service:  sub.service,
		DeviceIP: sub.deviceIP,
		Seq:      n.Seq,
	}

	// Sequence numbers are advisory: flag gaps and reordering but deliver
	// the event that did arrive, in arrival order.
	if sub.seqSeen {
		switch {
		case n.Seq > sub.seq+1:
			ev.SeqGap = true
			log.Printf("UPNP: Sequence gap on %s: expected %d, got %d", sub.sid, sub.seq+1, n.Seq)
		case n.Seq <= sub.seq:
			ev.OutOfOrder = true
			log.Printf("UPNP: Out-of-order event on %s: already saw %d, got %d", sub.sid, sub.seq, n.Seq)
		}
	}
	if !sub.seqSeen || n.Seq > sub.seq {
		sub.seq = n.Seq
	}
	sub.seqSeen = true

	change, err := ParseNotifyBody(n.Body, sub.service)
	if err != nil {
		// A payload we cannot decode is a schema mismatch worth surfacing,
		// not something to swallow.
		ev.Err = fmt.Errorf("malformed event payload: %w", err)
	} else {
		ev.Change = change
		if m.cache != nil {
			m.cache.Apply(sub.deviceIP, change)
		}
	}

	select {
	case sub.events <- ev:
		m.mu.Lock()
		m.stats.EventsDelivered++
		m.mu.Unlock()
	default:
		m.mu.Lock()
		m.stats.EventsDropped++
		m.mu.Unlock()
		log.Printf("UPNP: Subscriber for %s not draining, event %d dropped", sub.sid, n.Seq)
	}
}

// renewalLoop wakes on the tick interval and renews every subscription whose
// renewal time has passed. Missed renewals silently end event delivery on
// the device side, so this runs ahead of expiry rather than on demand.
func (m *Manager) renewalLoop() {
	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.renewExpiring()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) renewExpiring() {
	now := m.now()

	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	// Scheduling fields belong to each entry's own mutex; the scan locks
	// entries one at a time instead of reading them under the table lock,
	// where a concurrent Renew could be rewriting them.
	var due []string
	for _, sub := range subs {
		sub.mu.Lock()
		if !sub.ended && now.After(sub.renewAt) {
			due = append(due, sub.sid)
		}
		sub.mu.Unlock()
	}

	for _, sid := range due {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := m.Renew(ctx, sid)
		cancel()

		switch {
		case err == nil:
			log.Printf("UPNP: Renewed subscription %s", sid)
		case errors.Is(err, ErrSubscriptionGone):
			log.Printf("UPNP: Subscription %s gone, subscriber signalled", sid)
		default:
			log.Printf("UPNP: Failed to renew %s: %v", sid, err)
		}
	}
}

func (m *Manager) lookup(sid string) *subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[sid]
}

// Subscriptions returns a snapshot of the live table.
func (m *Manager) Subscriptions() []Info {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(subs))
	for _, sub := range subs {
		sub.mu.Lock()
		infos = append(infos, Info{
			SID:        sub.sid,
			DeviceIP:   sub.deviceIP,
			Service:    sub.service,
			Callback:   sub.callbackURL,
			GrantedSec: sub.grantedSec,
			ExpiresAt:  sub.expiresAt,
			RenewAt:    sub.renewAt,
			LastSeq:    sub.seq,
		})
		sub.mu.Unlock()
	}
	return infos
}

// Stats returns manager counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	stats.ActiveSubscriptions = len(m.subs)
	return stats
}
