package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ramesius/wez-sonos/internal/config"
	"github.com/ramesius/wez-sonos/internal/device"
	"github.com/ramesius/wez-sonos/internal/events"
	"github.com/ramesius/wez-sonos/internal/events/listener"
	"github.com/ramesius/wez-sonos/internal/journal"
	"github.com/ramesius/wez-sonos/internal/soap"
)

// Service owns the daemon's moving parts: the SOAP client, the subscription
// manager with its embedded callback listener, the state cache, the journal
// and the websocket fan-out hub.
type Service struct {
	cfg      config.Config
	soap     *soap.Client
	registry *device.Registry
	cache    *events.StateCache
	journal  *journal.Journal
	hub      *StreamHub

	manager  *events.Manager
	listener *listener.Listener

	mu sync.Mutex
	wg sync.WaitGroup
}

// New builds the service from configuration. Start must be called before
// the manager and listener are available.
func New(cfg config.Config) (*Service, error) {
	entries, err := cfg.Devices()
	if err != nil {
		return nil, err
	}

	jnl, err := journal.Open(cfg.JournalDBPath)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		soap:     soap.NewClient(time.Duration(cfg.SonosTimeoutMs) * time.Millisecond),
		registry: device.NewRegistry(entries),
		cache:    events.NewStateCache(time.Duration(cfg.StateCacheTTLSeconds) * time.Second),
		journal:  jnl,
		hub:      NewStreamHub(),
	}, nil
}

// Soap returns the action client.
func (s *Service) Soap() *soap.Client { return s.soap }

// Registry returns the device registry.
func (s *Service) Registry() *device.Registry { return s.registry }

// Cache returns the state cache.
func (s *Service) Cache() *events.StateCache { return s.cache }

// Journal returns the event journal.
func (s *Service) Journal() *journal.Journal { return s.journal }

// Hub returns the websocket fan-out hub.
func (s *Service) Hub() *StreamHub { return s.hub }

// Manager returns the subscription manager, nil before Start.
func (s *Service) Manager() *events.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// dispatchNotification routes validated notifications from the listener to
// the manager. The listener starts before the manager exists, so early
// notifications (none are expected before the first SUBSCRIBE) are dropped.
func (s *Service) dispatchNotification(n listener.Notification) {
	if m := s.Manager(); m != nil {
		m.Dispatch(n)
	}
}

// Start binds the callback listener, starts the subscription manager and
// subscribes to every configured device.
func (s *Service) Start(ctx context.Context) error {
	bindAddr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.CallbackPort))

	l, err := listener.Listen(bindAddr, s.cfg.MaxNotifyBodyBytes, s.dispatchNotification)
	if err != nil {
		return err
	}
	s.listener = l

	callbackHost := s.cfg.CallbackHost
	if callbackHost == "" {
		callbackHost, err = discoverLocalIP()
		if err != nil {
			l.Close()
			return fmt.Errorf("discover local IP: %w", err)
		}
	}
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		l.Close()
		return err
	}
	callbackBase := fmt.Sprintf("http://%s", net.JoinHostPort(callbackHost, port))

	manager := events.NewManager(events.Config{
		CallbackBase:     callbackBase,
		RequestedSeconds: s.cfg.SubscriptionTimeoutSec,
		RenewalBufferSec: s.cfg.RenewalBufferSec,
	}, s.cache)
	s.mu.Lock()
	s.manager = manager
	s.mu.Unlock()
	manager.Start()

	log.Printf("UPNP: Callback base %s", callbackBase)

	for _, dev := range s.registry.List() {
		for _, service := range []soap.Service{soap.ServiceAVTransport, soap.ServiceRenderingControl} {
			s.subscribeAndPump(ctx, dev, service)
		}
	}

	return nil
}

func (s *Service) subscribeAndPump(ctx context.Context, dev device.Device, service soap.Service) {
	endpoint, err := s.registry.Endpoint(dev.ID, service)
	if err != nil {
		log.Printf("UPNP: No %s endpoint for %s: %v", service, dev.IP, err)
		return
	}
	handle, err := s.manager.SubscribeEndpoint(ctx, dev.IP, service, endpoint)
	if err != nil {
		log.Printf("UPNP: Failed to subscribe %s on %s: %v", service, dev.IP, err)
		return
	}

	s.wg.Add(1)
	go s.pump(dev, service, handle)
}

// pump drains a subscription handle, feeding the journal and the websocket
// hub. When the device expires the subscription it resubscribes once; the
// new handle gets its own pump.
func (s *Service) pump(dev device.Device, service soap.Service, handle *events.Handle) {
	defer s.wg.Done()

	gone := false
	for ev := range handle.Events {
		if errors.Is(ev.Err, events.ErrSubscriptionGone) {
			gone = true
		}
		if err := s.journal.Record(ev); err != nil {
			log.Printf("JOURNAL: Record failed: %v", err)
		}
		s.hub.Broadcast(ev)
	}

	if gone {
		log.Printf("UPNP: Subscription for %s on %s expired, resubscribing", service, dev.IP)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.subscribeAndPump(ctx, dev, service)
	}
}

// Shutdown unsubscribes everything, releases the listener's address and
// closes the journal.
func (s *Service) Shutdown(ctx context.Context) error {
	if m := s.Manager(); m != nil {
		m.Stop(ctx)
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			log.Printf("LISTENER: Close: %v", err)
		}
	}
	s.wg.Wait()
	s.hub.CloseAll()
	return s.journal.Close()
}

// discoverLocalIP finds the local address devices can call back on, by
// asking the OS which interface routes to a well-known address. No packet
// is sent.
func discoverLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
