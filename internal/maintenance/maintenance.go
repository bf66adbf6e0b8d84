package maintenance

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ramesius/wez-sonos/internal/events"
	"github.com/ramesius/wez-sonos/internal/journal"
)

// Start schedules the housekeeping jobs: hourly journal pruning against the
// retention window and a periodic subscription health log. The returned cron
// should be stopped on shutdown.
func Start(jnl *journal.Journal, manager func() *events.Manager, retention time.Duration) *cron.Cron {
	c := cron.New()

	c.AddFunc("@hourly", func() {
		pruned, err := jnl.Prune(retention)
		if err != nil {
			log.Printf("JOURNAL: Prune failed: %v", err)
			return
		}
		if pruned > 0 {
			log.Printf("JOURNAL: Pruned %d entries older than %s", pruned, retention)
		}
	})

	c.AddFunc("@every 5m", func() {
		m := manager()
		if m == nil {
			return
		}
		stats := m.Stats()
		log.Printf("UPNP: %d active subscriptions, %d events received, %d delivered, %d dropped",
			stats.ActiveSubscriptions, stats.EventsReceived, stats.EventsDelivered, stats.EventsDropped)
	})

	c.Start()
	return c
}
