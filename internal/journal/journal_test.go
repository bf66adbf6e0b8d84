package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/ramesius/wez-sonos/internal/events"
	"github.com/ramesius/wez-sonos/internal/soap"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record(events.Event{
		SID:      "uuid:RINCON_1",
		Service:  soap.ServiceAVTransport,
		DeviceIP: "192.168.1.50",
		Seq:      1,
		Change: &events.Change{
			Service:    soap.ServiceAVTransport,
			Properties: map[string]string{"TransportState": "PLAYING"},
		},
	}))
	require.NoError(t, j.Record(events.Event{
		SID:      "uuid:RINCON_1",
		Service:  soap.ServiceAVTransport,
		DeviceIP: "192.168.1.50",
		Seq:      3,
		SeqGap:   true,
		Change: &events.Change{
			Service:    soap.ServiceAVTransport,
			Properties: map[string]string{"TransportState": "PAUSED_PLAYBACK"},
		},
	}))

	entries, err := j.Recent("", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	require.Equal(t, uint32(3), entries[0].Seq)
	require.True(t, entries[0].SeqGap)
	require.Equal(t, "PAUSED_PLAYBACK", entries[0].Properties["TransportState"])
	require.Equal(t, uint32(1), entries[1].Seq)
	require.False(t, entries[1].SeqGap)
	require.WithinDuration(t, time.Now(), entries[0].ReceivedAt, 5*time.Second)
}

func TestJournal_RecentFiltersByDevice(t *testing.T) {
	j := openTestJournal(t)

	for _, ip := range []string{"192.168.1.50", "192.168.1.51", "192.168.1.50"} {
		require.NoError(t, j.Record(events.Event{
			SID: "uuid:x", Service: soap.ServiceRenderingControl, DeviceIP: ip,
		}))
	}

	entries, err := j.Recent("192.168.1.50", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.Equal(t, "192.168.1.50", entry.DeviceIP)
	}
}

func TestJournal_RecordMalformedEvent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record(events.Event{
		SID:      "uuid:RINCON_1",
		Service:  soap.ServiceAVTransport,
		DeviceIP: "192.168.1.50",
		Seq:      9,
		Err:      errors.New("malformed event payload: bad xml"),
	}))

	entries, err := j.Recent("", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Error, "malformed event payload")
	require.Empty(t, entries[0].Properties)
}

func TestJournal_Prune(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record(events.Event{SID: "uuid:x", Service: soap.ServiceAVTransport, DeviceIP: "192.168.1.50"}))
	require.NoError(t, j.Record(events.Event{SID: "uuid:y", Service: soap.ServiceAVTransport, DeviceIP: "192.168.1.51"}))

	// Everything is newer than the cutoff.
	removed, err := j.Prune(time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)

	// A zero retention window makes everything stale.
	removed, err = j.Prune(-time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	entries, err := j.Recent("", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}
