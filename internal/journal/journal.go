package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ramesius/wez-sonos/internal/events"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notifications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sid TEXT NOT NULL,
  device_ip TEXT NOT NULL,
  service TEXT NOT NULL,
  seq INTEGER NOT NULL,
  seq_gap INTEGER NOT NULL DEFAULT 0,
  out_of_order INTEGER NOT NULL DEFAULT 0,
  properties TEXT NOT NULL DEFAULT '{}',
  error TEXT,
  received_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_device ON notifications(device_ip, received_at);
CREATE INDEX IF NOT EXISTS idx_notifications_received ON notifications(received_at);
`

// Entry is one journalled notification.
type Entry struct {
	ID         int64             `json:"id"`
	SID        string            `json:"sid"`
	DeviceIP   string            `json:"device_ip"`
	Service    string            `json:"service"`
	Seq        uint32            `json:"seq"`
	SeqGap     bool              `json:"seq_gap"`
	OutOfOrder bool              `json:"out_of_order"`
	Properties map[string]string `json:"properties"`
	Error      string            `json:"error,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Journal persists dispatched notifications in SQLite. It keeps separate
// reader and writer pools: with WAL mode readers don't block the single
// writer, which matters when event bursts land while the API is queried.
type Journal struct {
	reader *sql.DB
	writer *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	writer, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000&cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1) // SQLite serializes writes anyway
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(time.Hour)

	if _, err := writer.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		writer.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := writer.Exec(schemaSQL); err != nil {
		writer.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	reader, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000&cache=shared&mode=ro")
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	return &Journal{reader: reader, writer: writer}, nil
}

// Close closes both connection pools.
func (j *Journal) Close() error {
	var errs []error
	if err := j.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := j.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Record journals a dispatched event.
func (j *Journal) Record(ev events.Event) error {
	props := map[string]string{}
	if ev.Change != nil {
		props = ev.Change.Properties
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	errText := ""
	if ev.Err != nil {
		errText = ev.Err.Error()
	}

	_, err = j.writer.Exec(
		`INSERT INTO notifications (sid, device_ip, service, seq, seq_gap, out_of_order, properties, error, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.SID, ev.DeviceIP, string(ev.Service), ev.Seq,
		boolToInt(ev.SeqGap), boolToInt(ev.OutOfOrder),
		string(propsJSON), nullable(errText),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Recent returns the newest entries, optionally filtered by device IP.
func (j *Journal) Recent(deviceIP string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, sid, device_ip, service, seq, seq_gap, out_of_order, properties, error, received_at
	          FROM notifications`
	args := []any{}
	if deviceIP != "" {
		query += ` WHERE device_ip = ?`
		args = append(args, deviceIP)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.reader.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var propsJSON string
		var errText sql.NullString
		var receivedAt string
		if err := rows.Scan(&entry.ID, &entry.SID, &entry.DeviceIP, &entry.Service, &entry.Seq,
			&entry.SeqGap, &entry.OutOfOrder, &propsJSON, &errText, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(propsJSON), &entry.Properties); err != nil {
			entry.Properties = map[string]string{}
		}
		entry.Error = errText.String
		if ts, err := time.Parse(time.RFC3339, receivedAt); err == nil {
			entry.ReceivedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the retention window and returns how many
// were removed.
func (j *Journal) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)
	res, err := j.writer.Exec(`DELETE FROM notifications WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
