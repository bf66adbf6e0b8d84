package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration.
type Config struct {
	Host string
	Port string

	// CallbackHost is the address devices reach us on for NOTIFY callbacks.
	// Empty means autodetect from the outbound interface.
	CallbackHost string
	CallbackPort int

	// StaticDeviceIPs lists device addresses; discovery is out of scope so
	// devices come from configuration.
	StaticDeviceIPs []string
	// DevicesFile optionally points at a YAML file with named devices.
	DevicesFile string

	SonosTimeoutMs         int
	SubscriptionTimeoutSec int
	RenewalBufferSec       int
	MaxNotifyBodyBytes     int
	StateCacheTTLSeconds   int

	JournalDBPath         string
	JournalRetentionHours int

	JWTSecret                string
	JWTAccessTokenExpirySec  int
	JWTRefreshTokenExpirySec int
	AllowAnonymous           bool
}

// DeviceEntry is one device from the YAML devices file.
type DeviceEntry struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip"`
}

type devicesFile struct {
	Devices []DeviceEntry `yaml:"devices"`
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	cfg := Config{
		Host:                     envString("HOST", "0.0.0.0"),
		Port:                     envString("PORT", "9000"),
		CallbackHost:             envString("CALLBACK_HOST", ""),
		CallbackPort:             envInt("CALLBACK_PORT", 3400),
		StaticDeviceIPs:          envCSV("STATIC_DEVICE_IPS"),
		DevicesFile:              envString("DEVICES_FILE", ""),
		SonosTimeoutMs:           envInt("SONOS_TIMEOUT_MS", 5000),
		SubscriptionTimeoutSec:   envInt("SUBSCRIPTION_TIMEOUT_SEC", 3600),
		RenewalBufferSec:         envInt("RENEWAL_BUFFER_SEC", 60),
		MaxNotifyBodyBytes:       envInt("MAX_NOTIFY_BODY_BYTES", 262144),
		StateCacheTTLSeconds:     envInt("STATE_CACHE_TTL_SECONDS", 3600),
		JournalDBPath:            envString("JOURNAL_DB_PATH", "./data/wez-sonos.db"),
		JournalRetentionHours:    envInt("JOURNAL_RETENTION_HOURS", 168),
		JWTSecret:                envString("JWT_SECRET", ""),
		JWTAccessTokenExpirySec:  envInt("JWT_ACCESS_TOKEN_EXPIRY", 3600),
		JWTRefreshTokenExpirySec: envInt("JWT_REFRESH_TOKEN_EXPIRY", 2592000),
		AllowAnonymous:           envBool("ALLOW_ANONYMOUS", false),
	}

	if !cfg.AllowAnonymous && len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters (or set ALLOW_ANONYMOUS=true)")
	}

	return cfg, nil
}

// Devices merges the static IP list with the YAML devices file, if any.
func (c Config) Devices() ([]DeviceEntry, error) {
	entries := make([]DeviceEntry, 0, len(c.StaticDeviceIPs))
	for _, ip := range c.StaticDeviceIPs {
		entries = append(entries, DeviceEntry{Name: ip, IP: ip})
	}

	if c.DevicesFile == "" {
		return entries, nil
	}

	raw, err := os.ReadFile(c.DevicesFile)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}
	var file devicesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse devices file: %w", err)
	}
	for _, entry := range file.Devices {
		if entry.IP == "" {
			return nil, fmt.Errorf("devices file: entry %q has no ip", entry.Name)
		}
		if entry.Name == "" {
			entry.Name = entry.IP
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

func envCSV(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return []string{}
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
