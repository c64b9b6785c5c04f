package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DataDir      string

	// Admin access
	AdminPassword        string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	RateLimitPerMinute   int
	// TrustedProxies are CIDRs whose X-Forwarded-For header is believed.
	TrustedProxies       []string

	// LedgerMovePolicy picks who wins when an edit moves a deposit onto an
	// existing (week, member) entry: "destination" or "migrated".
	LedgerMovePolicy string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID   string
	GoogleDepositsSheet   string
	GoogleLedgerSheet     string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Worker
	SyncInterval time.Duration

	LogLevel string
}

var (
	validBackends     = []string{"memory", "sqlite"}
	validMovePolicies = []string{"destination", "migrated"}
)

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "4000"),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/depositos.db"),
		DataDir:      getEnv("DATA_DIR", "data"),

		// Left empty, the auth package seeds its default password.
		AdminPassword:        getEnv("ADMIN_PASSWORD", ""),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:       getEnvList("TRUSTED_PROXIES"),

		LedgerMovePolicy: getEnv("LEDGER_MOVE_POLICY", "destination"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "depositos"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "depositos_mirror"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleDepositsSheet:   getEnv("GOOGLE_DEPOSITS_SHEET", "Deposits"),
		GoogleLedgerSheet:     getEnv("GOOGLE_LEDGER_SHEET", "Ledger"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the server configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := c.validateCommon()

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid session sweep interval %v: must be at least 1 second", c.SessionSweepInterval))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.AdminPassword != "" && strings.TrimSpace(c.AdminPassword) == "" {
		errors = append(errors, "admin password cannot be blank")
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	return combine(errors)
}

// ValidateWorker validates the mirror worker configuration. The worker reads
// SQLite and needs both the broker and the spreadsheet.
func (c *Config) ValidateWorker() error {
	errors := c.validateCommon()

	if c.DataBackend != "sqlite" {
		errors = append(errors, fmt.Sprintf("mirror worker requires the sqlite backend, got '%s'", c.DataBackend))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the mirror worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the mirror worker")
	}
	if c.GoogleDepositsSheet == "" || c.GoogleLedgerSheet == "" {
		errors = append(errors, "Google deposits and ledger sheet names cannot be empty")
	}

	hasFile := c.GoogleCredentialsFile != ""
	hasJSON := c.GoogleCredentialsJSON != ""
	if !hasFile && !hasJSON {
		errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided for the mirror worker")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	return combine(errors)
}

func (c *Config) validateCommon() []string {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if !slices.Contains(validMovePolicies, c.LedgerMovePolicy) {
		errors = append(errors, fmt.Sprintf("invalid ledger move policy '%s': must be one of %v", c.LedgerMovePolicy, validMovePolicies))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	return errors
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
