package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway modes select which route groups the HTTP server mounts.
const (
	ModeDefault  = "default"
	ModeFedimint = "fedimint"
	ModeCashu    = "cashu"
	ModeWS       = "ws"
)

// Default client selection policies used by the client registry.
const (
	PolicySole    = "sole"
	PolicyFirst   = "first"
	PolicyPrimary = "primary"
)

// Config is the root configuration structure for fedimint-http.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// GatewayConfig contains federation and routing settings.
type GatewayConfig struct {
	// Mode selects the mounted surfaces: default, fedimint, cashu or ws.
	Mode string `yaml:"mode"`

	// Domain is the public base URL, used in the readme and LNURL comments.
	Domain string `yaml:"domain"`

	// InviteCode is joined as the primary federation on startup when set.
	InviteCode string `yaml:"invite_code"`

	// DefaultPolicy decides which client serves requests without a federation id.
	DefaultPolicy string `yaml:"default_policy"`

	// PrimaryFederation is the federation id used by the primary policy.
	PrimaryFederation string `yaml:"primary_federation"`

	// Backend names the federation client implementation. Only "sim" ships in-tree.
	Backend string `yaml:"backend"`

	Sim SimConfig `yaml:"sim"`
}

// SimConfig tunes the simulated federation backend.
type SimConfig struct {
	StepDelayMS     int    `yaml:"step_delay_ms"`
	InitialBalance  uint64 `yaml:"initial_balance_msat"`
	DepositAmountMS uint64 `yaml:"deposit_amount_msat"`

	// AutoSettle pays created invoices and funds deposit addresses
	// without an external counterparty.
	AutoSettle bool `yaml:"auto_settle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
// Write is zero by default because await endpoints hold the response open
// until the operation settles.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket session settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication and abuse protection settings.
type SecurityConfig struct {
	// Password is the shared bearer credential in plain text.
	Password string `yaml:"password"`

	// PasswordHash is an argon2id PHC string; takes precedence over Password.
	PasswordHash string `yaml:"password_hash"`

	// TicketSecret signs WebSocket tickets. A random secret is generated when empty.
	TicketSecret string `yaml:"ticket_secret"`

	// TicketTTL is the WebSocket ticket lifetime in seconds.
	TicketTTL int `yaml:"ticket_ttl"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is not an error when path is empty or the file does not
// exist, so the gateway can run from environment variables alone.
//
// Environment variables follow the pattern FEDIMINT_HTTP_SECTION_KEY. The
// short names FEDERATION_INVITE_CODE, FM_DB_PATH, PASSWORD, DOMAIN and PORT
// are also honoured.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Mode:          ModeDefault,
			DefaultPolicy: PolicySole,
			Backend:       "sim",
			Sim: SimConfig{
				StepDelayMS:     500,
				InitialBalance:  1_000_000,
				DepositAmountMS: 100_000_000,
				AutoSettle:      true,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/fedimint-http.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fedimint-http",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "fedimint-http",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3001,
			Timeouts: APITimeoutConfig{
				Read: 30,
				Idle: 60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
			SendBuffer:     256,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			TicketTTL: 60,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 600,
				Burst:             50,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Short names first so the prefixed variables win when both are set.
	setString(&cfg.Gateway.InviteCode, "FEDERATION_INVITE_CODE")
	setString(&cfg.Database.Path, "FM_DB_PATH")
	setString(&cfg.Security.Password, "PASSWORD")
	setString(&cfg.Gateway.Domain, "DOMAIN")
	if err := setInt(&cfg.API.Port, "PORT"); err != nil {
		return err
	}

	// Gateway
	setString(&cfg.Gateway.Mode, "FEDIMINT_HTTP_MODE")
	setString(&cfg.Gateway.InviteCode, "FEDIMINT_HTTP_INVITE_CODE")
	setString(&cfg.Gateway.DefaultPolicy, "FEDIMINT_HTTP_DEFAULT_POLICY")
	setString(&cfg.Gateway.PrimaryFederation, "FEDIMINT_HTTP_PRIMARY_FEDERATION")

	// Database
	setString(&cfg.Database.Path, "FEDIMINT_HTTP_DATABASE_PATH")

	// MQTT
	setString(&cfg.MQTT.Broker.Host, "FEDIMINT_HTTP_MQTT_HOST")
	setString(&cfg.MQTT.Auth.Username, "FEDIMINT_HTTP_MQTT_USERNAME")
	setString(&cfg.MQTT.Auth.Password, "FEDIMINT_HTTP_MQTT_PASSWORD")

	// API
	setString(&cfg.API.Host, "FEDIMINT_HTTP_API_HOST")
	if err := setInt(&cfg.API.Port, "FEDIMINT_HTTP_API_PORT"); err != nil {
		return err
	}

	// InfluxDB
	setString(&cfg.InfluxDB.Token, "FEDIMINT_HTTP_INFLUXDB_TOKEN")

	// Security
	setString(&cfg.Security.Password, "FEDIMINT_HTTP_PASSWORD")
	setString(&cfg.Security.PasswordHash, "FEDIMINT_HTTP_PASSWORD_HASH")
	setString(&cfg.Security.TicketSecret, "FEDIMINT_HTTP_TICKET_SECRET")

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Gateway.Mode {
	case ModeDefault, ModeFedimint, ModeCashu, ModeWS:
	default:
		errs = append(errs, "gateway.mode must be one of default, fedimint, cashu, ws")
	}

	switch c.Gateway.DefaultPolicy {
	case PolicySole, PolicyFirst, PolicyPrimary:
	default:
		errs = append(errs, "gateway.default_policy must be one of sole, first, primary")
	}

	if c.Gateway.Backend != "sim" {
		errs = append(errs, fmt.Sprintf("gateway.backend %q is not supported", c.Gateway.Backend))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// Every financial route sits behind this credential.
	if c.Security.Password == "" && c.Security.PasswordHash == "" {
		errs = append(errs, "security.password or security.password_hash is required (set PASSWORD environment variable)")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute < 1 {
		errs = append(errs, "security.rate_limit.requests_per_minute must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTicketTTL returns the WebSocket ticket lifetime.
func (c *Config) GetTicketTTL() time.Duration {
	return time.Duration(c.Security.TicketTTL) * time.Second
}

// GetSimStepDelay returns the delay between simulated lifecycle events.
func (c *Config) GetSimStepDelay() time.Duration {
	return time.Duration(c.Gateway.Sim.StepDelayMS) * time.Millisecond
}
