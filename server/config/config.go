package config

import (
	"fmt"
	"time"

	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	AgentName        string          `env:"AGENT_NAME,default=agentwire" description:"Service identity published in the agent card"`
	AgentDescription string          `env:"AGENT_DESCRIPTION,default=Agent-to-agent protocol server" description:"Human readable service description"`
	AgentVersion     string          `env:"AGENT_VERSION,default=0.1.0" description:"Service version published in the agent card"`
	AgentURL         string          `env:"AGENT_URL" description:"Externally reachable endpoint URL"`
	ProtocolVersion  string          `env:"PROTOCOL_VERSION,default=0.2.2" description:"A2A protocol version advertised in the agent card"`
	Debug            bool            `env:"DEBUG,default=false"`
	DefaultSkill     string          `env:"DEFAULT_SKILL,default=agent-info" description:"Skill id used when a message resolves to no explicit skill"`
	SkillTimeout     time.Duration   `env:"SKILL_TIMEOUT,default=30s" description:"Bound on a single capability execution"`
	ServerConfig     ServerConfig    `env:",prefix=SERVER_"`
	StoreConfig      StoreConfig     `env:",prefix=STORE_"`
	PaymentConfig    PaymentConfig   `env:",prefix=PAYMENT_"`
	TelemetryConfig  TelemetryConfig `env:",prefix=TELEMETRY_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                  string        `env:"PORT,default=8080" description:"HTTP server port"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=120s" description:"HTTP server read timeout"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=120s" description:"HTTP server write timeout"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=120s" description:"HTTP server idle timeout"`
	DisableHealthcheckLog bool          `env:"DISABLE_HEALTHCHECK_LOG,default=true" description:"Disable logging for health check requests"`
	TLSConfig             TLSConfig     `env:",prefix=TLS_"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enable   bool   `env:"ENABLE,default=false"`
	CertPath string `env:"CERT_PATH" description:"TLS certificate path"`
	KeyPath  string `env:"KEY_PATH" description:"TLS key path"`
}

// StoreConfig holds task store configuration
type StoreConfig struct {
	Provider    string            `env:"PROVIDER,default=memory" description:"Task store provider (memory, redis)"`
	URL         string            `env:"URL" description:"Connection URL for the store backend"`
	Capacity    int               `env:"CAPACITY,default=1000" description:"Maximum number of tasks held by the store"`
	Credentials map[string]string `env:"CREDENTIALS" description:"Provider-specific credentials"`
	Options     map[string]string `env:"OPTIONS" description:"Provider-specific configuration options"`
}

// PaymentConfig holds payment gating configuration. When enabled, skills
// flagged as requiring payment are rejected unless the caller supplies a
// payment proof token.
type PaymentConfig struct {
	Enable      bool   `env:"ENABLE,default=false" description:"Enable payment gating for paid skills"`
	Scheme      string `env:"SCHEME,default=exact" description:"Payment scheme identifier"`
	Network     string `env:"NETWORK,default=base-sepolia" description:"Settlement network"`
	Asset       string `env:"ASSET,default=USDC" description:"Asset the payment is denominated in"`
	Amount      string `env:"AMOUNT,default=0.01" description:"Amount required per invocation"`
	PayTo       string `env:"PAY_TO" description:"Recipient address for payments"`
	Description string `env:"DESCRIPTION" description:"Human readable payment description"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Port         string        `env:"PORT,default=9090" description:"Metrics server port"`
	Host         string        `env:"HOST,default=" description:"Metrics server host (empty for all interfaces)"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=30s" description:"Metrics server read timeout"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=30s" description:"Metrics server write timeout"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT,default=60s" description:"Metrics server idle timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enable        bool          `env:"ENABLE,default=false" description:"Enable telemetry collection"`
	MetricsConfig MetricsConfig `env:",prefix=METRICS_"`
}

// Load loads configuration from environment variables, merging with the provided base config.
func Load(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, envconfig.OsLookuper())
}

// LoadWithLookuper creates and loads configuration using a custom lookuper and merges with user config
func LoadWithLookuper(ctx context.Context, baseConfig *Config, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if baseConfig != nil {
		cfg = *baseConfig
	}

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewWithDefaults creates a new config with defaults applied from struct tags.
func NewWithDefaults(ctx context.Context, baseConfig *Config) (*Config, error) {
	return LoadWithLookuper(ctx, baseConfig, &emptyLookuper{})
}

// emptyLookuper ensures that only default values from struct tags are used
type emptyLookuper struct{}

func (e *emptyLookuper) Lookup(key string) (string, bool) {
	return "", false
}

// Validate validates the configuration and applies corrections for invalid values
func (c *Config) Validate() error {
	if c.StoreConfig.Capacity < 1 {
		c.StoreConfig.Capacity = 1
	}

	if c.SkillTimeout <= 0 {
		c.SkillTimeout = 30 * time.Second
	}

	if c.PaymentConfig.Enable && c.PaymentConfig.PayTo == "" {
		return fmt.Errorf("payment gating enabled but PAYMENT_PAY_TO is not set")
	}

	return nil
}
