package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	HealthAddr  string `default:"0.0.0.0:8081" usage:"health endpoints listen address" flag:"health-addr"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Nats        NatsConfig
	Graceful    GracefulConfig
}

// NatsConfig controls the message bus connection and RPC behavior.
type NatsConfig struct {
	Servers         []string      `default:"nats://127.0.0.1:4222" usage:"NATS server URLs (ORDERS_NATS_SERVERS or NATS_SERVERS)"`
	Queue           string        `default:"orders" usage:"Queue group for command subscriptions"`
	ValidateSubject string        `default:"validate_products" usage:"Product validation request subject" flag:"validate-subject"`
	RequestTimeout  time.Duration `default:"5s" usage:"Timeout for command handling and upstream requests" flag:"request-timeout"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults. Missing required values
// fail the process at startup.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/orders/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}
	if len(cfg.Nats.Servers) == 0 {
		return nil, errors.New("NATS servers are required: set ORDERS_NATS_SERVERS or NATS_SERVERS")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps the environment variables used by the wider
// deployment (DATABASE_URL, NATS_SERVERS, PORT) to the ORDERS_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("NATS_SERVERS"); v != "" && isDefaultServers(c.Nats.Servers) {
		c.Nats.Servers = splitServers(v)
	}
	if port := os.Getenv("PORT"); port != "" && c.HealthAddr == "0.0.0.0:8081" {
		c.HealthAddr = "0.0.0.0:" + port
	}
}

func isDefaultServers(servers []string) bool {
	return len(servers) == 1 && servers[0] == "nats://127.0.0.1:4222"
}

func splitServers(v string) []string {
	parts := strings.Split(v, ",")
	servers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			servers = append(servers, p)
		}
	}
	return servers
}
