package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
)

// Store backends for router snapshots.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
)

// Transport backends for governance envelopes.
const (
	TransportMemory = "memory"
	TransportKafka  = "kafka"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string `env:"GOVNET_ADDR" envDefault:":8080"`
	JWTSigningKey string `env:"GOVNET_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"GOVNET_JWT_ISSUER" envDefault:"govnet"`
	JWTAudience   string `env:"GOVNET_JWT_AUDIENCE" envDefault:"govnet-router"`
	// AdminToken guards the audit listing. Empty disables the endpoint.
	AdminToken string `env:"GOVNET_ADMIN_TOKEN"`
	LogFormat     string `env:"GOVNET_LOG_FORMAT" envDefault:"json"`
	LogLevel      string `env:"GOVNET_LOG_LEVEL" envDefault:"info"`
}

// Router holds the deployment parameters of a single governance router.
type Router struct {
	Domain          uint32        `env:"GOVNET_DOMAIN,required"`
	Address         string        `env:"GOVNET_ROUTER_ADDRESS,required"`
	Governor        string        `env:"GOVNET_GOVERNOR_ADDRESS,required"`
	RecoveryManager string        `env:"GOVNET_RECOVERY_MANAGER,required"`
	RecoveryDelay   time.Duration `env:"GOVNET_RECOVERY_DELAY" envDefault:"168h"`
	RecoveryPolicy  string        `env:"GOVNET_RECOVERY_POLICY" envDefault:"rearm"`
	// Peers is a comma separated list of domain=address pairs applied at boot
	// by the governor proxy.
	Peers []string `env:"GOVNET_PEERS" envSeparator:","`
}

// StoreConfig selects and configures snapshot persistence.
type StoreConfig struct {
	Backend     string `env:"GOVNET_STORE" envDefault:"memory"`
	DatabaseURL string `env:"GOVNET_DATABASE_URL"`
	SQLitePath  string `env:"GOVNET_SQLITE_PATH" envDefault:"govnet.db"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	URL          string        `env:"GOVNET_REDIS_URL"`
	PoolSize     int           `env:"GOVNET_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"GOVNET_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"GOVNET_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"GOVNET_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"GOVNET_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// TransportConfig selects and configures the envelope transport.
type TransportConfig struct {
	Backend     string   `env:"GOVNET_TRANSPORT" envDefault:"memory"`
	Brokers     []string `env:"GOVNET_KAFKA_BROKERS" envSeparator:","`
	TopicPrefix string   `env:"GOVNET_KAFKA_TOPIC_PREFIX" envDefault:"govnet.router"`
	GroupPrefix string   `env:"GOVNET_KAFKA_GROUP_PREFIX" envDefault:"govnet"`
	Partitions  int32    `env:"GOVNET_KAFKA_PARTITIONS" envDefault:"3"`
	Replication int16    `env:"GOVNET_KAFKA_REPLICATION" envDefault:"1"`
	// SigningKey authenticates envelopes between routers. Empty disables signing.
	SigningKey string `env:"GOVNET_ENVELOPE_SIGNING_KEY"`
}

// Config is the full process configuration.
type Config struct {
	Server    Server
	Router    Router
	Store     StoreConfig
	Redis     RedisConfig
	Transport TransportConfig
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if _, err := id.ParseAddress(c.Router.Address); err != nil {
		errs = append(errs, fmt.Errorf("GOVNET_ROUTER_ADDRESS: %w", err))
	}
	if _, err := id.ParseAddress(c.Router.Governor); err != nil {
		errs = append(errs, fmt.Errorf("GOVNET_GOVERNOR_ADDRESS: %w", err))
	}
	if _, err := id.ParseAddress(c.Router.RecoveryManager); err != nil {
		errs = append(errs, fmt.Errorf("GOVNET_RECOVERY_MANAGER: %w", err))
	}
	if c.Router.RecoveryDelay < 0 {
		errs = append(errs, errors.New("GOVNET_RECOVERY_DELAY must not be negative"))
	}
	if _, err := models.ParseRecoveryPolicy(c.Router.RecoveryPolicy); err != nil {
		errs = append(errs, fmt.Errorf("GOVNET_RECOVERY_POLICY: %w", err))
	}
	if _, err := c.Router.ParsedPeers(); err != nil {
		errs = append(errs, fmt.Errorf("GOVNET_PEERS: %w", err))
	}

	switch c.Store.Backend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("GOVNET_DATABASE_URL is required for the postgres store"))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("GOVNET_REDIS_URL is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GOVNET_STORE %q", c.Store.Backend))
	}

	switch c.Transport.Backend {
	case TransportMemory:
	case TransportKafka:
		if len(c.Transport.Brokers) == 0 {
			errs = append(errs, errors.New("GOVNET_KAFKA_BROKERS is required for the kafka transport"))
		}
		if c.Transport.Partitions < 1 || c.Transport.Replication < 1 {
			errs = append(errs, errors.New("GOVNET_KAFKA_PARTITIONS and GOVNET_KAFKA_REPLICATION must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GOVNET_TRANSPORT %q", c.Transport.Backend))
	}
	return errors.Join(errs...)
}

// ParsedPeers decodes GOVNET_PEERS entries of the form domain=address.
func (r Router) ParsedPeers() (map[id.Domain]id.Address, error) {
	peers := make(map[id.Domain]id.Address, len(r.Peers))
	for _, raw := range r.Peers {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		domainPart, addrPart, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("peer %q: expected domain=address", raw)
		}
		domain, err := id.ParseDomain(strings.TrimSpace(domainPart))
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", raw, err)
		}
		addr, err := id.ParseAddress(strings.TrimSpace(addrPart))
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", raw, err)
		}
		peers[domain] = addr
	}
	return peers, nil
}
