package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"confidee-relayer/internal/util"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Logging       LoggingConfig
	Store         StoreConfig
	Session       SessionConfig
	Redis         RedisConfig
	Chain         ChainConfig
	Relayer       RelayerConfig
	KMS           KMSConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
}

type ServerConfig struct {
	Port           int
	TLSPort        int
	EnableTLS      bool
	AutoCert       bool
	Domain         string
	CertFile       string
	KeyFile        string
	AutoCertDir    string
	Email          string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
	IPRateLimitRPS float64
	IPRateBurst    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// StoreConfig selects where sessions and quota counters live.
type StoreConfig struct {
	Backend       string // "memory" or "redis"
	SweepInterval time.Duration
}

type SessionConfig struct {
	TTL             time.Duration
	ChallengeWindow time.Duration
	TokenPepper     string
	IdempotencyTTL  time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ChainConfig struct {
	RPCURL           string
	ChainID          int64
	ContractAddress  string
	ReceiptTimeout   time.Duration
	MaxContentLength int
}

type RelayerConfig struct {
	PrivateKey           string
	PrivateKeyCiphertext string
}

type KMSConfig struct {
	Enabled bool
	Region  string
}

type KafkaConfig struct {
	Brokers    []string
	RelayTopic string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

// LoadConfig reads .env (when present) and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: util.GetEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           util.GetEnvInt("PORT", 8080),
			TLSPort:        util.GetEnvInt("TLS_PORT", 8443),
			EnableTLS:      util.GetEnvBool("ENABLE_TLS", false),
			AutoCert:       util.GetEnvBool("AUTO_CERT", false),
			Domain:         util.GetEnv("DOMAIN", "localhost"),
			CertFile:       util.GetEnv("TLS_CERT_FILE", ""),
			KeyFile:        util.GetEnv("TLS_KEY_FILE", ""),
			AutoCertDir:    util.GetEnv("AUTOCERT_DIR", "./certs"),
			Email:          util.GetEnv("ACME_EMAIL", ""),
			ReadTimeout:    util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 3*time.Minute),
			IdleTimeout:    util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: splitList(util.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
			IPRateLimitRPS: util.GetEnvFloat("IP_RATE_LIMIT_RPS", 5),
			IPRateBurst:    util.GetEnvInt("IP_RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", "console"),
		},
		Store: StoreConfig{
			Backend:       util.GetEnv("STORE_BACKEND", "memory"),
			SweepInterval: util.GetEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		},
		Session: SessionConfig{
			TTL:             util.GetEnvDuration("SESSION_TTL", 24*time.Hour),
			ChallengeWindow: util.GetEnvDuration("CHALLENGE_WINDOW", 5*time.Minute),
			TokenPepper:     util.GetEnv("SESSION_TOKEN_PEPPER", ""),
			IdempotencyTTL:  util.GetEnvDuration("IDEMPOTENCY_TTL", 60*time.Second),
		},
		Redis: RedisConfig{
			URL:      util.GetEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password: util.GetEnv("REDIS_PASSWORD", ""),
			DB:       util.GetEnvInt("REDIS_DB", 0),
			PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 20),
		},
		Chain: ChainConfig{
			RPCURL:           util.GetEnv("RPC_URL", ""),
			ChainID:          int64(util.GetEnvInt("CHAIN_ID", 0)),
			ContractAddress:  util.GetEnv("CONTRACT_ADDRESS", ""),
			ReceiptTimeout:   util.GetEnvDuration("RECEIPT_TIMEOUT", 2*time.Minute),
			MaxContentLength: util.GetEnvInt("MAX_CONTENT_LENGTH", 5000),
		},
		Relayer: RelayerConfig{
			PrivateKey:           util.GetEnv("RELAYER_PRIVATE_KEY", ""),
			PrivateKeyCiphertext: util.GetEnv("RELAYER_PRIVATE_KEY_CIPHERTEXT", ""),
		},
		KMS: KMSConfig{
			Enabled: util.GetEnvBool("KMS_ENABLED", false),
			Region:  util.GetEnv("AWS_REGION", "us-east-1"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(util.GetEnv("KAFKA_BROKERS", "")),
			RelayTopic: util.GetEnv("KAFKA_RELAY_TOPIC", "relay-events"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      util.GetEnv("CLICKHOUSE_URL", ""),
			Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database: util.GetEnv("CLICKHOUSE_DATABASE", "default"),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:      util.GetEnv("ELASTICSEARCH_URL", ""),
			Username: util.GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password: util.GetEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:    util.GetEnv("ELASTICSEARCH_INDEX", "relay-events"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GetServerAddress returns the plain HTTP listen address.
func (c *Config) GetServerAddress() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
