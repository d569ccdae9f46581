package factory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"confidee-relayer/internal/chain"
	"confidee-relayer/internal/client"
	"confidee-relayer/internal/config"
	"confidee-relayer/internal/encryption"
	"confidee-relayer/internal/events"
	"confidee-relayer/internal/handler"
	"confidee-relayer/internal/hashing"
	"confidee-relayer/internal/ratelimit"
	"confidee-relayer/internal/repository"
	"confidee-relayer/internal/repository/memory"
	rediscache "confidee-relayer/internal/repository/redis"
	"confidee-relayer/internal/service"
	"confidee-relayer/internal/signature"
	"confidee-relayer/internal/tls"
	"confidee-relayer/internal/ttlcache"
	"confidee-relayer/internal/util"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	logger     *zap.Logger
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	chainClient      *chain.Client

	// Managers
	hasher     *hashing.TokenHasher
	keyManager *encryption.KeyManager

	// Stores
	sessionStore   repository.SessionStore
	counterStore   ratelimit.CounterStore
	memorySessions *memory.SessionStore
	memoryCounters *memory.CounterStore
	seen           *ttlcache.Memory[string, struct{}]

	// Services
	limiter        *ratelimit.Limiter
	publisher      *events.MultiPublisher
	sessionService *service.SessionService
	relayService   *service.RelayService
	ipLimiter      *handler.IPRateLimiter

	closeOnce sync.Once
	closed    chan struct{}
	janitor   sync.WaitGroup
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config: cfg,
		logger: logger,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg.Server, cfg.IsProduction())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hasher, err := hashing.NewTokenHasher(cfg.Session.TokenPepper)
	if err != nil {
		return nil, fmt.Errorf("token hasher: %w", err)
	}
	f.hasher = hasher

	if err := f.initializeStores(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := f.initializeRelayer(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize relayer: %w", err)
	}

	f.initializeEventSinks(ctx)
	f.initializeServices()
	f.startJanitor(cfg.Store.SweepInterval)

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("store_backend", cfg.Store.Backend),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("relayer_configured", f.chainClient.Configured()),
		util.Int("event_sinks", f.publisher.Len()),
	)

	return f, nil
}

// initializeStores selects where sessions and quota counters live.
func (f *Factory) initializeStores(ctx context.Context) error {
	switch strings.ToLower(f.config.Store.Backend) {
	case StoreRedis:
		redisClient, err := client.NewRedisClient(f.config.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := redisClient.HealthCheck(ctx); err != nil {
			redisClient.Close()
			return fmt.Errorf("redis health check: %w", err)
		}
		f.redisClient = redisClient
		if f.config.Session.TokenPepper == "" {
			util.Warn("SESSION_TOKEN_PEPPER is empty, Redis sessions will not survive a restart")
		}
		f.sessionStore = rediscache.NewSessionCache(redisClient, f.hasher, time.Now)
		f.counterStore = rediscache.NewRateLimitCache(redisClient)
		util.Info("Redis stores initialized and healthy")

	case StoreMemory, "":
		f.memorySessions = memory.NewSessionStore(time.Now)
		f.memoryCounters = memory.NewCounterStore(0, time.Now)
		f.sessionStore = f.memorySessions
		f.counterStore = f.memoryCounters
		util.Info("In-memory stores initialized")

	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", f.config.Store.Backend)
	}

	f.seen = ttlcache.NewMemory[string, struct{}]()
	return nil
}

// initializeRelayer loads the custodial key and dials the chain. A missing
// key or RPC endpoint leaves the relayer unconfigured; a key that is set
// but unreadable is fatal in production.
func (f *Factory) initializeRelayer(ctx context.Context) error {
	var kmsClient encryption.Decrypter
	if f.config.KMS.Enabled {
		c, err := encryption.NewKMSClient(ctx, f.config.KMS)
		if err != nil {
			return fmt.Errorf("kms: %w", err)
		}
		kmsClient = c
	}
	f.keyManager = encryption.NewKeyManager(f.config.Relayer, f.config.KMS, kmsClient)

	key, err := f.keyManager.LoadRelayerKey(ctx)
	if err != nil {
		if f.config.IsProduction() {
			return err
		}
		util.Warn("Relayer key unavailable, relays will be refused", util.ErrorField(err))
	}

	if f.config.Chain.RPCURL == "" || f.config.Chain.ContractAddress == "" {
		util.Warn("RPC_URL or CONTRACT_ADDRESS not set, relays will be refused")
		return nil
	}

	chainClient, err := chain.Dial(ctx, f.config.Chain, key, f.logger.Named("chain"))
	if err != nil {
		if f.config.IsProduction() {
			return fmt.Errorf("chain: %w", err)
		}
		util.Warn("Chain client initialization failed, relays will be refused", util.ErrorField(err))
		return nil
	}
	f.chainClient = chainClient
	return nil
}

// initializeEventSinks wires every configured audit sink. Sinks are
// optional and a failing one is skipped.
func (f *Factory) initializeEventSinks(ctx context.Context) {
	var sinks []events.Sink

	if len(f.config.Kafka.Brokers) > 0 {
		if producer, err := client.NewKafkaProducer(f.config.Kafka); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			sinks = append(sinks, events.NewKafkaPublisher(producer, f.config.Kafka.RelayTopic))
		}
	}

	if f.config.Clickhouse.URL != "" {
		if chClient, err := client.NewClickHouseClient(ctx, f.config.Clickhouse, f.config.IsProduction()); err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without ClickHouse", util.ErrorField(err))
		} else {
			f.clickhouseClient = chClient
			sink := events.NewClickHouseSink(chClient)
			if err := sink.EnsureSchema(ctx); err != nil {
				util.Warn("ClickHouse schema setup failed", util.ErrorField(err))
			}
			sinks = append(sinks, sink)
		}
	}

	if f.config.Elasticsearch.URL != "" {
		if esClient, err := client.NewElasticsearchClient(ctx, f.config.Elasticsearch, f.config.IsDevelopment()); err != nil {
			util.Warn("Elasticsearch initialization failed - proceeding without Elasticsearch", util.ErrorField(err))
		} else {
			f.esClient = esClient
			sinks = append(sinks, events.NewElasticsearchSink(esClient, f.config.Elasticsearch.Index))
		}
	}

	f.publisher = events.NewMultiPublisher(f.logger.Named("events"), sinks...)
}

func (f *Factory) initializeServices() {
	cfg := f.config

	f.limiter = ratelimit.NewLimiter(f.counterStore, time.Now, f.logger.Named("ratelimit"))
	verifier := signature.NewVerifier(cfg.Session.ChallengeWindow, time.Now)

	f.sessionService = service.NewSessionService(
		verifier,
		f.sessionStore,
		f.hasher,
		cfg.Session.TTL,
		time.Now,
		f.logger.Named("session"),
	)

	// A nil *chain.Client must not become a non-nil interface.
	var signer service.Signer
	if f.chainClient != nil {
		signer = f.chainClient
	}

	f.relayService = service.NewRelayService(
		f.sessionService,
		f.limiter,
		signer,
		f.publisher,
		f.seen,
		service.RelayOptions{
			MaxContentLength: cfg.Chain.MaxContentLength,
			IdempotencyTTL:   cfg.Session.IdempotencyTTL,
		},
		time.Now,
		f.logger.Named("relay"),
	)

	if cfg.Server.IPRateLimitRPS > 0 {
		f.ipLimiter = handler.NewIPRateLimiter(cfg.Server.IPRateLimitRPS, cfg.Server.IPRateBurst)
	}
}

// startJanitor reaps expired in-memory state. Redis expires its own keys.
func (f *Factory) startJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	f.janitor.Add(1)
	go func() {
		defer f.janitor.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.sweep()
			case <-f.closed:
				return
			}
		}
	}()
}

func (f *Factory) sweep() {
	sessions, counters, idle := 0, 0, 0
	if f.memorySessions != nil {
		sessions, _ = f.memorySessions.Sweep(context.Background())
	}
	if f.memoryCounters != nil {
		counters = f.memoryCounters.Reap()
	}
	seen := f.seen.Sweep()
	if f.ipLimiter != nil {
		idle = f.ipLimiter.Cleanup()
	}

	util.Debug("Janitor sweep completed",
		util.Int("sessions", sessions),
		util.Int("counters", counters),
		util.Int("idempotency_keys", seen),
		util.Int("idle_visitors", idle),
	)
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(ctx); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	if !f.chainClient.Configured() {
		healthErrors["relayer"] = fmt.Errorf("relayer not configured")
	}

	return healthErrors
}

// optionalComponents are audit sinks; their failures degrade but do not fail
// the service.
var optionalComponents = []string{"kafka", "clickhouse", "elasticsearch"}

// Health reports whether every required component is up, together with all
// failing components.
func (f *Factory) Health(ctx context.Context) (bool, map[string]error) {
	failures := f.HealthCheck(ctx)
	return requiredHealthy(failures), failures
}

func requiredHealthy(failures map[string]error) bool {
	for name := range failures {
		if !slices.Contains(optionalComponents, name) {
			return false
		}
	}
	return true
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		f.janitor.Wait()
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.chainClient != nil {
			f.chainClient.Close()
			util.Info("Chain client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Logger() *zap.Logger {
	return f.logger
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Limiter() *ratelimit.Limiter {
	return f.limiter
}

func (f *Factory) SessionService() *service.SessionService {
	return f.sessionService
}

func (f *Factory) RelayService() *service.RelayService {
	return f.relayService
}

func (f *Factory) IPLimiter() *handler.IPRateLimiter {
	return f.ipLimiter
}
