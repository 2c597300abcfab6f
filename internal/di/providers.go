package di

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	"github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/handler/api"
	mid "github.com/wekabeka1996/aurora/internal/middleware"
	internalrepo "github.com/wekabeka1996/aurora/internal/repository"
	"github.com/wekabeka1996/aurora/internal/service/calibration"
	"github.com/wekabeka1996/aurora/internal/service/feed"
	"github.com/wekabeka1996/aurora/internal/service/ratelimit"
	"github.com/wekabeka1996/aurora/internal/service/riskstore"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/internal/usecase"
	"github.com/wekabeka1996/aurora/pkg/cache"
	pkgch "github.com/wekabeka1996/aurora/pkg/clickhouse"
	"github.com/wekabeka1996/aurora/pkg/config"
	pkgkafka "github.com/wekabeka1996/aurora/pkg/kafka"
	"github.com/wekabeka1996/aurora/pkg/logger"
	"github.com/wekabeka1996/aurora/pkg/metrics"
	"github.com/wekabeka1996/aurora/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return logger.New(&logger.Config{Level: level, Format: "json", Output: "stdout"})
}

// ProvideClock provides the wall clock used across gates and stores.
func ProvideClock() repository.Clock {
	return repository.SystemClock{}
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and applies the
// decision journal schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append(
		[]string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database)},
		internalrepo.JournalSchema(cfg.ClickHouse.Table)...,
	)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideJournal creates the ClickHouse decision journal.
func ProvideJournal(chClient *pkgch.Client, cfg *config.Config) repository.Journal {
	return internalrepo.NewClickHouseJournal(chClient.DB(), cfg.ClickHouse.Table)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventSink creates the Kafka-backed decision event sink.
func ProvideEventSink(producer *pkgkafka.Producer, cfg *config.Config) repository.EventSink {
	return internalrepo.NewKafkaEventSink(producer, cfg.Kafka.EventTopic)
}

// ProvideEventBuffer creates the async buffer between pipeline and sink.
func ProvideEventBuffer(sink repository.EventSink, m repository.Metrics) *mid.EventBuffer {
	return mid.NewEventBuffer(sink, m,
		mid.WithEventBufferSize(8192),
		mid.WithBatchSize(128),
	)
}

// ProvideCache selects Redis when enabled, in-process memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("aurora"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideModelStore creates the cache-backed calibration model store.
func ProvideModelStore(c cache.Service) repository.ModelStore {
	return calibration.NewCacheModelStore(c)
}

// ProvideCalibrator builds the expected-return gate, loading a stored model
// if one exists.
func ProvideCalibrator(cfg *config.Config, store repository.ModelStore, l *logger.Logger) *gates.Calibrator {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var params *models.CalibrationParams
	if p, err := store.Load(ctx); err == nil {
		params = p
	} else {
		l.Warn("no calibration model loaded, using logistic default", logger.Error(err))
	}
	return gates.NewCalibrator(gates.CalibratorConfig{
		PiMinBps: cfg.Calibrator.PiMinBps,
		Epsilon:  cfg.Calibrator.Epsilon,
	}, params)
}

// ProvideRefresher polls for hot-swapped calibration models.
func ProvideRefresher(store repository.ModelStore, cal *gates.Calibrator, cfg *config.Config, l *logger.Logger) *calibration.Refresher {
	return calibration.NewRefresher(store, cal, cfg.Calibrator.RefreshInterval, l)
}

// ProvideCatalog loads instrument precision rules from config.
func ProvideCatalog(cfg *config.Config) repository.InstrumentCatalog {
	instruments := make([]models.Instrument, 0, len(cfg.Instruments))
	for _, i := range cfg.Instruments {
		instruments = append(instruments, models.Instrument{
			Symbol:   i.Symbol,
			QtyStep:  i.QtyStep,
			MinQty:   i.MinQty,
			MinNotal: i.MinNotal,
		})
	}
	return internalrepo.NewStaticCatalog(instruments)
}

// ProvideRiskStore persists operator limit updates.
func ProvideRiskStore(c cache.Service) *riskstore.Store {
	return riskstore.New(c)
}

// ProvideRiskManager builds the sizing gate, preferring persisted limits
// over the config defaults.
func ProvideRiskManager(cfg *config.Config, catalog repository.InstrumentCatalog, store *riskstore.Store, l *logger.Logger) *gates.RiskManager {
	limits := gates.RiskLimits{
		KellyScaler:   cfg.Risk.KellyScaler,
		ClipMin:       cfg.Risk.ClipMin,
		ClipMax:       cfg.Risk.ClipMax,
		MinNotional:   cfg.Risk.MinNotional,
		MaxNotional:   cfg.Risk.MaxNotional,
		LeverageMax:   cfg.Risk.LeverageMax,
		DDDayPct:      cfg.Risk.DDDayPct,
		CVaRCap:       cfg.Risk.CVaRCap,
		MaxConcurrent: cfg.Risk.MaxConcurrent,
		SizeScale:     cfg.Risk.SizeScale,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if persisted, err := store.Load(ctx); err == nil {
		limits = persisted
		l.Info("risk limits restored from store")
	}

	return gates.NewRiskManager(limits, catalog, cfg.Risk.BaseEquity)
}

// ProvideTrapDetector builds the microstructure toxicity gate.
func ProvideTrapDetector(cfg *config.Config, clock repository.Clock) *gates.TrapDetector {
	return gates.NewTrapDetector(gates.TrapConfig{
		ZThreshold: cfg.Trap.ZThreshold,
		WindowSize: cfg.Trap.WindowSize,
		MinSamples: cfg.Trap.MinSamples,
		CoolOff:    cfg.Trap.CoolOff,
	}, clock)
}

// ProvideHealthGuard builds the latency escalation guard.
func ProvideHealthGuard(cfg *config.Config, clock repository.Clock, m repository.Metrics, buffer *mid.EventBuffer) *gates.HealthGuard {
	guard := gates.NewHealthGuard(gates.HealthConfig{
		WarnP95Ms:      cfg.Health.WarnP95Ms,
		HaltP95Ms:      cfg.Health.HaltP95Ms,
		WarnPersist:    cfg.Health.WarnPersist,
		CoolOffDur:     cfg.Health.CoolOffDur,
		RecoveryWindow: cfg.Health.RecoveryWindow,
		WindowSize:     cfg.Health.WindowSize,
	}, clock)
	guard.OnTransition(func(from, to gates.HealthState) {
		m.RecordHealthState(int(to))
		buffer.Emit(&models.Event{
			Type:   models.EventHealthEscalation,
			Reason: to.String(),
			Detail: fmt.Sprintf("%s -> %s", from, to),
		})
	})
	return guard
}

// ProvideSPRT builds the sequential test gate.
func ProvideSPRT(cfg *config.Config) *gates.SPRT {
	return gates.NewSPRT(gates.SPRTConfig{
		Alpha:    cfg.SPRT.Alpha,
		Beta:     cfg.SPRT.Beta,
		P0:       cfg.SPRT.P0,
		P1:       cfg.SPRT.P1,
		Blocking: cfg.SPRT.Blocking,
	})
}

// ProvideGovernance builds the terminal authority.
func ProvideGovernance(cfg *config.Config, clock repository.Clock, buffer *mid.EventBuffer) *gates.Governance {
	g := gates.NewGovernance(gates.GovernanceConfig{
		SpreadBpsLimit:      cfg.Governance.SpreadBpsLimit,
		LatencyMsLimit:      cfg.Governance.LatencyMsLimit,
		VolatilityLimit:     cfg.Governance.VolatilityLimit,
		MaxOpenPerSymbol:    cfg.Governance.MaxOpenPerSymbol,
		MaxSnapshotAge:      cfg.Governance.MaxSnapshotAge,
		ConsecutiveFailures: cfg.Governance.ConsecutiveFailures,
		FailureRate:         cfg.Governance.FailureRate,
		MinRequests:         cfg.Governance.MinRequests,
		BreakerInterval:     cfg.Governance.BreakerInterval,
		BreakerTimeout:      cfg.Governance.BreakerTimeout,
	}, clock)
	g.OnStateChange(func(from, to gobreaker.State) {
		buffer.Emit(&models.Event{
			Type:   models.EventKillSwitchTrip,
			Reason: to.String(),
			Detail: fmt.Sprintf("%s -> %s", from, to),
		})
	})
	return g
}

// ProvideIdempotencyStore creates the replay cache.
func ProvideIdempotencyStore(cfg *config.Config, clock repository.Clock) *usecase.IdempotencyStore {
	return usecase.NewIdempotencyStore(cfg.Pipeline.IdempotencyTTL, clock)
}

// ProvideLimiter creates the per-account request limiter.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Pipeline.RateRPS, cfg.Pipeline.RateBurst)
}

// ProvidePipeline assembles the ordered gate chain.
func ProvidePipeline(
	cfg *config.Config,
	trap *gates.TrapDetector,
	cal *gates.Calibrator,
	health *gates.HealthGuard,
	sprt *gates.SPRT,
	risk *gates.RiskManager,
	governance *gates.Governance,
	idem *usecase.IdempotencyStore,
	clock repository.Clock,
	journal repository.Journal,
	m repository.Metrics,
	buffer *mid.EventBuffer,
	l *logger.Logger,
) *usecase.Pipeline {
	ordered := []gates.Gate{
		gates.NewLatencyGuard(cfg.Pipeline.SLAMs),
		health,
		trap,
		cal,
		gates.NewSlippageGuard(cfg.Guards.SlippageMaxBps),
		risk,
		sprt,
		gates.NewSpreadGuard(cfg.Guards.SpreadMaxBps),
		gates.NewRouter(gates.RouterConfig{
			MinPFill:        cfg.Router.MinPFill,
			PTakerThreshold: cfg.Router.PTakerThreshold,
		}),
	}
	return usecase.NewPipeline(
		usecase.PipelineConfig{SLAMs: cfg.Pipeline.SLAMs},
		ordered, governance, health, idem, clock, journal, m, buffer, l,
	)
}

// ProvideKafkaConsumer creates the outcome feed consumer; nil when no
// outcome topic is configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.OutcomeTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideOutcomeHandler routes the fills topic into risk/SPRT/governance.
func ProvideOutcomeHandler(cfg *config.Config, risk *gates.RiskManager, sprt *gates.SPRT, governance *gates.Governance, m repository.Metrics, l *logger.Logger) *usecase.OutcomeHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.OutcomeTopic, risk, sprt, governance, m, l)
}

// ProvideFeedRunner builds the snapshot feed pump; nil when disabled.
func ProvideFeedRunner(cfg *config.Config, trap *gates.TrapDetector, l *logger.Logger) *feed.Runner {
	if !cfg.Feed.Enabled {
		return nil
	}
	client := feed.New(
		cfg.Feed.Token,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
	return feed.NewRunner(client, trap, l)
}

// ProvideHTTPHandler combines the decision and operator route groups.
func ProvideHTTPHandler(
	l *logger.Logger,
	pipeline *usecase.Pipeline,
	journal repository.Journal,
	limiter *ratelimit.Limiter,
	clock repository.Clock,
	health *gates.HealthGuard,
	governance *gates.Governance,
	risk *gates.RiskManager,
	sprt *gates.SPRT,
	trap *gates.TrapDetector,
	limits *riskstore.Store,
	buffer *mid.EventBuffer,
) *api.Router {
	decide := api.NewDecideHandler(l, pipeline, journal, limiter, clock)
	ops := api.NewOpsHandler(l, health, governance, risk, sprt, trap, limits, journal, buffer)
	return api.NewRouter(decide, ops)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	handler *api.Router,
	buffer *mid.EventBuffer,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	oh *usecase.OutcomeHandler,
	refresher *calibration.Refresher,
	runner *feed.Runner,
	idem *usecase.IdempotencyStore,
	chClient *pkgch.Client,
	l *logger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if cfg.Kafka.LogTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      internalrepo.NewLogPublisher(producer),
		})
	}
	return server.New(cfg, handler, buffer, consumer, oh, refresher, runner, idem, chClient, l)
}
