package di

import (
	"context"
	"fmt"
	"time"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/domain/repository"
	dsvc "RegimeFlow/internal/domain/service"
	mid "RegimeFlow/internal/middleware"
	internalrepo "RegimeFlow/internal/repository"
	"RegimeFlow/internal/service/alert"
	"RegimeFlow/internal/service/featurefeed"
	"RegimeFlow/internal/services/classifier"
	"RegimeFlow/internal/usecase"
	pkgcache "RegimeFlow/pkg/cache"
	pkgch "RegimeFlow/pkg/clickhouse"
	"RegimeFlow/pkg/config"
	pkgkafka "RegimeFlow/pkg/kafka"
	applogger "RegimeFlow/pkg/logger"
	"RegimeFlow/pkg/metrics"
	pkgqueue "RegimeFlow/pkg/queue"
	"RegimeFlow/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
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

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime,
            regime String,
            probability Float64,
            previous_regime String,
            regime_ts DateTime,
            fallback UInt8,
            fallback_reason String
        ) ENGINE=MergeTree ORDER BY ts`, recordsTable(cfg)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime,
            vix_level Nullable(Float64),
            corr_4w Nullable(Float64),
            rv_4w Nullable(Float64)
        ) ENGINE=MergeTree ORDER BY ts`, featuresTable(cfg)),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func recordsTable(cfg *config.Config) string {
	t := cfg.ClickHouse.RecordsTable
	if t == "" {
		t = "regime_records"
	}
	return cfg.ClickHouse.Database + "." + t
}

func featuresTable(cfg *config.Config) string {
	t := cfg.ClickHouse.FeaturesTable
	if t == "" {
		t = "feature_rows"
	}
	return cfg.ClickHouse.Database + "." + t
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

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates a Redis cache when enabled, nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, port := splitHostPort(cfg.Redis.Addr)
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

func splitHostPort(addr string) (string, int) {
	host := addr
	port := 6379
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host = addr[:i]
			p := 0
			for _, ch := range addr[i+1:] {
				if ch < '0' || ch > '9' {
					return host, port
				}
				p = p*10 + int(ch-'0')
			}
			if p > 0 {
				port = p
			}
			break
		}
	}
	return host, port
}

// ProvideRegimeStore creates the ClickHouse regime store.
func ProvideRegimeStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.RegimeStore {
	store := internalrepo.NewCHRegimeStore(chClient, recordsTable(cfg), featuresTable(cfg))
	store.SetLogger(l)
	return store
}

// ProvideRegimePublisher creates the Kafka regime publisher.
func ProvideRegimePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.RegimePublisher {
	return internalrepo.NewKafkaRegimePublisher(producer, cfg.Kafka.Topic)
}

// ProvideStateStore creates the snapshot store, Redis-backed when available.
func ProvideStateStore(cache *pkgcache.RedisCache, cfg *config.Config) repository.StateStore {
	if cache == nil {
		return internalrepo.NewMemoryStateStore()
	}
	key := cfg.Redis.StateKey
	if key == "" {
		key = "regimeflow:state"
	}
	return internalrepo.NewRedisStateStore(cache, key)
}

// ProvideAlerter creates the stress alert sink. Returns a nil alerter when no
// webhook is configured; the processor treats that as a no-op. When queued
// delivery is enabled the second return value is the Redis queue the app must
// start and stop.
func ProvideAlerter(cfg *config.Config, l *applogger.Logger, cache *pkgcache.RedisCache) (dsvc.Alerter, *pkgqueue.RedisQueue) {
	if cfg.Alerts.WebhookURL == "" {
		return nil, nil
	}
	webhook := alert.NewWebhookAlerter(
		cfg.Alerts.WebhookURL,
		cfg.Alerts.Timeout,
		cfg.Alerts.Retries,
		cfg.Alerts.Backoff,
		l,
	)
	if !cfg.Alerts.UseQueue || cache == nil {
		return webhook, nil
	}
	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    1,
		QueueSize:  256,
		RetryLimit: cfg.Alerts.Retries,
		RetryDelay: cfg.Alerts.Backoff,
	}, cache.Client(), pkgqueue.ModeProducerConsumer)
	q.RegisterJob(alert.NewDeliverJob(webhook))
	return alert.NewQueueAlerter(q), q
}

// ProvideClassifierParams maps config onto engine parameters, filling in
// defaults for anything left unset.
func ProvideClassifierParams(cfg *config.Config) classifier.Params {
	p := classifier.DefaultParams()
	c := cfg.Classifier
	if c.WindowSize > 0 {
		p.WindowSize = c.WindowSize
	}
	if c.MinHistory > 0 {
		p.MinHistory = c.MinHistory
	}
	if c.Epsilon > 0 {
		p.Epsilon = c.Epsilon
	}
	if c.SigmoidA != 0 {
		p.SigmoidA = c.SigmoidA
	}
	p.SigmoidB = c.SigmoidB
	if c.ClampMin > 0 {
		p.ClampMin = c.ClampMin
	}
	if c.ClampMax > 0 {
		p.ClampMax = c.ClampMax
	}
	if c.ProbEnter > 0 {
		p.ProbEnter = c.ProbEnter
	}
	if c.ProbExit > 0 {
		p.ProbExit = c.ProbExit
	}
	if c.ConfirmTicks > 0 {
		p.ConfirmTicks = c.ConfirmTicks
	}
	if len(c.Critical) > 0 {
		p.Critical = c.Critical
	}
	p.EnableRV = c.EnableRV
	p.StaleZ = c.StaleZ
	if c.FallbackRegime != "" {
		p.FallbackRegime = models.Regime(c.FallbackRegime)
	}
	if c.FallbackProbability > 0 {
		p.FallbackProbability = c.FallbackProbability
	}
	return p
}

// ProvideClassifier builds the live engine. Invalid parameters fail startup.
func ProvideClassifier(params classifier.Params) (*classifier.Classifier, error) {
	return classifier.New(params)
}

// ProvideStreamProcessor creates the stream processor use case.
func ProvideStreamProcessor(
	engine *classifier.Classifier,
	pub repository.RegimePublisher,
	store repository.RegimeStore,
	state repository.StateStore,
	alerter dsvc.Alerter,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.StreamProcessor {
	snapshotEvery := cfg.Classifier.SnapshotEvery
	if snapshotEvery <= 0 {
		snapshotEvery = 1
	}
	return usecase.NewStreamProcessor(engine, pub, store, state, alerter, m, cfg.Backend.Type, snapshotEvery)
}

// ProvideFeatureStream creates the feature feed WebSocket stream.
func ProvideFeatureStream(cfg *config.Config) repository.FeatureStream {
	return featurefeed.New(
		cfg.FeatureFeed.APIKey,
		cfg.FeatureFeed.WebSocketURL,
		cfg.FeatureFeed.Channels,
		cfg.FeatureFeed.ReconnectDelay,
		cfg.FeatureFeed.PingInterval,
	)
}

// ProvideFeatureCollector creates the feature collector use case.
func ProvideFeatureCollector(
	stream repository.FeatureStream,
	processor *usecase.StreamProcessor,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.FeatureCollector {
	maxRPS := cfg.Ingest.MaxRPS
	if maxRPS <= 0 {
		maxRPS = 50
	}
	bufSize := cfg.Ingest.BufferSize
	if bufSize <= 0 {
		bufSize = 2000
	}
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(maxRPS),
		mid.WithBufferSize(bufSize),
	)
	return usecase.NewFeatureCollector(stream, processor, m, pipe)
}

// ProvideKafkaFeaturesHandler registers the handler for the features topic.
func ProvideKafkaFeaturesHandler(proc *usecase.StreamProcessor, m repository.Metrics, cfg *config.Config) *usecase.KafkaFeaturesHandler {
	topic := cfg.Kafka.FeaturesTopic
	if topic == "" {
		topic = "regime_features"
	}
	return usecase.NewKafkaFeaturesHandler(topic, proc, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.FeatureCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaFeaturesHandler,
	chClient *pkgch.Client,
	cache *pkgcache.RedisCache,
	producer *pkgkafka.Producer,
	store repository.RegimeStore,
	params classifier.Params,
	alertQueue *pkgqueue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if topic := cfg.Logging.AggregateTopic; topic != "" && producer != nil {
		interval := cfg.Logging.FlushInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		threshold := cfg.Logging.CountThreshold
		if threshold <= 0 {
			threshold = 100
		}
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   interval,
			CountThreshold: threshold,
			Topic:          topic,
			Publisher:      kafkaLogPublisher{producer: producer},
		})
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient)
	if collector != nil {
		app.Proc = collector.Processor()
	}
	app.Store = store
	app.Params = params
	app.Cache = cache
	app.AlertQueue = alertQueue
	return app
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher contract. Aggregated entries are keyed by topic only.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.producer.Publish(ctx, topic, nil, payload)
}
