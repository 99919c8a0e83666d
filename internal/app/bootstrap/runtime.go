package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/operator-relay/internal/config"
	"github.com/wolfman30/operator-relay/internal/deadletter"
	"github.com/wolfman30/operator-relay/internal/events"
	"github.com/wolfman30/operator-relay/internal/relay/correlation"
	"github.com/wolfman30/operator-relay/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Stores are the backing clients shared by the state stores.
type Stores struct {
	Redis  *redis.Client
	Dynamo *dynamodb.Client
	SQS    *sqs.Client
}

// BuildStores creates the clients the configured backends need. awsCfg may
// be nil when no AWS-backed component is enabled.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, awsCfg *aws.Config) (*Stores, error) {
	stores := &Stores{}
	if cfg.NeedsRedis() {
		stores.Redis = BuildRedisClient(ctx, cfg, logger, true)
		if stores.Redis == nil {
			return nil, fmt.Errorf("bootstrap: redis backend configured but %s is unreachable", cfg.RedisAddr)
		}
	}
	if cfg.NeedsAWS() {
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: aws config is required for the configured backends")
		}
		stores.Dynamo = dynamodb.NewFromConfig(*awsCfg)
		stores.SQS = sqs.NewFromConfig(*awsCfg)
	}
	return stores, nil
}

// Close releases any pooled connections.
func (s *Stores) Close() error {
	if s == nil || s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

// BuildCorrelationStore returns the configured correlation store, or nil
// when correlation is disabled and replies rely on the banner alone.
func BuildCorrelationStore(cfg *appconfig.Config, stores *Stores) (correlation.Store, error) {
	switch cfg.CorrelationBackend {
	case appconfig.BackendNone:
		return nil, nil
	case appconfig.BackendMemory:
		return correlation.NewMemoryStore(cfg.CorrelationTTL), nil
	case appconfig.BackendRedis:
		if stores.Redis == nil {
			return nil, fmt.Errorf("bootstrap: correlation: redis client missing")
		}
		return correlation.NewRedisStore(stores.Redis, cfg.CorrelationTTL), nil
	case appconfig.BackendDynamoDB:
		if stores.Dynamo == nil {
			return nil, fmt.Errorf("bootstrap: correlation: dynamodb client missing")
		}
		return correlation.NewDynamoStore(stores.Dynamo, cfg.RelayTable, cfg.CorrelationTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown correlation backend %q", cfg.CorrelationBackend)
	}
}

// BuildProcessedStore returns the update dedupe store, or nil when dedupe
// is disabled.
func BuildProcessedStore(cfg *appconfig.Config, stores *Stores) (events.ProcessedStore, error) {
	switch cfg.DedupeBackend {
	case appconfig.BackendNone:
		return nil, nil
	case appconfig.BackendMemory:
		return events.NewMemoryProcessedStore(cfg.DedupeTTL), nil
	case appconfig.BackendRedis:
		if stores.Redis == nil {
			return nil, fmt.Errorf("bootstrap: dedupe: redis client missing")
		}
		return events.NewRedisProcessedStore(stores.Redis, cfg.DedupeTTL), nil
	case appconfig.BackendDynamoDB:
		if stores.Dynamo == nil {
			return nil, fmt.Errorf("bootstrap: dedupe: dynamodb client missing")
		}
		return events.NewDynamoProcessedStore(stores.Dynamo, cfg.RelayTable, cfg.DedupeTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown dedupe backend %q", cfg.DedupeBackend)
	}
}

// BuildDeadLetterSink always logs failed sends and also publishes them to
// SQS when a queue is configured.
func BuildDeadLetterSink(cfg *appconfig.Config, stores *Stores, logger *logging.Logger) deadletter.Sink {
	logSink := deadletter.NewLogSink(logger)
	queueURL := strings.TrimSpace(cfg.DeadLetterQueueURL)
	if queueURL == "" || stores == nil || stores.SQS == nil {
		return logSink
	}
	return deadletter.Multi{logSink, deadletter.NewSQSSink(stores.SQS, queueURL)}
}
