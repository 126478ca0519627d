package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"rank-observer/src/helpers"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher pushes every enriched table to a pub/sub channel per source
// and keeps the last one under a plain key for late readers.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisPublisher(cfg models.MRedisConfig, log *logger.Logger) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisPublisherWithClient(client, cfg.ChannelPrefix, log)
}

func NewRedisPublisherWithClient(client *redis.Client, prefix string, log *logger.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "rank-observer"
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: log}
}

// -----------------------------------------------------------------------------

// Channel returns the pub/sub channel of a source.
func (p *RedisPublisher) Channel(source string) string {
	return fmt.Sprintf("%s:%s", p.prefix, source)
}

// LatestKey returns the key holding the last table of a source.
func (p *RedisPublisher) LatestKey(source string) string {
	return p.Channel(source) + ":latest"
}

// -----------------------------------------------------------------------------

func (p *RedisPublisher) Publish(ctx context.Context, table *models.MEnrichedTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return helpers.NewPublishError("failed to marshal table", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.LatestKey(table.Source), data, 0)
	receivers := pipe.Publish(ctx, p.Channel(table.Source), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return helpers.NewPublishError(fmt.Sprintf("failed to publish %s tick %d", table.Source, table.Tick), err)
	}

	p.logger.Debug("Published %s tick %d to %d subscribers", table.Source, table.Tick, receivers.Val())
	return nil
}

// -----------------------------------------------------------------------------

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
