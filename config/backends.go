package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	"github.com/jonwraymond/satauth/broadcast"
	broadcastredis "github.com/jonwraymond/satauth/broadcast/redis"
	"github.com/jonwraymond/satauth/session"
	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/storage/bbolt"
	storageredis "github.com/jonwraymond/satauth/storage/redis"
)

// Backends are the storage and broadcast backends selected by a Config.
//
// Contract:
//   - Ownership: Close releases the storage and the redis client; channels
//     opened through Channel are closed by their owner.
type Backends struct {
	Storage storage.Storage

	// Channel opens the sync channel, or is nil when sync is disabled.
	Channel session.ChannelFactory

	redis goredis.UniversalClient
}

// Open connects the backends selected by c.
func (c *Config) Open(ctx context.Context) (*Backends, error) {
	b := &Backends{}
	if c.Storage == StorageRedis || c.Broadcast == BroadcastRedis {
		opts, err := goredis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("config: redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("config: redis ping: %w", err)
		}
		b.redis = client
	}

	switch c.Storage {
	case StorageMemory:
		b.Storage = storage.NewMemory()
	case StorageBolt:
		db, err := bolt.Open(c.BoltPath, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("config: open %s: %w", c.BoltPath, err)
		}
		s, err := bbolt.New(db, c.BoltBucket)
		if err != nil {
			_ = db.Close()
			_ = b.Close()
			return nil, err
		}
		b.Storage = s
	case StorageRedis:
		b.Storage = storageredis.New(b.redis, c.RedisPrefix)
	default:
		_ = b.Close()
		return nil, fmt.Errorf("%w: %q", ErrInvalidStorage, c.Storage)
	}

	switch c.Broadcast {
	case BroadcastMemory:
		bus := broadcast.NewMemoryBus()
		b.Channel = func(context.Context) (broadcast.Channel, error) {
			return bus.Channel(broadcast.ChannelName, c.Origin), nil
		}
	case BroadcastRedis:
		client := b.redis
		b.Channel = func(ctx context.Context) (broadcast.Channel, error) {
			ch := broadcastredis.NewChannel(client, broadcast.ChannelName, c.Origin)
			if err := ch.Listen(ctx); err != nil {
				_ = ch.Close()
				return nil, err
			}
			return ch, nil
		}
	}
	return b, nil
}

// Close releases the storage and the redis client.
func (b *Backends) Close() error {
	var errs []error
	if b.Storage != nil {
		errs = append(errs, b.Storage.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	return errors.Join(errs...)
}
