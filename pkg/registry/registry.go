// Package registry shares trained model documents between processes through
// Redis and notifies subscribers when a new version is published.
package registry

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zpam/spamscan/pkg/config"
)

// ErrNoModel is returned by Fetch when nothing has been published yet.
var ErrNoModel = errors.New("no model published")

// Artifacts is one published model with its word table.
type Artifacts struct {
	Model   []byte
	Words   []byte
	Version int64
}

// Registry stores artifacts under a key prefix.
type Registry struct {
	client  *redis.Client
	prefix  string
	channel string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg *config.RedisConfig) (*Registry, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	opt.DB = cfg.DatabaseNum

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "Redis connection failed")
	}

	return &Registry{
		client:  client,
		prefix:  cfg.KeyPrefix,
		channel: cfg.Channel,
	}, nil
}

func (r *Registry) key(name string) string {
	return r.prefix + ":" + name
}

// Publish stores both documents and bumps the version in one transaction,
// then announces the new version on the update channel.
func (r *Registry) Publish(ctx context.Context, modelDoc, wordsDoc []byte) (int64, error) {
	if len(modelDoc) == 0 {
		return 0, errors.New("model document is empty")
	}

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("model"), modelDoc, 0)
		if len(wordsDoc) > 0 {
			pipe.Set(ctx, r.key("words"), wordsDoc, 0)
		} else {
			pipe.Del(ctx, r.key("words"))
		}
		incr = pipe.Incr(ctx, r.key("version"))
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to store model")
	}

	version := incr.Val()
	if err := r.client.Publish(ctx, r.channel, strconv.FormatInt(version, 10)).Err(); err != nil {
		return version, errors.Wrap(err, "failed to announce model version")
	}

	log.WithFields(log.Fields{"version": version, "channel": r.channel}).Info("model published")
	return version, nil
}

// Fetch reads the current artifacts atomically.
func (r *Registry) Fetch(ctx context.Context) (*Artifacts, error) {
	var modelCmd, wordsCmd, versionCmd *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		modelCmd = pipe.Get(ctx, r.key("model"))
		wordsCmd = pipe.Get(ctx, r.key("words"))
		versionCmd = pipe.Get(ctx, r.key("version"))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to fetch model")
	}

	modelDoc, err := modelCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model")
	}

	wordsDoc, err := wordsCmd.Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to read words")
	}

	version, err := versionCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to read version")
	}

	return &Artifacts{Model: modelDoc, Words: wordsDoc, Version: version}, nil
}

// Subscribe calls fn with each announced version until ctx is cancelled.
// Announcements that are not a version number are logged and ignored.
func (r *Registry) Subscribe(ctx context.Context, fn func(version int64)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness
	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "failed to subscribe")
	}
	log.WithField("channel", r.channel).Info("subscribed to model updates")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			version, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				log.WithField("payload", msg.Payload).Warn("ignoring malformed model announcement")
				continue
			}
			fn(version)
		}
	}
}

// Reset removes every key owned by the registry.
func (r *Registry) Reset(ctx context.Context) error {
	return errors.Wrap(r.client.Del(ctx, r.key("model"), r.key("words"), r.key("version")).Err(), "failed to reset registry")
}

// Close closes the Redis connection.
func (r *Registry) Close() error {
	return r.client.Close()
}
