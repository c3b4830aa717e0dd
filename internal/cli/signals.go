package cli

import (
	"context"
	"fmt"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/config"
	"fge-test-platform/internal/infra/httpapi"
	redisstore "fge-test-platform/internal/infra/redis"
	"fge-test-platform/internal/infra/relay"
	"github.com/redis/go-redis/v9"
)

const (
	signalsRedis = "redis"
	signalsRelay = "relay"
)

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func coordinatorTiming(cfg config.Config) app.Timing {
	def := app.DefaultTiming()
	return app.Timing{
		HeartbeatInterval: config.TTLDuration(cfg.Coordinator.Heartbeat, def.HeartbeatInterval),
		TTL:               config.TTLDuration(cfg.Coordinator.TTL, def.TTL),
		RecheckDelay:      config.TTLDuration(cfg.Coordinator.Recheck, def.RecheckDelay),
	}
}

// openSignals connects a client context identified by origin to the shared store
// selected in the config. The relay requires a bearer token; a guest token is
// requested when token is empty. The returned func releases the connection.
func openSignals(ctx context.Context, cfg config.Config, origin, token string) (app.SignalStore, func(), error) {
	switch cfg.Client.Signals {
	case signalsRelay:
		if cfg.Client.RelayURL == "" {
			return nil, nil, fmt.Errorf("client relayURL not configured")
		}
		if token == "" {
			tok, err := httpapi.NewClient(cfg.Client.ServerURL, "", cfg.Client.Language).GuestLogin(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("relay token: %w", err)
			}
			token = tok
		}
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		c, err := relay.Dial(dialCtx, cfg.Client.RelayURL, origin, token)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	case signalsRedis, "":
		client := newRedisClient(cfg)
		if client == nil {
			return nil, nil, fmt.Errorf("redis addr not configured")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.NewSignalStore(client, origin), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown signals backend %q", cfg.Client.Signals)
}
