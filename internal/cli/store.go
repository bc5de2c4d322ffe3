package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/cadence/internal/adapters/file"
	"github.com/aretw0/cadence/internal/config"
	"github.com/aretw0/cadence/pkg/adapters/memory"
	"github.com/aretw0/cadence/pkg/adapters/redis"
	"github.com/aretw0/cadence/pkg/adapters/sqlstore"
	"github.com/aretw0/cadence/pkg/persistence/middleware"
	"github.com/aretw0/cadence/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Persistence bundles the checkpoint store selected by configuration.
// Locker is set only for backends shared between processes.
type Persistence struct {
	Store  ports.CheckpointStore
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases the backend connection, if any.
func (p *Persistence) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// OpenStore builds the configured backend and wraps it with the PII and
// encryption middleware. PII masking runs before encryption.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Persistence, error) {
	p := &Persistence{}
	sc := cfg.Store

	switch sc.Backend {
	case config.BackendMemory:
		p.Store = memory.NewStore()
	case config.BackendFile:
		p.Store = file.New(sc.Path)
	case config.BackendSQLite:
		path := sc.Path
		if !strings.HasSuffix(path, ".db") {
			path = strings.TrimSuffix(path, "/") + "/checkpoints.db"
		}
		s, err := sqlstore.OpenSQLite(path, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		p.Store, p.close = s, s.Close
	case config.BackendPostgres:
		s, err := sqlstore.OpenPostgres(ctx, sc.URL, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		p.Store, p.close = s, s.Close
	case config.BackendRedis:
		client, err := redisClient(sc.URL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		p.Store = redis.NewFromClient(client, redis.WithTTL(sc.TTL))
		p.Locker = redis.NewLocker(client, "cadence:lock:")
		p.close = client.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}

	var mws []middleware.Middleware
	if len(sc.PII) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sc.PII))
	}
	if sc.Encrypt {
		enc, err := middleware.NewEncryptionFromSource(middleware.KeyringSource{
			Service: cfg.Keyring.Service,
			User:    cfg.Keyring.User,
		})
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("checkpoint encryption: %w", err)
		}
		mws = append(mws, enc)
	}
	p.Store = middleware.Chain(p.Store, mws...)

	logger.Debug("checkpoint store ready", "backend", sc.Backend, "encrypt", sc.Encrypt, "pii_patterns", len(sc.PII))
	return p, nil
}

// redisClient accepts either a redis:// URL or a bare host:port.
func redisClient(url string) (*backend.Client, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts, err := backend.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return backend.NewClient(opts), nil
	}
	return backend.NewClient(&backend.Options{Addr: url}), nil
}
