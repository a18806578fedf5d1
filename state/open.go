package state

import (
	"context"
	"fmt"

	"github.com/grovetools/bnb/config"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/paths"
	"github.com/grovetools/bnb/util/pathutil"
)

// Open builds the storage selected by cfg.
func Open(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "", config.BackendFile:
		path := cfg.Path
		if path == "" {
			path = paths.SessionFile()
		} else {
			expanded, err := pathutil.Expand(path)
			if err != nil {
				return nil, errors.Wrap(err, errors.KindStorage, "cannot resolve storage.path").WithDetail("path", path)
			}
			path = expanded
		}
		if path == "" {
			return nil, errors.New(errors.KindStorage, "cannot resolve session file path: set storage.path or BNB_HOME")
		}
		return NewFileStorage(path), nil
	case config.BackendMemory:
		return NewMemoryStorage(), nil
	case config.BackendRedis:
		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = config.DefaultRedisPrefix
		}
		rs := NewRedisStorage(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   prefix,
		})
		ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, errors.Wrap(err, errors.KindStorage, "cannot reach redis").WithDetail("addr", cfg.Redis.Addr)
		}
		return rs, nil
	default:
		return nil, errors.New(errors.KindConfigValidation, fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}
}
