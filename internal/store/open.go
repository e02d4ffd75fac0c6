package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/config"
)

// Open creates the Store selected by STORE_DRIVER
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Store.Driver {
	case "memory", "":
		s = NewMemoryStore()
	case "mysql", "postgres":
		s, err = NewSQLStore(cfg.Store.Driver, &cfg.DB)
	case "sqlite":
		s, err = NewSQLiteStore(cfg.Store.SQLitePath)
	case "redis":
		s, err = NewRedisStore(ctx, &cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("Record store opened")
	return s, nil
}
