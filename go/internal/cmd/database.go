package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/gatetimer/go/internal/dbconfig"
	"github.com/mcdev12/gatetimer/go/internal/settings"
	"github.com/rs/zerolog/log"
)

// setupPersister opens the configured settings backend. The returned func
// releases it.
func setupPersister(ctx context.Context, cfg *ServerConfig) (settings.Persister, func(), error) {
	switch cfg.Settings.Backend {
	case backendPostgres:
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := dbCfg.Connect(ctx)
		if err != nil {
			return nil, nil, err
		}

		persister, err := settings.NewPostgresPersister(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to prepare settings table: %w", err)
		}

		log.Info().
			Str("host", dbCfg.Host).
			Int("port", dbCfg.Port).
			Str("database", dbCfg.Database).
			Msg("settings stored in postgres")
		return persister, pool.Close, nil

	default:
		persister := settings.NewFilePersister(cfg.Settings.Path)
		log.Info().Str("path", persister.Path()).Msg("settings stored in file")
		return persister, func() {}, nil
	}
}
