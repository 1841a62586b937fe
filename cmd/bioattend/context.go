package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/bioattend-api/internal/server"
	"github.com/noah-isme/bioattend-api/pkg/cache"
	"github.com/noah-isme/bioattend-api/pkg/config"
	"github.com/noah-isme/bioattend-api/pkg/database"
	"github.com/noah-isme/bioattend-api/pkg/logger"
)

type commandContext struct {
	dbFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(dbFlag *string) *commandContext {
	return &commandContext{dbFlag: dbFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if c.dbFlag != nil && strings.TrimSpace(*c.dbFlag) != "" {
			cfg.Database.Driver = config.DriverSQLite
			cfg.Database.SQLitePath = strings.TrimSpace(*c.dbFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles the handles a command needs; close releases them.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	app    *server.App
}

func (r *runtime) close() {
	_ = r.app.Close()
	_ = r.db.Close()
	_ = r.logger.Sync()
}

// open loads config, connects storage, applies migrations and wires the app.
func (c *commandContext) open(ctx context.Context) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	applied, err := database.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		logr.Info("migrations applied", zap.Strings("versions", applied))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}

	app, err := server.New(cfg, logr, db, redisClient)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = db.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logr, db: db, app: app}, nil
}

func (c *commandContext) withRuntime(ctx context.Context, fn func(*runtime) error) error {
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(rt)
}
