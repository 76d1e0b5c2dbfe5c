package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-compare-backend/internal/cache"
	"github.com/tbourn/go-compare-backend/internal/catalog"
	"github.com/tbourn/go-compare-backend/internal/config"
	"github.com/tbourn/go-compare-backend/internal/generator"
	"github.com/tbourn/go-compare-backend/internal/query"
	"github.com/tbourn/go-compare-backend/internal/quota"
	"github.com/tbourn/go-compare-backend/internal/repo"
	"github.com/tbourn/go-compare-backend/internal/services"
)

const idempotencyPurgeEvery = time.Hour

// app owns the long-lived dependencies shared by the subcommands.
type app struct {
	cfg   config.Config
	db    *gorm.DB
	arb   *services.ArbitrationService
	comps *services.ComparisonService
	idem  *services.IdempotencyService

	closers []func() error
}

// openDB opens and migrates the configured database.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// newApp wires storage, cache, generator and services. Background loops
// (cache sweep, idempotency purge) stop when ctx is cancelled.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	store, err := a.newCache(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	gen, err := generator.New(cfg.Generator)
	if err != nil {
		a.close()
		return nil, err
	}

	a.comps = &services.ComparisonService{DB: db, Log: log.With().Str("component", "comparisons").Logger()}
	a.idem = &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	a.arb = &services.ArbitrationService{
		Cache:         store,
		Quota:         quota.New(cfg.Quota.PerMinute, cfg.Quota.PerDay),
		Splitter:      query.NewSplitter(),
		Generator:     gen,
		Store:         a.comps,
		Log:           log.With().Str("component", "arbitration").Logger(),
		ResultTTL:     cfg.Cache.TTL,
		MaxQueryRunes: cfg.MaxQueryRunes,
	}

	if cfg.CatalogPath != "" {
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("catalog: %w", err)
		}
		a.arb.Catalog = cat
		log.Info().Int("entries", cat.Len()).Str("path", cfg.CatalogPath).Msg("catalog loaded")
	}

	go a.purgeIdempotency(ctx)
	log.Info().
		Str("db", cfg.DBDriver).
		Str("cache", cfg.Cache.Backend).
		Str("generator", cfg.Generator.Provider).
		Int("quota_per_minute", cfg.Quota.PerMinute).
		Int("quota_per_day", cfg.Quota.PerDay).
		Msg("dependencies ready")
	return a, nil
}

func (a *app) newCache(ctx context.Context) (cache.Store, error) {
	cc := a.cfg.Cache
	switch cc.Backend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis %s: %w", cc.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewRedis(client, cc.RedisPrefix, log.With().Str("component", "cache").Logger()), nil
	default:
		m := cache.NewMemory()
		go m.RunSweeper(ctx, cc.SweepInterval)
		return m, nil
	}
}

func (a *app) purgeIdempotency(ctx context.Context) {
	t := time.NewTicker(idempotencyPurgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := a.idem.Purge(ctx, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired idempotency keys purged")
			}
		}
	}
}

// close waits for background persistence and releases resources in
// reverse order of acquisition.
func (a *app) close() error {
	if a.arb != nil {
		a.arb.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
