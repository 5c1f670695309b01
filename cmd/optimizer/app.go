package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hybridopt/internal/config"
	"github.com/ajitpratap0/hybridopt/internal/coordinator"
	"github.com/ajitpratap0/hybridopt/internal/db"
	"github.com/ajitpratap0/hybridopt/internal/market"
	"github.com/ajitpratap0/hybridopt/internal/sink"
	"github.com/ajitpratap0/hybridopt/internal/strategy"
)

// app holds the wired components of one process
type app struct {
	cfg *config.Config
	log zerolog.Logger

	database *db.DB
	redis    *redis.Client
	cache    *market.RedisBarCache
	nc       *nats.Conn
	kafka    *sink.KafkaSink

	bars        market.BarSource
	strategy    *strategy.LiveStrategy
	sinks       sink.Multi
	coordinator *coordinator.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	if a.needsDatabase() {
		if err := a.openDatabase(ctx); err != nil {
			return err
		}
	}
	if err := a.openBars(); err != nil {
		return err
	}
	if err := a.openStrategy(); err != nil {
		return err
	}
	if err := a.openSinks(); err != nil {
		return err
	}

	ccfg, err := a.cfg.Optimizer.CoordinatorConfig()
	if err != nil {
		return err
	}
	a.coordinator, err = coordinator.New(ccfg, coordinator.Dependencies{
		Bounds:   a.strategy,
		Bars:     a.bars,
		Applier:  a.strategy,
		Sink:     a.sinks,
		Breakers: coordinator.NewBreakers(a.cfg.Optimizer.Breakers),
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	return nil
}

func (a *app) needsDatabase() bool {
	return a.cfg.Market.Source == config.SourcePostgres || a.cfg.Optimizer.HasSink(config.SinkPostgres)
}

func (a *app) openDatabase(ctx context.Context) error {
	dsn := a.cfg.Database.GetDSN()
	if a.cfg.Database.Migrate {
		if err := migrate(ctx, dsn, a.log); err != nil {
			return err
		}
	}

	database, err := db.New(ctx, dsn, a.cfg.Database.PoolSize)
	if err != nil {
		return err
	}
	a.database = database
	return nil
}

func migrate(ctx context.Context, dsn string, log zerolog.Logger) error {
	m, err := db.OpenMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	applied, err := m.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info().Int("applied", applied).Msg("Database migrations complete")
	return nil
}

func (a *app) openBars() error {
	mc := a.cfg.Market
	if mc.Source == config.SourceFile {
		src, err := market.NewFileBarsProvider(mc.BarsFile)
		if err != nil {
			return err
		}
		a.bars = src
		return nil
	}

	src, err := market.NewPostgresBarsProvider(a.database.Pool(), mc.Query)
	if err != nil {
		return err
	}
	a.bars = src

	if a.cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.GetRedisAddr(),
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.cache = market.NewRedisBarCache(a.redis, src, market.BarCacheName(src.Query()), mc.CacheTTL)
		a.bars = a.cache
	}
	return nil
}

// openStrategy loads the live settings, seeding the file with defaults on first start
func (a *app) openStrategy() error {
	path := a.cfg.Strategy.Path
	s, err := strategy.Load(path, a.log)
	if errors.Is(err, fs.ErrNotExist) {
		seed, serr := strategy.NewLiveStrategy(a.cfg.App.Name, strategy.DefaultParameters(), a.log)
		if serr != nil {
			return serr
		}
		if serr := seed.SaveTo(path); serr != nil {
			return serr
		}
		a.log.Info().Str("path", path).Msg("Created strategy file with default parameters")
		s, err = strategy.Load(path, a.log)
	}
	if err != nil {
		return err
	}
	a.strategy = s
	return nil
}

func (a *app) openSinks() error {
	for _, name := range a.cfg.Optimizer.Sinks {
		switch name {
		case config.SinkLog:
			a.sinks = append(a.sinks, sink.NewLogSink(a.log))

		case config.SinkNATS:
			nc, err := sink.ConnectNATS(a.cfg.NATS.URL, a.cfg.App.Name)
			if err != nil {
				return err
			}
			a.nc = nc
			a.sinks = append(a.sinks, sink.NewNATSSink(nc, a.cfg.NATS.SubjectPrefix))

		case config.SinkKafka:
			kc := a.cfg.Kafka
			w, err := sink.NewKafkaWriter(sink.KafkaConfig{
				Brokers:      kc.Brokers,
				MaxAttempts:  kc.MaxAttempts,
				WriteTimeout: kc.WriteTimeout,
			})
			if err != nil {
				return fmt.Errorf("failed to create kafka writer: %w", err)
			}
			a.kafka = sink.NewKafkaSink(w, kc.Topic)
			a.sinks = append(a.sinks, a.kafka)

		case config.SinkPostgres:
			a.sinks = append(a.sinks, sink.NewPostgresSink(a.database.Pool()))

		default:
			return fmt.Errorf("unknown sink %q", name)
		}
	}
	return nil
}

// resultStore returns the history reader when results are persisted
func (a *app) resultStore() *db.ResultStore {
	if a.database == nil || !a.cfg.Optimizer.HasSink(config.SinkPostgres) {
		return nil
	}
	return db.NewResultStore(a.database.Pool())
}

// health checks the external dependencies the next run needs
func (a *app) health(ctx context.Context) error {
	var errs []error
	if a.database != nil {
		errs = append(errs, a.database.Health(ctx))
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Health(ctx))
	}
	if a.nc != nil && !a.nc.IsConnected() {
		errs = append(errs, errors.New("nats disconnected"))
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of opening
func (a *app) Close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close kafka writer")
		}
	}
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to drain nats connection")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if a.database != nil {
		a.database.Close()
	}
}
