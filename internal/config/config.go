// Package config loads the optimizer configuration from YAML and the environment
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/hybridopt/internal/coordinator"
	"github.com/ajitpratap0/hybridopt/internal/market"
	"github.com/ajitpratap0/hybridopt/pkg/backtest"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// EnvPrefix prefixes environment overrides, e.g. HYBRIDOPT_DATABASE_HOST
const EnvPrefix = "HYBRIDOPT"

// Bar sources
const (
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

// Result sinks
const (
	SinkLog      = "log"
	SinkNATS     = "nats"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Market     MarketConfig     `mapstructure:"market"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Optimizer  OptimizerConfig  `mapstructure:"optimizer"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat   string `mapstructure:"log_format" validate:"oneof=json console"`
}

// DatabaseConfig contains PostgreSQL/TimescaleDB settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	PoolSize int    `mapstructure:"pool_size" validate:"gte=1"`
	Migrate  bool   `mapstructure:"migrate"` // apply embedded migrations on start
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// KafkaConfig contains the result producer settings
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MarketConfig selects the bar snapshot
type MarketConfig struct {
	Source   string          `mapstructure:"source" validate:"oneof=postgres file"`
	BarsFile string          `mapstructure:"bars_file"`
	Query    market.BarQuery `mapstructure:"query"`
	CacheTTL time.Duration   `mapstructure:"cache_ttl"`
}

// StrategyConfig locates the live strategy document
type StrategyConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// AlgorithmsConfig enables searchers
type AlgorithmsConfig struct {
	PSO    bool `mapstructure:"pso"`
	GA     bool `mapstructure:"ga"`
	Mayfly bool `mapstructure:"mayfly"`
}

// OptimizerConfig contains the search, merge and schedule settings
type OptimizerConfig struct {
	Schedule    coordinator.ScheduleConfig  `mapstructure:"schedule"`
	Algorithms  AlgorithmsConfig            `mapstructure:"algorithms"`
	PSO         optimizer.PSOConfig         `mapstructure:"pso"`
	GA          optimizer.GAConfig          `mapstructure:"ga"`
	Mayfly      optimizer.MayflyConfig      `mapstructure:"mayfly"`
	Evaluator   backtest.EvaluatorConfig    `mapstructure:"evaluator"`
	MergePolicy string                      `mapstructure:"merge_policy" validate:"oneof=sequential best_score pso_only ga_only"`
	RunTimeout  time.Duration               `mapstructure:"run_timeout" validate:"gte=0"`
	Breakers    coordinator.BreakerSettings `mapstructure:"breakers"`
	Sinks       []string                    `mapstructure:"sinks" validate:"dive,oneof=log nats kafka postgres"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port" validate:"gte=1,lte=65535"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port" validate:"gte=1,lte=65535"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "hybridopt")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "hybridopt")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.migrate", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "optimizer.results.")

	v.SetDefault("kafka.topic", "optimizer.results")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.write_timeout", "10s")

	v.SetDefault("market.source", SourcePostgres)
	v.SetDefault("market.query.symbol", "BTCUSDT")
	v.SetDefault("market.query.interval", market.DefaultInterval)
	v.SetDefault("market.query.lookback", market.DefaultLookback)
	v.SetDefault("market.query.limit", market.DefaultLimit)
	v.SetDefault("market.cache_ttl", market.DefaultBarCacheTTL)

	v.SetDefault("strategy.path", "./configs/strategy.yaml")

	v.SetDefault("optimizer.schedule.interval", coordinator.DefaultInterval)
	v.SetDefault("optimizer.schedule.poll_interval", coordinator.DefaultPollInterval)
	v.SetDefault("optimizer.schedule.backoff", coordinator.DefaultBackoff)
	v.SetDefault("optimizer.schedule.run_on_start", false)

	v.SetDefault("optimizer.algorithms.pso", true)
	v.SetDefault("optimizer.algorithms.ga", true)
	v.SetDefault("optimizer.algorithms.mayfly", false)

	pso := optimizer.DefaultPSOConfig()
	v.SetDefault("optimizer.pso.particles", pso.Particles)
	v.SetDefault("optimizer.pso.iterations", pso.Iterations)
	v.SetDefault("optimizer.pso.inertia.start", pso.Inertia.Start)
	v.SetDefault("optimizer.pso.inertia.end", pso.Inertia.End)
	v.SetDefault("optimizer.pso.cognitive", pso.Cognitive)
	v.SetDefault("optimizer.pso.social", pso.Social)
	v.SetDefault("optimizer.pso.velocity_init", pso.VelocityInit)
	v.SetDefault("optimizer.pso.legacy_sign", false)

	ga := optimizer.DefaultGAConfig()
	v.SetDefault("optimizer.ga.population", ga.Population)
	v.SetDefault("optimizer.ga.generations", ga.Generations)
	v.SetDefault("optimizer.ga.mutation_rate", *ga.MutationRate)
	v.SetDefault("optimizer.ga.crossover_rate", *ga.CrossoverRate)
	v.SetDefault("optimizer.ga.tournament_size", ga.TournamentSize)
	v.SetDefault("optimizer.ga.parallelism", 0)
	v.SetDefault("optimizer.ga.fitness_function", ga.FitnessFunction)

	v.SetDefault("optimizer.mayfly.population", 20)
	v.SetDefault("optimizer.mayfly.iterations", 100)

	ev := backtest.DefaultEvaluatorConfig()
	v.SetDefault("optimizer.evaluator.min_bars", ev.MinBars)
	v.SetDefault("optimizer.evaluator.initial_balance", ev.InitialBalance)
	v.SetDefault("optimizer.evaluator.position_fraction", ev.PositionFraction)
	v.SetDefault("optimizer.evaluator.objective", ev.Objective)

	v.SetDefault("optimizer.merge_policy", string(coordinator.DefaultMergePolicy))
	v.SetDefault("optimizer.run_timeout", 0)
	v.SetDefault("optimizer.sinks", []string{SinkLog})

	bs := coordinator.DefaultBreakerSettings()
	v.SetDefault("optimizer.breakers.min_requests", bs.MinRequests)
	v.SetDefault("optimizer.breakers.failure_ratio", bs.FailureRatio)
	v.SetDefault("optimizer.breakers.open_timeout", bs.OpenTimeout)
	v.SetDefault("optimizer.breakers.half_open_max_requests", bs.HalfOpenMaxReqs)
	v.SetDefault("optimizer.breakers.count_interval", bs.CountInterval)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)

	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)
}

// CoordinatorConfig maps the optimizer section onto the coordinator
func (o *OptimizerConfig) CoordinatorConfig() (coordinator.Config, error) {
	policy, err := coordinator.ParseMergePolicy(o.MergePolicy)
	if err != nil {
		return coordinator.Config{}, err
	}
	return coordinator.Config{
		PSO:          o.PSO,
		GA:           o.GA,
		Mayfly:       o.Mayfly,
		EnablePSO:    o.Algorithms.PSO,
		EnableGA:     o.Algorithms.GA,
		EnableMayfly: o.Algorithms.Mayfly,
		Evaluator:    o.Evaluator,
		MergePolicy:  policy,
		RunTimeout:   o.RunTimeout,
	}, nil
}

// HasSink reports whether a sink is enabled
func (o *OptimizerConfig) HasSink(name string) bool {
	for _, s := range o.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
