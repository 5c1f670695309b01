package config

// Default service ports
const (
	// APIServerPort serves the optimizer control API
	APIServerPort = 8080

	// MetricsPort serves /metrics and /health
	MetricsPort = 9100

	PostgresPort = 5432
	RedisPort    = 6379
	NATSPort     = 4222
)
