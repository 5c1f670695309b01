package coordinator

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
)

// Breaker names, one per collaborator
const (
	ServiceMarket   = "market"
	ServiceStrategy = "strategy"
	ServiceSink     = "sink"
)

// Default thresholds. Runs are infrequent, so a few consecutive failures are enough to
// trip and the open state lasts long enough to cover the next poll.
const (
	DefaultMinRequests     = 3
	DefaultFailureRatio    = 0.6
	DefaultOpenTimeout     = 2 * time.Minute
	DefaultHalfOpenMaxReqs = 1
	DefaultCountInterval   = 30 * time.Minute
)

// BreakerSettings configures the collaborator breakers
type BreakerSettings struct {
	MinRequests     uint32        `mapstructure:"min_requests"`
	FailureRatio    float64       `mapstructure:"failure_ratio"`
	OpenTimeout     time.Duration `mapstructure:"open_timeout"`
	HalfOpenMaxReqs uint32        `mapstructure:"half_open_max_requests"`
	CountInterval   time.Duration `mapstructure:"count_interval"`
}

// DefaultBreakerSettings returns the documented defaults
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:     DefaultMinRequests,
		FailureRatio:    DefaultFailureRatio,
		OpenTimeout:     DefaultOpenTimeout,
		HalfOpenMaxReqs: DefaultHalfOpenMaxReqs,
		CountInterval:   DefaultCountInterval,
	}
}

// Breakers guards collaborator calls
type Breakers struct {
	market   *gobreaker.CircuitBreaker
	strategy *gobreaker.CircuitBreaker
	sink     *gobreaker.CircuitBreaker
}

// NewBreakers creates one breaker per collaborator; zero fields take defaults
func NewBreakers(settings BreakerSettings) *Breakers {
	def := DefaultBreakerSettings()
	if settings.MinRequests == 0 {
		settings.MinRequests = def.MinRequests
	}
	if settings.FailureRatio <= 0 {
		settings.FailureRatio = def.FailureRatio
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = def.OpenTimeout
	}
	if settings.HalfOpenMaxReqs == 0 {
		settings.HalfOpenMaxReqs = def.HalfOpenMaxReqs
	}
	if settings.CountInterval <= 0 {
		settings.CountInterval = def.CountInterval
	}

	b := &Breakers{
		market:   newBreaker(ServiceMarket, settings),
		strategy: newBreaker(ServiceStrategy, settings),
		sink:     newBreaker(ServiceSink, settings),
	}
	for _, cb := range []*gobreaker.CircuitBreaker{b.market, b.strategy, b.sink} {
		updateBreakerMetric(cb.Name(), cb.State())
	}
	return b
}

// NewPassthroughBreakers creates breakers that never trip
func NewPassthroughBreakers() *Breakers {
	neverTrip := func(gobreaker.Counts) bool { return false }
	passthrough := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name + "_passthrough",
			MaxRequests: 1000,
			Timeout:     time.Millisecond,
			ReadyToTrip: neverTrip,
		})
	}
	return &Breakers{
		market:   passthrough(ServiceMarket),
		strategy: passthrough(ServiceStrategy),
		sink:     passthrough(ServiceSink),
	}
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenMaxReqs,
		Interval:    s.CountInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
			updateBreakerMetric(name, to)
		},
	})
}

// Market guards the bars provider
func (b *Breakers) Market() *gobreaker.CircuitBreaker { return b.market }

// Strategy guards the bounds provider and the applier
func (b *Breakers) Strategy() *gobreaker.CircuitBreaker { return b.strategy }

// Sink guards the result sink
func (b *Breakers) Sink() *gobreaker.CircuitBreaker { return b.sink }

func updateBreakerMetric(service string, state gobreaker.State) {
	var value int
	switch state {
	case gobreaker.StateClosed:
		value = 0
	case gobreaker.StateOpen:
		value = 1
	case gobreaker.StateHalfOpen:
		value = 2
	}
	metrics.SetCircuitBreakerState(service, value)
}

// guarded runs fn through cb and restores the typed result
func guarded[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
