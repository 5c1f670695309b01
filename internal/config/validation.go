package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/hybridopt/pkg/backtest"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Fields lists the failing field paths
func (ve ValidationErrors) Fields() []string {
	out := make([]string, len(ve))
	for i, e := range ve {
		out[i] = e.Field
	}
	return out
}

var validate = newValidator()

// newValidator reports fields by their mapstructure path
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errs ValidationErrors

	// Struct tag checks
	errs = append(errs, structErrors(validate.Struct(c))...)

	// Cross-field checks
	errs = append(errs, c.validateMarket()...)
	errs = append(errs, c.validateOptimizer()...)
	errs = append(errs, c.validateSinks()...)
	errs = append(errs, c.validateEnvironmentRequirements()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func structErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "config", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Config.optimizer.merge_policy"
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, ValidationError{Field: field, Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %q)", strings.ReplaceAll(fe.Param(), " ", ", "), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func (c *Config) validateMarket() ValidationErrors {
	var errs ValidationErrors

	switch c.Market.Source {
	case SourceFile:
		if c.Market.BarsFile == "" {
			errs = append(errs, ValidationError{
				Field:   "market.bars_file",
				Message: "Bars file is required when market.source is file",
			})
		}
	case SourcePostgres:
		if c.Database.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "database.host",
				Message: "Database host is required when market.source is postgres",
			})
		}
	}

	return errs
}

func (c *Config) validateOptimizer() ValidationErrors {
	var errs ValidationErrors
	o := c.Optimizer

	if !o.Algorithms.PSO && !o.Algorithms.GA && !o.Algorithms.Mayfly {
		errs = append(errs, ValidationError{
			Field:   "optimizer.algorithms",
			Message: "At least one search algorithm must be enabled",
		})
	}
	if o.MergePolicy == "pso_only" && !o.Algorithms.PSO {
		errs = append(errs, ValidationError{
			Field:   "optimizer.merge_policy",
			Message: "pso_only requires optimizer.algorithms.pso",
		})
	}
	if o.MergePolicy == "ga_only" && !o.Algorithms.GA {
		errs = append(errs, ValidationError{
			Field:   "optimizer.merge_policy",
			Message: "ga_only requires optimizer.algorithms.ga",
		})
	}
	if o.MergePolicy == "best_score" && o.PSO.LegacySign {
		errs = append(errs, ValidationError{
			Field:   "optimizer.pso.legacy_sign",
			Message: "Legacy sign scores cannot be compared under best_score",
		})
	}

	if o.Evaluator.Objective != "" {
		if _, err := backtest.LookupObjective(o.Evaluator.Objective); err != nil {
			errs = append(errs, ValidationError{
				Field:   "optimizer.evaluator.objective",
				Message: fmt.Sprintf("Unknown objective. Must be one of: %v", backtest.ObjectiveNames()),
			})
		}
	}
	if o.GA.FitnessFunction != "" {
		if _, err := backtest.LookupObjective(o.GA.FitnessFunction); err != nil {
			errs = append(errs, ValidationError{
				Field:   "optimizer.ga.fitness_function",
				Message: fmt.Sprintf("Unknown objective. Must be one of: %v", backtest.ObjectiveNames()),
			})
		}
	}
	if o.Evaluator.PositionFraction < 0 || o.Evaluator.PositionFraction > 1 {
		errs = append(errs, ValidationError{
			Field:   "optimizer.evaluator.position_fraction",
			Message: "Position fraction must be between 0 and 1",
		})
	}
	if !unitRate(o.GA.MutationRate) || !unitRate(o.GA.CrossoverRate) {
		errs = append(errs, ValidationError{
			Field:   "optimizer.ga",
			Message: "Mutation and crossover rates must be between 0 and 1",
		})
	}

	return errs
}

func (c *Config) validateSinks() ValidationErrors {
	var errs ValidationErrors

	if c.Optimizer.HasSink(SinkKafka) && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, ValidationError{
			Field:   "kafka.brokers",
			Message: "At least one broker is required when the kafka sink is enabled",
		})
	}
	if c.Optimizer.HasSink(SinkNATS) && c.NATS.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required when the nats sink is enabled",
		})
	}

	return errs
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errs ValidationErrors

	if c.App.Environment != "production" {
		return errs
	}

	usesDatabase := c.Market.Source == SourcePostgres || c.Optimizer.HasSink(SinkPostgres)
	if usesDatabase && c.Database.Password == "" {
		errs = append(errs, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in production",
		})
	}
	if usesDatabase && c.Database.SSLMode == "disable" {
		errs = append(errs, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must be enabled for database in production",
		})
	}

	return errs
}

// unitRate reports whether an optional rate is unset or within [0,1]
func unitRate(r *float64) bool {
	return r == nil || (*r >= 0 && *r <= 1)
}
