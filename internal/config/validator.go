package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/smhanov/multistep"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "run.max_steps")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidModelProviders returns the supported model providers
func ValidModelProviders() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ValidSearchProviders returns the supported search providers
func ValidSearchProviders() []string {
	return []string{"duckduckgo", "brave", "tavily", "mongo"}
}

// ValidLogFormats returns the supported clue log formats
func ValidLogFormats() []string {
	return []string{"terminal", "text", "json"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateModel()...)
	errors = append(errors, c.validateSearch()...)
	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateLog()...)
	return errors
}

func oneOf(field, value string, valid []string) []ValidationError {
	if slices.Contains(valid, value) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(valid, ", ")),
	}}
}

func (c *Config) validateModel() []ValidationError {
	m := c.Model
	errors := oneOf("model.provider", m.Provider, ValidModelProviders())

	if m.Name == "" {
		errors = append(errors, ValidationError{Field: "model.name", Value: m.Name, Message: "is required"})
	}

	// openai-compatible servers may not check the key; the hosted APIs do
	if m.APIKey == "" && (m.Provider == "anthropic" || (m.Provider == "openai" && m.BaseURL == "")) {
		errors = append(errors, ValidationError{Field: "model.api_key", Value: "", Message: "is required for " + m.Provider})
	}

	if m.Temperature < 0 || m.Temperature > 2 {
		errors = append(errors, ValidationError{Field: "model.temperature", Value: m.Temperature, Message: "must be between 0 and 2"})
	}
	if m.MaxTokens < 0 {
		errors = append(errors, ValidationError{Field: "model.max_tokens", Value: m.MaxTokens, Message: "must be non-negative"})
	}
	if m.ThinkingBudget != 0 && m.Provider != "anthropic" {
		errors = append(errors, ValidationError{Field: "model.thinking_budget", Value: m.ThinkingBudget, Message: "is only supported by anthropic"})
	}
	if m.RateLimitTPM < 0 {
		errors = append(errors, ValidationError{Field: "model.rate_limit_tpm", Value: m.RateLimitTPM, Message: "must be non-negative"})
	}
	if m.MaxTPM != 0 && m.MaxTPM < m.RateLimitTPM {
		errors = append(errors, ValidationError{Field: "model.max_tpm", Value: m.MaxTPM, Message: "must be at least model.rate_limit_tpm"})
	}
	return errors
}

func (c *Config) validateSearch() []ValidationError {
	s := c.Search
	errors := oneOf("search.provider", s.Provider, ValidSearchProviders())

	switch s.Provider {
	case "brave", "tavily":
		if s.APIKey == "" {
			errors = append(errors, ValidationError{Field: "search.api_key", Value: "", Message: "is required for " + s.Provider})
		}
	case "mongo":
		if s.Mongo.URI == "" {
			errors = append(errors, ValidationError{Field: "search.mongo.uri", Value: "", Message: "is required for mongo"})
		}
		if s.Mongo.Database == "" || s.Mongo.Collection == "" {
			errors = append(errors, ValidationError{
				Field:   "search.mongo.collection",
				Value:   s.Mongo.Database + "." + s.Mongo.Collection,
				Message: "database and collection are required for mongo",
			})
		}
	}
	if s.Provider == "tavily" {
		errors = append(errors, oneOf("search.depth", s.Depth, []string{"basic", "advanced"})...)
	}
	if s.MaxResults < 1 {
		errors = append(errors, ValidationError{Field: "search.max_results", Value: s.MaxResults, Message: "must be at least 1"})
	}
	return errors
}

func (c *Config) validateCache() []ValidationError {
	if !c.Cache.Enabled {
		return nil
	}
	var errors []ValidationError
	if c.Cache.Addr == "" {
		errors = append(errors, ValidationError{Field: "cache.addr", Value: "", Message: "is required when the cache is enabled"})
	}
	if c.Cache.TTL < 0 {
		errors = append(errors, ValidationError{Field: "cache.ttl", Value: c.Cache.TTL, Message: "must be non-negative"})
	}
	return errors
}

func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError
	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{Field: "retry.max_attempts", Value: c.Retry.MaxAttempts, Message: "must be at least 1"})
	}
	if c.Retry.InitialBackoff < 0 {
		errors = append(errors, ValidationError{Field: "retry.initial_backoff", Value: c.Retry.InitialBackoff, Message: "must be non-negative"})
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errors = append(errors, ValidationError{Field: "retry.max_backoff", Value: c.Retry.MaxBackoff, Message: "must be at least retry.initial_backoff"})
	}
	return errors
}

func (c *Config) validateRun() []ValidationError {
	r := c.Run
	var errors []ValidationError
	if r.MaxSteps < multistep.NoStepLimit {
		errors = append(errors, ValidationError{
			Field:   "run.max_steps",
			Value:   r.MaxSteps,
			Message: fmt.Sprintf("must be non-negative, or %d for no limit", multistep.NoStepLimit),
		})
	}
	if r.Timeout < 0 {
		errors = append(errors, ValidationError{Field: "run.timeout", Value: r.Timeout, Message: "must be non-negative"})
	}
	if _, err := multistep.StopPredicateByName(r.StopPredicate); err != nil {
		errors = append(errors, ValidationError{
			Field:   "run.stop_predicate",
			Value:   r.StopPredicate,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(multistep.StopPredicateNames(), ", ")),
		})
	}
	errors = append(errors, oneOf("run.empty_policy", r.EmptyPolicy, []string{string(multistep.EmptyAnswer), string(multistep.EmptyReject)})...)
	return errors
}

func (c *Config) validateLog() []ValidationError {
	return oneOf("log.format", c.Log.Format, ValidLogFormats())
}
