// Package wire assembles an Agent and its collaborators from configuration.
package wire

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/redis/go-redis/v9"
	goopenai "github.com/sashabaranov/go-openai"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/smhanov/multistep"
	"github.com/smhanov/multistep/cache"
	"github.com/smhanov/multistep/fetch"
	"github.com/smhanov/multistep/internal/config"
	"github.com/smhanov/multistep/llm/anthropic"
	"github.com/smhanov/multistep/llm/ollama"
	"github.com/smhanov/multistep/llm/openai"
	"github.com/smhanov/multistep/llm/ratelimit"
	"github.com/smhanov/multistep/retry"
	"github.com/smhanov/multistep/search"
)

// Runtime owns the agent and the clients it holds open.
type Runtime struct {
	Agent *multistep.Agent
	// IndexSummary is the configured description of the knowledge source.
	IndexSummary string

	closers []func(context.Context) error
}

// Close releases the Redis and Mongo clients, if any were opened.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build creates the model, search backend, answer engine and agent described
// by cfg. Connections are lazy; nothing is dialed until the first query.
func Build(cfg *config.Config, logger multistep.Logger) (*Runtime, error) {
	if logger == nil {
		logger = multistep.NewClueLogger()
	}
	rt := &Runtime{IndexSummary: cfg.Run.IndexSummary}

	model, err := NewModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	retryCfg := retry.Config{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
	model = retry.LLMProvider(model, retryCfg)

	searcher, err := rt.newSearch(cfg.Search)
	if err != nil {
		return nil, err
	}
	engineOpts := []multistep.SearchEngineOption{
		multistep.WithMaxResults(cfg.Search.MaxResults),
		multistep.WithEngineLogger(logger),
	}
	if cfg.Search.Fetch {
		engineOpts = append(engineOpts, multistep.WithFetcher(fetch.NewHTTP()))
	}
	var engine multistep.AnswerEngine = multistep.NewSearchAnswerEngine(searcher, model, engineOpts...)
	engine = retry.AnswerEngine(engine, retryCfg)

	if cfg.Cache.Enabled {
		engine, err = rt.newCache(cfg.Cache, engine, logger)
		if err != nil {
			return nil, err
		}
	}

	stop, err := multistep.StopPredicateByName(cfg.Run.StopPredicate)
	if err != nil {
		return nil, err
	}
	rt.Agent = multistep.New(
		multistep.WithDecomposer(multistep.NewLLMDecomposer(model, logger)),
		multistep.WithSynthesizer(multistep.NewLLMSynthesizer(model, logger)),
		multistep.WithAnswerEngine(engine),
		multistep.WithMaxSteps(cfg.Run.MaxSteps),
		multistep.WithTimeout(cfg.Run.Timeout),
		multistep.WithStopPredicate(stop),
		multistep.WithEmptyPolicy(multistep.EmptyPolicy(cfg.Run.EmptyPolicy)),
		multistep.WithBestEffort(cfg.Run.BestEffort),
		multistep.WithLogger(logger),
	)
	return rt, nil
}

// NewModel builds the configured LLM provider, behind an adaptive rate
// limiter when a tokens-per-minute budget is set.
func NewModel(cfg config.ModelConfig) (multistep.LLMProvider, error) {
	var (
		model multistep.LLMProvider
		err   error
	)
	switch cfg.Provider {
	case "openai":
		oc := goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		model, err = openai.New(openai.Options{
			Client:      goopenai.NewClientWithConfig(oc),
			Model:       cfg.Name,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		})
	case "anthropic":
		reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
		}
		ac := sdk.NewClient(reqOpts...)
		model, err = anthropic.New(&ac.Messages, anthropic.Options{
			Model:          cfg.Name,
			MaxTokens:      cfg.MaxTokens,
			Temperature:    cfg.Temperature,
			ThinkingBudget: cfg.ThinkingBudget,
		})
	case "ollama":
		model, err = ollama.New(cfg.BaseURL, cfg.Name, ollama.WithThinking(cfg.Think))
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", cfg.Provider, err)
	}
	if cfg.RateLimitTPM > 0 {
		model = ratelimit.New(cfg.RateLimitTPM, cfg.MaxTPM).Wrap(model)
	}
	return model, nil
}

func (r *Runtime) newSearch(cfg config.SearchConfig) (multistep.SearchProvider, error) {
	switch cfg.Provider {
	case "duckduckgo":
		return search.NewDuckDuckGo(), nil
	case "brave":
		return search.NewBrave(cfg.APIKey), nil
	case "tavily":
		return search.NewTavily(cfg.APIKey, cfg.Depth), nil
	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		r.closers = append(r.closers, client.Disconnect)
		m, err := search.NewMongo(search.MongoOptions{
			Collection: client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection),
			Limit:      cfg.MaxResults,
			Timeout:    cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}

func (r *Runtime) newCache(cfg config.CacheConfig, next multistep.AnswerEngine, logger multistep.Logger) (multistep.AnswerEngine, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r.closers = append(r.closers, func(context.Context) error { return rdb.Close() })
	c, err := cache.New(next, cache.Options{
		Redis:  rdb,
		Prefix: cfg.Prefix,
		TTL:    cfg.TTL,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

