package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-intel/internal/genai"
	"github.com/sells-group/account-intel/internal/pipeline"
	"github.com/sells-group/account-intel/internal/ratelimit"
	"github.com/sells-group/account-intel/internal/scoring"
	"github.com/sells-group/account-intel/internal/store"
	anthropicpkg "github.com/sells-group/account-intel/pkg/anthropic"
	"github.com/sells-group/account-intel/pkg/jina"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "account-intel.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the wired collaborators a command needs.
type env struct {
	Store    store.Store
	Limiter  *ratelimit.Limiter
	Pipeline *pipeline.Pipeline
	Scoring  *scoring.Service
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var limiterOpts []ratelimit.Option
	if cfg.RateLimit.FailClosed {
		limiterOpts = append(limiterOpts, ratelimit.FailClosed())
	}
	limiter := ratelimit.New(st, limiterOpts...)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	gen := genai.New(anthropicClient, cfg.Anthropic)

	jinaOpts := []jina.Option{jina.WithRequestsPerSec(cfg.Jina.RequestsPerSec)}
	if cfg.Jina.ReaderBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithReaderBaseURL(cfg.Jina.ReaderBaseURL))
	}
	if cfg.Jina.EmbedBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithEmbedBaseURL(cfg.Jina.EmbedBaseURL))
	}
	if cfg.Jina.EmbedModel != "" {
		jinaOpts = append(jinaOpts, jina.WithEmbedModel(cfg.Jina.EmbedModel))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	return &env{
		Store:    st,
		Limiter:  limiter,
		Pipeline: pipeline.New(st, jinaClient, gen, limiter, cfg.Pipeline, cfg.RateLimit),
		Scoring:  scoring.NewService(st),
	}, nil
}
