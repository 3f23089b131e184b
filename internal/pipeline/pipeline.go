// Package pipeline implements the ingestion and extraction flow for one
// account: crawl sources, deduplicate by content hash, extract entities
// and signals with the generation client, and mark documents processed.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/ratelimit"
	"github.com/sells-group/account-intel/internal/store"
	"github.com/sells-group/account-intel/pkg/jina"
)

// Reader crawls a URL and returns page text. Satisfied by jina.Client.
type Reader interface {
	Read(ctx context.Context, url string) (*jina.ReadResponse, error)
}

// Generator issues structured-output generation calls. Satisfied by
// genai.Generator.
type Generator interface {
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

// Limiter gates paid generation calls. Satisfied by ratelimit.Limiter.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) ratelimit.Decision
}

// Pipeline runs ingestion and extraction for accounts.
type Pipeline struct {
	store   store.Store
	reader  Reader
	gen     Generator
	limiter Limiter
	cfg     config.PipelineConfig
	rate    config.RateLimitConfig

	now func() time.Time
}

// New wires a Pipeline from its collaborators.
func New(st store.Store, reader Reader, gen Generator, limiter Limiter, cfg config.PipelineConfig, rate config.RateLimitConfig) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 8000
	}
	if rate.Limit <= 0 {
		rate.Limit = 60
	}
	if rate.WindowMs <= 0 {
		rate.WindowMs = 60_000
	}
	return &Pipeline{
		store:   st,
		reader:  reader,
		gen:     gen,
		limiter: limiter,
		cfg:     cfg,
		rate:    rate,
		now:     time.Now,
	}
}

// RunResult summarizes one pipeline run for an account.
type RunResult struct {
	Ingest    IngestResult `json:"ingest"`
	Processed int          `json:"processed"`
}

// Run executes ingestion then extraction for the account identified by
// slug. Per-document failures are logged and skipped; only structural
// failures (unknown account, unreachable store) return an error.
func (p *Pipeline) Run(ctx context.Context, slug string, sources ...Source) (*RunResult, error) {
	account, err := p.store.GetAccountBySlug(ctx, slug)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resolve account %q", slug)
	}

	if len(sources) == 0 {
		sources = defaultSources(account)
	}

	ingest, err := p.Ingest(ctx, account, sources)
	if err != nil {
		return nil, err
	}

	processed, err := p.Extract(ctx, account)
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline run complete",
		zap.String("account", slug),
		zap.Int("fetched", ingest.Fetched),
		zap.Int("stored", ingest.Stored),
		zap.Int("skipped", ingest.Skipped),
		zap.Int("processed", processed))

	return &RunResult{Ingest: *ingest, Processed: processed}, nil
}

// defaultSources derives the crawl list from the account record.
func defaultSources(a *model.Account) []Source {
	if a.Website == "" {
		return nil
	}
	return []Source{{URL: a.Website, Kind: model.DocumentKindWebsite}}
}
