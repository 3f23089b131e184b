package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/account-intel/internal/metrics"
	"github.com/sells-group/account-intel/internal/model"
)

// Source is one URL to crawl for an account.
type Source struct {
	URL  string
	Kind model.DocumentKind
}

// IngestResult counts the outcome of one ingestion pass.
type IngestResult struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// Ingest crawls each source, hashes the normalized content, and stores
// a new unprocessed document unless an identical one already exists for
// the account. Individual fetch failures are logged and skipped.
func (p *Pipeline) Ingest(ctx context.Context, account *model.Account, sources []Source) (*IngestResult, error) {
	result := &IngestResult{}

	for _, src := range sources {
		resp, err := p.reader.Read(ctx, src.URL)
		if err != nil {
			zap.L().Warn("crawl failed",
				zap.String("account", account.Slug),
				zap.String("url", src.URL),
				zap.Error(err))
			continue
		}
		result.Fetched++

		content := resp.Data.Content
		if strings.TrimSpace(content) == "" {
			zap.L().Warn("crawl returned empty content",
				zap.String("account", account.Slug),
				zap.String("url", src.URL))
			continue
		}

		hash := ContentHash(content)

		exists, err := p.store.HasDocumentWithHash(ctx, account.ID, hash)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: check document hash")
		}
		if exists {
			result.Skipped++
			metrics.DocumentsDeduplicated.Inc()
			zap.L().Debug("duplicate content skipped",
				zap.String("account", account.Slug),
				zap.String("url", src.URL))
			continue
		}

		doc := model.SourceDocument{
			ID:          uuid.NewString(),
			AccountID:   account.ID,
			URL:         src.URL,
			Title:       resp.Data.Title,
			Kind:        src.Kind,
			ContentHash: hash,
			Content:     content,
			CrawledAt:   p.now().UTC(),
		}
		if _, err := p.store.InsertDocument(ctx, doc); err != nil {
			return nil, eris.Wrap(err, "pipeline: insert document")
		}
		result.Stored++
		metrics.DocumentsIngested.Inc()
	}

	return result, nil
}

// ContentHash returns the dedup digest for a page: sha256 over the
// NFC-normalized, whitespace-collapsed text. Formatting-only changes in
// a re-crawled page hash identically.
func ContentHash(content string) string {
	normalized := strings.Join(strings.Fields(norm.NFC.String(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
