package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/genai"
	"github.com/sells-group/account-intel/internal/metrics"
	"github.com/sells-group/account-intel/internal/model"
)

const extractionSystem = `You are an analyst extracting structured facts about a company from a web page.
Respond with a single JSON object of the shape {"entities": [...], "signals": [...]} and nothing else.
Each entity has: name, type (person|facility|vendor|technology|initiative), optional role, optional attributes (string map).
Each signal has: severity (low|medium|high), category (leadership_change|expansion|funding|hiring|technology|regulatory|risk|award|partnership|other), summary, optional detail (string map).
Only report facts stated in the page. Empty arrays are fine.`

// extractionPayload is the structured output requested from the model.
type extractionPayload struct {
	Entities []extractedEntity `json:"entities" validate:"omitempty,dive"`
	Signals  []extractedSignal `json:"signals" validate:"omitempty,dive"`
}

type extractedEntity struct {
	Name       string            `json:"name" validate:"required"`
	Type       string            `json:"type" validate:"required"`
	Role       string            `json:"role"`
	Attributes map[string]string `json:"attributes"`
}

type extractedSignal struct {
	Severity string            `json:"severity" validate:"required,oneof=low medium high"`
	Category string            `json:"category" validate:"required,oneof=leadership_change expansion funding hiring technology regulatory risk award partnership other"`
	Summary  string            `json:"summary" validate:"required"`
	Detail   map[string]string `json:"detail"`
}

// Extract loads a batch of unprocessed documents and runs extraction on
// each. A document is marked processed only after both fact inserts
// succeed; any per-document failure leaves it unprocessed for the next
// run. The returned count is the number of documents attempted in this
// batch, whether or not each one completed.
func (p *Pipeline) Extract(ctx context.Context, account *model.Account) (int, error) {
	docs, err := p.store.ListUnprocessedDocuments(ctx, account.ID, p.cfg.BatchSize)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list unprocessed documents")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	window := time.Duration(p.rate.WindowMs) * time.Millisecond
	attempted := 0

	for _, doc := range docs {
		decision := p.limiter.Check(ctx, "genai:"+account.Slug, p.rate.Limit, window)
		if !decision.Allowed {
			zap.L().Warn("generation rate limit reached, skipping document",
				zap.String("account", account.Slug),
				zap.String("document_id", doc.ID),
				zap.Time("reset_at", decision.ResetAt))
			continue
		}

		attempted++
		metrics.DocumentsProcessed.Inc()

		if err := p.extractOne(ctx, account, doc); err != nil {
			metrics.ExtractionFailures.Inc()
			zap.L().Warn("extraction failed, document stays unprocessed",
				zap.String("account", account.Slug),
				zap.String("document_id", doc.ID),
				zap.Error(err))
		}
	}

	return attempted, nil
}

func (p *Pipeline) extractOne(ctx context.Context, account *model.Account, doc model.SourceDocument) error {
	prompt := buildExtractionPrompt(doc, p.cfg.MaxContentChars)

	var payload extractionPayload
	if err := p.gen.GenerateJSON(ctx, extractionSystem, prompt, &payload); err != nil {
		return err
	}

	entities, signals := payload.toModels(account.ID, doc.ID, p.now().UTC())

	if err := p.store.InsertEntities(ctx, entities); err != nil {
		return eris.Wrap(err, "insert entities")
	}
	if err := p.store.InsertSignals(ctx, signals); err != nil {
		return eris.Wrap(err, "insert signals")
	}

	if err := p.store.MarkDocumentProcessed(ctx, doc.ID); err != nil {
		return eris.Wrap(err, "mark processed")
	}

	p.deriveActions(ctx, account, signals)

	zap.L().Info("document extracted",
		zap.String("account", account.Slug),
		zap.String("document_id", doc.ID),
		zap.Int("entities", len(entities)),
		zap.Int("signals", len(signals)))
	return nil
}

func buildExtractionPrompt(doc model.SourceDocument, maxChars int) string {
	return fmt.Sprintf("Title: %s\nURL: %s\n\nPage content:\n%s",
		doc.Title, doc.URL, genai.CapPrompt(doc.Content, maxChars))
}

func (p extractionPayload) toModels(accountID, docID string, at time.Time) ([]model.Entity, []model.Signal) {
	entities := make([]model.Entity, 0, len(p.Entities))
	for _, e := range p.Entities {
		entities = append(entities, model.Entity{
			ID:         uuid.NewString(),
			AccountID:  accountID,
			DocumentID: docID,
			Name:       e.Name,
			Type:       e.Type,
			Role:       e.Role,
			Attributes: e.Attributes,
			CreatedAt:  at,
		})
	}

	signals := make([]model.Signal, 0, len(p.Signals))
	for _, s := range p.Signals {
		signals = append(signals, model.Signal{
			ID:         uuid.NewString(),
			AccountID:  accountID,
			DocumentID: docID,
			Severity:   model.SignalSeverity(s.Severity),
			Category:   model.SignalCategory(s.Category),
			Summary:    s.Summary,
			Detail:     s.Detail,
			CreatedAt:  at,
		})
	}

	return entities, signals
}
