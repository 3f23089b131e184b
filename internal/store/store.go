// Package store defines the persistence interface for the account
// intelligence pipeline and its SQLite and Postgres implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/account-intel/internal/model"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface consumed by the pipeline, the
// rate limiter, and the scoring engines.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, a model.Account) (*model.Account, error)
	GetAccountBySlug(ctx context.Context, slug string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// Source documents
	InsertDocument(ctx context.Context, d model.SourceDocument) (*model.SourceDocument, error)
	HasDocumentWithHash(ctx context.Context, accountID, hash string) (bool, error)
	ListUnprocessedDocuments(ctx context.Context, accountID string, limit int) ([]model.SourceDocument, error)
	CountRecentDocuments(ctx context.Context, accountID string, kind model.DocumentKind, since time.Time) (int, error)
	MarkDocumentProcessed(ctx context.Context, docID string) error

	// Extracted facts. Entity and signal inserts are batched: one
	// round-trip per call regardless of row count.
	InsertEntities(ctx context.Context, entities []model.Entity) error
	InsertSignals(ctx context.Context, signals []model.Signal) error
	ListSignals(ctx context.Context, accountID string, since time.Time) ([]model.Signal, error)

	// Signal actions (written by the derivation step, read by scoring)
	InsertSignalAction(ctx context.Context, a model.SignalAction) (*model.SignalAction, error)
	ListSignalActions(ctx context.Context, accountID string, since time.Time) ([]model.SignalAction, error)

	// CRM facts, mutated by other subsystems; read-only for scoring
	InsertOpportunity(ctx context.Context, o model.Opportunity) (*model.Opportunity, error)
	ListOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error)
	InsertInteraction(ctx context.Context, i model.Interaction) (*model.Interaction, error)
	ListInteractions(ctx context.Context, accountID string) ([]model.Interaction, error)
	InsertContact(ctx context.Context, c model.Contact) (*model.Contact, error)
	ListContacts(ctx context.Context, accountID string) ([]model.Contact, error)

	// Rate limit windows. GetRateWindow returns (nil, nil) when the
	// window row does not exist yet.
	GetRateWindow(ctx context.Context, key string, windowStart int64) (*model.RateLimitWindow, error)
	InsertRateWindow(ctx context.Context, w model.RateLimitWindow) error
	IncrementRateWindow(ctx context.Context, key string, windowStart int64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
