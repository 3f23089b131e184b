package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/account-intel/internal/db"
	"github.com/sells-group/account-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_documents (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	url          TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT 'website',
	content_hash TEXT NOT NULL,
	content      TEXT NOT NULL,
	processed    BOOLEAN NOT NULL DEFAULT false,
	crawled_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (account_id, content_hash)
);

CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	document_id TEXT NOT NULL REFERENCES source_documents(id),
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	role        TEXT NOT NULL DEFAULT '',
	attributes  JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	document_id TEXT,
	severity    TEXT NOT NULL,
	category    TEXT NOT NULL,
	summary     TEXT NOT NULL,
	detail      JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signal_actions (
	id          TEXT PRIMARY KEY,
	signal_id   TEXT NOT NULL REFERENCES signals(id),
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS opportunities (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'open',
	stage      TEXT NOT NULL DEFAULT '',
	amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interactions (
	id               TEXT PRIMARY KEY,
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	channel          TEXT NOT NULL,
	subject          TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	occurred_at      TIMESTAMPTZ NOT NULL,
	next_step        TEXT NOT NULL DEFAULT '',
	next_step_due_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	name         TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	seniority    TEXT NOT NULL DEFAULT '',
	role_in_deal TEXT NOT NULL DEFAULT '',
	is_primary   BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS rate_limit_windows (
	key          TEXT NOT NULL,
	window_start BIGINT NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0,
	window_ms    BIGINT NOT NULL,
	PRIMARY KEY (key, window_start)
);

CREATE INDEX IF NOT EXISTS idx_documents_account_processed ON source_documents(account_id, processed);
CREATE INDEX IF NOT EXISTS idx_signals_account_created ON signals(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_signal_actions_account_created ON signal_actions(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_account ON opportunities(account_id);
CREATE INDEX IF NOT EXISTS idx_interactions_account ON interactions(account_id);
CREATE INDEX IF NOT EXISTS idx_contacts_account ON contacts(account_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Accounts ---

func (s *PostgresStore) CreateAccount(ctx context.Context, a model.Account) (*model.Account, error) {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, slug, name, location, website, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Slug, a.Name, a.Location, a.Website, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert account %s", a.Slug)
	}
	return &a, nil
}

func (s *PostgresStore) GetAccountBySlug(ctx context.Context, slug string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, location, website, created_at FROM accounts WHERE slug = $1`,
		slug,
	)
	var a model.Account
	err := row.Scan(&a.ID, &a.Slug, &a.Name, &a.Location, &a.Website, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get account %s", slug)
	}
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, slug, name, location, website, created_at FROM accounts ORDER BY name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.Location, &a.Website, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan account")
		}
		accounts = append(accounts, a)
	}
	return accounts, eris.Wrap(rows.Err(), "postgres: list accounts iterate")
}

// --- Source documents ---

func (s *PostgresStore) InsertDocument(ctx context.Context, d model.SourceDocument) (*model.SourceDocument, error) {
	d.ID = uuid.New().String()
	if d.CrawledAt.IsZero() {
		d.CrawledAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_documents (id, account_id, url, title, kind, content_hash, content, processed, crawled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		d.ID, d.AccountID, d.URL, d.Title, string(d.Kind), d.ContentHash, d.Content, d.CrawledAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert document %s", d.URL)
	}
	d.Processed = false
	return &d, nil
}

func (s *PostgresStore) HasDocumentWithHash(ctx context.Context, accountID, hash string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM source_documents WHERE account_id = $1 AND content_hash = $2`,
		accountID, hash,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "postgres: check document hash")
	}
	return n > 0, nil
}

func (s *PostgresStore) ListUnprocessedDocuments(ctx context.Context, accountID string, limit int) ([]model.SourceDocument, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, url, title, kind, content_hash, content, processed, crawled_at
		 FROM source_documents WHERE account_id = $1 AND processed = false
		 ORDER BY crawled_at ASC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed documents")
	}
	defer rows.Close()

	var docs []model.SourceDocument
	for rows.Next() {
		var d model.SourceDocument
		var kind string
		if err := rows.Scan(&d.ID, &d.AccountID, &d.URL, &d.Title, &kind, &d.ContentHash, &d.Content, &d.Processed, &d.CrawledAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		d.Kind = model.DocumentKind(kind)
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list unprocessed iterate")
}

func (s *PostgresStore) CountRecentDocuments(ctx context.Context, accountID string, kind model.DocumentKind, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM source_documents WHERE account_id = $1 AND kind = $2 AND crawled_at >= $3`,
		accountID, string(kind), since,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count recent documents")
	}
	return n, nil
}

func (s *PostgresStore) MarkDocumentProcessed(ctx context.Context, docID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE source_documents SET processed = true WHERE id = $1 AND processed = false`,
		docID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %s", docID)
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if scanErr := s.pool.QueryRow(ctx,
			`SELECT COUNT(1) FROM source_documents WHERE id = $1`, docID,
		).Scan(&exists); scanErr == nil && exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// --- Extracted facts ---

var entityColumns = []string{"id", "account_id", "document_id", "name", "type", "role", "attributes", "created_at"}

func (s *PostgresStore) InsertEntities(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal entity attributes %s", e.Name)
		}
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, e.AccountID, e.DocumentID, e.Name, e.Type, e.Role, string(attrs), now})
	}

	if _, err := db.CopyInto(ctx, s.pool, "entities", entityColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: batch insert entities")
	}
	return nil
}

var signalColumns = []string{"id", "account_id", "document_id", "severity", "category", "summary", "detail", "created_at"}

func (s *PostgresStore) InsertSignals(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(signals))
	for _, sig := range signals {
		detail, err := json.Marshal(sig.Detail)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal signal detail")
		}
		id := sig.ID
		if id == "" {
			id = uuid.New().String()
		}
		var docID any
		if sig.DocumentID != "" {
			docID = sig.DocumentID
		}
		rows = append(rows, []any{id, sig.AccountID, docID, string(sig.Severity), string(sig.Category), sig.Summary, string(detail), now})
	}

	if _, err := db.CopyInto(ctx, s.pool, "signals", signalColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: batch insert signals")
	}
	return nil
}

func (s *PostgresStore) ListSignals(ctx context.Context, accountID string, since time.Time) ([]model.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, COALESCE(document_id, ''), severity, category, summary, detail, created_at
		 FROM signals WHERE account_id = $1 AND created_at >= $2 ORDER BY created_at DESC`,
		accountID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var severity, category string
		var detail []byte
		if err := rows.Scan(&sig.ID, &sig.AccountID, &sig.DocumentID, &severity, &category, &sig.Summary, &detail, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		sig.Severity = model.SignalSeverity(severity)
		sig.Category = model.SignalCategory(category)
		if err := json.Unmarshal(detail, &sig.Detail); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal signal detail")
		}
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "postgres: list signals iterate")
}

// --- Signal actions ---

func (s *PostgresStore) InsertSignalAction(ctx context.Context, a model.SignalAction) (*model.SignalAction, error) {
	a.ID = uuid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signal_actions (id, signal_id, account_id, category, description, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.SignalID, a.AccountID, a.Category, a.Description, a.Confidence, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert signal action")
	}
	return &a, nil
}

func (s *PostgresStore) ListSignalActions(ctx context.Context, accountID string, since time.Time) ([]model.SignalAction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, signal_id, account_id, category, description, confidence, created_at
		 FROM signal_actions WHERE account_id = $1 AND created_at >= $2 ORDER BY created_at DESC`,
		accountID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signal actions")
	}
	defer rows.Close()

	var actions []model.SignalAction
	for rows.Next() {
		var a model.SignalAction
		if err := rows.Scan(&a.ID, &a.SignalID, &a.AccountID, &a.Category, &a.Description, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal action")
		}
		actions = append(actions, a)
	}
	return actions, eris.Wrap(rows.Err(), "postgres: list signal actions iterate")
}

// --- CRM facts ---

func (s *PostgresStore) InsertOpportunity(ctx context.Context, o model.Opportunity) (*model.Opportunity, error) {
	o.ID = uuid.New().String()
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO opportunities (id, account_id, name, status, stage, amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.AccountID, o.Name, string(o.Status), o.Stage, o.Amount, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert opportunity")
	}
	return &o, nil
}

func (s *PostgresStore) ListOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, name, status, stage, amount, created_at, updated_at
		 FROM opportunities WHERE account_id = $1 ORDER BY updated_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		var status string
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Name, &status, &o.Stage, &o.Amount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		o.Status = model.OpportunityStatus(status)
		opps = append(opps, o)
	}
	return opps, eris.Wrap(rows.Err(), "postgres: list opportunities iterate")
}

func (s *PostgresStore) InsertInteraction(ctx context.Context, i model.Interaction) (*model.Interaction, error) {
	i.ID = uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interactions (id, account_id, channel, subject, summary, occurred_at, next_step, next_step_due_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.AccountID, i.Channel, i.Subject, i.Summary, i.OccurredAt, i.NextStep, i.NextStepDueAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert interaction")
	}
	return &i, nil
}

func (s *PostgresStore) ListInteractions(ctx context.Context, accountID string) ([]model.Interaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, channel, subject, summary, occurred_at, next_step, next_step_due_at
		 FROM interactions WHERE account_id = $1 ORDER BY occurred_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list interactions")
	}
	defer rows.Close()

	var interactions []model.Interaction
	for rows.Next() {
		var i model.Interaction
		var due *time.Time
		if err := rows.Scan(&i.ID, &i.AccountID, &i.Channel, &i.Subject, &i.Summary, &i.OccurredAt, &i.NextStep, &due); err != nil {
			return nil, eris.Wrap(err, "postgres: scan interaction")
		}
		i.NextStepDueAt = due
		interactions = append(interactions, i)
	}
	return interactions, eris.Wrap(rows.Err(), "postgres: list interactions iterate")
}

func (s *PostgresStore) InsertContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	c.ID = uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, account_id, name, title, seniority, role_in_deal, is_primary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.AccountID, c.Name, c.Title, c.Seniority, c.RoleInDeal, c.IsPrimary,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert contact")
	}
	return &c, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, name, title, seniority, role_in_deal, is_primary
		 FROM contacts WHERE account_id = $1 ORDER BY name ASC`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Title, &c.Seniority, &c.RoleInDeal, &c.IsPrimary); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

// --- Rate limit windows ---

func (s *PostgresStore) GetRateWindow(ctx context.Context, key string, windowStart int64) (*model.RateLimitWindow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, window_start, count, window_ms FROM rate_limit_windows WHERE key = $1 AND window_start = $2`,
		key, windowStart,
	)
	var w model.RateLimitWindow
	err := row.Scan(&w.Key, &w.WindowStart, &w.Count, &w.WindowMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get rate window %s", key)
	}
	return &w, nil
}

func (s *PostgresStore) InsertRateWindow(ctx context.Context, w model.RateLimitWindow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_limit_windows (key, window_start, count, window_ms) VALUES ($1, $2, $3, $4)`,
		w.Key, w.WindowStart, w.Count, w.WindowMs,
	)
	return eris.Wrapf(err, "postgres: insert rate window %s", w.Key)
}

func (s *PostgresStore) IncrementRateWindow(ctx context.Context, key string, windowStart int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE rate_limit_windows SET count = count + 1 WHERE key = $1 AND window_start = $2`,
		key, windowStart,
	)
	return eris.Wrapf(err, "postgres: increment rate window %s", key)
}
