package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/account-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS source_documents (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	url          TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL DEFAULT 'website',
	content_hash TEXT NOT NULL,
	content      TEXT NOT NULL,
	processed    INTEGER NOT NULL DEFAULT 0,
	crawled_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (account_id, content_hash)
);

CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	document_id TEXT NOT NULL REFERENCES source_documents(id),
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	role        TEXT NOT NULL DEFAULT '',
	attributes  TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	document_id TEXT,
	severity    TEXT NOT NULL,
	category    TEXT NOT NULL,
	summary     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signal_actions (
	id          TEXT PRIMARY KEY,
	signal_id   TEXT NOT NULL REFERENCES signals(id),
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS opportunities (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'open',
	stage      TEXT NOT NULL DEFAULT '',
	amount     REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS interactions (
	id               TEXT PRIMARY KEY,
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	channel          TEXT NOT NULL,
	subject          TEXT NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	occurred_at      DATETIME NOT NULL,
	next_step        TEXT NOT NULL DEFAULT '',
	next_step_due_at DATETIME
);

CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL REFERENCES accounts(id),
	name         TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	seniority    TEXT NOT NULL DEFAULT '',
	role_in_deal TEXT NOT NULL DEFAULT '',
	is_primary   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rate_limit_windows (
	key          TEXT NOT NULL,
	window_start INTEGER NOT NULL,
	count        INTEGER NOT NULL DEFAULT 0,
	window_ms    INTEGER NOT NULL,
	PRIMARY KEY (key, window_start)
);

CREATE INDEX IF NOT EXISTS idx_documents_account_processed ON source_documents(account_id, processed);
CREATE INDEX IF NOT EXISTS idx_signals_account_created ON signals(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_signal_actions_account_created ON signal_actions(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_opportunities_account ON opportunities(account_id);
CREATE INDEX IF NOT EXISTS idx_interactions_account ON interactions(account_id);
CREATE INDEX IF NOT EXISTS idx_contacts_account ON contacts(account_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Accounts ---

func (s *SQLiteStore) CreateAccount(ctx context.Context, a model.Account) (*model.Account, error) {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, slug, name, location, website, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Slug, a.Name, a.Location, a.Website, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert account %s", a.Slug)
	}
	return &a, nil
}

func (s *SQLiteStore) GetAccountBySlug(ctx context.Context, slug string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, location, website, created_at FROM accounts WHERE slug = ?`,
		slug,
	)
	var a model.Account
	err := row.Scan(&a.ID, &a.Slug, &a.Name, &a.Location, &a.Website, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get account %s", slug)
	}
	return &a, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, name, location, website, created_at FROM accounts ORDER BY name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list accounts")
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.Location, &a.Website, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account")
		}
		accounts = append(accounts, a)
	}
	return accounts, eris.Wrap(rows.Err(), "sqlite: list accounts iterate")
}

// --- Source documents ---

func (s *SQLiteStore) InsertDocument(ctx context.Context, d model.SourceDocument) (*model.SourceDocument, error) {
	d.ID = uuid.New().String()
	if d.CrawledAt.IsZero() {
		d.CrawledAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_documents (id, account_id, url, title, kind, content_hash, content, processed, crawled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		d.ID, d.AccountID, d.URL, d.Title, string(d.Kind), d.ContentHash, d.Content, d.CrawledAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert document %s", d.URL)
	}
	d.Processed = false
	return &d, nil
}

func (s *SQLiteStore) HasDocumentWithHash(ctx context.Context, accountID, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM source_documents WHERE account_id = ? AND content_hash = ?`,
		accountID, hash,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check document hash")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListUnprocessedDocuments(ctx context.Context, accountID string, limit int) ([]model.SourceDocument, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, url, title, kind, content_hash, content, processed, crawled_at
		 FROM source_documents WHERE account_id = ? AND processed = 0
		 ORDER BY crawled_at ASC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed documents")
	}
	defer rows.Close()

	var docs []model.SourceDocument
	for rows.Next() {
		var d model.SourceDocument
		var kind string
		if err := rows.Scan(&d.ID, &d.AccountID, &d.URL, &d.Title, &kind, &d.ContentHash, &d.Content, &d.Processed, &d.CrawledAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		d.Kind = model.DocumentKind(kind)
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list unprocessed iterate")
}

func (s *SQLiteStore) CountRecentDocuments(ctx context.Context, accountID string, kind model.DocumentKind, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM source_documents WHERE account_id = ? AND kind = ? AND crawled_at >= ?`,
		accountID, string(kind), since,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count recent documents")
	}
	return n, nil
}

func (s *SQLiteStore) MarkDocumentProcessed(ctx context.Context, docID string) error {
	// processed flips one way only; an already-processed row is left alone.
	res, err := s.db.ExecContext(ctx,
		`UPDATE source_documents SET processed = 1 WHERE id = ? AND processed = 0`,
		docID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %s", docID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Absent row is a caller bug; already-processed is fine.
		var exists int
		if scanErr := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM source_documents WHERE id = ?`, docID,
		).Scan(&exists); scanErr == nil && exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// --- Extracted facts ---

func (s *SQLiteStore) InsertEntities(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var sb strings.Builder
	sb.WriteString(`INSERT INTO entities (id, account_id, document_id, name, type, role, attributes, created_at) VALUES `)
	args := make([]any, 0, len(entities)*8)
	for i, e := range entities {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal entity attributes %s", e.Name)
		}
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		args = append(args, id, e.AccountID, e.DocumentID, e.Name, e.Type, e.Role, string(attrs), now)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return eris.Wrap(err, "sqlite: batch insert entities")
	}
	return nil
}

func (s *SQLiteStore) InsertSignals(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var sb strings.Builder
	sb.WriteString(`INSERT INTO signals (id, account_id, document_id, severity, category, summary, detail, created_at) VALUES `)
	args := make([]any, 0, len(signals)*8)
	for i, sig := range signals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		detail, err := json.Marshal(sig.Detail)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal signal detail")
		}
		id := sig.ID
		if id == "" {
			id = uuid.New().String()
		}
		args = append(args, id, sig.AccountID, nullable(sig.DocumentID), string(sig.Severity), string(sig.Category), sig.Summary, string(detail), now)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return eris.Wrap(err, "sqlite: batch insert signals")
	}
	return nil
}

func (s *SQLiteStore) ListSignals(ctx context.Context, accountID string, since time.Time) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, COALESCE(document_id, ''), severity, category, summary, detail, created_at
		 FROM signals WHERE account_id = ? AND created_at >= ? ORDER BY created_at DESC`,
		accountID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var severity, category, detail string
		if err := rows.Scan(&sig.ID, &sig.AccountID, &sig.DocumentID, &severity, &category, &sig.Summary, &detail, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.Severity = model.SignalSeverity(severity)
		sig.Category = model.SignalCategory(category)
		if err := json.Unmarshal([]byte(detail), &sig.Detail); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal signal detail")
		}
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "sqlite: list signals iterate")
}

// --- Signal actions ---

func (s *SQLiteStore) InsertSignalAction(ctx context.Context, a model.SignalAction) (*model.SignalAction, error) {
	a.ID = uuid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signal_actions (id, signal_id, account_id, category, description, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SignalID, a.AccountID, a.Category, a.Description, a.Confidence, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert signal action")
	}
	return &a, nil
}

func (s *SQLiteStore) ListSignalActions(ctx context.Context, accountID string, since time.Time) ([]model.SignalAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, signal_id, account_id, category, description, confidence, created_at
		 FROM signal_actions WHERE account_id = ? AND created_at >= ? ORDER BY created_at DESC`,
		accountID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signal actions")
	}
	defer rows.Close()

	var actions []model.SignalAction
	for rows.Next() {
		var a model.SignalAction
		if err := rows.Scan(&a.ID, &a.SignalID, &a.AccountID, &a.Category, &a.Description, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal action")
		}
		actions = append(actions, a)
	}
	return actions, eris.Wrap(rows.Err(), "sqlite: list signal actions iterate")
}

// --- CRM facts ---

func (s *SQLiteStore) InsertOpportunity(ctx context.Context, o model.Opportunity) (*model.Opportunity, error) {
	o.ID = uuid.New().String()
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunities (id, account_id, name, status, stage, amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.AccountID, o.Name, string(o.Status), o.Stage, o.Amount, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert opportunity")
	}
	return &o, nil
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, accountID string) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, name, status, stage, amount, created_at, updated_at
		 FROM opportunities WHERE account_id = ? ORDER BY updated_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opportunities")
	}
	defer rows.Close()

	var opps []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		var status string
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Name, &status, &o.Stage, &o.Amount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		o.Status = model.OpportunityStatus(status)
		opps = append(opps, o)
	}
	return opps, eris.Wrap(rows.Err(), "sqlite: list opportunities iterate")
}

func (s *SQLiteStore) InsertInteraction(ctx context.Context, i model.Interaction) (*model.Interaction, error) {
	i.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, account_id, channel, subject, summary, occurred_at, next_step, next_step_due_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.AccountID, i.Channel, i.Subject, i.Summary, i.OccurredAt, i.NextStep, i.NextStepDueAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert interaction")
	}
	return &i, nil
}

func (s *SQLiteStore) ListInteractions(ctx context.Context, accountID string) ([]model.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, channel, subject, summary, occurred_at, next_step, next_step_due_at
		 FROM interactions WHERE account_id = ? ORDER BY occurred_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list interactions")
	}
	defer rows.Close()

	var interactions []model.Interaction
	for rows.Next() {
		var i model.Interaction
		var due sql.NullTime
		if err := rows.Scan(&i.ID, &i.AccountID, &i.Channel, &i.Subject, &i.Summary, &i.OccurredAt, &i.NextStep, &due); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan interaction")
		}
		if due.Valid {
			t := due.Time
			i.NextStepDueAt = &t
		}
		interactions = append(interactions, i)
	}
	return interactions, eris.Wrap(rows.Err(), "sqlite: list interactions iterate")
}

func (s *SQLiteStore) InsertContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	c.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, account_id, name, title, seniority, role_in_deal, is_primary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Name, c.Title, c.Seniority, c.RoleInDeal, c.IsPrimary,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert contact")
	}
	return &c, nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, name, title, seniority, role_in_deal, is_primary
		 FROM contacts WHERE account_id = ? ORDER BY name ASC`,
		accountID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Title, &c.Seniority, &c.RoleInDeal, &c.IsPrimary); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

// --- Rate limit windows ---

func (s *SQLiteStore) GetRateWindow(ctx context.Context, key string, windowStart int64) (*model.RateLimitWindow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, window_start, count, window_ms FROM rate_limit_windows WHERE key = ? AND window_start = ?`,
		key, windowStart,
	)
	var w model.RateLimitWindow
	err := row.Scan(&w.Key, &w.WindowStart, &w.Count, &w.WindowMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get rate window %s", key)
	}
	return &w, nil
}

func (s *SQLiteStore) InsertRateWindow(ctx context.Context, w model.RateLimitWindow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_windows (key, window_start, count, window_ms) VALUES (?, ?, ?, ?)`,
		w.Key, w.WindowStart, w.Count, w.WindowMs,
	)
	return eris.Wrapf(err, "sqlite: insert rate window %s", w.Key)
}

func (s *SQLiteStore) IncrementRateWindow(ctx context.Context, key string, windowStart int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rate_limit_windows SET count = count + 1 WHERE key = ? AND window_start = ?`,
		key, windowStart,
	)
	return eris.Wrapf(err, "sqlite: increment rate window %s", key)
}

// nullable maps "" to NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
