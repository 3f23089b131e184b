// Package model defines the core domain types shared across the
// ingestion pipeline, the scoring engines, and the store.
package model

import "time"

// Account is an organization being tracked. Accounts are created by an
// administrative action and are effectively immutable afterwards.
type Account struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentKind distinguishes where a crawled page came from.
type DocumentKind string

const (
	DocumentKindWebsite DocumentKind = "website"
	DocumentKindNews    DocumentKind = "news"
)

// SourceDocument is one crawled page for an account. Content never
// changes after creation; Processed flips false to true exactly once.
type SourceDocument struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"account_id"`
	URL         string       `json:"url"`
	Title       string       `json:"title,omitempty"`
	Kind        DocumentKind `json:"kind"`
	ContentHash string       `json:"content_hash"`
	Content     string       `json:"content"`
	Processed   bool         `json:"processed"`
	CrawledAt   time.Time    `json:"crawled_at"`
}
