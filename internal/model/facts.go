package model

import "time"

// Entity is a named thing found in a document: a person, facility,
// vendor, technology, or initiative. Created only by extraction and
// immutable thereafter.
type Entity struct {
	ID         string            `json:"id"`
	AccountID  string            `json:"account_id"`
	DocumentID string            `json:"document_id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Role       string            `json:"role,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SignalSeverity grades how notable a signal is.
type SignalSeverity string

const (
	SeverityLow    SignalSeverity = "low"
	SeverityMedium SignalSeverity = "medium"
	SeverityHigh   SignalSeverity = "high"
)

// SignalCategory is the fixed set of signal classifications.
type SignalCategory string

const (
	CategoryLeadershipChange SignalCategory = "leadership_change"
	CategoryExpansion        SignalCategory = "expansion"
	CategoryFunding          SignalCategory = "funding"
	CategoryHiring           SignalCategory = "hiring"
	CategoryTechnology       SignalCategory = "technology"
	CategoryRegulatory       SignalCategory = "regulatory"
	CategoryRisk             SignalCategory = "risk"
	CategoryAward            SignalCategory = "award"
	CategoryPartnership      SignalCategory = "partnership"
	CategoryOther            SignalCategory = "other"
)

// ValidSeverity reports whether s is one of the known severity levels.
func ValidSeverity(s SignalSeverity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ValidCategory reports whether c is one of the known signal categories.
func ValidCategory(c SignalCategory) bool {
	switch c {
	case CategoryLeadershipChange, CategoryExpansion, CategoryFunding,
		CategoryHiring, CategoryTechnology, CategoryRegulatory,
		CategoryRisk, CategoryAward, CategoryPartnership, CategoryOther:
		return true
	}
	return false
}

// Signal is a notable, dated observation extracted from a document.
// Created only by extraction; never mutated.
type Signal struct {
	ID         string            `json:"id"`
	AccountID  string            `json:"account_id"`
	DocumentID string            `json:"document_id,omitempty"`
	Severity   SignalSeverity    `json:"severity"`
	Category   SignalCategory    `json:"category"`
	Summary    string            `json:"summary"`
	Detail     map[string]string `json:"detail,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SignalAction is a recommended follow-up derived from a Signal.
type SignalAction struct {
	ID          string    `json:"id"`
	SignalID    string    `json:"signal_id"`
	AccountID   string    `json:"account_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// OpportunityStatus tracks the lifecycle of a sales opportunity.
type OpportunityStatus string

const (
	OpportunityOpen       OpportunityStatus = "open"
	OpportunityInProgress OpportunityStatus = "in_progress"
	OpportunityClosedWon  OpportunityStatus = "closed_won"
	OpportunityClosedLost OpportunityStatus = "closed_lost"
)

// Active reports whether the status counts as open or in progress.
func (s OpportunityStatus) Active() bool {
	return s == OpportunityOpen || s == OpportunityInProgress
}

// Opportunity is a sales/engagement opportunity. Mutated by other
// subsystems; read-only from the scoring engines' perspective.
type Opportunity struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id"`
	Name      string            `json:"name"`
	Status    OpportunityStatus `json:"status"`
	Stage     string            `json:"stage,omitempty"`
	Amount    float64           `json:"amount,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Interaction is a logged contact event with an account.
type Interaction struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	Channel       string     `json:"channel"`
	Subject       string     `json:"subject"`
	Summary       string     `json:"summary,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
	NextStep      string     `json:"next_step,omitempty"`
	NextStepDueAt *time.Time `json:"next_step_due_at,omitempty"`
}

// Contact is a person associated with an account.
type Contact struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	Seniority  string `json:"seniority,omitempty"`
	RoleInDeal string `json:"role_in_deal,omitempty"`
	IsPrimary  bool   `json:"is_primary"`
}

// RateLimitWindow is a (key, window) counter row. Created lazily on the
// first permitted call per key per window.
type RateLimitWindow struct {
	Key         string `json:"key"`
	WindowStart int64  `json:"window_start"` // unix milliseconds, epoch-aligned
	Count       int    `json:"count"`
	WindowMs    int64  `json:"window_ms"`
}
