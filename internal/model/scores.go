package model

import "time"

// HealthBand buckets a composite health score.
type HealthBand string

const (
	BandStrong HealthBand = "strong"
	BandWatch  HealthBand = "watch"
	BandAtRisk HealthBand = "at_risk"
)

// HealthComponents holds the bounded sub-scores behind a health score.
type HealthComponents struct {
	Engagement  int `json:"engagement"`  // 0-30
	Opportunity int `json:"opportunity"` // 0-30
	Signal      int `json:"signal"`      // 0-20
	Risk        int `json:"risk"`        // 0-20, subtracted
}

// HealthScore is a derived, never-persisted account health assessment.
// Every point of score movement has a matching entry in Reasons.
type HealthScore struct {
	AccountID   string           `json:"account_id"`
	AccountSlug string           `json:"account_slug"`
	AccountName string           `json:"account_name"`
	Score       int              `json:"score"` // 0-100
	Band        HealthBand       `json:"band"`
	Components  HealthComponents `json:"components"`
	Reasons     []string         `json:"reasons"`
}

// TargetBand buckets a targeting priority score.
type TargetBand string

const (
	TargetHot  TargetBand = "hot"
	TargetWarm TargetBand = "warm"
	TargetCold TargetBand = "cold"
)

// TargetScore is a derived per-account targeting priority.
type TargetScore struct {
	AccountID   string     `json:"account_id"`
	AccountSlug string     `json:"account_slug"`
	AccountName string     `json:"account_name"`
	Score       int        `json:"score"`
	Band        TargetBand `json:"band"`
	Reasons     []string   `json:"reasons"`
}

// FocusItemType identifies which stream a daily-focus item came from.
// Declaration order is the sort priority: interactions first.
type FocusItemType string

const (
	FocusInteraction  FocusItemType = "interaction"
	FocusSignalAction FocusItemType = "signal_action"
	FocusOpportunity  FocusItemType = "opportunity"
)

// FocusItem is one entry in the merged daily-focus feed.
type FocusItem struct {
	Type        FocusItemType `json:"type"`
	AccountID   string        `json:"account_id"`
	AccountSlug string        `json:"account_slug"`
	AccountName string        `json:"account_name"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	When        *time.Time    `json:"when,omitempty"`
	HealthBand  HealthBand    `json:"health_band,omitempty"`
}
