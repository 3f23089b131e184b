// Package scoring derives explainable account scores from accumulated
// facts: a banded health score, a targeting priority, and a merged
// daily-focus feed. All computations are pure functions over facts
// loaded by the Service; nothing here writes to the store.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/account-intel/internal/model"
)

// Facts is the read-only bundle of account facts the engines score.
type Facts struct {
	Interactions  []model.Interaction
	Opportunities []model.Opportunity
	Signals       []model.Signal
	SignalActions []model.SignalAction
	Contacts      []model.Contact
	NewsDocsLast7 int
}

// ComputeHealth scores one account's health from its facts. Bounded
// sub-scores combine into a 0-100 composite; every point of movement
// appends a matching reason string.
func ComputeHealth(account *model.Account, facts Facts, now time.Time) model.HealthScore {
	var c model.HealthComponents
	var reasons []string

	c.Engagement, reasons = engagementScore(facts, now, reasons)
	c.Opportunity, reasons = opportunityScore(facts, now, reasons)
	c.Signal, reasons = signalScore(facts, now, reasons)
	c.Risk, reasons = riskScore(facts, now, reasons)

	score := c.Engagement + c.Opportunity + c.Signal - c.Risk
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return model.HealthScore{
		AccountID:   account.ID,
		AccountSlug: account.Slug,
		AccountName: account.Name,
		Score:       score,
		Band:        healthBand(score),
		Components:  c,
		Reasons:     reasons,
	}
}

func healthBand(score int) model.HealthBand {
	switch {
	case score >= 70:
		return model.BandStrong
	case score >= 40:
		return model.BandWatch
	default:
		return model.BandAtRisk
	}
}

// engagementScore awards up to 30 points for recent interactions and
// signal actions.
func engagementScore(facts Facts, now time.Time, reasons []string) (int, []string) {
	score := 0

	switch {
	case anyInteractionSince(facts.Interactions, now.AddDate(0, 0, -14)):
		score += 20
		reasons = append(reasons, "interaction within the last 14 days (+20)")
	case anyInteractionSince(facts.Interactions, now.AddDate(0, 0, -30)):
		score += 10
		reasons = append(reasons, "interaction within the last 30 days (+10)")
	}

	switch {
	case anyActionSince(facts.SignalActions, now.AddDate(0, 0, -14)):
		score += 10
		reasons = append(reasons, "signal action within the last 14 days (+10)")
	case anyActionSince(facts.SignalActions, now.AddDate(0, 0, -30)):
		score += 5
		reasons = append(reasons, "signal action within the last 30 days (+5)")
	}

	if score > 30 {
		score = 30
	}
	return score, reasons
}

// opportunityScore awards up to 30 points for open pipeline and recent
// movement.
func opportunityScore(facts Facts, now time.Time, reasons []string) (int, []string) {
	score := 0

	active := 0
	touched := false
	cutoff := now.AddDate(0, 0, -30)
	for _, o := range facts.Opportunities {
		if o.Status.Active() {
			active++
		}
		if o.CreatedAt.After(cutoff) || o.UpdatedAt.After(cutoff) {
			touched = true
		}
	}

	if active > 0 {
		counted := min(3, active)
		score += counted * 8
		reasons = append(reasons, fmt.Sprintf("%d active opportunity(ies) (+%d)", counted, counted*8))
	}
	if touched {
		score += 6
		reasons = append(reasons, "opportunity movement within the last 30 days (+6)")
	}

	if score > 30 {
		score = 30
	}
	return score, reasons
}

// signalScore awards up to 20 points for recent signals by severity.
func signalScore(facts Facts, now time.Time, reasons []string) (int, []string) {
	score := 0

	var high, medium, low int
	cutoff := now.AddDate(0, 0, -30)
	for _, s := range facts.Signals {
		if !s.CreatedAt.After(cutoff) {
			continue
		}
		switch s.Severity {
		case model.SeverityHigh:
			high++
		case model.SeverityMedium:
			medium++
		case model.SeverityLow:
			low++
		}
	}

	if high > 0 {
		counted := min(2, high)
		score += counted * 5
		reasons = append(reasons, fmt.Sprintf("%d high-severity signal(s) in the last 30 days (+%d)", counted, counted*5))
	}
	if medium > 0 {
		counted := min(2, medium)
		score += counted * 3
		reasons = append(reasons, fmt.Sprintf("%d medium-severity signal(s) in the last 30 days (+%d)", counted, counted*3))
	}
	if low > 0 {
		score += 2
		reasons = append(reasons, "low-severity signal in the last 30 days (+2)")
	}

	if score > 20 {
		score = 20
	}
	return score, reasons
}

// riskScore accumulates up to 20 points of deductions.
func riskScore(facts Facts, now time.Time, reasons []string) (int, []string) {
	score := 0

	if len(facts.Interactions) > 0 && !anyInteractionSince(facts.Interactions, now.AddDate(0, 0, -60)) {
		score += 10
		reasons = append(reasons, "no interaction in the last 60 days (-10)")
	}

	hasActive := false
	for _, o := range facts.Opportunities {
		if o.Status.Active() {
			hasActive = true
			break
		}
	}
	if !hasActive {
		score += 5
		reasons = append(reasons, "no active opportunity (-5)")
	}

	if len(facts.Contacts) > 0 && !hasSeniorContact(facts.Contacts) {
		score += 5
		reasons = append(reasons, "no executive or champion contact (-5)")
	}

	if score > 20 {
		score = 20
	}
	return score, reasons
}

func anyInteractionSince(interactions []model.Interaction, cutoff time.Time) bool {
	for _, i := range interactions {
		if i.OccurredAt.After(cutoff) {
			return true
		}
	}
	return false
}

func anyActionSince(actions []model.SignalAction, cutoff time.Time) bool {
	for _, a := range actions {
		if a.CreatedAt.After(cutoff) {
			return true
		}
	}
	return false
}

func hasSeniorContact(contacts []model.Contact) bool {
	for _, c := range contacts {
		if strings.EqualFold(c.Seniority, "executive") {
			return true
		}
		switch strings.ToLower(c.RoleInDeal) {
		case "champion", "decision_maker", "decision maker":
			return true
		}
	}
	return false
}
