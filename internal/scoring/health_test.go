package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testAccount() *model.Account {
	return &model.Account{ID: "acct-1", Slug: "acme", Name: "Acme Corp"}
}

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func interactionAt(occurred time.Time) model.Interaction {
	return model.Interaction{ID: "i1", AccountID: "acct-1", Channel: "email", Subject: "check-in", OccurredAt: occurred}
}

func signalAt(severity model.SignalSeverity, created time.Time) model.Signal {
	return model.Signal{ID: "s1", AccountID: "acct-1", Severity: severity, Category: model.CategoryExpansion, Summary: "x", CreatedAt: created}
}

func openOpportunity(updated time.Time) model.Opportunity {
	return model.Opportunity{ID: "o1", AccountID: "acct-1", Name: "Deal", Status: model.OpportunityOpen, CreatedAt: updated, UpdatedAt: updated}
}

func TestComputeHealth_EmptyFacts(t *testing.T) {
	score := ComputeHealth(testAccount(), Facts{}, testNow)

	// Only the no-active-opportunity deduction fires.
	assert.Equal(t, 0, score.Components.Engagement)
	assert.Equal(t, 0, score.Components.Opportunity)
	assert.Equal(t, 0, score.Components.Signal)
	assert.Equal(t, 5, score.Components.Risk)
	assert.Equal(t, 0, score.Score)
	assert.Equal(t, model.BandAtRisk, score.Band)
	require.Len(t, score.Reasons, 1)
	assert.Contains(t, score.Reasons[0], "no active opportunity")
}

func TestComputeHealth_SubScoreBounds(t *testing.T) {
	// Pile on facts well past every cap.
	facts := Facts{}
	for i := 0; i < 10; i++ {
		facts.Interactions = append(facts.Interactions, interactionAt(daysAgo(1)))
		facts.SignalActions = append(facts.SignalActions, model.SignalAction{ID: "a", SignalID: "s", AccountID: "acct-1", CreatedAt: daysAgo(1)})
		facts.Opportunities = append(facts.Opportunities, openOpportunity(daysAgo(1)))
		facts.Signals = append(facts.Signals,
			signalAt(model.SeverityHigh, daysAgo(1)),
			signalAt(model.SeverityMedium, daysAgo(1)),
			signalAt(model.SeverityLow, daysAgo(1)))
	}

	score := ComputeHealth(testAccount(), facts, testNow)

	assert.LessOrEqual(t, score.Components.Engagement, 30)
	assert.LessOrEqual(t, score.Components.Opportunity, 30)
	assert.LessOrEqual(t, score.Components.Signal, 20)
	assert.LessOrEqual(t, score.Components.Risk, 20)
	assert.GreaterOrEqual(t, score.Score, 0)
	assert.LessOrEqual(t, score.Score, 100)
	assert.Equal(t, 30, score.Components.Engagement)
	assert.Equal(t, 30, score.Components.Opportunity)
	assert.Equal(t, 18, score.Components.Signal) // 2×5 + 2×3 + 2
	assert.Equal(t, 0, score.Components.Risk)
}

func TestComputeHealth_BandBoundaries(t *testing.T) {
	assert.Equal(t, model.BandStrong, healthBand(70))
	assert.Equal(t, model.BandWatch, healthBand(69))
	assert.Equal(t, model.BandWatch, healthBand(40))
	assert.Equal(t, model.BandAtRisk, healthBand(39))
	assert.Equal(t, model.BandStrong, healthBand(100))
	assert.Equal(t, model.BandAtRisk, healthBand(0))
}

func TestComputeHealth_EngagementWindows(t *testing.T) {
	recent := ComputeHealth(testAccount(), Facts{Interactions: []model.Interaction{interactionAt(daysAgo(7))}}, testNow)
	assert.Equal(t, 20, recent.Components.Engagement)

	older := ComputeHealth(testAccount(), Facts{Interactions: []model.Interaction{interactionAt(daysAgo(21))}}, testNow)
	assert.Equal(t, 10, older.Components.Engagement)

	stale := ComputeHealth(testAccount(), Facts{Interactions: []model.Interaction{interactionAt(daysAgo(45))}}, testNow)
	assert.Equal(t, 0, stale.Components.Engagement)
}

func TestComputeHealth_RiskDeductions(t *testing.T) {
	// Historical interactions but nothing in 60 days, no pipeline, and
	// contacts with no senior roles: all three deductions fire.
	facts := Facts{
		Interactions: []model.Interaction{interactionAt(daysAgo(90))},
		Contacts:     []model.Contact{{ID: "c1", AccountID: "acct-1", Name: "Pat", Seniority: "manager"}},
	}
	score := ComputeHealth(testAccount(), facts, testNow)
	assert.Equal(t, 20, score.Components.Risk)

	// An executive contact clears the contact deduction.
	facts.Contacts[0].Seniority = "executive"
	score = ComputeHealth(testAccount(), facts, testNow)
	assert.Equal(t, 15, score.Components.Risk)

	// A champion role clears it too.
	facts.Contacts[0].Seniority = "manager"
	facts.Contacts[0].RoleInDeal = "champion"
	score = ComputeHealth(testAccount(), facts, testNow)
	assert.Equal(t, 15, score.Components.Risk)

	// No contacts at all: the contact deduction never fires.
	facts.Contacts = nil
	score = ComputeHealth(testAccount(), facts, testNow)
	assert.Equal(t, 15, score.Components.Risk)
}

func TestComputeHealth_ReasonScoreCoupling(t *testing.T) {
	cases := []struct {
		name    string
		facts   Facts
		mention string
		fires   bool
	}{
		{"recent interaction fires", Facts{Interactions: []model.Interaction{interactionAt(daysAgo(3))}}, "14 days (+20)", true},
		{"stale interaction does not", Facts{Interactions: []model.Interaction{interactionAt(daysAgo(90))}}, "14 days (+20)", false},
		{"high signal fires", Facts{Signals: []model.Signal{signalAt(model.SeverityHigh, daysAgo(2))}}, "high-severity", true},
		{"old high signal does not", Facts{Signals: []model.Signal{signalAt(model.SeverityHigh, daysAgo(60))}}, "high-severity", false},
		{"open opportunity fires", Facts{Opportunities: []model.Opportunity{openOpportunity(daysAgo(2))}}, "active opportunity(ies)", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := ComputeHealth(testAccount(), tc.facts, testNow)
			found := false
			for _, r := range score.Reasons {
				if strings.Contains(r, tc.mention) {
					found = true
				}
			}
			assert.Equal(t, tc.fires, found, "reasons: %v", score.Reasons)
		})
	}
}

func TestComputeHealth_EveryComponentPointHasAReason(t *testing.T) {
	facts := Facts{
		Interactions:  []model.Interaction{interactionAt(daysAgo(5))},
		Opportunities: []model.Opportunity{openOpportunity(daysAgo(10))},
		Signals:       []model.Signal{signalAt(model.SeverityMedium, daysAgo(4))},
		SignalActions: []model.SignalAction{{ID: "a", SignalID: "s", AccountID: "acct-1", CreatedAt: daysAgo(5)}},
	}
	score := ComputeHealth(testAccount(), facts, testNow)

	// 20+10 engagement, 8+6 opportunity, 3 signal, 0 risk: 5 reasons.
	assert.Equal(t, 47, score.Score)
	assert.Len(t, score.Reasons, 5)
}
