package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
)

func TestBuildFocus_MergesThreeStreams(t *testing.T) {
	overdue := daysAgo(2)
	facts := Facts{
		Interactions: []model.Interaction{
			{ID: "i1", AccountID: "acct-1", Subject: "QBR follow-up", OccurredAt: daysAgo(10), NextStep: "Send proposal", NextStepDueAt: &overdue},
		},
		SignalActions: []model.SignalAction{
			{ID: "a1", SignalID: "s1", AccountID: "acct-1", Category: "funding", Description: "Revisit deal sizing", Confidence: 0.85, CreatedAt: daysAgo(1)},
		},
		Opportunities: []model.Opportunity{
			openOpportunity(daysAgo(3)),
		},
	}

	items := BuildFocus(testAccount(), facts, model.BandWatch, testNow)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, "acme", item.AccountSlug)
		assert.Equal(t, model.BandWatch, item.HealthBand)
	}
}

func TestBuildFocus_OverdueInteractionTitlePrefix(t *testing.T) {
	overdue := daysAgo(1)
	upcoming := testNow.AddDate(0, 0, 2)
	facts := Facts{Interactions: []model.Interaction{
		{ID: "i1", AccountID: "acct-1", OccurredAt: daysAgo(5), NextStep: "Call Jane", NextStepDueAt: &overdue},
		{ID: "i2", AccountID: "acct-1", OccurredAt: daysAgo(5), NextStep: "Demo prep", NextStepDueAt: &upcoming},
	}}

	items := BuildFocus(testAccount(), facts, model.BandStrong, testNow)
	require.Len(t, items, 2)
	SortFocus(items)
	assert.Equal(t, "Overdue: Call Jane", items[0].Title)
	assert.Equal(t, "Demo prep", items[1].Title)
}

func TestBuildFocus_SkipsInactiveAndStale(t *testing.T) {
	noDue := model.Interaction{ID: "i1", AccountID: "acct-1", OccurredAt: daysAgo(2), NextStep: "Vague plan"}
	facts := Facts{
		Interactions:  []model.Interaction{noDue},
		SignalActions: []model.SignalAction{{ID: "a1", SignalID: "s1", AccountID: "acct-1", CreatedAt: daysAgo(20)}},
		Opportunities: []model.Opportunity{
			{ID: "o1", AccountID: "acct-1", Status: model.OpportunityClosedWon, UpdatedAt: daysAgo(1)},
			openOpportunity(daysAgo(60)),
		},
	}

	items := BuildFocus(testAccount(), facts, model.BandWatch, testNow)
	assert.Empty(t, items)
}

// One overdue interaction, a signal action from yesterday, and an
// opportunity updated today must come out in exactly that order no
// matter how they went in.
func TestSortFocus_TypePriorityBeatsRecency(t *testing.T) {
	overdue := daysAgo(3)
	yesterday := daysAgo(1)
	today := testNow

	items := []model.FocusItem{
		{Type: model.FocusOpportunity, Title: "Deal", When: &today},
		{Type: model.FocusSignalAction, Title: "Follow up on funding", When: &yesterday},
		{Type: model.FocusInteraction, Title: "Overdue: Send proposal", When: &overdue},
	}

	SortFocus(items)
	assert.Equal(t, model.FocusInteraction, items[0].Type)
	assert.Equal(t, model.FocusSignalAction, items[1].Type)
	assert.Equal(t, model.FocusOpportunity, items[2].Type)
}

func TestSortFocus_WhenAscendingNilLast(t *testing.T) {
	early := daysAgo(5)
	late := daysAgo(1)

	items := []model.FocusItem{
		{Type: model.FocusOpportunity, Title: "no-when"},
		{Type: model.FocusOpportunity, Title: "late", When: &late},
		{Type: model.FocusOpportunity, Title: "early", When: &early},
	}

	SortFocus(items)
	assert.Equal(t, "early", items[0].Title)
	assert.Equal(t, "late", items[1].Title)
	assert.Equal(t, "no-when", items[2].Title)
}

func TestSortFocus_StableAcrossInsertionOrders(t *testing.T) {
	when := daysAgo(2)
	a := model.FocusItem{Type: model.FocusInteraction, Title: "A", When: &when}
	b := model.FocusItem{Type: model.FocusSignalAction, Title: "B", When: &when}
	c := model.FocusItem{Type: model.FocusOpportunity, Title: "C", When: &when}

	orders := [][]model.FocusItem{
		{a, b, c}, {c, b, a}, {b, c, a},
	}
	for _, items := range orders {
		sorted := make([]model.FocusItem, len(items))
		copy(sorted, items)
		SortFocus(sorted)
		assert.Equal(t, "A", sorted[0].Title)
		assert.Equal(t, "B", sorted[1].Title)
		assert.Equal(t, "C", sorted[2].Title)
	}
}
