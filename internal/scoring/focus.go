package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/account-intel/internal/model"
)

// focusPriority orders the merged feed by item type. Lower sorts first.
var focusPriority = map[model.FocusItemType]int{
	model.FocusInteraction:  0,
	model.FocusSignalAction: 1,
	model.FocusOpportunity:  2,
}

// BuildFocus merges one account's overdue or upcoming interactions,
// recent signal actions, and recently touched active opportunities
// into typed focus items. Malformed rows are silently skipped.
func BuildFocus(account *model.Account, facts Facts, band model.HealthBand, now time.Time) []model.FocusItem {
	var items []model.FocusItem

	weekOut := now.AddDate(0, 0, 7)
	for _, i := range facts.Interactions {
		if i.NextStepDueAt == nil || i.NextStep == "" {
			continue
		}
		due := *i.NextStepDueAt
		if due.After(weekOut) {
			continue
		}
		title := i.NextStep
		if due.Before(now) {
			title = "Overdue: " + i.NextStep
		}
		when := due
		items = append(items, model.FocusItem{
			Type:        model.FocusInteraction,
			AccountID:   account.ID,
			AccountSlug: account.Slug,
			AccountName: account.Name,
			Title:       title,
			Description: i.Subject,
			When:        &when,
			HealthBand:  band,
		})
	}

	weekAgo := now.AddDate(0, 0, -7)
	for _, a := range facts.SignalActions {
		if a.SignalID == "" || !a.CreatedAt.After(weekAgo) {
			continue
		}
		when := a.CreatedAt
		items = append(items, model.FocusItem{
			Type:        model.FocusSignalAction,
			AccountID:   account.ID,
			AccountSlug: account.Slug,
			AccountName: account.Name,
			Title:       a.Description,
			Description: fmt.Sprintf("%s (confidence %.0f%%)", a.Category, a.Confidence*100),
			When:        &when,
			HealthBand:  band,
		})
	}

	monthAgo := now.AddDate(0, 0, -30)
	for _, o := range facts.Opportunities {
		if !o.Status.Active() || !o.UpdatedAt.After(monthAgo) {
			continue
		}
		item := model.FocusItem{
			Type:        model.FocusOpportunity,
			AccountID:   account.ID,
			AccountSlug: account.Slug,
			AccountName: account.Name,
			Title:       o.Name,
			Description: o.Stage,
			HealthBand:  band,
		}
		if !o.UpdatedAt.IsZero() {
			when := o.UpdatedAt
			item.When = &when
		}
		items = append(items, item)
	}

	return items
}

// SortFocus orders a merged feed by type priority, then When ascending
// with missing timestamps last. The sort is stable so equally ranked
// items keep their relative order.
func SortFocus(items []model.FocusItem) {
	sort.SliceStable(items, func(a, b int) bool {
		pa, pb := focusPriority[items[a].Type], focusPriority[items[b].Type]
		if pa != pb {
			return pa < pb
		}
		wa, wb := items[a].When, items[b].When
		switch {
		case wa == nil && wb == nil:
			return false
		case wa == nil:
			return false
		case wb == nil:
			return true
		default:
			return wa.Before(*wb)
		}
	})
}
