package scoring

import (
	"fmt"
	"time"

	"github.com/sells-group/account-intel/internal/model"
)

// ComputeTarget scores one account's targeting priority. Unbounded
// upward but practically small; each contributing rule appends a
// reason.
func ComputeTarget(account *model.Account, facts Facts, now time.Time) model.TargetScore {
	score := 0
	var reasons []string

	active := 0
	for _, o := range facts.Opportunities {
		if o.Status.Active() {
			active++
		}
	}
	if active > 0 {
		counted := min(3, active)
		score += counted * 3
		reasons = append(reasons, fmt.Sprintf("%d active opportunity(ies) (+%d)", counted, counted*3))
	}

	overdue, upcoming := false, false
	weekOut := now.AddDate(0, 0, 7)
	for _, i := range facts.Interactions {
		if i.NextStepDueAt == nil {
			continue
		}
		if i.NextStepDueAt.Before(now) {
			overdue = true
		} else if !i.NextStepDueAt.After(weekOut) {
			upcoming = true
		}
	}
	if overdue {
		score += 2
		reasons = append(reasons, "overdue next step (+2)")
	}
	if upcoming {
		score++
		reasons = append(reasons, "next step due within 7 days (+1)")
	}

	if anyInteractionSince(facts.Interactions, now.AddDate(0, 0, -30)) {
		score++
		reasons = append(reasons, "interaction within the last 30 days (+1)")
	}

	weekAgo := now.AddDate(0, 0, -7)
	for _, s := range facts.Signals {
		if s.CreatedAt.After(weekAgo) {
			score += 2
			reasons = append(reasons, "signal within the last 7 days (+2)")
			break
		}
	}

	if facts.NewsDocsLast7 > 0 {
		score++
		reasons = append(reasons, "news coverage within the last 7 days (+1)")
	}

	return model.TargetScore{
		AccountID:   account.ID,
		AccountSlug: account.Slug,
		AccountName: account.Name,
		Score:       score,
		Band:        targetBand(score),
		Reasons:     reasons,
	}
}

func targetBand(score int) model.TargetBand {
	switch {
	case score >= 7:
		return model.TargetHot
	case score >= 3:
		return model.TargetWarm
	default:
		return model.TargetCold
	}
}
