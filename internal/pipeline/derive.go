package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/model"
)

// actionTemplates maps signal categories to a recommended follow-up.
// Categories without an entry produce no action.
var actionTemplates = map[model.SignalCategory]string{
	model.CategoryLeadershipChange: "Reach out to the new leadership contact and refresh the org map",
	model.CategoryExpansion:        "Review the expansion for new facility or capacity needs",
	model.CategoryFunding:          "Revisit deal sizing now that new funding is available",
	model.CategoryHiring:           "Check hiring focus areas for alignment with our offering",
	model.CategoryRegulatory:       "Assess regulatory impact on the current engagement",
	model.CategoryRisk:             "Flag the account for a risk review with the owner",
	model.CategoryPartnership:      "Evaluate the new partnership for overlap or co-sell potential",
}

// deriveActions turns notable signals into recommended follow-ups.
// Rule-based and best-effort: insert failures are logged, never
// propagated, since the signals themselves are already committed.
func (p *Pipeline) deriveActions(ctx context.Context, account *model.Account, signals []model.Signal) {
	for _, sig := range signals {
		if sig.Severity == model.SeverityLow {
			continue
		}
		template, ok := actionTemplates[sig.Category]
		if !ok {
			continue
		}

		confidence := 0.6
		if sig.Severity == model.SeverityHigh {
			confidence = 0.85
		}

		action := model.SignalAction{
			ID:          uuid.NewString(),
			SignalID:    sig.ID,
			AccountID:   sig.AccountID,
			Category:    string(sig.Category),
			Description: fmt.Sprintf("%s: %s", template, sig.Summary),
			Confidence:  confidence,
			CreatedAt:   sig.CreatedAt,
		}
		if _, err := p.store.InsertSignalAction(ctx, action); err != nil {
			zap.L().Warn("signal action insert failed",
				zap.String("account", account.Slug),
				zap.String("signal_id", sig.ID),
				zap.Error(err))
		}
	}
}
