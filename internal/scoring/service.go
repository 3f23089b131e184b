package scoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
)

// Service loads facts from the store and runs the scoring engines over
// every account.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService builds a scoring service over the store.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// HealthScores computes health for every account, sorted by score
// descending with ties broken by name.
func (s *Service) HealthScores(ctx context.Context) ([]model.HealthScore, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: list accounts")
	}

	now := s.now().UTC()
	scores := make([]model.HealthScore, 0, len(accounts))
	for i := range accounts {
		facts, err := s.loadFacts(ctx, &accounts[i], now)
		if err != nil {
			return nil, err
		}
		scores = append(scores, ComputeHealth(&accounts[i], facts, now))
	}

	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].Score != scores[b].Score {
			return scores[a].Score > scores[b].Score
		}
		return scores[a].AccountName < scores[b].AccountName
	})
	return scores, nil
}

// TargetScores computes targeting priority for every account, sorted
// by score descending with ties broken by name.
func (s *Service) TargetScores(ctx context.Context) ([]model.TargetScore, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: list accounts")
	}

	now := s.now().UTC()
	scores := make([]model.TargetScore, 0, len(accounts))
	for i := range accounts {
		facts, err := s.loadFacts(ctx, &accounts[i], now)
		if err != nil {
			return nil, err
		}
		scores = append(scores, ComputeTarget(&accounts[i], facts, now))
	}

	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].Score != scores[b].Score {
			return scores[a].Score > scores[b].Score
		}
		return scores[a].AccountName < scores[b].AccountName
	})
	return scores, nil
}

// Focus builds the merged daily-focus feed across all accounts.
func (s *Service) Focus(ctx context.Context) ([]model.FocusItem, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: list accounts")
	}

	now := s.now().UTC()
	var items []model.FocusItem
	for i := range accounts {
		facts, err := s.loadFacts(ctx, &accounts[i], now)
		if err != nil {
			return nil, err
		}
		band := ComputeHealth(&accounts[i], facts, now).Band
		items = append(items, BuildFocus(&accounts[i], facts, band, now)...)
	}

	SortFocus(items)
	return items, nil
}

// loadFacts reads one account's fact streams. Malformed rows (missing
// identifiers) are dropped here so the engines never see them.
func (s *Service) loadFacts(ctx context.Context, account *model.Account, now time.Time) (Facts, error) {
	var facts Facts
	var err error

	if facts.Interactions, err = s.store.ListInteractions(ctx, account.ID); err != nil {
		return facts, eris.Wrapf(err, "scoring: interactions for %s", account.Slug)
	}
	if facts.Opportunities, err = s.store.ListOpportunities(ctx, account.ID); err != nil {
		return facts, eris.Wrapf(err, "scoring: opportunities for %s", account.Slug)
	}
	if facts.Contacts, err = s.store.ListContacts(ctx, account.ID); err != nil {
		return facts, eris.Wrapf(err, "scoring: contacts for %s", account.Slug)
	}

	signals, err := s.store.ListSignals(ctx, account.ID, time.Time{})
	if err != nil {
		return facts, eris.Wrapf(err, "scoring: signals for %s", account.Slug)
	}
	for _, sig := range signals {
		if sig.ID == "" || sig.AccountID == "" {
			zap.L().Debug("skipping malformed signal row", zap.String("account", account.Slug))
			continue
		}
		facts.Signals = append(facts.Signals, sig)
	}

	actions, err := s.store.ListSignalActions(ctx, account.ID, time.Time{})
	if err != nil {
		return facts, eris.Wrapf(err, "scoring: signal actions for %s", account.Slug)
	}
	for _, a := range actions {
		if a.SignalID == "" {
			zap.L().Debug("skipping malformed signal action row", zap.String("account", account.Slug))
			continue
		}
		facts.SignalActions = append(facts.SignalActions, a)
	}

	facts.NewsDocsLast7, err = s.store.CountRecentDocuments(ctx, account.ID, model.DocumentKindNews, now.AddDate(0, 0, -7))
	if err != nil {
		return facts, eris.Wrapf(err, "scoring: recent news for %s", account.Slug)
	}

	return facts, nil
}
