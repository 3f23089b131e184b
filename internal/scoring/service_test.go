package scoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
)

func newServiceWithStore(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "scoring.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	svc := NewService(st)
	svc.now = func() time.Time { return testNow }
	return svc, st
}

func seedAccount(t *testing.T, st store.Store, slug, name string) *model.Account {
	t.Helper()
	a, err := st.CreateAccount(context.Background(), model.Account{Slug: slug, Name: name})
	require.NoError(t, err)
	return a
}

func TestHealthScores_SortedDescendingTiesByName(t *testing.T) {
	svc, st := newServiceWithStore(t)
	ctx := context.Background()

	quiet1 := seedAccount(t, st, "zeta", "Zeta Industries")
	quiet2 := seedAccount(t, st, "alpha", "Alpha Widgets")
	busy := seedAccount(t, st, "busy", "Busy Corp")

	_, err := st.InsertInteraction(ctx, model.Interaction{
		AccountID:  busy.ID,
		Channel:    "call",
		Subject:    "renewal",
		OccurredAt: testNow.AddDate(0, 0, -2),
	})
	require.NoError(t, err)
	_, err = st.InsertOpportunity(ctx, model.Opportunity{
		AccountID: busy.ID,
		Name:      "Renewal",
		Status:    model.OpportunityOpen,
		CreatedAt: testNow.AddDate(0, 0, -5),
		UpdatedAt: testNow.AddDate(0, 0, -5),
	})
	require.NoError(t, err)

	scores, err := svc.HealthScores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, busy.ID, scores[0].AccountID)
	// The two quiet accounts tie; name breaks the tie.
	assert.Equal(t, quiet2.ID, scores[1].AccountID)
	assert.Equal(t, quiet1.ID, scores[2].AccountID)
}

func TestFocus_CarriesHealthBand(t *testing.T) {
	svc, st := newServiceWithStore(t)
	ctx := context.Background()

	account := seedAccount(t, st, "acme", "Acme Corp")
	due := testNow.AddDate(0, 0, -1)
	_, err := st.InsertInteraction(ctx, model.Interaction{
		AccountID:     account.ID,
		Channel:       "email",
		Subject:       "pricing",
		OccurredAt:    testNow.AddDate(0, 0, -10),
		NextStep:      "Send revised quote",
		NextStepDueAt: &due,
	})
	require.NoError(t, err)

	items, err := svc.Focus(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.FocusInteraction, items[0].Type)
	assert.Equal(t, "Overdue: Send revised quote", items[0].Title)
	assert.NotEmpty(t, items[0].HealthBand)
}
