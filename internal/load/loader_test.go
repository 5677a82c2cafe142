package load

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/artifact"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(ctx context.Context, table string, f *frame.Frame, key, numeric []string) (int64, error) {
	args := m.Called(ctx, table, f, key, numeric)
	return args.Get(0).(int64), args.Error(1)
}

func seedLayout(t *testing.T) artifact.Layout {
	t.Helper()
	dir := t.TempDir()
	layout := artifact.NewLayout(config.PathsConfig{DataDir: dir, OutputsDir: filepath.Join(dir, "outputs")})

	require.NoError(t, artifact.WriteRecords(layout.Data(artifact.ListingFile), []model.CompanyIdentity{
		{CompanyName: "ACME BERHAD", CompanyID: "0051"},
	}))
	require.NoError(t, layout.WriteMatches([]model.RegistryMatch{
		{CompanyName: "ACME BERHAD", NameDB: "ACME BHD", CompanyNo: "201001006754", Score: 90},
	}))
	return layout
}

func TestDatasets_Order(t *testing.T) {
	t.Parallel()

	var names []string
	for _, ds := range Datasets() {
		names = append(names, ds.Name)
	}
	assert.Equal(t, []string{"profile", "management", "ownership", "top10", "insider", "cashflow", "income", "balance"}, names)
}

func TestLoader_SkipsMissingAndCollectsErrors(t *testing.T) {
	layout := seedLayout(t)
	require.NoError(t, os.WriteFile(layout.Data(model.StatementBalance.CombinedFile()), []byte(
		"company_id,Year/Type,Total Assets,source_url\n"+
			"51,31 Dec 2024 Value,\"5,000\",u\n"+
			"51,31 Dec 2024 YoY %,-,u\n"), 0o644))
	require.NoError(t, os.WriteFile(layout.Data(model.StatementIncome.CombinedFile()), []byte(
		"company_id,Year/Type,Revenue\n0051,31 Dec 2024 Value,10\n"), 0o644))

	w := &mockWriter{}
	w.On("Write", mock.Anything, "public_complete_balance_sheet", mock.MatchedBy(func(f *frame.Frame) bool {
		return f.Len() == 1 && f.Rows()[0]["total_assets"] == "5000"
	}), StatementKey, []string{"total_current_assets", "total_assets"}).Return(int64(1), nil)
	w.On("Write", mock.Anything, "public_complete_income", mock.Anything, StatementKey, []string{"revenue"}).
		Return(int64(0), errors.New("connection lost"))

	results, err := NewLoader(layout, w).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	require.Len(t, results, 8)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Dataset] = r
	}
	assert.True(t, byName["profile"].Skipped)
	assert.True(t, byName["cashflow"].Skipped)
	assert.Error(t, byName["income"].Err)
	assert.Equal(t, int64(1), byName["balance"].Inserted)
	assert.Equal(t, 1, byName["balance"].Rows)
	w.AssertExpectations(t)
}

func TestLoader_RequiresRegistrations(t *testing.T) {
	dir := t.TempDir()
	layout := artifact.NewLayout(config.PathsConfig{DataDir: dir})

	_, err := NewLoader(layout, &mockWriter{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run listing and match first")
}
