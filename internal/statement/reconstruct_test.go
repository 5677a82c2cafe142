package statement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

func cell(t *testing.T, tbl *Table, day string, typ RowType, metric string) *string {
	t.Helper()
	v, present := tbl.Cell(Key{Date: date(t, day), Type: typ}, metric)
	require.True(t, present, "%s %s %s not attributed", day, typ, metric)
	return v
}

func header(dates ...string) []string {
	return append([]string{"Amount Standardised (MYR '000)"}, dates...)
}

func TestReconstruct_RoundTrip(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Mar 2023", "31 Mar 2024"),
		{"Revenue", "1,000", "+5%", "1,200", "+8%"},
	})

	require.Equal(t, 4, tbl.Len())
	labels := make([]string, 0, tbl.Len())
	for _, k := range tbl.Keys {
		labels = append(labels, k.Label())
	}
	assert.Equal(t, []string{
		"31 Mar 2023 Value",
		"31 Mar 2023 YoY %",
		"31 Mar 2024 Value",
		"31 Mar 2024 YoY %",
	}, labels)

	assert.Equal(t, "1,000", *cell(t, tbl, "31 Mar 2023", RowValue, "Revenue"))
	assert.Equal(t, "+5%", *cell(t, tbl, "31 Mar 2023", RowYoY, "Revenue"))
	assert.Equal(t, "1,200", *cell(t, tbl, "31 Mar 2024", RowValue, "Revenue"))
	assert.Equal(t, "+8%", *cell(t, tbl, "31 Mar 2024", RowYoY, "Revenue"))
	assert.Equal(t, []string{"Revenue"}, tbl.Metrics)
}

func TestReconstruct_MisalignedPercentMovesToPercentSlot(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Mar 2024"),
		{"Revenue", "-7%", ""},
	})

	assert.Nil(t, cell(t, tbl, "31 Mar 2024", RowValue, "Revenue"))
	pct := cell(t, tbl, "31 Mar 2024", RowYoY, "Revenue")
	require.NotNil(t, pct)
	assert.Equal(t, "-7%", *pct)
}

func TestReconstruct_PercentInBothSlotsDropsValue(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Mar 2024"),
		{"Margin", "12%", "3%"},
	})

	assert.Nil(t, cell(t, tbl, "31 Mar 2024", RowValue, "Margin"))
	assert.Equal(t, "3%", *cell(t, tbl, "31 Mar 2024", RowYoY, "Margin"))
}

func TestReconstruct_OddLengthIsPadded(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Dec 2023"),
		{"Metric", "100"},
	})

	assert.Equal(t, "100", *cell(t, tbl, "31 Dec 2023", RowValue, "Metric"))
	assert.Nil(t, cell(t, tbl, "31 Dec 2023", RowYoY, "Metric"))
}

func TestReconstruct_DashesBecomeNull(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Dec 2022", "31 Dec 2023"),
		{"Goodwill", "-", "—", "—", " - "},
	})

	for _, d := range []string{"31 Dec 2022", "31 Dec 2023"} {
		assert.Nil(t, cell(t, tbl, d, RowValue, "Goodwill"))
		assert.Nil(t, cell(t, tbl, d, RowYoY, "Goodwill"))
	}
	// Columns that are null everywhere are still emitted.
	assert.Contains(t, tbl.Frame("0051", "u").Columns(), "Goodwill")
}

func TestReconstruct_PairsBeyondOrdinalsDiscarded(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Dec 2023"),
		{"Revenue", "10", "1%", "20", "2%", "30", "3%"},
	})

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "10", *cell(t, tbl, "31 Dec 2023", RowValue, "Revenue"))
}

func TestReconstruct_UnparsableOrdinalSkipsPair(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("Restated", "31 Dec 2023"),
		{"Revenue", "10", "1%", "20", "2%"},
	})

	require.Len(t, tbl.Ordinals, 2)
	assert.Nil(t, tbl.Ordinals[0])
	assert.Equal(t, 1, tbl.DatedOrdinals())
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "20", *cell(t, tbl, "31 Dec 2023", RowValue, "Revenue"))
}

func TestReconstruct_HeaderToleratesLeadingJunkAndTrend(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("5-Year Trend", "FY  31 Mar 2024", "Q4 30 Jun 2024"),
		{"Revenue", "1", "2%", "3", "4%"},
	})

	require.Len(t, tbl.Ordinals, 2)
	assert.Equal(t, date(t, "31 Mar 2024"), *tbl.Ordinals[0])
	assert.Equal(t, date(t, "30 Jun 2024"), *tbl.Ordinals[1])
}

func TestReconstruct_FirstHeaderWins(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Mar 2024"),
		{"Revenue", "5", "1%"},
		header("31 Mar 2019"),
		{"Cost", "3", "2%"},
	})

	assert.Equal(t, 1, tbl.ExtraHeaders)
	require.Len(t, tbl.Ordinals, 1)
	assert.Equal(t, "3", *cell(t, tbl, "31 Mar 2024", RowValue, "Cost"))
	for _, m := range tbl.Metrics {
		assert.NotContains(t, m, HeaderMarker)
	}
}

func TestReconstruct_EmptyHeaderDefersToNextHeader(t *testing.T) {
	t.Parallel()

	for name, first := range map[string][]string{
		"bare":  header(),
		"trend": header("5-year trend"),
	} {
		t.Run(name, func(t *testing.T) {
			tbl := Reconstruct([][]string{
				first,
				header("31 Mar 2023"),
				{"Revenue", "1,000", "+5%"},
			})

			assert.Zero(t, tbl.ExtraHeaders)
			require.Len(t, tbl.Ordinals, 1)
			assert.Equal(t, 1, tbl.DatedOrdinals())
			assert.Equal(t, 2, tbl.Len())
			assert.Equal(t, "1,000", *cell(t, tbl, "31 Mar 2023", RowValue, "Revenue"))
			assert.Equal(t, "+5%", *cell(t, tbl, "31 Mar 2023", RowYoY, "Revenue"))
		})
	}
}

func TestReconstruct_MetricsBeforeHeaderAreDropped(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		{"Revenue", "5", "1%"},
		header("31 Mar 2024"),
	})
	assert.Zero(t, tbl.Len())
	assert.True(t, tbl.HeaderFound())
}

func TestReconstruct_NoHeader(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{{"Revenue", "5", "1%"}, {}})
	assert.False(t, tbl.HeaderFound())
	assert.Zero(t, tbl.Len())
	assert.Empty(t, tbl.Metrics)
}

func TestReconstruct_RepeatedMetricOverwrites(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Mar 2024"),
		{"Revenue", "5", "1%"},
		{"Revenue", "6", "2%"},
	})
	assert.Equal(t, []string{"Revenue"}, tbl.Metrics)
	assert.Equal(t, "6", *cell(t, tbl, "31 Mar 2024", RowValue, "Revenue"))
}

func TestTableFrame(t *testing.T) {
	t.Parallel()

	tbl := Reconstruct([][]string{
		header("31 Mar 2023", "31 Mar 2024"),
		{"Revenue", "1,000", "+5%", "1,200", "+8%"},
		{"Cost", "-", "-"},
	})
	f := tbl.Frame("0051", "https://example/stock?code=0051")

	assert.Equal(t, []string{"company_id", "Year/Type", "Revenue", "Cost", "source_url"}, f.Columns())
	require.Equal(t, 4, f.Len())

	first := f.Rows()[0]
	assert.Equal(t, "0051", first["company_id"])
	assert.Equal(t, "31 Mar 2023 Value", first["Year/Type"])
	assert.Equal(t, "1,000", first["Revenue"])
	_, ok := first.Get("Cost")
	assert.False(t, ok)
	assert.Equal(t, "https://example/stock?code=0051", first["source_url"])
}

func TestSplitCell(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SplitCell("  \n "))
	assert.Equal(t, []string{"Revenue", "1,000", "", "+5%"}, SplitCell("\nRevenue\r\n1,000\n\n+5%\n"))
}
