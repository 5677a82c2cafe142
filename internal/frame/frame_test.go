package frame

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_LoaderNulls(t *testing.T) {
	t.Parallel()

	in := "company_id,Year/Type,Revenue,Cost\n0051,31 Mar 2024 Value,\"1,200\",-\n0051,31 Mar 2024 YoY %,NaN,None\n"
	f, err := ReadCSV(context.Background(), strings.NewReader(in), LoaderNulls)
	require.NoError(t, err)

	assert.Equal(t, []string{"company_id", "Year/Type", "Revenue", "Cost"}, f.Columns())
	require.Equal(t, 2, f.Len())

	v, ok := f.Rows()[0].Get("Revenue")
	assert.True(t, ok)
	assert.Equal(t, "1,200", v)

	_, ok = f.Rows()[0].Get("Cost")
	assert.False(t, ok, "dash is null for the loader")
	_, ok = f.Rows()[1].Get("Revenue")
	assert.False(t, ok)
	_, ok = f.Rows()[1].Get("Cost")
	assert.False(t, ok)
}

func TestReadCSV_DefaultNullsKeepDash(t *testing.T) {
	t.Parallel()

	f, err := ReadCSV(context.Background(), strings.NewReader("a,b\n-,\n"), DefaultNulls)
	require.NoError(t, err)

	v, ok := f.Rows()[0].Get("a")
	assert.True(t, ok)
	assert.Equal(t, "-", v)
	_, ok = f.Rows()[0].Get("b")
	assert.False(t, ok)
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	t.Parallel()

	f, err := ReadCSV(context.Background(), strings.NewReader("a,b\n"), DefaultNulls)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.Columns())
	assert.Zero(t, f.Len())
}

func TestReadCSV_DuplicateHeaders(t *testing.T) {
	t.Parallel()

	f, err := ReadCSV(context.Background(), strings.NewReader("x,x,y\n1,2,3\n"), DefaultNulls)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x.1", "y"}, f.Columns())
	assert.Equal(t, "2", f.Rows()[0]["x.1"])
}

func TestReadCSV_RaggedRows(t *testing.T) {
	t.Parallel()

	f, err := ReadCSV(context.Background(), strings.NewReader("a,b\n1\n2,3,4\n"), DefaultNulls)
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())
	assert.Equal(t, Row{"a": "1"}, f.Rows()[0])
	assert.Equal(t, Row{"a": "2", "b": "3"}, f.Rows()[1])
}

func TestReadCSV_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader("a\n1\n"), DefaultNulls)
	assert.Error(t, err)
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	t.Parallel()

	f := New("company_id", "name")
	f.Append(Row{"company_id": "0051", "name": "ACME, BHD"})
	f.Append(Row{"company_id": "0052"})

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "company_id,name\n0051,\"ACME, BHD\"\n0052,\n", buf.String())
}

func TestWriteFile_CreatesDirs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	f := New("a")
	f.Append(Row{"a": "1"})
	require.NoError(t, f.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))

	got, err := ReadFile(context.Background(), path, DefaultNulls)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), DefaultNulls)
	assert.Error(t, err)
}

func TestConcat_UnionColumnsFirstSeen(t *testing.T) {
	t.Parallel()

	a := New("company_id", "Revenue")
	a.Append(Row{"company_id": "0001", "Revenue": "10"})
	b := New("company_id", "Cost", "Revenue")
	b.Append(Row{"company_id": "0002", "Cost": "3"})

	c := Concat(a, nil, b)
	assert.Equal(t, []string{"company_id", "Revenue", "Cost"}, c.Columns())
	assert.Equal(t, 2, c.Len())
}

func TestInsertColumn(t *testing.T) {
	t.Parallel()

	f := New("a", "b", "c")
	f.InsertColumn(0, "c")
	assert.Equal(t, []string{"c", "a", "b"}, f.Columns())

	f.InsertColumn(1, "z")
	assert.Equal(t, []string{"c", "z", "a", "b"}, f.Columns())

	f.InsertColumn(99, "y")
	assert.Equal(t, []string{"c", "z", "a", "b", "y"}, f.Columns())
}

func TestAppendAddsUnknownColumnsSorted(t *testing.T) {
	t.Parallel()

	f := New("a")
	f.Append(Row{"a": "1", "z": "2", "m": "3"})
	assert.Equal(t, []string{"a", "m", "z"}, f.Columns())
}

func TestDropColumns(t *testing.T) {
	t.Parallel()

	f := New("a", "b", "c")
	f.Append(Row{"a": "1", "b": "2", "c": "3"})
	f.DropColumns("b", "missing")
	assert.Equal(t, []string{"a", "c"}, f.Columns())
	assert.Equal(t, Row{"a": "1", "c": "3"}, f.Rows()[0])
}

func TestMapColumns_FirstWins(t *testing.T) {
	t.Parallel()

	f := New("Total Assets", "total-assets", "Other")
	f.Append(Row{"Total Assets": "1", "total-assets": "2", "Other": "3"})

	dropped := f.MapColumns(func(c string) string {
		return strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(c))
	})
	assert.Equal(t, []string{"total-assets"}, dropped)
	assert.Equal(t, []string{"total_assets", "other"}, f.Columns())
	assert.Equal(t, Row{"total_assets": "1", "other": "3"}, f.Rows()[0])
}

func TestRenameSelectFilterSort(t *testing.T) {
	t.Parallel()

	f := New("id", "v")
	f.Append(Row{"id": "2", "v": "b"})
	f.Append(Row{"id": "1", "v": "a"})
	f.Append(Row{"id": "3"})
	f.Rename(map[string]string{"v": "value"})

	kept := f.Filter(func(r Row) bool { _, ok := r["value"]; return ok })
	kept.SortStable(func(a, b Row) bool { return a["id"] < b["id"] })
	assert.Equal(t, "1", kept.Rows()[0]["id"])
	assert.Equal(t, 2, kept.Len())

	sel := kept.Select("value", "extra")
	assert.Equal(t, []string{"value", "extra"}, sel.Columns())
	vals := sel.Values(sel.Rows()[0])
	require.Len(t, vals, 2)
	require.NotNil(t, vals[0])
	assert.Equal(t, "a", *vals[0])
	assert.Nil(t, vals[1])
}
