package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-sapbo/pkg/catalog"
	"github.com/txn2/mcp-sapbo/pkg/client"
)

// fakeResolver resolves against fixed metadata while counting lookups.
type fakeResolver struct {
	dataSourceCalls int
	columnCalls     int
}

var eFashion = catalog.DataSource{ID: "5564", Name: "eFashion"}

func (r *fakeResolver) ResolveDataSource(_ context.Context, name string) (catalog.DataSource, error) {
	r.dataSourceCalls++
	if strings.EqualFold(name, "eFashion") {
		return eFashion, nil
	}
	return catalog.DataSource{}, client.NotFound("data source", name)
}

func (r *fakeResolver) ResolveColumn(_ context.Context, ds catalog.DataSource, name string) (catalog.ColumnDescriptor, error) {
	r.columnCalls++
	known := map[string]catalog.ColumnDescriptor{
		"year":          {ID: "11", Name: "Year", Kind: catalog.KindDimension, DataSourceID: ds.ID},
		"sales revenue": {ID: "20", Name: "Sales revenue", Kind: catalog.KindMeasure, DataSourceID: ds.ID},
		"année":         {ID: "12", Name: "Année", Kind: catalog.KindDimension, DataSourceID: ds.ID},
	}
	if col, ok := known[strings.ToLower(name)]; ok {
		return col, nil
	}
	return catalog.ColumnDescriptor{}, client.NotFound("column", name)
}

func TestTranslate_BracketedNames(t *testing.T) {
	r := &fakeResolver{}
	tr := NewTranslator(r)

	req, err := tr.Translate(context.Background(), "SELECT [Year], [Sales revenue] FROM [eFashion]")
	require.NoError(t, err)

	assert.Equal(t, eFashion, req.DataSource)
	require.Len(t, req.Columns, 2)
	assert.Equal(t, "Year", req.Columns[0].Name)
	assert.Equal(t, "Sales revenue", req.Columns[1].Name)
}

func TestTranslate_CaseInsensitiveKeywords(t *testing.T) {
	tr := NewTranslator(&fakeResolver{})

	req, err := tr.Translate(context.Background(), "select Year from eFashion")
	require.NoError(t, err)
	require.Len(t, req.Columns, 1)
	assert.Equal(t, "Year", req.Columns[0].Name)
}

// Unbracketed identifiers may contain multi-byte runes; the lexer must
// not split them mid-rune.
func TestTranslate_MultiByteNames(t *testing.T) {
	tr := NewTranslator(&fakeResolver{})

	req, err := tr.Translate(context.Background(), "SELECT Année FROM eFashion")
	require.NoError(t, err)
	require.Len(t, req.Columns, 1)
	assert.Equal(t, "Année", req.Columns[0].Name)

	// An unknown name is reported exactly as written, not truncated to a
	// byte prefix.
	_, err = tr.Translate(context.Background(), "SELECT Voilà FROM eFashion")
	require.Error(t, err)
	assert.Equal(t, client.KindNotFound, client.KindOf(err))
	assert.Contains(t, err.Error(), `"Voilà"`)
}

func TestTranslate_DuplicateColumnsPreserved(t *testing.T) {
	tr := NewTranslator(&fakeResolver{})

	req, err := tr.Translate(context.Background(), "SELECT Year, Year FROM eFashion")
	require.NoError(t, err)
	require.Len(t, req.Columns, 2)
	assert.Equal(t, req.Columns[0], req.Columns[1])
}

func TestTranslate_ColumnOrderPreserved(t *testing.T) {
	tr := NewTranslator(&fakeResolver{})

	req, err := tr.Translate(context.Background(), "SELECT [Sales revenue], Year FROM eFashion")
	require.NoError(t, err)
	require.Len(t, req.Columns, 2)
	assert.Equal(t, "Sales revenue", req.Columns[0].Name)
	assert.Equal(t, "Year", req.Columns[1].Name)
}

func TestTranslate_UnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name      string
		queryText string
		construct string
	}{
		{"where", "SELECT Year FROM eFashion WHERE Year = 2004", "WHERE"},
		{"join", "SELECT Year FROM eFashion JOIN other ON x = y", "JOIN"},
		{"left join", "SELECT Year FROM eFashion LEFT JOIN other", "JOIN"},
		{"wildcard", "SELECT * FROM eFashion", "wildcard"},
		{"group by", "SELECT Year FROM eFashion GROUP BY Year", "GROUP BY"},
		{"order by", "SELECT Year FROM eFashion ORDER BY Year", "ORDER BY"},
		{"limit", "SELECT Year FROM eFashion LIMIT 10", "LIMIT"},
		{"union", "SELECT Year FROM eFashion UNION SELECT Year FROM other", "UNION"},
		{"distinct", "SELECT DISTINCT Year FROM eFashion", "DISTINCT"},
		{"multiple tables", "SELECT Year FROM eFashion, other", "multiple tables"},
		{"aggregation", "SELECT COUNT(Year) FROM eFashion", "function call"},
		{"subquery", "SELECT Year FROM (SELECT" + " Year FROM eFashion)", "subquery"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeResolver{}
			tr := NewTranslator(r)

			_, err := tr.Translate(context.Background(), tc.queryText)
			require.Error(t, err)
			assert.Equal(t, client.KindUnsupportedQuery, client.KindOf(err))
			assert.Contains(t, err.Error(), tc.construct)

			// Rejection happens before any catalog lookup.
			assert.Zero(t, r.dataSourceCalls)
			assert.Zero(t, r.columnCalls)
		})
	}
}

func TestTranslate_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name      string
		queryText string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no select", "Year FROM eFashion"},
		{"no columns", "SELECT"},
		{"no from", "SELECT Year"},
		{"no table", "SELECT Year FROM"},
		{"trailing comma", "SELECT Year, FROM eFashion"},
		{"unterminated bracket", "SELECT [Year FROM eFashion"},
		{"empty bracket", "SELECT [] FROM eFashion"},
		{"missing comma", "SELECT Year Quarter FROM eFashion"},
		{"keyword column", "SELECT FROM FROM eFashion"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeResolver{}
			tr := NewTranslator(r)

			_, err := tr.Translate(context.Background(), tc.queryText)
			require.Error(t, err)
			assert.Equal(t, client.KindSyntax, client.KindOf(err))
			assert.Zero(t, r.dataSourceCalls)
		})
	}
}

func TestTranslate_SyntaxErrorPosition(t *testing.T) {
	tr := NewTranslator(&fakeResolver{})

	_, err := tr.Translate(context.Background(), "SELECT Year Quarter FROM eFashion")
	require.Error(t, err)
	var syntaxErr *client.Error
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 12, syntaxErr.Pos, "position of the unexpected token")
}

func TestTranslate_UnknownTable(t *testing.T) {
	r := &fakeResolver{}
	tr := NewTranslator(r)

	_, err := tr.Translate(context.Background(), "SELECT Year FROM Unknown")
	require.Error(t, err)
	assert.Equal(t, client.KindNotFound, client.KindOf(err))
	var notFound *client.Error
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "data source", notFound.What)
	assert.Equal(t, "Unknown", notFound.Name)
	assert.Zero(t, r.columnCalls, "no column resolution for an unknown table")
}

func TestTranslate_UnknownColumn_FailFast(t *testing.T) {
	r := &fakeResolver{}
	tr := NewTranslator(r)

	_, err := tr.Translate(context.Background(), "SELECT Color, Year FROM eFashion")
	require.Error(t, err)
	var notFound *client.Error
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "column", notFound.What)
	assert.Equal(t, "Color", notFound.Name)
	assert.Equal(t, 1, r.columnCalls, "resolution stops at the first unresolved column")
}

func TestTranslate_BracketedKeywordIsName(t *testing.T) {
	r := &fakeResolver{}
	tr := NewTranslator(r)

	// Bracketed names are never treated as keywords.
	_, err := tr.Translate(context.Background(), "SELECT [Where] FROM eFashion")
	require.Error(t, err)
	assert.Equal(t, client.KindNotFound, client.KindOf(err), "[Where] resolves as a column name")
}
