// Package query translates a restricted SQL subset into a SAP BO query
// request. Only the single-table `SELECT col, col FROM table` shape is
// accepted; anything else is rejected explicitly, never best-effort
// interpreted.
package query

import (
	"context"

	"github.com/txn2/mcp-sapbo/pkg/catalog"
)

// Request is the translated form of one query: the resolved data source
// and the resolved columns in the order they were written. Duplicate
// columns are preserved.
type Request struct {
	DataSource catalog.DataSource
	Columns    []catalog.ColumnDescriptor
}

// Result holds the rows of one executed query. Every row has exactly
// len(Columns) values, in column order.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Count   int      `json:"count"`
}

// Resolver answers name lookups against the metadata catalog.
type Resolver interface {
	ResolveDataSource(ctx context.Context, name string) (catalog.DataSource, error)
	ResolveColumn(ctx context.Context, ds catalog.DataSource, name string) (catalog.ColumnDescriptor, error)
}
