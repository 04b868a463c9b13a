// Package bridge composes the session, catalog, and translator layers
// into the three operations exposed to the tool surface.
package bridge

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/txn2/mcp-sapbo/pkg/catalog"
	"github.com/txn2/mcp-sapbo/pkg/client"
	"github.com/txn2/mcp-sapbo/pkg/query"
)

// Catalog is the metadata surface the bridge consumes.
type Catalog interface {
	ListDataSources(ctx context.Context) ([]catalog.DataSource, error)
	ResolveDataSource(ctx context.Context, name string) (catalog.DataSource, error)
	ListColumns(ctx context.Context, ds catalog.DataSource) ([]catalog.ColumnDescriptor, error)
}

// Translator parses and validates query text.
type Translator interface {
	Translate(ctx context.Context, queryText string) (*query.Request, error)
}

// Executor runs query documents against the BO server.
type Executor interface {
	CreateDocument(ctx context.Context, spec client.DocumentSpec) (string, error)
	DocumentFlow(ctx context.Context, documentID string) ([][]any, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// Bridge is the sole entry point consumed by the tool layer. Failures from
// sub-components propagate with their kind preserved, annotated with the
// operation name.
type Bridge struct {
	catalog    Catalog
	translator Translator
	exec       Executor
}

// New creates a bridge over the given components.
func New(cat Catalog, translator Translator, exec Executor) *Bridge {
	return &Bridge{catalog: cat, translator: translator, exec: exec}
}

// DataSourceInfo is the projection of one catalog entry returned by
// GetDataSources.
type DataSourceInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ColumnInfo is the projection of one column returned by GetColumns.
type ColumnInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	DataType    string `json:"data_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// GetDataSources lists the queryable data sources.
func (b *Bridge) GetDataSources(ctx context.Context) ([]DataSourceInfo, error) {
	sources, err := b.catalog.ListDataSources(ctx)
	if err != nil {
		return nil, client.WithOp("getDataSources", err)
	}
	infos := make([]DataSourceInfo, 0, len(sources))
	for _, ds := range sources {
		infos = append(infos, DataSourceInfo{Name: ds.Name, ID: ds.ID})
	}
	return infos, nil
}

// GetColumns lists the columns of the named data source.
func (b *Bridge) GetColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	ds, err := b.catalog.ResolveDataSource(ctx, tableName)
	if err != nil {
		return nil, client.WithOp("getColumns", err)
	}
	columns, err := b.catalog.ListColumns(ctx, ds)
	if err != nil {
		return nil, client.WithOp("getColumns", err)
	}
	infos := make([]ColumnInfo, 0, len(columns))
	for _, col := range columns {
		infos = append(infos, ColumnInfo{
			Name:        col.Name,
			Kind:        string(col.Kind),
			DataType:    col.DataType,
			Description: col.Description,
		})
	}
	return infos, nil
}

// RunQuery translates the query text, executes it as a transient document,
// and shapes the flow rows into a result. Either a complete result is
// returned or an error; no partial rows.
func (b *Bridge) RunQuery(ctx context.Context, queryText string) (*query.Result, error) {
	req, err := b.translator.Translate(ctx, queryText)
	if err != nil {
		return nil, client.WithOp("runQuery", err)
	}

	spec := client.DocumentSpec{
		Name:          "mcp-sapbo-" + uuid.NewString(),
		DataSourceID:  req.DataSource.ID,
		ResultObjects: make([]client.ResultObject, 0, len(req.Columns)),
	}
	for _, col := range req.Columns {
		spec.ResultObjects = append(spec.ResultObjects, client.ResultObject{ID: col.ID, Name: col.Name})
	}

	documentID, err := b.exec.CreateDocument(ctx, spec)
	if err != nil {
		return nil, client.WithOp("runQuery", err)
	}
	defer b.cleanupDocument(ctx, documentID)

	rows, err := b.exec.DocumentFlow(ctx, documentID)
	if err != nil {
		return nil, client.WithOp("runQuery", err)
	}

	columns := make([]string, 0, len(req.Columns))
	for _, col := range req.Columns {
		columns = append(columns, col.Name)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, client.WithOp("runQuery", client.Errorf(client.KindProtocol,
				"row %d has %d values, expected %d", i, len(row), len(columns)))
		}
	}
	if rows == nil {
		rows = [][]any{}
	}

	return &query.Result{Columns: columns, Rows: rows, Count: len(rows)}, nil
}

// cleanupDocument deletes a transient document best-effort. The deletion
// outcome never affects the caller's result, and a canceled caller context
// must not leak the document.
func (b *Bridge) cleanupDocument(ctx context.Context, documentID string) {
	if err := b.exec.DeleteDocument(context.WithoutCancel(ctx), documentID); err != nil {
		slog.Warn("transient document cleanup failed", "document_id", documentID, "error", err)
	}
}
