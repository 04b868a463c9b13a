// Package tools provides the MCP tool surface over the query bridge.
package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-sapbo/pkg/bridge"
	"github.com/txn2/mcp-sapbo/pkg/client"
	"github.com/txn2/mcp-sapbo/pkg/query"
)

// ToolName identifies one of the toolkit's tools.
type ToolName string

const (
	ToolGetTables  ToolName = "sapbo_get_tables"
	ToolGetColumns ToolName = "sapbo_get_columns"
	ToolRunQuery   ToolName = "sapbo_run_query"
)

// defaultDescriptions documents each tool for the LLM caller.
var defaultDescriptions = map[ToolName]string{
	ToolGetTables: "Retrieves a list of objects, entities, collections, etc. (as tables) " +
		"available in the data source. Use the sapbo_get_columns tool to list available columns on a table.",
	ToolGetColumns: "Retrieves a list of fields, dimensions, or measures (as columns) for an " +
		"object, entity or collection (table). Use the sapbo_get_tables tool to get a list of available tables.",
	ToolRunQuery: "Executes a SQL SELECT statement. The format must be " +
		"'SELECT col1, col2 FROM [TableName]'. Joins, filters, aggregation, and subqueries are not supported.",
}

// Bridge is the query bridge surface the toolkit consumes.
type Bridge interface {
	GetDataSources(ctx context.Context) ([]bridge.DataSourceInfo, error)
	GetColumns(ctx context.Context, tableName string) ([]bridge.ColumnInfo, error)
	RunQuery(ctx context.Context, queryText string) (*query.Result, error)
}

// Config holds toolkit configuration.
type Config struct {
	// Descriptions overrides tool descriptions by name.
	Descriptions map[ToolName]string

	// Annotations overrides tool annotations by name.
	Annotations map[ToolName]*mcp.ToolAnnotations
}

// ToolkitOption customizes toolkit construction.
type ToolkitOption func(*Toolkit)

// WithDescriptions overrides tool descriptions.
func WithDescriptions(descriptions map[ToolName]string) ToolkitOption {
	return func(t *Toolkit) {
		if t.config.Descriptions == nil {
			t.config.Descriptions = make(map[ToolName]string)
		}
		for name, desc := range descriptions {
			t.config.Descriptions[name] = desc
		}
	}
}

// Toolkit registers the SAP BO tools with an MCP server.
type Toolkit struct {
	bridge Bridge
	config Config
}

// NewToolkit creates a toolkit over the given bridge.
func NewToolkit(b Bridge, cfg Config, opts ...ToolkitOption) *Toolkit {
	t := &Toolkit{bridge: b, config: cfg}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tools returns the tool names provided by this toolkit.
func (*Toolkit) Tools() []string {
	return []string{
		string(ToolGetTables),
		string(ToolGetColumns),
		string(ToolRunQuery),
	}
}

// getColumnsInput names the table whose columns are listed. The field is
// omitempty so the generated schema leaves it optional: a missing table is
// rejected by the handler with a categorized error the LLM caller can
// read, not by schema validation.
type getColumnsInput struct {
	Table string `json:"table,omitempty"`
}

// runQueryInput carries the SELECT statement. Optional in the schema for
// the same reason as getColumnsInput.
type runQueryInput struct {
	SQL string `json:"sql,omitempty"`
}

// RegisterAll registers every tool with the MCP server.
func (t *Toolkit) RegisterAll(s *mcp.Server) {
	mcp.AddTool(s, t.tool(ToolGetTables), func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		return t.handleGetTables(ctx)
	})
	mcp.AddTool(s, t.tool(ToolGetColumns), func(ctx context.Context, _ *mcp.CallToolRequest, in getColumnsInput) (*mcp.CallToolResult, any, error) {
		return t.handleGetColumns(ctx, in)
	})
	mcp.AddTool(s, t.tool(ToolRunQuery), func(ctx context.Context, _ *mcp.CallToolRequest, in runQueryInput) (*mcp.CallToolResult, any, error) {
		return t.handleRunQuery(ctx, in)
	})
}

// tool builds the tool definition, applying configured overrides. All
// three tools are read-only against the BO server.
func (t *Toolkit) tool(name ToolName) *mcp.Tool {
	description := defaultDescriptions[name]
	if override, ok := t.config.Descriptions[name]; ok {
		description = override
	}
	annotations := &mcp.ToolAnnotations{ReadOnlyHint: true}
	if override, ok := t.config.Annotations[name]; ok {
		annotations = override
	}
	return &mcp.Tool{
		Name:        string(name),
		Description: description,
		Annotations: annotations,
	}
}

func (t *Toolkit) handleGetTables(ctx context.Context) (*mcp.CallToolResult, any, error) {
	sources, err := t.bridge.GetDataSources(ctx)
	if err != nil {
		return errorResult(err), nil, nil
	}
	rows := make([][]string, 0, len(sources))
	for _, ds := range sources {
		rows = append(rows, []string{ds.Name, ds.ID})
	}
	return textResult(renderCSV([]string{"table_name", "id"}, rows)), nil, nil
}

func (t *Toolkit) handleGetColumns(ctx context.Context, in getColumnsInput) (*mcp.CallToolResult, any, error) {
	if in.Table == "" {
		return errorResult(client.Errorf(client.KindRequest, "table is required")), nil, nil
	}
	columns, err := t.bridge.GetColumns(ctx, in.Table)
	if err != nil {
		return errorResult(err), nil, nil
	}
	rows := make([][]string, 0, len(columns))
	for _, col := range columns {
		rows = append(rows, []string{col.Name, col.Kind, col.DataType, col.Description})
	}
	return textResult(renderCSV([]string{"column_name", "kind", "data_type", "description"}, rows)), nil, nil
}

func (t *Toolkit) handleRunQuery(ctx context.Context, in runQueryInput) (*mcp.CallToolResult, any, error) {
	if in.SQL == "" {
		return errorResult(client.Errorf(client.KindRequest, "sql is required")), nil, nil
	}
	result, err := t.bridge.RunQuery(ctx, in.SQL)
	if err != nil {
		return errorResult(err), nil, nil
	}
	rows := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, formatScalar(v))
		}
		rows = append(rows, cells)
	}
	return textResult(renderCSV(result.Columns, rows)), nil, nil
}

// textResult wraps text in a successful tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult renders a bridge failure as a tool error. MCP tool errors
// are returned in CallToolResult.IsError, not as Go errors, so the LLM
// caller sees the categorized message.
func errorResult(err error) *mcp.CallToolResult {
	text := "Error: " + err.Error()
	if kind := client.KindOf(err); kind != "" {
		text = fmt.Sprintf("Error (%s): %s", kind, err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
