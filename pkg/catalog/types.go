// Package catalog caches the metadata of a SAP BO server: the universe
// list and each universe's queryable objects.
package catalog

import "github.com/txn2/mcp-sapbo/pkg/client"

// ColumnKind classifies a queryable object.
type ColumnKind string

const (
	KindDimension ColumnKind = "dimension"
	KindMeasure   ColumnKind = "measure"
	KindAttribute ColumnKind = "attribute"
	KindUnknown   ColumnKind = "unknown"
)

// kindFromTechType maps the raylight techType to a ColumnKind.
func kindFromTechType(techType string) ColumnKind {
	switch techType {
	case "Dimension":
		return KindDimension
	case "Measure":
		return KindMeasure
	case "Attribute":
		return KindAttribute
	default:
		return KindUnknown
	}
}

// DataSource is one queryable catalog entry (a universe).
type DataSource struct {
	ID   string
	Name string
}

// ColumnDescriptor is one queryable object of a data source.
type ColumnDescriptor struct {
	ID           string
	Name         string
	Kind         ColumnKind
	DataType     string
	Description  string
	DataSourceID string
}

func newDataSource(u client.Universe) DataSource {
	return DataSource{ID: string(u.ID), Name: u.Name}
}

func newColumnDescriptor(o client.OutlineObject, dataSourceID string) ColumnDescriptor {
	return ColumnDescriptor{
		ID:           o.ID,
		Name:         o.Name,
		Kind:         kindFromTechType(o.TechType),
		DataType:     o.DataType,
		Description:  o.Description,
		DataSourceID: dataSourceID,
	}
}
