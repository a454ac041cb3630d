package elements

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
)

const (
	ColumnCampaignId  = "campaign_id"
	ColumnPlatform    = "platform"
	ColumnDate        = "date"
	ColumnImpressions = "impressions"
	ColumnClicks      = "clicks"
	ColumnSpend       = "spend"
	ColumnConversions = "conversions"

	ColumnCTR = "CTR"
	ColumnROI = "ROI"
)

type Column struct {
	Name  string
	Dtype arrow.DataType
}

func NewColumn(name string, dtype arrow.DataType) Column {
	return Column{
		Name:  name,
		Dtype: dtype,
	}
}

func (obj *Column) IsValid() bool {
	if obj.Name == "" {
		return false
	}

	if obj.Dtype == nil {
		return false
	}
	switch obj.Dtype.ID() {
	case arrow.STRING, arrow.INT64, arrow.FLOAT64:
		return true
	default:
		return false
	}
}

// Spec renders the column in the form ParseColumn reads.
func (obj Column) Spec() string {
	name := "unknown"
	if obj.Dtype != nil {
		switch obj.Dtype.ID() {
		case arrow.STRING:
			name = "string"
		case arrow.INT64:
			name = "int64"
		case arrow.FLOAT64:
			name = "float64"
		}
	}
	return obj.Name + ":" + name
}

/*
* Parses a column spec of the form "name:type". Recognized types are
* string|str, int64|Int64|int|integer and float64|float|double.
 */
func ParseColumn(spec string) (Column, error) {
	name, dtypeName, ok := strings.Cut(spec, ":")
	name = strings.TrimSpace(name)
	dtypeName = strings.TrimSpace(dtypeName)
	if !ok || name == "" || dtypeName == "" {
		return Column{}, fmt.Errorf("%w| expected name:type, got %q", ErrColumnSpecInvalid, spec)
	}

	dtype, err := ParseDataType(dtypeName)
	if err != nil {
		return Column{}, fmt.Errorf("%w| column %s: %w", ErrColumnSpecInvalid, name, err)
	}
	return NewColumn(name, dtype), nil
}

func ParseDataType(name string) (arrow.DataType, error) {
	switch strings.ToLower(name) {
	case "string", "str":
		return arrow.BinaryTypes.String, nil
	case "int64", "int", "integer":
		return arrow.PrimitiveTypes.Int64, nil
	case "float64", "float", "double":
		return arrow.PrimitiveTypes.Float64, nil
	default:
		return nil, fmt.Errorf("%w| %s", ErrUnsupportedDataType, name)
	}
}

////////////////////////////////////////

// Schema is the ordered column declaration shared by every batch of a run.
type Schema struct {
	columns []Column
}

func NewSchema() *Schema {
	return &Schema{
		columns: []Column{},
	}
}

func ParseSchema(specs []string) (*Schema, error) {
	schema := NewSchema()
	for _, spec := range specs {
		col, err := ParseColumn(spec)
		if err != nil {
			return nil, err
		}
		schema.AddColumns(col)
	}
	if err := schema.IsValid(); err != nil {
		return nil, err
	}
	return schema, nil
}

// CampaignSchema is the declared layout of the raw ad campaign export.
func CampaignSchema() *Schema {
	return NewSchema().
		AddColumns(
			NewColumn(ColumnCampaignId, arrow.BinaryTypes.String),
			NewColumn(ColumnPlatform, arrow.BinaryTypes.String),
			NewColumn(ColumnDate, arrow.BinaryTypes.String),
			NewColumn(ColumnImpressions, arrow.PrimitiveTypes.Int64),
			NewColumn(ColumnClicks, arrow.PrimitiveTypes.Int64),
			NewColumn(ColumnSpend, arrow.PrimitiveTypes.Float64),
			NewColumn(ColumnConversions, arrow.PrimitiveTypes.Int64),
		)
}

func (obj *Schema) AddColumns(columns ...Column) *Schema {
	obj.columns = append(obj.columns, columns...)
	return obj
}

func (obj *Schema) Columns() []Column {
	return obj.columns
}

func (obj *Schema) ColumnNames() []string {
	names := make([]string, len(obj.columns))
	for i, col := range obj.columns {
		names[i] = col.Name
	}
	return names
}

func (obj *Schema) GetColumnByName(name string) (Column, error) {
	for _, col := range obj.columns {
		if col.Name == name {
			return col, nil
		}
	}
	return Column{}, fmt.Errorf("%w| %s", ErrColumnNotFound, name)
}

func (obj *Schema) IsValid() error {
	if len(obj.columns) == 0 {
		return fmt.Errorf("%w| schema does not have columns", ErrSchemaInvalid)
	}

	uniq := make(map[string]struct{}, len(obj.columns))
	for _, col := range obj.columns {
		if !col.IsValid() {
			return fmt.Errorf("%w| column %q is invalid", ErrSchemaInvalid, col.Name)
		}
		if _, ok := uniq[col.Name]; ok {
			return fmt.Errorf("%w| duplicate column %q", ErrSchemaInvalid, col.Name)
		}
		uniq[col.Name] = struct{}{}
	}
	return nil
}

// ArrowSchema returns the typed arrow schema. Every field is nullable.
func (obj *Schema) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(obj.columns))
	for i, col := range obj.columns {
		fields[i] = arrow.Field{Name: col.Name, Type: col.Dtype, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// RawArrowSchema declares every column as a nullable string. The csv reader
// uses it so type coercion can be done leniently afterwards.
func (obj *Schema) RawArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(obj.columns))
	for i, col := range obj.columns {
		fields[i] = arrow.Field{Name: col.Name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}
