package arrowops

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
)

// ColumnIndex returns the index of the single column called name.
func ColumnIndex(rec arrow.Record, name string) (int, error) {
	colIndex := rec.Schema().FieldIndices(name)
	if len(colIndex) == 0 {
		return 0, fmt.Errorf("%w| column name: %s", ErrColumnNotFound, name)
	} else if len(colIndex) > 1 {
		return 0, fmt.Errorf("%w| column name: %s", ErrMultipleColumnsFound, name)
	}
	return colIndex[0], nil
}

func ColumnByName(rec arrow.Record, name string) (arrow.Array, error) {
	idx, err := ColumnIndex(rec, name)
	if err != nil {
		return nil, err
	}
	return rec.Column(idx), nil
}

// ReplaceColumn returns a record sharing every column of rec except the one
// at idx, which is replaced by col.
func ReplaceColumn(rec arrow.Record, idx int, col arrow.Array) (arrow.Record, error) {
	if idx < 0 || idx >= int(rec.NumCols()) {
		return nil, fmt.Errorf("%w| column index %d", ErrIndexOutOfBounds, idx)
	}
	if !arrow.TypeEqual(rec.Column(idx).DataType(), col.DataType()) {
		return nil, fmt.Errorf(
			"%w| column %s is %s, replacement is %s",
			ErrSchemasNotEqual, rec.ColumnName(idx), rec.Column(idx).DataType(), col.DataType(),
		)
	}

	cols := make([]arrow.Array, rec.NumCols())
	copy(cols, rec.Columns())
	cols[idx] = col
	return array.NewRecord(rec.Schema(), cols, rec.NumRows()), nil
}

// AppendColumns returns a record with fields/cols added after the existing
// columns of rec.
func AppendColumns(rec arrow.Record, fields []arrow.Field, cols []arrow.Array) (arrow.Record, error) {
	if len(fields) != len(cols) {
		return nil, fmt.Errorf("%w| %d fields for %d columns", ErrSchemasNotEqual, len(fields), len(cols))
	}
	for i, col := range cols {
		if int64(col.Len()) != rec.NumRows() {
			return nil, fmt.Errorf(
				"%w| column %s has %d rows, record has %d",
				ErrIndexOutOfBounds, fields[i].Name, col.Len(), rec.NumRows(),
			)
		}
	}

	allFields := append(append([]arrow.Field{}, rec.Schema().Fields()...), fields...)
	allCols := append(append([]arrow.Array{}, rec.Columns()...), cols...)
	return array.NewRecord(arrow.NewSchema(allFields, nil), allCols, rec.NumRows()), nil
}
