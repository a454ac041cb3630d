package arrowops

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// TakeRecordRows builds a new record holding the given rows of record, in the
// order of rows. Null slots stay null.
func TakeRecordRows(mem *memory.GoAllocator, record arrow.Record, rows []int) (arrow.Record, error) {
	record.Retain()
	defer record.Release()

	for _, row := range rows {
		if row < 0 || int64(row) >= record.NumRows() {
			return nil, fmt.Errorf("%w| row %d of %d", ErrIndexOutOfBounds, row, record.NumRows())
		}
	}

	takenFields := make([]arrow.Array, record.NumCols())
	defer func() {
		for _, arr := range takenFields {
			if arr != nil {
				arr.Release()
			}
		}
	}()
	for i := 0; i < int(record.NumCols()); i++ {
		takenRows, err := TakeArray(mem, record.Column(i), rows)
		if err != nil {
			return nil, fmt.Errorf("%w| column %s", err, record.ColumnName(i))
		}
		takenFields[i] = takenRows
	}
	return array.NewRecord(record.Schema(), takenFields, int64(len(rows))), nil
}

func TakeArray(mem *memory.GoAllocator, arr arrow.Array, rows []int) (arrow.Array, error) {
	switch arr.DataType().ID() {
	case arrow.INT64:
		return takeValues[int64](arr.(*array.Int64), array.NewInt64Builder(mem), rows), nil
	case arrow.FLOAT64:
		return takeValues[float64](arr.(*array.Float64), array.NewFloat64Builder(mem), rows), nil
	case arrow.STRING:
		return takeValues[string](arr.(*array.String), array.NewStringBuilder(mem), rows), nil
	case arrow.BOOL:
		return takeValues[bool](arr.(*array.Boolean), array.NewBooleanBuilder(mem), rows), nil
	default:
		return nil, fmt.Errorf("%w| %s", ErrUnsupportedDataType, arr.DataType())
	}
}

func takeValues[T comparable](arr valueArray[T], b valueBuilder[T], rows []int) arrow.Array {
	defer b.Release()
	b.Reserve(len(rows))
	for _, row := range rows {
		if arr.IsNull(row) {
			b.AppendNull()
			continue
		}
		b.Append(arr.Value(row))
	}
	return b.NewArray()
}
