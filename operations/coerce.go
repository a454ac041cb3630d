package operations

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/alekLukanen/CampaignETL/elements"
)

/*
* Converts a record of raw string columns into the typed layout declared by
* the schema. Values that cannot be parsed become null and are counted as
* malformed rather than failing the batch.
 */
func CoerceRecord(mem *memory.GoAllocator, raw arrow.Record, schema *elements.Schema) (arrow.Record, int64, error) {
	columns := schema.Columns()
	if int(raw.NumCols()) != len(columns) {
		return nil, 0, errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed coercing record")),
			fmt.Errorf("%w| expected %d columns, got %d", ErrRecordSchemaMismatch, len(columns), raw.NumCols()),
		)
	}

	var malformed int64
	arrays := make([]arrow.Array, 0, len(columns))
	release := func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}

	for idx, col := range columns {
		strArr, ok := raw.Column(idx).(*array.String)
		if !ok {
			release()
			return nil, 0, errs.Wrap(
				errs.NewStackError(fmt.Errorf("failed coercing column %s", col.Name)),
				fmt.Errorf("%w| column %s is %s, expected string", ErrColumnTypeInvalid, col.Name, raw.Column(idx).DataType()),
			)
		}

		var (
			arr arrow.Array
			bad int64
		)
		switch col.Dtype.ID() {
		case arrow.STRING:
			strArr.Retain()
			arr = strArr
		case arrow.INT64:
			arr, bad = coerceInt64(mem, strArr)
		case arrow.FLOAT64:
			arr, bad = coerceFloat64(mem, strArr)
		default:
			release()
			return nil, 0, errs.Wrap(
				errs.NewStackError(fmt.Errorf("failed coercing column %s", col.Name)),
				fmt.Errorf("%w| column %s has type %s", elements.ErrUnsupportedDataType, col.Name, col.Dtype),
			)
		}
		malformed += bad
		arrays = append(arrays, arr)
	}

	record := array.NewRecord(schema.ArrowSchema(), arrays, raw.NumRows())
	release()
	return record, malformed, nil
}

func coerceInt64(mem *memory.GoAllocator, strArr *array.String) (arrow.Array, int64) {
	builder := array.NewInt64Builder(mem)
	defer builder.Release()
	builder.Reserve(strArr.Len())

	var bad int64
	for i := 0; i < strArr.Len(); i++ {
		if strArr.IsNull(i) {
			builder.AppendNull()
			continue
		}
		val, ok := ParseInt64(strArr.Value(i))
		if !ok {
			bad++
			builder.AppendNull()
			continue
		}
		builder.Append(val)
	}
	return builder.NewArray(), bad
}

func coerceFloat64(mem *memory.GoAllocator, strArr *array.String) (arrow.Array, int64) {
	builder := array.NewFloat64Builder(mem)
	defer builder.Release()
	builder.Reserve(strArr.Len())

	var bad int64
	for i := 0; i < strArr.Len(); i++ {
		if strArr.IsNull(i) {
			builder.AppendNull()
			continue
		}
		val, ok := ParseFloat64(strArr.Value(i))
		if !ok {
			bad++
			builder.AppendNull()
			continue
		}
		if math.IsNaN(val) {
			builder.AppendNull()
			continue
		}
		builder.Append(val)
	}
	return builder.NewArray(), bad
}

// ParseInt64 accepts plain integers and integral decimals such as "12.0".
func ParseInt64(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if val, err := strconv.ParseInt(value, 10, 64); err == nil {
		return val, true
	}

	fval, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(fval) || math.IsInf(fval, 0) {
		return 0, false
	}
	if fval != math.Trunc(fval) || fval < math.MinInt64 || fval >= math.MaxInt64 {
		return 0, false
	}
	return int64(fval), true
}

func ParseFloat64(value string) (float64, bool) {
	val, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return val, true
}
