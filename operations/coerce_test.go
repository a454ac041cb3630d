package operations

import (
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekLukanen/CampaignETL/elements"
)

func rawRecord(mem *memory.GoAllocator, schema *elements.Schema, rows [][]*string) arrow.Record {
	bldr := array.NewRecordBuilder(mem, schema.RawArrowSchema())
	defer bldr.Release()
	for _, row := range rows {
		for colIdx, value := range row {
			if value == nil {
				bldr.Field(colIdx).(*array.StringBuilder).AppendNull()
			} else {
				bldr.Field(colIdx).(*array.StringBuilder).Append(*value)
			}
		}
	}
	return bldr.NewRecord()
}

func TestCoerceRecord(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := elements.NewSchema().AddColumns(
		elements.NewColumn("name", arrow.BinaryTypes.String),
		elements.NewColumn("count", arrow.PrimitiveTypes.Int64),
		elements.NewColumn("amount", arrow.PrimitiveTypes.Float64),
	)

	raw := rawRecord(mem, schema, [][]*string{
		{str("a"), str("12"), str("1.5")},
		{str("b"), str(" 7.0 "), str("abc")},
		{nil, str("seven"), nil},
		{str("d"), str("3.5"), str("NaN")},
		{str("e"), nil, str("-2e3")},
	})
	defer raw.Release()

	record, malformed, err := CoerceRecord(mem, raw, schema)
	require.NoError(t, err)
	defer record.Release()

	assert.Equal(t, int64(3), malformed)
	assert.True(t, record.Schema().Equal(schema.ArrowSchema()))

	names := record.Column(0).(*array.String)
	assert.True(t, names.IsNull(2))
	assert.Equal(t, "e", names.Value(4))

	counts := record.Column(1).(*array.Int64)
	assert.Equal(t, int64(12), counts.Value(0))
	assert.Equal(t, int64(7), counts.Value(1))
	assert.True(t, counts.IsNull(2))
	assert.True(t, counts.IsNull(3))
	assert.True(t, counts.IsNull(4))

	amounts := record.Column(2).(*array.Float64)
	assert.Equal(t, 1.5, amounts.Value(0))
	assert.True(t, amounts.IsNull(1))
	assert.True(t, amounts.IsNull(2))
	assert.True(t, amounts.IsNull(3))
	assert.Equal(t, -2000.0, amounts.Value(4))
}

func TestCoerceRecordColumnCountMismatch(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := elements.NewSchema().AddColumns(elements.NewColumn("name", arrow.BinaryTypes.String))

	raw := rawRecord(mem, elements.CampaignSchema(), nil)
	defer raw.Release()

	_, _, err := CoerceRecord(mem, raw, schema)
	assert.ErrorIs(t, err, ErrRecordSchemaMismatch)
}

func TestParseInt64(t *testing.T) {

	testCases := []struct {
		value string
		exp   int64
		expOk bool
	}{
		{value: "42", exp: 42, expOk: true},
		{value: "-3", exp: -3, expOk: true},
		{value: "1e3", exp: 1000, expOk: true},
		{value: "2.0", exp: 2, expOk: true},
		{value: "2.5", expOk: false},
		{value: "inf", expOk: false},
		{value: "", expOk: false},
		{value: "1,000", expOk: false},
	}

	for idx, testCase := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			val, ok := ParseInt64(testCase.value)
			assert.Equal(t, testCase.expOk, ok)
			if testCase.expOk {
				assert.Equal(t, testCase.exp, val)
			}
		})
	}
}
