package arrowops

import (
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

func mockData(mem *memory.GoAllocator) arrow.Record {
	rb := array.NewRecordBuilder(mem, arrow.NewSchema(
		[]arrow.Field{
			{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "b", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
			{Name: "c", Type: arrow.BinaryTypes.String, Nullable: true},
		}, nil))
	defer rb.Release()
	rb.Field(0).(*array.Int64Builder).AppendValues([]int64{0, 1, 2, 3}, []bool{true, false, true, true})
	rb.Field(1).(*array.Float64Builder).AppendValues([]float64{0., 1., 2., 3.}, nil)
	rb.Field(2).(*array.StringBuilder).AppendValues([]string{"s0", "s1", "", "s3"}, []bool{true, true, false, true})
	return rb.NewRecord()
}

func TestTakeRecordRows(t *testing.T) {

	mem := memory.NewGoAllocator()

	testCases := []struct {
		rows        []int
		expectedA   []int64
		expectedAOk []bool
		expectedC   []string
		expectedErr error
	}{
		{
			rows:        []int{0, 1, 3},
			expectedA:   []int64{0, 0, 3},
			expectedAOk: []bool{true, false, true},
			expectedC:   []string{"s0", "s1", "s3"},
		},
		{
			rows:        []int{3, 2},
			expectedA:   []int64{3, 2},
			expectedAOk: []bool{true, true},
			expectedC:   []string{"s3", ""},
		},
		{
			rows:      []int{},
			expectedA: []int64{},
			expectedC: []string{},
		},
		{
			rows:        []int{4},
			expectedErr: ErrIndexOutOfBounds,
		},
	}

	for idx, testCase := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			record := mockData(mem)
			defer record.Release()

			result, err := TakeRecordRows(mem, record, testCase.rows)
			if !errors.Is(err, testCase.expectedErr) {
				t.Fatalf("expected error '%v' but received '%v'", testCase.expectedErr, err)
			}
			if testCase.expectedErr != nil {
				return
			}
			defer result.Release()

			if result.NumRows() != int64(len(testCase.rows)) {
				t.Fatalf("expected %d rows, got %d", len(testCase.rows), result.NumRows())
			}
			a := result.Column(0).(*array.Int64)
			for i, exp := range testCase.expectedA {
				if len(testCase.expectedAOk) > 0 && !testCase.expectedAOk[i] {
					if !a.IsNull(i) {
						t.Errorf("expected null at %d", i)
					}
					continue
				}
				if a.Value(i) != exp {
					t.Errorf("expected %d at %d, got %d", exp, i, a.Value(i))
				}
			}
			c := result.Column(2).(*array.String)
			for i, exp := range testCase.expectedC {
				if exp == "" {
					if !c.IsNull(i) {
						t.Errorf("expected null string at %d", i)
					}
					continue
				}
				if c.Value(i) != exp {
					t.Errorf("expected %s at %d, got %s", exp, i, c.Value(i))
				}
			}
		})
	}
}

func TestAppendAndReplaceColumns(t *testing.T) {
	mem := memory.NewGoAllocator()
	record := mockData(mem)
	defer record.Release()

	bldr := array.NewFloat64Builder(mem)
	bldr.AppendValues([]float64{9, 9, 9, 9}, nil)
	col := bldr.NewArray()
	bldr.Release()
	defer col.Release()

	appended, err := AppendColumns(record, []arrow.Field{{Name: "d", Type: arrow.PrimitiveTypes.Float64}}, []arrow.Array{col})
	if err != nil {
		t.Fatalf("AppendColumns failed: %v", err)
	}
	defer appended.Release()
	if appended.NumCols() != 4 || appended.ColumnName(3) != "d" {
		t.Fatalf("unexpected schema %s", appended.Schema())
	}

	replaced, err := ReplaceColumn(record, 1, col)
	if err != nil {
		t.Fatalf("ReplaceColumn failed: %v", err)
	}
	defer replaced.Release()
	if replaced.Column(1).(*array.Float64).Value(0) != 9 {
		t.Errorf("column was not replaced")
	}

	_, err = ReplaceColumn(record, 0, col)
	if !errors.Is(err, ErrSchemasNotEqual) {
		t.Errorf("expected ErrSchemasNotEqual, got %v", err)
	}

	_, err = ColumnByName(record, "missing")
	if !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}
