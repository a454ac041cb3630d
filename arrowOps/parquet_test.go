package arrowops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

func TestWritingAndReadingParquet(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	data := mockData(mem)
	defer data.Release()

	var buf bytes.Buffer
	err := WriteRecordToParquet(ctx, mem, data, &buf)
	if err != nil {
		t.Fatalf("WriteRecordToParquet failed: %v", err)
	}

	table, err := ReadParquet(ctx, mem, buf.Bytes())
	if err != nil {
		t.Fatalf("ReadParquet failed: %v", err)
	}
	defer table.Release()

	if table.NumRows() != data.NumRows() {
		t.Fatalf("expected %d rows, got %d", data.NumRows(), table.NumRows())
	}

	reader := array.NewTableReader(table, -1)
	defer reader.Release()
	if !reader.Next() {
		t.Fatalf("expected a record from the table reader")
	}
	if !RecordsEqual(data, reader.Record()) {
		t.Log("Expected:", data)
		t.Log("Got:", reader.Record())
		t.Errorf("records are not equal")
	}
}

func TestVerifyParquet(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	data := mockData(mem)
	defer data.Release()

	var buf bytes.Buffer
	if err := WriteRecordToParquet(ctx, mem, data, &buf); err != nil {
		t.Fatalf("WriteRecordToParquet failed: %v", err)
	}

	head := data.NewSlice(0, 2)
	defer head.Release()
	changed, err := TakeRecordRows(mem, data, []int{0, 1, 3, 2})
	if err != nil {
		t.Fatalf("TakeRecordRows failed: %v", err)
	}
	defer changed.Release()

	testCases := []struct {
		record      arrow.Record
		data        []byte
		expectedErr error
	}{
		{record: data, data: buf.Bytes()},
		{record: head, data: buf.Bytes(), expectedErr: ErrReadBackMismatch},
		{record: changed, data: buf.Bytes(), expectedErr: ErrReadBackMismatch},
	}

	for idx, testCase := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			err := VerifyParquet(ctx, mem, testCase.record, testCase.data)
			if !errors.Is(err, testCase.expectedErr) {
				t.Errorf("expected error %v, got %v", testCase.expectedErr, err)
			}
		})
	}

	if err := VerifyParquet(ctx, mem, data, []byte("not parquet")); err == nil {
		t.Errorf("expected an error for a corrupt part")
	}
}
