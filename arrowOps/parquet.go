package arrowops

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	parquetFileUtils "github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

func WriteRecordToParquet(ctx context.Context, mem *memory.GoAllocator, record arrow.Record, w io.Writer) error {

	parquetWriteProps := parquet.NewWriterProperties(
		parquet.WithStats(true),
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	arrowWriteProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	parquetFileWriter, err := pqarrow.NewFileWriter(record.Schema(), w, parquetWriteProps, arrowWriteProps)
	if err != nil {
		return err
	}

	err = parquetFileWriter.Write(record)
	if err != nil {
		parquetFileWriter.Close()
		return err
	}
	return parquetFileWriter.Close()
}

func ReadParquet(ctx context.Context, mem *memory.GoAllocator, data []byte) (arrow.Table, error) {

	parquetFileReader, err := parquetFileUtils.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer parquetFileReader.Close()

	parquetReadProps := pqarrow.ArrowReadProperties{
		Parallel:  false,
		BatchSize: 1 << 16,
	}
	arrowFileReader, err := pqarrow.NewFileReader(parquetFileReader, parquetReadProps, mem)
	if err != nil {
		return nil, err
	}

	return arrowFileReader.ReadTable(ctx)
}

// VerifyParquet reads data back and checks it holds the columns and rows
// of record.
func VerifyParquet(ctx context.Context, mem *memory.GoAllocator, record arrow.Record, data []byte) error {
	table, err := ReadParquet(ctx, mem, data)
	if err != nil {
		return err
	}
	defer table.Release()

	if table.NumRows() != record.NumRows() {
		return fmt.Errorf("%w| wrote %d rows, read %d", ErrReadBackMismatch, record.NumRows(), table.NumRows())
	}
	schema := table.Schema()
	if schema.NumFields() != record.Schema().NumFields() {
		return fmt.Errorf("%w| %w", ErrReadBackMismatch, FErrSchemasNotEqual(record.Schema(), schema))
	}
	for idx, field := range record.Schema().Fields() {
		readField := schema.Field(idx)
		if readField.Name != field.Name || !arrow.TypeEqual(readField.Type, field.Type) {
			return fmt.Errorf("%w| %w", ErrReadBackMismatch, FErrSchemasNotEqual(record.Schema(), schema))
		}
	}

	reader := array.NewTableReader(table, table.NumRows())
	defer reader.Release()

	var offset int64
	for reader.Next() {
		readRecord := reader.Record()
		written := record.NewSlice(offset, offset+readRecord.NumRows())
		equal := RecordsEqual(written, readRecord)
		written.Release()
		if !equal {
			return fmt.Errorf("%w| rows %d to %d", ErrReadBackMismatch, offset, offset+readRecord.NumRows())
		}
		offset += readRecord.NumRows()
	}
	return reader.Err()
}
