package dataops

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/alekLukanen/CampaignETL/elements"
	"github.com/alekLukanen/CampaignETL/operations"
)

// DefaultNullValues are the cell values read as missing.
var DefaultNullValues = []string{"", "NA", "N/A", "NaN", "nan", "NULL", "null", "None", "<NA>", "#N/A"}

const DefaultChunkCapacity = 1_000_000

type ChunkReaderOptions struct {
	// rows per batch; zero or less reads the whole source as one batch
	ChunkCapacity int
	Comma         rune
	NullValues    []string
}

func DefaultChunkReaderOptions() ChunkReaderOptions {
	return ChunkReaderOptions{
		ChunkCapacity: DefaultChunkCapacity,
		Comma:         ',',
		NullValues:    DefaultNullValues,
	}
}

/*
* ChunkReader turns a delimited text stream into typed record batches of
* at most ChunkCapacity rows. The header row must name exactly the schema
* columns, in any order. Rows with fewer fields than the header are padded
* with nulls and rows with more are cut; both count as malformed values.
* Only the current batch is held; it is released when Next is called again.
 */
type ChunkReader struct {
	logger  *slog.Logger
	mem     *memory.GoAllocator
	schema  *elements.Schema
	options ChunkReaderOptions

	source *bufio.Reader
	rows   *rowNormalizer
	reader *csv.Reader
	// schema column index -> file column index
	order []int

	record    arrow.Record
	err       error
	started   bool
	exhausted bool

	batchesRead     int
	rowsRead        int64
	malformedValues int64
}

func NewChunkReader(
	logger *slog.Logger,
	mem *memory.GoAllocator,
	source io.Reader,
	schema *elements.Schema,
	options ChunkReaderOptions,
) (*ChunkReader, error) {
	if err := schema.IsValid(); err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed validating reader schema"))
	}
	if options.Comma == 0 {
		options.Comma = ','
	}
	if options.NullValues == nil {
		options.NullValues = DefaultNullValues
	}

	// a leading utf-8 byte order mark is dropped, anything else passes through
	decoded := transform.NewReader(source, unicode.BOMOverride(transform.Nop))

	return &ChunkReader{
		logger:  logger,
		mem:     mem,
		schema:  schema,
		options: options,
		source:  bufio.NewReaderSize(decoded, 64*1024),
	}, nil
}

func (obj *ChunkReader) Next() bool {
	if obj.record != nil {
		obj.record.Release()
		obj.record = nil
	}
	if obj.err != nil || obj.exhausted {
		return false
	}

	if !obj.started {
		obj.started = true
		if err := obj.start(); err != nil {
			obj.err = err
			return false
		}
		if obj.reader == nil {
			obj.logger.Info("source has no header, no batches to read")
			obj.exhausted = true
			return false
		}
	}

	if !obj.reader.Next() {
		if err := obj.reader.Err(); err != nil {
			obj.err = errs.Wrap(
				errs.NewStackError(fmt.Errorf("failed reading batch %d", obj.batchesRead+1)),
				ErrSourceUnavailable,
				err,
			)
		}
		obj.exhausted = true
		return false
	}

	raw := obj.orderColumns(obj.reader.Record())
	record, malformed, err := operations.CoerceRecord(obj.mem, raw, obj.schema)
	raw.Release()
	if err != nil {
		obj.err = errs.Wrap(err, fmt.Errorf("failed coercing batch %d", obj.batchesRead+1))
		return false
	}

	obj.record = record
	obj.batchesRead++
	obj.rowsRead += record.NumRows()
	obj.malformedValues += malformed

	if malformed > 0 {
		obj.logger.Debug("malformed values set to null",
			slog.Int("batch", obj.batchesRead),
			slog.Int64("malformedValues", malformed),
		)
	}
	obj.logger.Debug("read batch",
		slog.Int("batch", obj.batchesRead),
		slog.Int64("rows", record.NumRows()),
	)
	return true
}

// Record is valid until the next call to Next. Retain it to keep it longer.
func (obj *ChunkReader) Record() arrow.Record {
	return obj.record
}

func (obj *ChunkReader) Err() error {
	return obj.err
}

func (obj *ChunkReader) BatchesRead() int {
	return obj.batchesRead
}

func (obj *ChunkReader) RowsRead() int64 {
	return obj.rowsRead
}

// MalformedValues counts values set to null because they did not parse, plus
// cells padded or dropped on rows whose width differed from the header.
func (obj *ChunkReader) MalformedValues() int64 {
	if obj.rows == nil {
		return obj.malformedValues
	}
	return obj.malformedValues + obj.rows.CellsFilled()
}

func (obj *ChunkReader) RaggedRows() int64 {
	if obj.rows == nil {
		return 0
	}
	return obj.rows.RaggedRows()
}

func (obj *ChunkReader) Release() {
	if obj.record != nil {
		obj.record.Release()
		obj.record = nil
	}
	if obj.reader != nil {
		obj.reader.Release()
		obj.reader = nil
	}
	obj.exhausted = true
}

func (obj *ChunkReader) start() error {
	obj.rows = newRowNormalizer(obj.logger, obj.source, obj.options.Comma, obj.fillValue())

	header, err := obj.rows.Header()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.NewStackError(fmt.Errorf("failed reading header")), ErrSourceUnavailable, err)
	}

	fileSchema, err := obj.matchHeader(header)
	if err != nil {
		return errs.Wrap(errs.NewStackError(fmt.Errorf("failed matching header")), err)
	}

	chunk := obj.options.ChunkCapacity
	if chunk <= 0 {
		chunk = -1
	}

	obj.reader = csv.NewReader(
		obj.rows,
		fileSchema,
		csv.WithHeader(false),
		csv.WithChunk(chunk),
		csv.WithComma(obj.options.Comma),
		csv.WithNullReader(true, obj.options.NullValues...),
		csv.WithAllocator(obj.mem),
	)
	return nil
}

// fillValue is the cell written into padded fields, always read as null.
func (obj *ChunkReader) fillValue() string {
	if len(obj.options.NullValues) == 0 || slices.Contains(obj.options.NullValues, "") {
		return ""
	}
	return obj.options.NullValues[0]
}

func (obj *ChunkReader) matchHeader(header []string) (*arrow.Schema, error) {
	expected := obj.schema.ColumnNames()
	if len(header) != len(expected) {
		return nil, FErrHeaderMismatch(header, expected)
	}

	fileIndex := make(map[string]int, len(header))
	fields := make([]arrow.Field, len(header))
	for idx, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := fileIndex[name]; ok {
			return nil, FErrHeaderMismatch(header, expected)
		}
		fileIndex[name] = idx
		fields[idx] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}

	obj.order = make([]int, len(expected))
	for idx, name := range expected {
		fileIdx, ok := fileIndex[name]
		if !ok {
			return nil, FErrHeaderMismatch(header, expected)
		}
		obj.order[idx] = fileIdx
	}

	return arrow.NewSchema(fields, nil), nil
}

// orderColumns returns a record in schema column order sharing the
// columns of the file record.
func (obj *ChunkReader) orderColumns(fileRecord arrow.Record) arrow.Record {
	cols := make([]arrow.Array, len(obj.order))
	for idx, fileIdx := range obj.order {
		cols[idx] = fileRecord.Column(fileIdx)
	}
	return array.NewRecord(obj.schema.RawArrowSchema(), cols, fileRecord.NumRows())
}
