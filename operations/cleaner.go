package operations

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/zeebo/xxh3"

	arrowops "github.com/alekLukanen/CampaignETL/arrowOps"
	"github.com/alekLukanen/CampaignETL/elements"
)

type CleanerOptions struct {
	PlatformColumn      string
	PlatformCorrections map[string]string

	// nulls replaced with the batch median of the column
	MedianFillColumns []string
	// nulls replaced with zero
	ZeroFillColumns []string
	// rows with a null in any of these columns are dropped
	EssentialColumns []string
}

func DefaultCleanerOptions() CleanerOptions {
	return CleanerOptions{
		PlatformColumn: elements.ColumnPlatform,
		PlatformCorrections: map[string]string{
			"Facebok":     "Facebook",
			"Gooogle Ads": "Google Ads",
			"Tik-Tok":     "TikTok",
		},
		MedianFillColumns: []string{elements.ColumnClicks},
		ZeroFillColumns:   []string{elements.ColumnConversions},
		EssentialColumns:  []string{elements.ColumnCampaignId, elements.ColumnDate},
	}
}

type CleanStats struct {
	InputRows         int64
	DuplicatesRemoved int64
	PlatformsFixed    int64
	MedianFilled      int64
	ZeroFilled        int64
	EssentialDropped  int64
}

func (obj CleanStats) OutputRows() int64 {
	return obj.InputRows - obj.DuplicatesRemoved - obj.EssentialDropped
}

/*
* Cleaner applies the batch cleaning rules in a fixed order:
* dedup, platform corrections, median fill, zero fill, essential drop.
* Every rule only looks at the batch it is given.
 */
type Cleaner struct {
	logger  *slog.Logger
	schema  *arrow.Schema
	options CleanerOptions
	encoder *RowEncoder
}

func NewCleaner(logger *slog.Logger, schema *elements.Schema, options CleanerOptions) (*Cleaner, error) {
	arrowSchema := schema.ArrowSchema()

	if options.PlatformColumn != "" {
		if err := checkColumnType(arrowSchema, options.PlatformColumn, arrow.STRING); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed checking platform column"))
		}
	}
	for _, name := range options.MedianFillColumns {
		if err := checkColumnType(arrowSchema, name, arrow.INT64, arrow.FLOAT64); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed checking median fill column"))
		}
	}
	for _, name := range options.ZeroFillColumns {
		if err := checkColumnType(arrowSchema, name, arrow.INT64, arrow.FLOAT64); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed checking zero fill column"))
		}
		if slices.Contains(options.MedianFillColumns, name) {
			return nil, errs.Wrap(
				errs.NewStackError(fmt.Errorf("invalid cleaner options")),
				fmt.Errorf("%w| column %s is both median and zero filled", ErrCleanerOptionsInvalid, name),
			)
		}
	}
	for _, name := range options.EssentialColumns {
		if err := checkColumnType(arrowSchema, name); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed checking essential column"))
		}
	}

	encoder, err := NewRowEncoder(arrowSchema)
	if err != nil {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("failed creating row encoder")), err)
	}

	return &Cleaner{
		logger:  logger,
		schema:  arrowSchema,
		options: options,
		encoder: encoder,
	}, nil
}

// Transform satisfies elements.Transformer.
func (obj *Cleaner) Transform(ctx context.Context, mem *memory.GoAllocator, record arrow.Record) (arrow.Record, error) {
	cleaned, stats, err := obj.Clean(ctx, mem, record)
	if err != nil {
		return nil, err
	}
	obj.logger.Debug("cleaned batch",
		slog.Int64("inputRows", stats.InputRows),
		slog.Int64("duplicatesRemoved", stats.DuplicatesRemoved),
		slog.Int64("platformsFixed", stats.PlatformsFixed),
		slog.Int64("medianFilled", stats.MedianFilled),
		slog.Int64("zeroFilled", stats.ZeroFilled),
		slog.Int64("essentialDropped", stats.EssentialDropped),
	)
	return cleaned, nil
}

// Clean returns a new record owned by the caller. The input record is not
// modified or released.
func (obj *Cleaner) Clean(ctx context.Context, mem *memory.GoAllocator, record arrow.Record) (arrow.Record, CleanStats, error) {
	stats := CleanStats{InputRows: record.NumRows()}

	if !record.Schema().Equal(obj.schema) {
		return nil, stats, errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed cleaning batch")),
			fmt.Errorf("%w| cleaner schema %s, record schema %s", ErrRecordSchemaMismatch, obj.schema, record.Schema()),
		)
	}

	current := record
	current.Retain()
	replace := func(next arrow.Record) {
		current.Release()
		current = next
	}
	fail := func(err error) (arrow.Record, CleanStats, error) {
		current.Release()
		return nil, stats, errs.Wrap(errs.NewStackError(fmt.Errorf("failed cleaning batch")), err)
	}

	// dedup
	keep, err := obj.uniqueRows(ctx, current)
	if err != nil {
		return fail(err)
	}
	if len(keep) < int(current.NumRows()) {
		stats.DuplicatesRemoved = current.NumRows() - int64(len(keep))
		next, err := arrowops.TakeRecordRows(mem, current, keep)
		if err != nil {
			return fail(err)
		}
		replace(next)
	}

	// platform corrections
	if obj.options.PlatformColumn != "" && len(obj.options.PlatformCorrections) > 0 {
		next, fixed, err := obj.correctPlatforms(mem, current)
		if err != nil {
			return fail(err)
		}
		stats.PlatformsFixed = fixed
		replace(next)
	}

	// median fill
	for _, name := range obj.options.MedianFillColumns {
		next, filled, err := fillColumn(mem, current, name, medianOf)
		if err != nil {
			return fail(err)
		}
		stats.MedianFilled += filled
		replace(next)
	}

	// zero fill
	for _, name := range obj.options.ZeroFillColumns {
		next, filled, err := fillColumn(mem, current, name, zeroOf)
		if err != nil {
			return fail(err)
		}
		stats.ZeroFilled += filled
		replace(next)
	}

	// essential drop
	if len(obj.options.EssentialColumns) > 0 {
		keep, err := rowsWithValues(current, obj.options.EssentialColumns)
		if err != nil {
			return fail(err)
		}
		if len(keep) < int(current.NumRows()) {
			stats.EssentialDropped = current.NumRows() - int64(len(keep))
			next, err := arrowops.TakeRecordRows(mem, current, keep)
			if err != nil {
				return fail(err)
			}
			replace(next)
		}
	}

	return current, stats, nil
}

// uniqueRows returns the indices of the first occurrence of every distinct row.
func (obj *Cleaner) uniqueRows(ctx context.Context, record arrow.Record) ([]int, error) {
	numRows := int(record.NumRows())
	keep := make([]int, 0, numRows)
	buckets := make(map[uint64][]int, numRows)
	encoded := make([][]byte, 0, numRows)

	for i := 0; i < numRows; i++ {
		if i%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		data, err := obj.encoder.EncodeRow(record, i)
		if err != nil {
			return nil, err
		}
		hash := xxh3.Hash(data)

		duplicate := false
		for _, prevIdx := range buckets[hash] {
			if bytes.Equal(encoded[prevIdx], data) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		buckets[hash] = append(buckets[hash], len(encoded))
		encoded = append(encoded, data)
		keep = append(keep, i)
	}

	return keep, nil
}

func (obj *Cleaner) correctPlatforms(mem *memory.GoAllocator, record arrow.Record) (arrow.Record, int64, error) {
	colIdx, err := arrowops.ColumnIndex(record, obj.options.PlatformColumn)
	if err != nil {
		return nil, 0, err
	}
	platforms := record.Column(colIdx).(*array.String)

	builder := array.NewStringBuilder(mem)
	defer builder.Release()
	builder.Reserve(platforms.Len())

	var fixed int64
	for i := 0; i < platforms.Len(); i++ {
		if platforms.IsNull(i) {
			builder.AppendNull()
			continue
		}
		value := platforms.Value(i)
		if corrected, ok := obj.options.PlatformCorrections[value]; ok {
			value = corrected
			fixed++
		}
		builder.Append(value)
	}

	col := builder.NewArray()
	defer col.Release()

	next, err := arrowops.ReplaceColumn(record, colIdx, col)
	if err != nil {
		return nil, 0, err
	}
	return next, fixed, nil
}

type fillValueFunc func(values []float64) float64

// medianOf is the middle value of the sorted values, or the mean of the
// two middle values. An empty column has median 0.
func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func zeroOf([]float64) float64 {
	return 0
}

func fillColumn(mem *memory.GoAllocator, record arrow.Record, name string, fillValue fillValueFunc) (arrow.Record, int64, error) {
	colIdx, err := arrowops.ColumnIndex(record, name)
	if err != nil {
		return nil, 0, err
	}
	col := record.Column(colIdx)

	if col.NullN() == 0 {
		record.Retain()
		return record, 0, nil
	}

	var filledCol arrow.Array
	switch typedCol := col.(type) {
	case *array.Int64:
		values := make([]float64, 0, typedCol.Len()-typedCol.NullN())
		for i := 0; i < typedCol.Len(); i++ {
			if typedCol.IsValid(i) {
				values = append(values, float64(typedCol.Value(i)))
			}
		}
		fill := int64(math.RoundToEven(fillValue(values)))

		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.Reserve(typedCol.Len())
		for i := 0; i < typedCol.Len(); i++ {
			if typedCol.IsNull(i) {
				builder.Append(fill)
			} else {
				builder.Append(typedCol.Value(i))
			}
		}
		filledCol = builder.NewArray()
	case *array.Float64:
		values := make([]float64, 0, typedCol.Len()-typedCol.NullN())
		for i := 0; i < typedCol.Len(); i++ {
			if typedCol.IsValid(i) {
				values = append(values, typedCol.Value(i))
			}
		}
		fill := fillValue(values)

		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.Reserve(typedCol.Len())
		for i := 0; i < typedCol.Len(); i++ {
			if typedCol.IsNull(i) {
				builder.Append(fill)
			} else {
				builder.Append(typedCol.Value(i))
			}
		}
		filledCol = builder.NewArray()
	default:
		return nil, 0, fmt.Errorf("%w| column %s has type %s", ErrColumnTypeInvalid, name, col.DataType())
	}
	defer filledCol.Release()

	next, err := arrowops.ReplaceColumn(record, colIdx, filledCol)
	if err != nil {
		return nil, 0, err
	}
	return next, int64(col.NullN()), nil
}

func rowsWithValues(record arrow.Record, names []string) ([]int, error) {
	cols := make([]arrow.Array, 0, len(names))
	for _, name := range names {
		colIdx, err := arrowops.ColumnIndex(record, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, record.Column(colIdx))
	}

	keep := make([]int, 0, record.NumRows())
	for i := 0; i < int(record.NumRows()); i++ {
		valid := true
		for _, col := range cols {
			if col.IsNull(i) {
				valid = false
				break
			}
		}
		if valid {
			keep = append(keep, i)
		}
	}
	return keep, nil
}

func checkColumnType(schema *arrow.Schema, name string, allowed ...arrow.Type) error {
	indices := schema.FieldIndices(name)
	if len(indices) == 0 {
		return errs.Wrap(errs.NewStackError(fmt.Errorf("missing column")), fmt.Errorf("%w| %s", ErrColumnNotFound, name))
	}
	if len(allowed) == 0 {
		return nil
	}
	fieldType := schema.Field(indices[0]).Type.ID()
	if slices.Contains(allowed, fieldType) {
		return nil
	}
	return errs.Wrap(
		errs.NewStackError(fmt.Errorf("wrong column type")),
		fmt.Errorf("%w| column %s has type %s", ErrColumnTypeInvalid, name, schema.Field(indices[0]).Type),
	)
}
