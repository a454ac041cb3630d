package operations

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	arrowops "github.com/alekLukanen/CampaignETL/arrowOps"
	"github.com/alekLukanen/CampaignETL/elements"
)

// Ratio is a derived float64 column Numerator / Denominator.
type Ratio struct {
	Name        string
	Numerator   string
	Denominator string
}

type FeatureDeriverOptions struct {
	Ratios []Ratio
}

func DefaultFeatureDeriverOptions() FeatureDeriverOptions {
	return FeatureDeriverOptions{
		Ratios: []Ratio{
			{Name: elements.ColumnCTR, Numerator: elements.ColumnClicks, Denominator: elements.ColumnImpressions},
			{Name: elements.ColumnROI, Numerator: elements.ColumnConversions, Denominator: elements.ColumnSpend},
		},
	}
}

/*
* FeatureDeriver appends one column per ratio. A ratio is 0 whenever
* either operand is null, the denominator is 0, or the result is not
* finite, so derived columns never hold nulls, NaN or infinities.
 */
type FeatureDeriver struct {
	logger  *slog.Logger
	options FeatureDeriverOptions
	fields  []arrow.Field
}

func NewFeatureDeriver(logger *slog.Logger, schema *elements.Schema, options FeatureDeriverOptions) (*FeatureDeriver, error) {
	arrowSchema := schema.ArrowSchema()

	fields := make([]arrow.Field, 0, len(options.Ratios))
	names := make(map[string]struct{}, len(options.Ratios))
	for _, ratio := range options.Ratios {
		if ratio.Name == "" {
			return nil, errs.Wrap(
				errs.NewStackError(fmt.Errorf("invalid ratio")),
				fmt.Errorf("%w| ratio name is empty", ErrFeatureOptionsInvalid),
			)
		}
		if arrowSchema.HasField(ratio.Name) {
			return nil, errs.Wrap(
				errs.NewStackError(fmt.Errorf("invalid ratio %s", ratio.Name)),
				fmt.Errorf("%w| ratio %s collides with a schema column", ErrFeatureOptionsInvalid, ratio.Name),
			)
		}
		if _, ok := names[ratio.Name]; ok {
			return nil, errs.Wrap(
				errs.NewStackError(fmt.Errorf("invalid ratio %s", ratio.Name)),
				fmt.Errorf("%w| duplicate ratio %s", ErrFeatureOptionsInvalid, ratio.Name),
			)
		}
		names[ratio.Name] = struct{}{}

		if err := checkColumnType(arrowSchema, ratio.Numerator, arrow.INT64, arrow.FLOAT64); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed checking numerator of %s", ratio.Name))
		}
		if err := checkColumnType(arrowSchema, ratio.Denominator, arrow.INT64, arrow.FLOAT64); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed checking denominator of %s", ratio.Name))
		}

		fields = append(fields, arrow.Field{Name: ratio.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: false})
	}

	return &FeatureDeriver{
		logger:  logger,
		options: options,
		fields:  fields,
	}, nil
}

// OutputSchema is the schema of records returned by Derive.
func (obj *FeatureDeriver) OutputSchema(schema *elements.Schema) *arrow.Schema {
	fields := append(append([]arrow.Field{}, schema.ArrowSchema().Fields()...), obj.fields...)
	return arrow.NewSchema(fields, nil)
}

// Transform satisfies elements.Transformer.
func (obj *FeatureDeriver) Transform(ctx context.Context, mem *memory.GoAllocator, record arrow.Record) (arrow.Record, error) {
	return obj.Derive(ctx, mem, record)
}

func (obj *FeatureDeriver) Derive(ctx context.Context, mem *memory.GoAllocator, record arrow.Record) (arrow.Record, error) {
	cols := make([]arrow.Array, 0, len(obj.options.Ratios))
	defer func() {
		for _, col := range cols {
			col.Release()
		}
	}()

	for _, ratio := range obj.options.Ratios {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("derive cancelled")), err)
		}

		numerator, err := arrowops.ColumnByName(record, ratio.Numerator)
		if err != nil {
			return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("failed reading numerator of %s", ratio.Name)), err)
		}
		denominator, err := arrowops.ColumnByName(record, ratio.Denominator)
		if err != nil {
			return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("failed reading denominator of %s", ratio.Name)), err)
		}

		col, err := ratioColumn(mem, numerator, denominator)
		if err != nil {
			return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("failed deriving ratio %s", ratio.Name)), err)
		}
		cols = append(cols, col)
	}

	derived, err := arrowops.AppendColumns(record, obj.fields, cols)
	if err != nil {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("failed appending ratio columns")), err)
	}
	return derived, nil
}

func ratioColumn(mem *memory.GoAllocator, numerator, denominator arrow.Array) (arrow.Array, error) {
	builder := array.NewFloat64Builder(mem)
	defer builder.Release()
	builder.Reserve(numerator.Len())

	for i := 0; i < numerator.Len(); i++ {
		num, numOk, err := numericValue(numerator, i)
		if err != nil {
			return nil, err
		}
		den, denOk, err := numericValue(denominator, i)
		if err != nil {
			return nil, err
		}
		builder.Append(SafeRatio(num, numOk, den, denOk))
	}
	return builder.NewArray(), nil
}

// SafeRatio divides num by den and maps every undefined result to 0.
func SafeRatio(num float64, numOk bool, den float64, denOk bool) float64 {
	if !numOk || !denOk || den == 0 {
		return 0
	}
	result := num / den
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0
	}
	return result
}

func numericValue(arr arrow.Array, idx int) (float64, bool, error) {
	if arr.IsNull(idx) {
		return 0, false, nil
	}
	switch typedArr := arr.(type) {
	case *array.Int64:
		return float64(typedArr.Value(idx)), true, nil
	case *array.Float64:
		return typedArr.Value(idx), true, nil
	default:
		return 0, false, fmt.Errorf("%w| %s is not numeric", ErrColumnTypeInvalid, arr.DataType())
	}
}
