package dataops

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"

	arrowops "github.com/alekLukanen/CampaignETL/arrowOps"
	"github.com/alekLukanen/CampaignETL/elements"
	"github.com/alekLukanen/CampaignETL/storage"
)

type OutputFormat string

const (
	OutputFormatCSV     OutputFormat = "csv"
	OutputFormatParquet OutputFormat = "parquet"
)

func ParseOutputFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return OutputFormatCSV, nil
	case "parquet":
		return OutputFormatParquet, nil
	default:
		return "", errs.Wrap(errs.NewStackError(fmt.Errorf("invalid output format")), fmt.Errorf("%w| %s", ErrUnsupportedFormat, name))
	}
}

func (obj OutputFormat) Extension() string {
	return "." + string(obj)
}

type PartWriterOptions struct {
	Bucket    string
	KeyPrefix string
	BaseName  string
	Mode      elements.OutputMode
	Format    OutputFormat
	// upload a manifest listing every part once the run is finished
	WriteManifest bool
	RunId         string
}

func DefaultPartWriterOptions() PartWriterOptions {
	return PartWriterOptions{
		KeyPrefix: "processed/",
		BaseName:  "ad_campaign_data",
		Mode:      elements.OutputModeMulti,
		Format:    OutputFormatCSV,
	}
}

/*
* PartWriter uploads one object per batch. In multi mode parts are named
* <base>_<ts>_part<N> with N counting from 1, and only part 1 carries the
* csv header, so concatenating parts in order gives one valid file. In
* single mode exactly one object <base>_<ts> is written.
 */
type PartWriter struct {
	logger          *slog.Logger
	mem             *memory.GoAllocator
	objectStorage   storage.IObjectStorage
	manifestStorage *storage.ManifestStorage
	manifestBuilder *storage.PartManifestBuilder

	options   PartWriterOptions
	sourceKey string
	timestamp string

	// schema of the first part, every later part must match it
	schema      *arrow.Schema
	parts       int
	rowsWritten int64
	keys        []string
}

func NewPartWriter(
	logger *slog.Logger,
	mem *memory.GoAllocator,
	objectStorage storage.IObjectStorage,
	sourceKey string,
	options PartWriterOptions,
) (*PartWriter, error) {
	if options.Bucket == "" {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("invalid part writer options")), fmt.Errorf("%w| bucket is required", ErrWriterOptionsInvalid))
	}
	if options.BaseName == "" {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("invalid part writer options")), fmt.Errorf("%w| base name is required", ErrWriterOptionsInvalid))
	}
	if options.Mode != elements.OutputModeSingle && options.Mode != elements.OutputModeMulti {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("invalid part writer options")), fmt.Errorf("%w| mode %q", ErrWriterOptionsInvalid, options.Mode))
	}
	format, err := ParseOutputFormat(string(options.Format))
	if err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed creating part writer"))
	}
	options.Format = format

	return &PartWriter{
		logger:        logger,
		mem:           mem,
		objectStorage: objectStorage,
		manifestStorage: storage.NewManifestStorage(
			logger, objectStorage, storage.ManifestStorageOptions{BucketName: options.Bucket},
		),
		manifestBuilder: storage.NewPartManifestBuilder(
			options.RunId, sourceKey, string(options.Format), string(options.Mode),
		),
		options:   options,
		sourceKey: sourceKey,
		timestamp: SourceTimestamp(sourceKey),
		keys:      make([]string, 0),
	}, nil
}

// SourceTimestamp is the part of the key after its last underscore, without
// a .csv suffix. Keys without an underscore fall back to the file name.
func SourceTimestamp(key string) string {
	timestamp := key
	if idx := strings.LastIndex(key, "_"); idx >= 0 {
		timestamp = key[idx+1:]
	}
	timestamp = strings.TrimSuffix(timestamp, ".csv")
	if strings.Contains(timestamp, "/") {
		timestamp = path.Base(timestamp)
	}
	return timestamp
}

func (obj *PartWriter) Timestamp() string {
	return obj.timestamp
}

// PartKey is the object key of part index, counted from 1.
func (obj *PartWriter) PartKey(index int) string {
	name := fmt.Sprintf("%s_%s", obj.options.BaseName, obj.timestamp)
	if obj.options.Mode == elements.OutputModeMulti {
		name = fmt.Sprintf("%s_part%d", name, index)
	}
	return path.Join(obj.options.KeyPrefix, name+obj.options.Format.Extension())
}

func (obj *PartWriter) ManifestKey() string {
	return path.Join(obj.options.KeyPrefix, fmt.Sprintf("%s_%s_manifest.json", obj.options.BaseName, obj.timestamp))
}

// WritePart encodes the record and uploads it as the next part.
func (obj *PartWriter) WritePart(ctx context.Context, record arrow.Record) (string, error) {
	index := obj.parts + 1
	if obj.options.Mode == elements.OutputModeSingle && index > 1 {
		return "", errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed writing part %d", index)),
			fmt.Errorf("%w| single mode writes one part, got part %d", ErrPartIndexInvalid, index),
		)
	}
	if obj.schema != nil && !arrowops.SchemasEqual(obj.schema, record.Schema()) {
		return "", errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed writing part %d", index)),
			ErrPartSchemaMismatch,
			arrowops.FErrSchemasNotEqual(obj.schema, record.Schema()),
		)
	}
	key := obj.PartKey(index)

	data, err := obj.encode(ctx, record, index == 1)
	if err != nil {
		return "", errs.Wrap(errs.NewStackError(fmt.Errorf("failed encoding part %d", index)), err)
	}

	if err := obj.objectStorage.Upload(ctx, obj.options.Bucket, key, data); err != nil {
		return "", errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed uploading part %d to %s", index, key)),
			ErrSinkUnavailable,
			err,
		)
	}

	obj.parts = index
	obj.schema = record.Schema()
	obj.rowsWritten += record.NumRows()
	obj.keys = append(obj.keys, key)
	obj.manifestBuilder.AddPart(key, record.NumRows(), len(data))

	obj.logger.Info("wrote part",
		slog.Int("part", index),
		slog.String("key", key),
		slog.Int64("rows", record.NumRows()),
		slog.Int("numBytes", len(data)),
	)
	return key, nil
}

// Finish uploads the manifest when it is enabled and returns its key.
func (obj *PartWriter) Finish(ctx context.Context) (string, error) {
	if !obj.options.WriteManifest || obj.parts == 0 {
		return "", nil
	}

	key := obj.ManifestKey()
	if err := obj.manifestStorage.PutPartManifest(ctx, key, obj.manifestBuilder.Manifest()); err != nil {
		return "", errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed uploading manifest %s", key)),
			ErrSinkUnavailable,
			err,
		)
	}
	return key, nil
}

func (obj *PartWriter) Parts() int {
	return obj.parts
}

func (obj *PartWriter) RowsWritten() int64 {
	return obj.rowsWritten
}

func (obj *PartWriter) Keys() []string {
	return obj.keys
}

func (obj *PartWriter) encode(ctx context.Context, record arrow.Record, first bool) ([]byte, error) {
	var buf bytes.Buffer
	switch obj.options.Format {
	case OutputFormatParquet:
		if err := arrowops.WriteRecordToParquet(ctx, obj.mem, record, &buf); err != nil {
			return nil, err
		}
		// the encoded part is read back before it is uploaded
		if err := arrowops.VerifyParquet(ctx, obj.mem, record, buf.Bytes()); err != nil {
			return nil, err
		}
	default:
		writer := csv.NewWriter(
			&buf,
			record.Schema(),
			csv.WithHeader(first),
			csv.WithComma(','),
			csv.WithNullWriter(""),
		)
		if err := writer.Write(record); err != nil {
			return nil, err
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
