package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/google/uuid"

	dataops "github.com/alekLukanen/CampaignETL/dataOps"
	"github.com/alekLukanen/CampaignETL/elements"
	"github.com/alekLukanen/CampaignETL/operations"
	"github.com/alekLukanen/CampaignETL/storage"
)

type Options struct {
	Bucket       string
	SourcePrefix string
	// rows per batch and part; zero or less processes the source as one part
	ChunkCapacity int
	Comma         rune
	NullValues    []string

	Schema   *elements.Schema
	Cleaner  operations.CleanerOptions
	Features operations.FeatureDeriverOptions

	OutputPrefix   string
	OutputBaseName string
	OutputFormat   dataops.OutputFormat
	WriteManifest  bool

	// only used when a run ledger is configured
	LockDuration time.Duration
}

func DefaultOptions() Options {
	writerOptions := dataops.DefaultPartWriterOptions()
	return Options{
		SourcePrefix:   "raw/",
		ChunkCapacity:  dataops.DefaultChunkCapacity,
		Comma:          ',',
		NullValues:     dataops.DefaultNullValues,
		Schema:         elements.CampaignSchema(),
		Cleaner:        operations.DefaultCleanerOptions(),
		Features:       operations.DefaultFeatureDeriverOptions(),
		OutputPrefix:   writerOptions.KeyPrefix,
		OutputBaseName: writerOptions.BaseName,
		OutputFormat:   writerOptions.Format,
		LockDuration:   15 * time.Minute,
	}
}

func (obj Options) Mode() elements.OutputMode {
	if obj.ChunkCapacity <= 0 {
		return elements.OutputModeSingle
	}
	return elements.OutputModeMulti
}

/*
* Pipeline locates the newest source object, streams it batch by batch
* through the cleaner and feature deriver, and writes every batch as one
* output part. Only one batch is held in memory at a time.
 */
type Pipeline struct {
	logger        *slog.Logger
	mem           *memory.GoAllocator
	objectStorage storage.IObjectStorage
	runLedger     storage.IRunLedger

	options      Options
	outputSchema *arrow.Schema
	transformers []elements.Transformer

	state State
}

// NewPipeline builds a pipeline around its dependencies. runLedger may be
// nil, in which case runs are not guarded against each other.
func NewPipeline(
	logger *slog.Logger,
	mem *memory.GoAllocator,
	objectStorage storage.IObjectStorage,
	runLedger storage.IRunLedger,
	options Options,
) (*Pipeline, error) {
	if objectStorage == nil {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("invalid pipeline options")), fmt.Errorf("%w| object storage is required", ErrPipelineOptions))
	}
	if options.Bucket == "" {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("invalid pipeline options")), fmt.Errorf("%w| bucket is required", ErrPipelineOptions))
	}
	if options.Schema == nil {
		options.Schema = elements.CampaignSchema()
	}
	if err := options.Schema.IsValid(); err != nil {
		return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("invalid pipeline schema")), err)
	}
	if _, err := dataops.ParseOutputFormat(string(options.OutputFormat)); err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed checking output format"))
	}

	cleaner, err := operations.NewCleaner(logger, options.Schema, options.Cleaner)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed creating cleaner"))
	}
	deriver, err := operations.NewFeatureDeriver(logger, options.Schema, options.Features)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed creating feature deriver"))
	}

	return &Pipeline{
		logger:        logger,
		mem:           mem,
		objectStorage: objectStorage,
		runLedger:     runLedger,
		options:       options,
		outputSchema:  deriver.OutputSchema(options.Schema),
		transformers:  []elements.Transformer{cleaner.Transform, deriver.Transform},
		state:         StateIdle,
	}, nil
}

func (obj *Pipeline) State() State {
	return obj.state
}

func (obj *Pipeline) transition(logger *slog.Logger, next State) {
	if !obj.state.CanTransitionTo(next) {
		panic(fmt.Sprintf("%s| %s -> %s", ErrInvalidTransition, obj.state, next))
	}
	logger.Debug("pipeline state", slog.String("from", obj.state.String()), slog.String("to", next.String()))
	obj.state = next
}

// Run processes the newest object under the source prefix. It returns a
// no-input summary without writing anything when the prefix is empty.
func (obj *Pipeline) Run(ctx context.Context) (*elements.ProcessingSummary, error) {
	if obj.state.Terminal() {
		obj.state = StateIdle
	}
	if obj.state != StateIdle {
		return nil, errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed starting run")),
			fmt.Errorf("%w| run started in state %s", ErrInvalidTransition, obj.state),
		)
	}

	runId := uuid.NewString()
	logger := obj.logger.With(slog.String("runId", runId))

	summary, err := obj.run(ctx, logger, runId)
	if err != nil {
		obj.transition(logger, StateFailed)
		logger.Error("run failed", slog.String("error", err.Error()))
		return nil, err
	}
	return summary, nil
}

func (obj *Pipeline) run(ctx context.Context, logger *slog.Logger, runId string) (*elements.ProcessingSummary, error) {
	obj.transition(logger, StateLocating)

	source, found, err := storage.LatestObject(ctx, obj.objectStorage, obj.options.Bucket, obj.options.SourcePrefix)
	if err != nil {
		return nil, errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed listing %s", obj.options.SourcePrefix)),
			ErrSourceUnavailable,
			err,
		)
	}
	if !found {
		obj.transition(logger, StateNoInput)
		logger.Info("no source objects found", slog.String("prefix", obj.options.SourcePrefix))
		return elements.NoInputSummary(runId), nil
	}
	logger = logger.With(slog.String("sourceKey", source.Key))
	logger.Info("located source", slog.Int64("size", source.Size), slog.Time("lastModified", source.LastModified))

	if obj.runLedger != nil {
		lock, err := obj.runLedger.ClaimSource(ctx, source.Key, obj.options.LockDuration)
		if err != nil {
			return nil, errs.Wrap(
				errs.NewStackError(fmt.Errorf("failed claiming source %s", source.Key)),
				ErrRunInProgress,
				err,
			)
		}
		defer func() {
			if _, err := obj.runLedger.ReleaseSourceLock(context.WithoutCancel(ctx), lock); err != nil {
				logger.Warn("failed releasing source lock", slog.String("error", err.Error()))
			}
		}()
	}

	body, err := obj.objectStorage.Open(ctx, obj.options.Bucket, source.Key)
	if err != nil {
		return nil, errs.Wrap(
			errs.NewStackError(fmt.Errorf("failed opening %s", source.Key)),
			ErrSourceUnavailable,
			err,
		)
	}
	defer body.Close()

	reader, err := dataops.NewChunkReader(logger, obj.mem, body, obj.options.Schema, dataops.ChunkReaderOptions{
		ChunkCapacity: obj.options.ChunkCapacity,
		Comma:         obj.options.Comma,
		NullValues:    obj.options.NullValues,
	})
	if err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed creating chunk reader"))
	}
	defer reader.Release()

	writer, err := dataops.NewPartWriter(logger, obj.mem, obj.objectStorage, source.Key, dataops.PartWriterOptions{
		Bucket:        obj.options.Bucket,
		KeyPrefix:     obj.options.OutputPrefix,
		BaseName:      obj.options.OutputBaseName,
		Mode:          obj.options.Mode(),
		Format:        obj.options.OutputFormat,
		WriteManifest: obj.options.WriteManifest,
		RunId:         runId,
	})
	if err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed creating part writer"))
	}

	summary := &elements.ProcessingSummary{
		RunId:     runId,
		Status:    elements.StatusSuccess,
		SourceKey: source.Key,
		Mode:      obj.options.Mode(),
	}

	for {
		obj.transition(logger, StateReading)
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.NewStackError(fmt.Errorf("run cancelled")), err)
		}
		if !reader.Next() {
			if err := reader.Err(); err != nil {
				return nil, errs.Wrap(err, fmt.Errorf("failed reading %s", source.Key))
			}
			break
		}
		raw := reader.Record()

		obj.transition(logger, StateTransforming)
		out, err := obj.transform(ctx, raw)
		if err != nil {
			return nil, errs.Wrap(
				errs.NewStackError(fmt.Errorf("failed transforming batch %d", reader.BatchesRead())),
				err,
			)
		}

		obj.transition(logger, StateWriting)
		_, err = writer.WritePart(ctx, out)
		summary.ProcessedRecords += out.NumRows()
		summary.DroppedRecords += raw.NumRows() - out.NumRows()
		out.Release()
		if err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed writing batch %d", reader.BatchesRead()))
		}
	}

	obj.transition(logger, StateWriting)

	// every successful run leaves at least one part behind
	if writer.Parts() == 0 {
		if err := obj.writeEmptyPart(ctx, writer); err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed writing empty part"))
		}
	}

	if _, err := writer.Finish(ctx); err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed finishing run"))
	}

	summary.Parts = writer.Parts()
	summary.OutputKeys = writer.Keys()
	obj.transition(logger, StateDone)

	logger.Info("run finished",
		slog.String("mode", string(summary.Mode)),
		slog.Int64("processedRecords", summary.ProcessedRecords),
		slog.Int64("droppedRecords", summary.DroppedRecords),
		slog.Int64("malformedValues", reader.MalformedValues()),
		slog.Int64("raggedRows", reader.RaggedRows()),
		slog.Int("parts", summary.Parts),
	)

	if obj.runLedger != nil {
		if err := obj.runLedger.RecordRun(ctx, summary); err != nil {
			logger.Warn("failed recording run", slog.String("error", err.Error()))
		}
	}

	return summary, nil
}

func (obj *Pipeline) transform(ctx context.Context, record arrow.Record) (arrow.Record, error) {
	current := record
	current.Retain()
	for _, transformer := range obj.transformers {
		next, err := transformer(ctx, obj.mem, current)
		current.Release()
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func (obj *Pipeline) writeEmptyPart(ctx context.Context, writer *dataops.PartWriter) error {
	bldr := array.NewRecordBuilder(obj.mem, obj.outputSchema)
	defer bldr.Release()
	record := bldr.NewRecord()
	defer record.Release()

	_, err := writer.WritePart(ctx, record)
	return err
}
