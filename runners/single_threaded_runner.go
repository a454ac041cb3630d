package runners

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alekLukanen/errs"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/alekLukanen/CampaignETL/elements"
	"github.com/alekLukanen/CampaignETL/pipeline"
	"github.com/alekLukanen/CampaignETL/storage"
)

const (
	StoreKindS3   = "s3"
	StoreKindFile = "file"
)

type Options struct {
	StoreKind            string
	FileRoot             string
	ObjectStorageOptions storage.ObjectStorageOptions
	// redis address; empty disables run locking and run history
	KeyStorageOptions storage.KeyStorageOptions
	PipelineOptions   pipeline.Options
}

/*
* SingleThreadedRunner wires the object store, the optional run ledger and
* the pipeline together for one process. Everything it builds is owned by
* the runner and released by Close.
 */
type SingleThreadedRunner struct {
	logger *slog.Logger

	objectStorage storage.IObjectStorage
	keyStorage    *storage.KeyStorage
	allocator     *memory.GoAllocator
	pipeline      *pipeline.Pipeline
}

func NewSingleThreadedRunner(
	ctx context.Context,
	logger *slog.Logger,
	options Options,
) (*SingleThreadedRunner, error) {
	var objectStorage storage.IObjectStorage
	switch options.StoreKind {
	case StoreKindFile:
		if options.FileRoot == "" {
			return nil, fmt.Errorf("%w| file store needs a root directory", pipeline.ErrPipelineOptions)
		}
		objectStorage = storage.NewFileObjectStorage(logger, options.FileRoot)
	case StoreKindS3, "":
		s3Storage, err := storage.NewObjectStorage(ctx, logger, options.ObjectStorageOptions)
		if err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed creating object storage"))
		}
		objectStorage = s3Storage
	default:
		return nil, fmt.Errorf("%w| unknown store kind %q", pipeline.ErrPipelineOptions, options.StoreKind)
	}

	var (
		keyStorage *storage.KeyStorage
		runLedger  storage.IRunLedger
	)
	if options.KeyStorageOptions.Address != "" {
		var err error
		keyStorage, err = storage.NewKeyStorage(ctx, logger, options.KeyStorageOptions)
		if err != nil {
			return nil, errs.Wrap(err, fmt.Errorf("failed creating key storage"))
		}
		runLedger = keyStorage
	}

	allocator := memory.NewGoAllocator()
	pipe, err := pipeline.NewPipeline(logger, allocator, objectStorage, runLedger, options.PipelineOptions)
	if err != nil {
		if keyStorage != nil {
			keyStorage.Close()
		}
		return nil, errs.Wrap(err, fmt.Errorf("failed creating pipeline"))
	}

	return &SingleThreadedRunner{
		logger:        logger,
		objectStorage: objectStorage,
		keyStorage:    keyStorage,
		allocator:     allocator,
		pipeline:      pipe,
	}, nil
}

func (obj *SingleThreadedRunner) Run(ctx context.Context) (*elements.ProcessingSummary, error) {
	return obj.pipeline.Run(ctx)
}

// LastRun returns the summary the run ledger holds for sourceKey.
func (obj *SingleThreadedRunner) LastRun(ctx context.Context, sourceKey string) (*elements.ProcessingSummary, error) {
	if obj.keyStorage == nil {
		return nil, fmt.Errorf("%w| run history needs a redis address", pipeline.ErrPipelineOptions)
	}
	summary, finishedAt, err := obj.keyStorage.GetLastRun(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	obj.logger.Debug("last run", slog.String("runId", summary.RunId), slog.Time("finishedAt", finishedAt))
	return summary, nil
}

func (obj *SingleThreadedRunner) Close() error {
	if obj.keyStorage != nil {
		return obj.keyStorage.Close()
	}
	return nil
}
