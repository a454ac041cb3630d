package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/alekLukanen/CampaignETL/elements"
)

type ILock interface {
	TryLockContext(context.Context) error
	UnlockContext(context.Context) (bool, error)
	Name() string
}

// IRunLedger guards a source object against concurrent runs and keeps the
// summary of the last run for it.
type IRunLedger interface {
	ClaimSource(context.Context, string, time.Duration) (ILock, error)
	ReleaseSourceLock(context.Context, ILock) (bool, error)
	RecordRun(context.Context, *elements.ProcessingSummary) error
}

type KeyStorageOptions struct {
	Address   string
	Password  string
	KeyPrefix string
}

type KeyStorage struct {
	logger *slog.Logger
	client *goredislib.Client
	pool   redsyncredis.Pool
	sync   *redsync.Redsync

	KeyPrefix string
}

func NewKeyStorage(
	ctx context.Context,
	logger *slog.Logger,
	options KeyStorageOptions,
) (*KeyStorage, error) {
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     options.Address,
		Password: options.Password,
		DB:       0,
	})

	redisPool := goredis.NewPool(client)
	mutexSync := redsync.New(redisPool)

	keyStorage := KeyStorage{
		logger:    logger,
		client:    client,
		pool:      redisPool,
		sync:      mutexSync,
		KeyPrefix: options.KeyPrefix,
	}
	return &keyStorage, nil
}

func (obj *KeyStorage) Close() error {
	return obj.client.Close()
}

func (obj *KeyStorage) Key(key string) string {
	return fmt.Sprintf("%s-%s", obj.KeyPrefix, key)
}

func (obj *KeyStorage) DerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	derivedCtx, cancelFunc := context.WithTimeout(ctx, time.Second*15)
	return derivedCtx, cancelFunc
}

func (obj *KeyStorage) AcquireLock(ctx context.Context, key string, duration time.Duration) (ILock, error) {
	mutex := obj.sync.NewMutex(obj.Key(key), redsync.WithExpiry(duration), redsync.WithTries(1))
	if err := mutex.TryLockContext(ctx); err != nil {
		return nil, err
	}
	return mutex, nil
}

func (obj *KeyStorage) ReleaseLock(ctx context.Context, lock ILock) (bool, error) {
	ok, err := lock.UnlockContext(ctx)
	if errors.Is(err, ErrLockAlreadyExpired) {
		obj.logger.Warn("lock expired before release", slog.String("lock", lock.Name()))
	}
	return ok, err
}

func (obj *KeyStorage) ClaimSource(ctx context.Context, sourceKey string, duration time.Duration) (ILock, error) {
	key := fmt.Sprintf("run-state/source-lock/%s", sourceKey)
	obj.logger.Debug("claiming source", slog.String("sourceKey", sourceKey), slog.Duration("duration", duration))
	return obj.AcquireLock(ctx, key, duration)
}

func (obj *KeyStorage) ReleaseSourceLock(ctx context.Context, lock ILock) (bool, error) {
	return obj.ReleaseLock(ctx, lock)
}

func (obj *KeyStorage) RecordRun(ctx context.Context, summary *elements.ProcessingSummary) error {
	key := fmt.Sprintf("run-state/last-run/%s", summary.SourceKey)

	ctx, cancelFunc := obj.DerCtx(ctx)
	defer cancelFunc()

	resp := obj.client.HSet(ctx, obj.Key(key),
		"run_id", summary.RunId,
		"status", string(summary.Status),
		"mode", string(summary.Mode),
		"processed_records", summary.ProcessedRecords,
		"dropped_records", summary.DroppedRecords,
		"parts", summary.Parts,
		"finished_at", time.Now().UTC().UnixMilli(),
	)
	return resp.Err()
}

// GetLastRun reads back what RecordRun stored for sourceKey.
func (obj *KeyStorage) GetLastRun(ctx context.Context, sourceKey string) (*elements.ProcessingSummary, time.Time, error) {
	key := fmt.Sprintf("run-state/last-run/%s", sourceKey)

	ctx, cancelFunc := obj.DerCtx(ctx)
	defer cancelFunc()

	resp := obj.client.HGetAll(ctx, obj.Key(key))
	if resp.Err() != nil {
		return nil, time.Time{}, resp.Err()
	}
	values := resp.Val()
	if len(values) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w| no run recorded for %s", ErrObjectNotFound, sourceKey)
	}

	summary := &elements.ProcessingSummary{
		RunId:     values["run_id"],
		Status:    elements.RunStatus(values["status"]),
		Mode:      elements.OutputMode(values["mode"]),
		SourceKey: sourceKey,
	}

	var err error
	if summary.ProcessedRecords, err = strconv.ParseInt(values["processed_records"], 10, 64); err != nil {
		return nil, time.Time{}, err
	}
	if summary.DroppedRecords, err = strconv.ParseInt(values["dropped_records"], 10, 64); err != nil {
		return nil, time.Time{}, err
	}
	if summary.Parts, err = strconv.Atoi(values["parts"]); err != nil {
		return nil, time.Time{}, err
	}
	finishedAt, err := strconv.ParseInt(values["finished_at"], 10, 64)
	if err != nil {
		return nil, time.Time{}, err
	}

	return summary, time.UnixMilli(finishedAt).UTC(), nil
}
