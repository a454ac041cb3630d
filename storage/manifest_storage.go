package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alekLukanen/errs"
)

type IManifestStorage interface {
	GetPartManifest(context.Context, string) (*PartManifest, error)
	PutPartManifest(context.Context, string, *PartManifest) error
}

type ManifestStorageOptions struct {
	BucketName string
}

type ManifestStorage struct {
	logger *slog.Logger

	IObjectStorage

	bucketName string
}

func NewManifestStorage(
	logger *slog.Logger,
	objectStorage IObjectStorage,
	options ManifestStorageOptions,
) *ManifestStorage {
	return &ManifestStorage{
		logger:         logger,
		IObjectStorage: objectStorage,
		bucketName:     options.BucketName,
	}
}

func (obj *ManifestStorage) GetPartManifest(ctx context.Context, key string) (*PartManifest, error) {
	manifestData, err := obj.Download(ctx, obj.bucketName, key)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Errorf("failed downloading manifest %s", key))
	}

	manifest, err := NewManifestFromBytes(manifestData)
	if err != nil {
		return nil, err
	}

	return manifest, nil
}

func (obj *ManifestStorage) PutPartManifest(ctx context.Context, key string, manifest *PartManifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}

	manifestData, err := manifest.ToBytes()
	if err != nil {
		return err
	}

	obj.logger.Debug("writing part manifest", slog.String("key", key), slog.Int("parts", len(manifest.Objects)))
	return obj.Upload(ctx, obj.bucketName, key, manifestData)
}
