package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

/*
* FileObjectStorage keeps objects as plain files under Root/<bucket>/<key>.
* It is used for local runs and tests where no object store is available.
 */
type FileObjectStorage struct {
	logger *slog.Logger

	Root string
}

func NewFileObjectStorage(logger *slog.Logger, root string) *FileObjectStorage {
	return &FileObjectStorage{
		logger: logger,
		Root:   root,
	}
}

func (obj *FileObjectStorage) objectPath(bucket, key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if key == "" || strings.HasSuffix(key, "/") || cleaned == "/" {
		return "", fmt.Errorf("%w| %q", ErrInvalidKey, key)
	}
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w| bucket %q", ErrInvalidKey, bucket)
	}
	return filepath.Join(obj.Root, bucket, filepath.FromSlash(cleaned)), nil
}

func (obj *FileObjectStorage) Upload(ctx context.Context, bucket, key string, data []byte) error {
	obj.logger.Debug(
		"writing object file", slog.String("bucket", bucket), slog.String("key", key), slog.Int("numBytes", len(data)),
	)

	filePath, err := obj.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}

	// write then rename so readers never see a partial object
	tmpFile, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpFile.Name(), filePath)
}

func (obj *FileObjectStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	filePath, err := obj.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fileNotFoundOr(err, key)
	}
	return data, nil
}

func (obj *FileObjectStorage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	filePath, err := obj.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fileNotFoundOr(err, key)
	}
	return file, nil
}

func (obj *FileObjectStorage) Delete(ctx context.Context, bucket, key string) error {
	filePath, err := obj.objectPath(bucket, key)
	if err != nil {
		return err
	}
	err = os.Remove(filePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (obj *FileObjectStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	bucketPath := filepath.Join(obj.Root, bucket)

	objects := make([]ObjectInfo, 0)
	err := filepath.WalkDir(bucketPath, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && filePath == bucketPath {
				return filepath.SkipDir
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".upload-") {
			return nil
		}

		relPath, err := filepath.Rel(bucketPath, filePath)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relPath)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:          key,
			LastModified: info.ModTime(),
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func fileNotFoundOr(err error, key string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w| %s: %w", ErrObjectNotFound, key, err)
	}
	return err
}
