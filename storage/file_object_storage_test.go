package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestFileObjectStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	objectStorage := NewFileObjectStorage(testLogger(), t.TempDir())

	err := objectStorage.Upload(ctx, "bucket", "raw/ad_campaign_data_20240101.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	data, err := objectStorage.Download(ctx, "bucket", "raw/ad_campaign_data_20240101.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	reader, err := objectStorage.Open(ctx, "bucket", "raw/ad_campaign_data_20240101.csv")
	require.NoError(t, err)
	streamed, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, data, streamed)

	// overwrite replaces the content
	require.NoError(t, objectStorage.Upload(ctx, "bucket", "raw/ad_campaign_data_20240101.csv", []byte("x\n")))
	data, err = objectStorage.Download(ctx, "bucket", "raw/ad_campaign_data_20240101.csv")
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))

	require.NoError(t, objectStorage.Delete(ctx, "bucket", "raw/ad_campaign_data_20240101.csv"))
	_, err = objectStorage.Download(ctx, "bucket", "raw/ad_campaign_data_20240101.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = objectStorage.Open(ctx, "bucket", "raw/ad_campaign_data_20240101.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// deleting a missing object is not an error
	assert.NoError(t, objectStorage.Delete(ctx, "bucket", "raw/ad_campaign_data_20240101.csv"))
}

func TestFileObjectStorageListObjects(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	objectStorage := NewFileObjectStorage(testLogger(), root)

	objects, err := objectStorage.ListObjects(ctx, "missing-bucket", "raw/")
	require.NoError(t, err)
	assert.Empty(t, objects)

	for _, key := range []string{"raw/a.csv", "raw/nested/b.csv", "processed/c.csv", "rawish.csv"} {
		require.NoError(t, objectStorage.Upload(ctx, "bucket", key, []byte(key)))
	}

	objects, err = objectStorage.ListObjects(ctx, "bucket", "raw/")
	require.NoError(t, err)

	keys := make([]string, len(objects))
	for i, object := range objects {
		keys[i] = object.Key
		assert.Equal(t, int64(len(object.Key)), object.Size)
	}
	slices.Sort(keys)
	assert.Equal(t, []string{"raw/a.csv", "raw/nested/b.csv"}, keys)

	// newest modification time wins in the locator
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "bucket", "raw", "nested", "b.csv"), past, past))
	latest, found, err := LatestObject(ctx, objectStorage, "bucket", "raw/")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "raw/a.csv", latest.Key)
}

func TestFileObjectStorageRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	objectStorage := NewFileObjectStorage(testLogger(), t.TempDir())

	assert.ErrorIs(t, objectStorage.Upload(ctx, "bucket", "", []byte("x")), ErrInvalidKey)
	assert.ErrorIs(t, objectStorage.Upload(ctx, "bucket", "raw/", []byte("x")), ErrInvalidKey)
	assert.ErrorIs(t, objectStorage.Upload(ctx, "../bucket", "a.csv", []byte("x")), ErrInvalidKey)

	// parent references stay inside the bucket
	require.NoError(t, objectStorage.Upload(ctx, "bucket", "../../escape.csv", []byte("x")))
	data, err := objectStorage.Download(ctx, "bucket", "escape.csv")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
