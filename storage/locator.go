package storage

import (
	"context"
)

// LatestObject returns the object under prefix with the newest LastModified.
// Ties go to the lexically greatest key. The bool is false when the prefix
// holds no objects.
func LatestObject(ctx context.Context, objectStorage IObjectStorage, bucket, prefix string) (ObjectInfo, bool, error) {
	objects, err := objectStorage.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return ObjectInfo{}, false, err
	}

	var (
		latest ObjectInfo
		found  bool
	)
	for _, object := range objects {
		if !found || newerObject(object, latest) {
			latest = object
			found = true
		}
	}
	return latest, found, nil
}

func newerObject(a, b ObjectInfo) bool {
	if a.LastModified.Equal(b.LastModified) {
		return a.Key > b.Key
	}
	return a.LastModified.After(b.LastModified)
}
