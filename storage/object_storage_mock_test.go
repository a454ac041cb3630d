package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockObjectStorage struct {
	mock.Mock
}

func (obj *MockObjectStorage) Upload(ctx context.Context, bucket, key string, data []byte) error {
	ret := obj.Called(ctx, bucket, key, data)
	return ret.Error(0)
}

func (obj *MockObjectStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	ret := obj.Called(ctx, bucket, key)
	return ret.Get(0).([]byte), ret.Error(1)
}

func (obj *MockObjectStorage) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	ret := obj.Called(ctx, bucket, key)
	return ret.Get(0).(io.ReadCloser), ret.Error(1)
}

func (obj *MockObjectStorage) Delete(ctx context.Context, bucket, key string) error {
	ret := obj.Called(ctx, bucket, key)
	return ret.Error(0)
}

func (obj *MockObjectStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	ret := obj.Called(ctx, bucket, prefix)
	return ret.Get(0).([]ObjectInfo), ret.Error(1)
}
