package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatestObject(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		objects  []ObjectInfo
		expKey   string
		expFound bool
	}{
		{
			objects:  []ObjectInfo{},
			expFound: false,
		},
		{
			objects: []ObjectInfo{
				{Key: "raw/ad_campaign_data_20240101.csv", LastModified: base},
			},
			expKey:   "raw/ad_campaign_data_20240101.csv",
			expFound: true,
		},
		{
			objects: []ObjectInfo{
				{Key: "raw/ad_campaign_data_20240103.csv", LastModified: base.Add(-time.Hour)},
				{Key: "raw/ad_campaign_data_20240102.csv", LastModified: base.Add(time.Hour)},
				{Key: "raw/ad_campaign_data_20240101.csv", LastModified: base},
			},
			expKey:   "raw/ad_campaign_data_20240102.csv",
			expFound: true,
		},
		{
			// equal timestamps resolve to the greatest key
			objects: []ObjectInfo{
				{Key: "raw/b.csv", LastModified: base},
				{Key: "raw/c.csv", LastModified: base},
				{Key: "raw/a.csv", LastModified: base},
			},
			expKey:   "raw/c.csv",
			expFound: true,
		},
	}

	for idx, testCase := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			objectStorage := new(MockObjectStorage)
			objectStorage.On("ListObjects", ctx, "bucket", "raw/").Return(testCase.objects, nil)

			latest, found, err := LatestObject(ctx, objectStorage, "bucket", "raw/")
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, testCase.expFound, found)
			assert.Equal(t, testCase.expKey, latest.Key)
			objectStorage.AssertExpectations(t)
		})
	}
}

func TestLatestObjectListFailure(t *testing.T) {
	ctx := context.Background()
	listErr := errors.New("access denied")

	objectStorage := new(MockObjectStorage)
	objectStorage.On("ListObjects", ctx, "bucket", "raw/").Return([]ObjectInfo(nil), listErr)

	_, found, err := LatestObject(ctx, objectStorage, "bucket", "raw/")
	assert.ErrorIs(t, err, listErr)
	assert.False(t, found)
}
