package operations

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekLukanen/CampaignETL/elements"
)

func newTestCleaner(t *testing.T) *Cleaner {
	cleaner, err := NewCleaner(testLogger(), elements.CampaignSchema(), DefaultCleanerOptions())
	require.NoError(t, err)
	return cleaner
}

func TestCleanerCorrectsPlatforms(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	record := campaignRecord(mem, []campaignRow{
		fullRow("c1", "Facebok", "2024-01-01", 100, 5, 10.0, 1),
		fullRow("c2", "Google Ads", "2024-01-01", 100, 5, 10.0, 1),
		fullRow("c3", "Tik-Tok", "2024-01-01", 100, 5, 10.0, 1),
	})
	defer record.Release()

	cleaned, stats, err := newTestCleaner(t).Clean(ctx, mem, record)
	require.NoError(t, err)
	defer cleaned.Release()

	assert.Equal(t, []string{"Facebook", "Google Ads", "TikTok"}, stringValues(cleaned, elements.ColumnPlatform))
	assert.Equal(t, int64(2), stats.PlatformsFixed)
	assert.Equal(t, int64(3), stats.OutputRows())

	// the input record is left untouched
	assert.Equal(t, []string{"Facebok", "Google Ads", "Tik-Tok"}, stringValues(record, elements.ColumnPlatform))
}

func TestCleanerRemovesDuplicateRows(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	nullClicks := fullRow("c2", "Facebook", "2024-01-02", 10, 0, 1.5, 0)
	nullClicks.clicks = nil

	record := campaignRecord(mem, []campaignRow{
		fullRow("c1", "Facebook", "2024-01-01", 100, 5, 10.0, 1),
		nullClicks,
		fullRow("c1", "Facebook", "2024-01-01", 100, 5, 10.0, 1),
		nullClicks,
		fullRow("c1", "Facebook", "2024-01-01", 100, 5, 10.5, 1),
	})
	defer record.Release()

	cleaned, stats, err := newTestCleaner(t).Clean(ctx, mem, record)
	require.NoError(t, err)
	defer cleaned.Release()

	assert.Equal(t, int64(2), stats.DuplicatesRemoved)
	assert.Equal(t, int64(3), cleaned.NumRows())
	assert.Equal(t, []string{"c1", "c2", "c1"}, stringValues(cleaned, elements.ColumnCampaignId))
	assert.Equal(t, []float64{10.0, 1.5, 10.5}, float64Values(cleaned, elements.ColumnSpend))
}

func TestCleanerDuplicatesAcrossBatchesSurvive(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()
	cleaner := newTestCleaner(t)

	row := fullRow("c1", "Facebook", "2024-01-01", 100, 5, 10.0, 1)
	total := int64(0)
	for i := 0; i < 2; i++ {
		record := campaignRecord(mem, []campaignRow{row})
		cleaned, _, err := cleaner.Clean(ctx, mem, record)
		require.NoError(t, err)
		total += cleaned.NumRows()
		cleaned.Release()
		record.Release()
	}
	assert.Equal(t, int64(2), total)
}

func TestCleanerMedianFill(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	testCases := []struct {
		clicks    []*int64
		expClicks []int64
	}{
		{
			clicks:    []*int64{i64(1), nil, i64(4), i64(10)},
			expClicks: []int64{1, 4, 4, 10},
		},
		{
			// median 1.5 rounds to 2
			clicks:    []*int64{i64(1), i64(2), nil},
			expClicks: []int64{1, 2, 2},
		},
		{
			// median 2.5 rounds to 2
			clicks:    []*int64{i64(1), nil, i64(4)},
			expClicks: []int64{1, 2, 4},
		},
		{
			clicks:    []*int64{nil, nil},
			expClicks: []int64{0, 0},
		},
		{
			clicks:    []*int64{i64(7)},
			expClicks: []int64{7},
		},
	}

	cleaner := newTestCleaner(t)
	for idx, testCase := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			rows := make([]campaignRow, len(testCase.clicks))
			for i, clicks := range testCase.clicks {
				rows[i] = fullRow(fmt.Sprintf("c%d", i), "Facebook", "2024-01-01", 100, 0, 1.0, 1)
				rows[i].clicks = clicks
			}
			record := campaignRecord(mem, rows)
			defer record.Release()

			cleaned, _, err := cleaner.Clean(ctx, mem, record)
			require.NoError(t, err)
			defer cleaned.Release()

			assert.Equal(t, testCase.expClicks, int64Values(cleaned, elements.ColumnClicks))
			assert.Equal(t, 0, cleaned.Column(4).NullN())
		})
	}
}

func TestCleanerFillsBeforeDroppingEssentialRows(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	missingClicks := fullRow("c2", "Facebook", "2024-01-02", 100, 0, 1.0, 0)
	missingClicks.clicks = nil
	missingClicks.conversions = nil

	missingId := fullRow("", "Facebook", "2024-01-03", 100, 100, 1.0, 1)
	missingId.campaignId = nil

	missingDate := fullRow("c4", "Facebook", "", 100, 3, 1.0, 1)
	missingDate.date = nil

	record := campaignRecord(mem, []campaignRow{
		fullRow("c1", "Facebook", "2024-01-01", 100, 1, 1.0, 1),
		missingClicks,
		missingId,
		missingDate,
	})
	defer record.Release()

	cleaned, stats, err := newTestCleaner(t).Clean(ctx, mem, record)
	require.NoError(t, err)
	defer cleaned.Release()

	// median of [1, 100, 3] is taken before the essential drop
	assert.Equal(t, []string{"c1", "c2"}, stringValues(cleaned, elements.ColumnCampaignId))
	assert.Equal(t, []int64{1, 3}, int64Values(cleaned, elements.ColumnClicks))
	assert.Equal(t, []int64{1, 0}, int64Values(cleaned, elements.ColumnConversions))
	assert.Equal(t, int64(2), stats.EssentialDropped)
	assert.Equal(t, int64(1), stats.MedianFilled)
	assert.Equal(t, int64(1), stats.ZeroFilled)

	for _, name := range []string{elements.ColumnClicks, elements.ColumnConversions, elements.ColumnCampaignId, elements.ColumnDate} {
		assert.Equal(t, 0, cleaned.Column(cleaned.Schema().FieldIndices(name)[0]).NullN(), name)
	}
}

func TestCleanerEmptyBatch(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewGoAllocator()

	record := campaignRecord(mem, nil)
	defer record.Release()

	cleaned, stats, err := newTestCleaner(t).Clean(ctx, mem, record)
	require.NoError(t, err)
	defer cleaned.Release()

	assert.Equal(t, int64(0), cleaned.NumRows())
	assert.Equal(t, int64(0), stats.OutputRows())
}

func TestNewCleanerValidatesOptions(t *testing.T) {

	testCases := []struct {
		modify func(*CleanerOptions)
		expErr error
	}{
		{modify: func(o *CleanerOptions) { o.PlatformColumn = "network" }, expErr: ErrColumnNotFound},
		{modify: func(o *CleanerOptions) { o.PlatformColumn = elements.ColumnClicks }, expErr: ErrColumnTypeInvalid},
		{modify: func(o *CleanerOptions) { o.MedianFillColumns = []string{elements.ColumnDate} }, expErr: ErrColumnTypeInvalid},
		{modify: func(o *CleanerOptions) { o.ZeroFillColumns = []string{"revenue"} }, expErr: ErrColumnNotFound},
		{modify: func(o *CleanerOptions) { o.EssentialColumns = []string{"id"} }, expErr: ErrColumnNotFound},
		{modify: func(o *CleanerOptions) { o.ZeroFillColumns = append(o.ZeroFillColumns, elements.ColumnClicks) }, expErr: ErrCleanerOptionsInvalid},
		{modify: func(o *CleanerOptions) {}, expErr: nil},
	}

	for idx, testCase := range testCases {
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			options := DefaultCleanerOptions()
			testCase.modify(&options)
			_, err := NewCleaner(testLogger(), elements.CampaignSchema(), options)
			if testCase.expErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, testCase.expErr)
		})
	}
}

func TestMedianOf(t *testing.T) {
	assert.Equal(t, 0.0, medianOf(nil))
	assert.Equal(t, 3.0, medianOf([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, medianOf([]float64{4, 1, 3, 2}))

	values := []float64{3, 1, 2}
	medianOf(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}
