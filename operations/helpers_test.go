package operations

import (
	"log/slog"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/alekLukanen/CampaignETL/elements"
)

type campaignRow struct {
	campaignId  *string
	platform    *string
	date        *string
	impressions *int64
	clicks      *int64
	spend       *float64
	conversions *int64
}

func str(v string) *string   { return &v }
func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func campaignRecord(mem *memory.GoAllocator, rows []campaignRow) arrow.Record {
	bldr := array.NewRecordBuilder(mem, elements.CampaignSchema().ArrowSchema())
	defer bldr.Release()

	appendStr := func(b *array.StringBuilder, v *string) {
		if v == nil {
			b.AppendNull()
		} else {
			b.Append(*v)
		}
	}
	appendInt := func(b *array.Int64Builder, v *int64) {
		if v == nil {
			b.AppendNull()
		} else {
			b.Append(*v)
		}
	}

	for _, row := range rows {
		appendStr(bldr.Field(0).(*array.StringBuilder), row.campaignId)
		appendStr(bldr.Field(1).(*array.StringBuilder), row.platform)
		appendStr(bldr.Field(2).(*array.StringBuilder), row.date)
		appendInt(bldr.Field(3).(*array.Int64Builder), row.impressions)
		appendInt(bldr.Field(4).(*array.Int64Builder), row.clicks)
		if row.spend == nil {
			bldr.Field(5).(*array.Float64Builder).AppendNull()
		} else {
			bldr.Field(5).(*array.Float64Builder).Append(*row.spend)
		}
		appendInt(bldr.Field(6).(*array.Int64Builder), row.conversions)
	}

	return bldr.NewRecord()
}

func fullRow(id, platform, date string, impressions, clicks int64, spend float64, conversions int64) campaignRow {
	return campaignRow{
		campaignId:  str(id),
		platform:    str(platform),
		date:        str(date),
		impressions: i64(impressions),
		clicks:      i64(clicks),
		spend:       f64(spend),
		conversions: i64(conversions),
	}
}

func stringValues(rec arrow.Record, name string) []string {
	col := rec.Column(rec.Schema().FieldIndices(name)[0]).(*array.String)
	values := make([]string, col.Len())
	for i := range values {
		values[i] = col.Value(i)
	}
	return values
}

func int64Values(rec arrow.Record, name string) []int64 {
	col := rec.Column(rec.Schema().FieldIndices(name)[0]).(*array.Int64)
	return append([]int64{}, col.Int64Values()...)
}

func float64Values(rec arrow.Record, name string) []float64 {
	col := rec.Column(rec.Schema().FieldIndices(name)[0]).(*array.Float64)
	return append([]float64{}, col.Float64Values()...)
}
