package dataops

import (
	"bytes"
	stdcsv "encoding/csv"
	"io"
	"log/slog"
	"slices"
	"strings"
)

/*
* rowNormalizer splits a delimited stream into rows and re-encodes every
* data row with exactly the header's field count. Short rows are padded
* with the null marker and long rows are cut. Each padded or dropped cell
* is counted.
 */
type rowNormalizer struct {
	logger *slog.Logger
	reader *stdcsv.Reader
	writer *stdcsv.Writer
	buf    bytes.Buffer
	err    error

	width int
	fill  string

	ragged      int64
	cellsFilled int64
}

func newRowNormalizer(logger *slog.Logger, source io.Reader, comma rune, fill string) *rowNormalizer {
	obj := &rowNormalizer{logger: logger, fill: fill}

	obj.reader = stdcsv.NewReader(source)
	obj.reader.Comma = comma
	obj.reader.FieldsPerRecord = -1
	obj.reader.LazyQuotes = true
	obj.reader.ReuseRecord = true

	obj.writer = stdcsv.NewWriter(&obj.buf)
	obj.writer.Comma = comma
	return obj
}

// Header returns the first non-blank row and fixes the row width to it.
// An empty source returns io.EOF.
func (obj *rowNormalizer) Header() ([]string, error) {
	for {
		record, err := obj.reader.Read()
		if err != nil {
			return nil, err
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		obj.width = len(record)
		return slices.Clone(record), nil
	}
}

func (obj *rowNormalizer) Read(p []byte) (int, error) {
	for obj.buf.Len() == 0 {
		if obj.err != nil {
			return 0, obj.err
		}
		obj.err = obj.nextRow()
	}
	return obj.buf.Read(p)
}

func (obj *rowNormalizer) nextRow() error {
	record, err := obj.reader.Read()
	if err != nil {
		return err
	}

	if len(record) != obj.width {
		line, _ := obj.reader.FieldPos(0)
		obj.logger.Debug("row width differs from header",
			slog.Int("line", line),
			slog.Int("fields", len(record)),
			slog.Int("expected", obj.width),
		)
		obj.ragged++
		if len(record) < obj.width {
			obj.cellsFilled += int64(obj.width - len(record))
			for len(record) < obj.width {
				record = append(record, obj.fill)
			}
		} else {
			obj.cellsFilled += int64(len(record) - obj.width)
			record = record[:obj.width]
		}
	}

	if err := obj.writer.Write(record); err != nil {
		return err
	}
	obj.writer.Flush()
	return obj.writer.Error()
}

// RaggedRows is the number of rows whose field count differed from the header.
func (obj *rowNormalizer) RaggedRows() int64 {
	return obj.ragged
}

// CellsFilled is the number of cells padded or dropped to fit the header.
func (obj *rowNormalizer) CellsFilled() int64 {
	return obj.cellsFilled
}
