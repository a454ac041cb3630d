package arrowops

import (
	"slices"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
)

// RecordsEqual compares the named columns of both records. With no fields
// every column of rec1 is compared.
func RecordsEqual(rec1, rec2 arrow.Record, fields ...string) bool {
	if rec1.NumRows() != rec2.NumRows() {
		return false
	}
	for i := 0; i < int(rec1.NumCols()); i++ {
		columnName := rec1.ColumnName(i)
		if len(fields) > 0 && !slices.Contains(fields, columnName) {
			continue
		}
		col2, err := ColumnByName(rec2, columnName)
		if err != nil {
			return false
		}
		if !array.Equal(rec1.Column(i), col2) {
			return false
		}
	}
	return true
}
