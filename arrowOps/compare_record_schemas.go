package arrowops

import (
	"fmt"
	"slices"

	"github.com/apache/arrow/go/v17/arrow"
)

// SchemasEqual compares the named fields of both schemas, or the whole
// schemas when no fields are given.
func SchemasEqual(schema1 *arrow.Schema, schema2 *arrow.Schema, fields ...string) bool {
	if len(fields) == 0 {
		return schema1.Equal(schema2)
	}
	return SchemaSubSetEqual(schema1, schema2, fields...) &&
		SchemaSubSetEqual(schema2, schema1, fields...)
}

func SchemaSubSetEqual(schema1 *arrow.Schema, schema2 *arrow.Schema, fields ...string) bool {
	for i := 0; i < schema1.NumFields(); i++ {
		if i >= schema2.NumFields() {
			return false
		}

		field1 := schema1.Field(i)
		if !slices.Contains(fields, field1.Name) {
			continue
		}
		if !field1.Equal(schema2.Field(i)) {
			return false
		}
	}
	return true
}

func FErrSchemasNotEqual(schema1, schema2 *arrow.Schema) error {
	return fmt.Errorf(
		"%w|\n schema1: %s\n schema2: %s\n",
		ErrSchemasNotEqual,
		schema1,
		schema2)
}
