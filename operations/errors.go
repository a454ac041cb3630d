package operations

import "errors"

var (
	ErrColumnNotFound                       = errors.New("column not found")
	ErrColumnTypeInvalid                    = errors.New("column type invalid")
	ErrUnsupportedArrowToAvroTypeConversion = errors.New("unsupported arrow to avro type conversion")
	ErrCleanerOptionsInvalid                = errors.New("cleaner options invalid")
	ErrFeatureOptionsInvalid                = errors.New("feature options invalid")
	ErrRecordSchemaMismatch                 = errors.New("record schema mismatch")
)
