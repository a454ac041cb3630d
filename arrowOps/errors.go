package arrowops

import "errors"

var (
	ErrUnsupportedDataType  = errors.New("unsupported data type")
	ErrColumnNotFound       = errors.New("column not found")
	ErrMultipleColumnsFound = errors.New("multiple columns found")
	ErrIndexOutOfBounds     = errors.New("index out of bounds")
	ErrSchemasNotEqual      = errors.New("schemas not equal")
	ErrReadBackMismatch     = errors.New("read back data differs from written data")
)
