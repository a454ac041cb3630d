package elements

import "errors"

var (
	ErrSchemaInvalid       = errors.New("schema invalid")
	ErrColumnNotFound      = errors.New("column not found")
	ErrUnsupportedDataType = errors.New("unsupported data type")
	ErrColumnSpecInvalid   = errors.New("column spec invalid")
)
