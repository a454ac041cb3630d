package dataops

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrHeaderMismatch       = errors.New("header does not match schema")
	ErrSinkUnavailable      = errors.New("sink unavailable")
	ErrPartIndexInvalid     = errors.New("part index invalid")
	ErrUnsupportedFormat    = errors.New("unsupported output format")
	ErrWriterOptionsInvalid = errors.New("part writer options invalid")
	ErrPartSchemaMismatch   = errors.New("part schema differs from the first part")
)

func FErrHeaderMismatch(header, expected []string) error {
	return fmt.Errorf(
		"%w|\n header: %v\n expected: %v\n",
		ErrHeaderMismatch,
		header,
		expected)
}
