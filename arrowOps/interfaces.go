package arrowops

import (
	"github.com/apache/arrow/go/v17/arrow"
)

type valueArray[T comparable] interface {
	IsNull(i int) bool
	Value(i int) T
	Len() int
}

type valueBuilder[T comparable] interface {
	Append(T)
	AppendNull()
	Reserve(int)
	NewArray() arrow.Array
	Release()
}
