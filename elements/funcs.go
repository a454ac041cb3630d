package elements

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Transformer is a single record-to-record stage of the pipeline. The
// returned record is owned by the caller; the input record is not released.
type Transformer func(ctx context.Context, allocator *memory.GoAllocator, record arrow.Record) (arrow.Record, error)
