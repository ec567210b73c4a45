// Copyright 2023 Silt Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"context"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/common/mpool"
	"github.com/siltdb/silt/pkg/container/types"
)

// Batch is the bounded, reusable row container exchanged between
// operators.  Rows live in one mpool-backed tuple buffer of
// capacity x RowSize(schema) bytes; each row occupies one fixed-size slot.
type Batch struct {
	// SizeLimit is the byte budget of the batch; 0 means the row capacity
	// is the only bound.
	SizeLimit int64

	schema  []types.Type
	rowSize int32
	cap     int

	data []byte
	rows int
}

func New(schema []types.Type, capacity int) *Batch {
	return &Batch{
		schema:  schema,
		rowSize: types.RowSize(schema),
		cap:     capacity,
	}
}

func (bat *Batch) Schema() []types.Type {
	return bat.schema
}

// RowSize returns the fixed byte size of one row slot.
func (bat *Batch) RowSize() int32 {
	return bat.rowSize
}

func (bat *Batch) Capacity() int {
	return bat.cap
}

func (bat *Batch) RowCount() int {
	return bat.rows
}

func (bat *Batch) SetRowCount(n int) {
	bat.rows = n
}

func (bat *Batch) IsEmpty() bool {
	return bat.rows == 0
}

func (bat *Batch) IsFull() bool {
	return bat.rows >= bat.cap
}

// AtResourceLimit reports whether the batch has reached its byte budget.
func (bat *Batch) AtResourceLimit() bool {
	return bat.SizeLimit > 0 && int64(bat.rows)*int64(bat.rowSize) >= bat.SizeLimit
}

// ResizeAndAllocateTupleBuffer (re)allocates the tuple buffer: zeroed
// storage for capacity x rowSize bytes, row count reset to zero.  The
// returned slice is the buffer itself, so callers may fill slots directly
// and then SetRowCount.
func (bat *Batch) ResizeAndAllocateTupleBuffer(mp *mpool.MPool) ([]byte, int64, error) {
	size := int64(bat.cap) * int64(bat.rowSize)
	if bat.data != nil {
		mp.Free(bat.data)
		bat.data = nil
	}
	data, err := mp.Alloc(int(size))
	if err != nil {
		return nil, 0, err
	}
	bat.data = data
	bat.rows = 0
	return bat.data, size, nil
}

// Reset clears the row count but keeps the tuple buffer for reuse.
func (bat *Batch) Reset() {
	bat.rows = 0
}

// Allocated reports whether the batch currently holds a tuple buffer.
func (bat *Batch) Allocated() bool {
	return bat.data != nil
}

func (bat *Batch) slot(i int) []byte {
	off := int64(i) * int64(bat.rowSize)
	return bat.data[off : off+int64(bat.rowSize)]
}

// SetRow encodes row into slot i.  The tuple buffer must be allocated and
// i must be within capacity; the row count is not changed.
func (bat *Batch) SetRow(ctx context.Context, i int, row types.Tuple) error {
	if bat.data == nil {
		return moerr.NewInvalidState(ctx, "batch without tuple buffer")
	}
	if i < 0 || i >= bat.cap {
		return moerr.NewInternalError(ctx, "row index %d out of capacity %d", i, bat.cap)
	}
	return types.EncodeRow(ctx, bat.schema, row, bat.slot(i))
}

// AppendRow encodes row into the next free slot.
func (bat *Batch) AppendRow(ctx context.Context, row types.Tuple) error {
	if bat.IsFull() {
		return moerr.NewInternalError(ctx, "append to full batch of capacity %d", bat.cap)
	}
	if err := bat.SetRow(ctx, bat.rows, row); err != nil {
		return err
	}
	bat.rows++
	return nil
}

// Row decodes slot i.
func (bat *Batch) Row(ctx context.Context, i int) (types.Tuple, error) {
	if i < 0 || i >= bat.rows {
		return nil, moerr.NewInternalError(ctx, "row index %d out of count %d", i, bat.rows)
	}
	return types.DecodeRow(ctx, bat.schema, bat.slot(i))
}

// RowBytes returns the raw fixed-size slot of row i.  The slice aliases
// the tuple buffer.
func (bat *Batch) RowBytes(i int) []byte {
	return bat.slot(i)
}

// Clean releases the tuple buffer back to the pool.
func (bat *Batch) Clean(mp *mpool.MPool) {
	if bat.data != nil {
		mp.Free(bat.data)
		bat.data = nil
	}
	bat.rows = 0
}
