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

package process

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/common/mpool"
)

const DefaultBatchRows = 8192

// Limitation carries the resource limits one pipeline runs under.
type Limitation struct {
	// Size is the memory budget, enforced by the process mpool.
	Size int64
	// BatchRows is the row capacity of batches exchanged between operators.
	BatchRows int
	// BatchSize is the byte budget of one batch; 0 disables the check.
	BatchSize int64
	// MaxRows caps the rows the whole query may produce; 0 means no cap.
	// Reaching it is reported as a LimitExceeded condition, an early valid
	// stop rather than a failure.
	MaxRows uint64
}

// Process is the execution context of one pipeline: one query id, one
// cancellation scope, one memory pool.  Operators on the pipeline share
// it; it is not safe for concurrent use by parallel pipelines, which get
// their own Process each.
type Process struct {
	Id     string
	Ctx    context.Context
	Cancel context.CancelFunc
	Lim    Limitation

	mp           *mpool.MPool
	rowsProduced atomic.Uint64
}

func New(ctx context.Context, m *mpool.MPool) *Process {
	ctx, cancel := context.WithCancel(ctx)
	return &Process{
		Id:     uuid.NewString(),
		Ctx:    ctx,
		Cancel: cancel,
		Lim:    Limitation{BatchRows: DefaultBatchRows},
		mp:     m,
	}
}

func (proc *Process) QueryId() string {
	return proc.Id
}

func (proc *Process) SetQueryId(id string) {
	proc.Id = id
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}

// Cancelled returns the cooperative cancellation condition, checked once
// per batch on the hot paths.
func (proc *Process) Cancelled() error {
	select {
	case <-proc.Ctx.Done():
		return moerr.NewQueryInterrupted(proc.Ctx)
	default:
		return nil
	}
}

// AddProducedRows accounts rows produced by leaf operators toward the
// query-wide row limit.
func (proc *Process) AddProducedRows(n int) {
	if n > 0 {
		proc.rowsProduced.Add(uint64(n))
	}
}

func (proc *Process) ProducedRows() uint64 {
	return proc.rowsProduced.Load()
}

// RowLimitExceeded reports whether the query-wide row limit was reached.
func (proc *Process) RowLimitExceeded() bool {
	return proc.Lim.MaxRows > 0 && proc.rowsProduced.Load() >= proc.Lim.MaxRows
}
