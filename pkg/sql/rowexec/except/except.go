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

// Package except implements the multi-way EXCEPT set-difference
// operator.  Operand 0 seeds a hash table of distinct rows; each later
// operand probes the table in order, marking the rows it eliminates, and
// the rows still unmarked at the end are the output.
package except

import (
	"bytes"

	"github.com/siltdb/silt/pkg/common/hashmap"
	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/logutil"
	"github.com/siltdb/silt/pkg/sql/plan"
	"github.com/siltdb/silt/pkg/sql/rowexec/setop"
	"github.com/siltdb/silt/pkg/vm"
	"github.com/siltdb/silt/pkg/vm/process"
)

// Except runs all probe rounds eagerly in Open; Next only enumerates the
// surviving rows of the final table generation.
type Except struct {
	setop.SetOperation

	// limit caps the rows this node emits; 0 means unlimited.
	limit            uint64
	rowsReturned     uint64
	itr              hashmap.Iterator
	opened, finished bool
}

// New validates the node configuration and builds the operator.
func New(proc *process.Process, node *plan.SetOpNode, children []vm.Operator) (*Except, error) {
	op := &Except{limit: node.Limit}
	if err := op.Init(proc, "except", node, children); err != nil {
		return nil, err
	}
	return op, nil
}

// Open builds the generation-0 table from operand 0, then runs one probe
// round per remaining operand.  Before every round but the first the
// table is compacted to its unmatched entries, re-keyed for the coming
// operand.  An empty table ends probing early: the remaining operands
// are never opened, since no row of theirs could change the result.
func (op *Except) Open(proc *process.Process) error {
	if op.opened {
		return moerr.NewInvalidState(proc.Ctx, "except operator opened twice")
	}
	op.opened = true
	if err := op.BuildHashTable(proc); err != nil {
		return err
	}
	for i := 1; i < op.NumChildren(); i++ {
		if op.Tbl.UnmatchedCount() == 0 {
			logutil.Debugf("except: no surviving rows before operand %d, skipping %d operands",
				i, op.NumChildren()-i)
			break
		}
		if i > 1 {
			if err := op.RebuildHashTable(proc, i); err != nil {
				return err
			}
		}
		if err := op.probe(proc, i); err != nil {
			return err
		}
	}
	op.itr = op.Tbl.Begin()
	return nil
}

// probe streams operand i against the current table generation, marking
// every entry the operand's rows hit, then closes the operand.
func (op *Except) probe(proc *process.Process, i int) error {
	if err := op.OpenChild(proc, i); err != nil {
		return err
	}
	bat := batch.New(op.ChildSchema(i), proc.Lim.BatchRows)
	bat.SizeLimit = proc.Lim.BatchSize
	defer bat.Clean(proc.Mp())
	traceRows := logutil.DebugEnabled()
	for {
		if err := proc.Cancelled(); err != nil {
			return err
		}
		eos, err := op.Child(i).Next(proc, bat)
		if err != nil {
			return err
		}
		if proc.RowLimitExceeded() {
			return moerr.NewLimitExceeded(proc.Ctx, "probing except operand %d", i)
		}
		for j := 0; j < bat.RowCount(); j++ {
			row, err := bat.Row(proc.Ctx, j)
			if err != nil {
				return err
			}
			it, ok, err := op.Tbl.Find(proc.Ctx, row)
			if err != nil {
				return err
			}
			if ok {
				it.SetMatched()
			}
			if traceRows {
				logutil.Debugf("except probe operand %d row %v hit=%v", i, row, ok)
			}
		}
		bat.Reset()
		if eos {
			break
		}
	}
	return op.CloseChild(proc, i)
}

func (op *Except) reachedLimit() bool {
	return op.limit > 0 && op.rowsReturned >= op.limit
}

// Next copies unmatched representative rows into the caller's batch in
// table order and reports end-of-stream once the cursor is exhausted or
// the node limit is hit.  After eos every further call stays eos with
// zero rows.
func (op *Except) Next(proc *process.Process, bat *batch.Batch) (bool, error) {
	if err := proc.Cancelled(); err != nil {
		return false, err
	}
	bat.Reset()
	if op.finished || op.reachedLimit() {
		op.finished = true
		return true, nil
	}
	buf, _, err := bat.ResizeAndAllocateTupleBuffer(proc.Mp())
	if err != nil {
		return false, err
	}
	rowSize := int(bat.RowSize())
	eos := true
	n := 0
	for op.itr.HasNext() {
		if !op.itr.Matched() {
			copy(buf[n*rowSize:(n+1)*rowSize], op.itr.RowBytes())
			n++
			op.rowsReturned++
		}
		op.itr.Next()
		bat.SetRowCount(n)
		eos = !op.itr.HasNext() || op.reachedLimit()
		if bat.IsFull() || bat.AtResourceLimit() || eos {
			break
		}
	}
	bat.SetRowCount(n)
	op.finished = eos
	return eos, nil
}

// Close releases the table and any children still open.
func (op *Except) Close(proc *process.Process) error {
	return op.SetOperation.Close(proc)
}

func (op *Except) String(buf *bytes.Buffer) {
	op.SetOperation.String(buf)
}
