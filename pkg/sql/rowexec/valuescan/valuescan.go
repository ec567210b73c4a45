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

// Package valuescan is the leaf operator serving a fixed list of literal
// rows.  It is the plan's VALUES clause and the workhorse of operator
// tests.
package valuescan

import (
	"bytes"
	"fmt"

	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/vm/process"
)

type ValueScan struct {
	Schema []types.Type
	Rows   []types.Tuple

	cursor int
}

func New(schema []types.Type, rows []types.Tuple) *ValueScan {
	return &ValueScan{Schema: schema, Rows: rows}
}

// Open rewinds the scan, so a closed-and-reopened node replays its rows.
func (op *ValueScan) Open(_ *process.Process) error {
	op.cursor = 0
	return nil
}

// Next fills the caller's batch from the cursor.  Produced rows are
// accounted toward the query-wide row limit.
func (op *ValueScan) Next(proc *process.Process, bat *batch.Batch) (bool, error) {
	if err := proc.Cancelled(); err != nil {
		return false, err
	}
	if !bat.Allocated() {
		if _, _, err := bat.ResizeAndAllocateTupleBuffer(proc.Mp()); err != nil {
			return false, err
		}
	}
	bat.Reset()
	for op.cursor < len(op.Rows) && !bat.IsFull() && !bat.AtResourceLimit() {
		if err := bat.AppendRow(proc.Ctx, op.Rows[op.cursor]); err != nil {
			return false, err
		}
		op.cursor++
	}
	proc.AddProducedRows(bat.RowCount())
	return op.cursor == len(op.Rows), nil
}

func (op *ValueScan) Close(_ *process.Process) error {
	return nil
}

func (op *ValueScan) String(buf *bytes.Buffer) {
	buf.WriteString(fmt.Sprintf("values(%d)", len(op.Rows)))
}
