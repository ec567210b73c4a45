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

// Package setop holds the machinery shared by the set-operation
// operators: child bookkeeping, per-operand key executors, and the
// working hash table of representative rows.
package setop

import (
	"bytes"

	"go.uber.org/multierr"

	"github.com/siltdb/silt/pkg/common/hashmap"
	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/logutil"
	"github.com/siltdb/silt/pkg/sql/plan"
	"github.com/siltdb/silt/pkg/sql/rowexec"
	"github.com/siltdb/silt/pkg/vm"
	"github.com/siltdb/silt/pkg/vm/process"
)

// SetOperation is the common core of the multi-way set operators.
// Operand 0 is the anchor: its rows feed the generation-0 table and the
// node's output schema is its shape.
type SetOperation struct {
	tag          string
	children     []vm.Operator
	childSchemas [][]types.Type
	exprExecs    [][]rowexec.ExpressionExecutor
	schema       []types.Type
	nullEquals   bool

	opened []bool
	closed []bool

	// Tbl is the current table generation; nil until the table is built.
	Tbl *hashmap.SetHashMap
}

// Init wires the node configuration, building one key executor list per
// operand.  Every list must agree with list 0 on arity and column types;
// a mismatch is a plan bug and fails the whole node.
func (op *SetOperation) Init(proc *process.Process, tag string, node *plan.SetOpNode, children []vm.Operator) error {
	if len(children) < 2 {
		return moerr.NewInvalidInput(proc.Ctx,
			"%s needs at least two operands, got %d", tag, len(children))
	}
	if len(node.ExprLists) != len(children) || len(node.ChildSchemas) != len(children) {
		return moerr.NewInvalidInput(proc.Ctx,
			"%s: %d operands with %d expression lists and %d child schemas",
			tag, len(children), len(node.ExprLists), len(node.ChildSchemas))
	}
	execs := make([][]rowexec.ExpressionExecutor, 0, len(children))
	freeAll := func() {
		for _, list := range execs {
			for _, e := range list {
				e.Free()
			}
		}
	}
	for i := range node.ExprLists {
		list, err := rowexec.NewExpressionExecutorList(proc, node.ExprLists[i], node.ChildSchemas[i])
		if err != nil {
			freeAll()
			return err
		}
		execs = append(execs, list)
	}
	anchor := execs[0]
	for i := 1; i < len(execs); i++ {
		if len(execs[i]) != len(anchor) {
			freeAll()
			return moerr.NewInvalidInput(proc.Ctx,
				"%s: operand %d has %d key expressions, operand 0 has %d",
				tag, i, len(execs[i]), len(anchor))
		}
		for j := range anchor {
			if !types.CompatibleTypes(execs[i][j].Typ(), anchor[j].Typ()) {
				freeAll()
				return moerr.NewInvalidInput(proc.Ctx,
					"%s: operand %d key %d is %s, operand 0 has %s",
					tag, i, j, execs[i][j].Typ().String(), anchor[j].Typ().String())
			}
		}
	}
	op.tag = tag
	op.children = children
	op.childSchemas = node.ChildSchemas
	op.exprExecs = execs
	op.schema = node.Schema
	op.nullEquals = node.NullEqualsNull
	op.opened = make([]bool, len(children))
	op.closed = make([]bool, len(children))
	return nil
}

func (op *SetOperation) Tag() string {
	return op.tag
}

func (op *SetOperation) Schema() []types.Type {
	return op.schema
}

func (op *SetOperation) NumChildren() int {
	return len(op.children)
}

func (op *SetOperation) Child(i int) vm.Operator {
	return op.children[i]
}

func (op *SetOperation) ChildSchema(i int) []types.Type {
	return op.childSchemas[i]
}

// OpenChild and CloseChild track the per-child lifecycle so Close never
// touches a child that was short-circuited away before its round.
func (op *SetOperation) OpenChild(proc *process.Process, i int) error {
	if err := op.children[i].Open(proc); err != nil {
		return err
	}
	op.opened[i] = true
	return nil
}

func (op *SetOperation) CloseChild(proc *process.Process, i int) error {
	if !op.opened[i] || op.closed[i] {
		return nil
	}
	op.closed[i] = true
	return op.children[i].Close(proc)
}

func keyExprs(list []rowexec.ExpressionExecutor) []hashmap.KeyExpr {
	out := make([]hashmap.KeyExpr, len(list))
	for i, e := range list {
		out[i] = e
	}
	return out
}

// BuildHashTable fully consumes operand 0 into the generation-0 table of
// distinct rows.  Operand 1 probes that table first, so its probe side
// is operand 1's key list.
func (op *SetOperation) BuildHashTable(proc *process.Process) error {
	tbl, err := hashmap.NewSetHashMap(keyExprs(op.exprExecs[0]), keyExprs(op.exprExecs[1]),
		op.schema, op.nullEquals, op.tag, proc.Mp(), uint64(proc.Lim.BatchRows))
	if err != nil {
		return err
	}
	op.Tbl = tbl
	if err := op.OpenChild(proc, 0); err != nil {
		return err
	}
	bat := batch.New(op.childSchemas[0], proc.Lim.BatchRows)
	bat.SizeLimit = proc.Lim.BatchSize
	defer bat.Clean(proc.Mp())
	for {
		if err := proc.Cancelled(); err != nil {
			return err
		}
		eos, err := op.children[0].Next(proc, bat)
		if err != nil {
			return err
		}
		if proc.RowLimitExceeded() {
			return moerr.NewLimitExceeded(proc.Ctx, "building %s hash table", op.tag)
		}
		for j := 0; j < bat.RowCount(); j++ {
			row, err := bat.Row(proc.Ctx, j)
			if err != nil {
				return err
			}
			if _, err := tbl.Insert(proc.Ctx, row); err != nil {
				return err
			}
		}
		bat.Reset()
		if eos {
			break
		}
	}
	logutil.Debugf("%s: built hash table with %d groups", op.tag, tbl.GroupCount())
	return op.CloseChild(proc, 0)
}

// RebuildHashTable compacts the current generation into a fresh table
// holding only the unmatched entries, re-keyed on operand's probe list.
// Matched flags start clear in the new generation.
func (op *SetOperation) RebuildHashTable(proc *process.Process, operand int) error {
	next, err := hashmap.NewSetHashMap(keyExprs(op.exprExecs[0]), keyExprs(op.exprExecs[operand]),
		op.schema, op.nullEquals, op.tag, proc.Mp(), op.Tbl.GroupCount())
	if err != nil {
		return err
	}
	traceRows := logutil.DebugEnabled()
	itr := op.Tbl.Begin()
	for itr.HasNext() {
		if !itr.Matched() {
			row, err := itr.Row(proc.Ctx)
			if err != nil {
				next.Free()
				return err
			}
			if _, err := next.Insert(proc.Ctx, row); err != nil {
				next.Free()
				return err
			}
			if traceRows {
				logutil.Debugf("%s rebuild keeps row %v", op.tag, row)
			}
		}
		itr.Next()
	}
	logutil.Debugf("%s: rebuilt table for operand %d, %d of %d groups kept",
		op.tag, operand, next.GroupCount(), op.Tbl.GroupCount())
	op.Tbl.Free()
	op.Tbl = next
	return nil
}

// Close releases the table, the key executors, and every child that was
// opened and is still pending, combining child close errors.
func (op *SetOperation) Close(proc *process.Process) error {
	var errs error
	for i := range op.children {
		if op.opened[i] && !op.closed[i] {
			errs = multierr.Append(errs, op.children[i].Close(proc))
			op.closed[i] = true
		}
	}
	if op.Tbl != nil {
		op.Tbl.Free()
		op.Tbl = nil
	}
	for _, list := range op.exprExecs {
		for _, e := range list {
			e.Free()
		}
	}
	op.exprExecs = nil
	return errs
}

func (op *SetOperation) String(buf *bytes.Buffer) {
	buf.WriteString(op.tag)
	buf.WriteString("(")
	for i, child := range op.children {
		if i > 0 {
			buf.WriteString(", ")
		}
		child.String(buf)
	}
	buf.WriteString(")")
}
