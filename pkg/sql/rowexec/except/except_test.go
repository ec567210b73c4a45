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

package except

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/common/mpool"
	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/sql/plan"
	"github.com/siltdb/silt/pkg/sql/rowexec/valuescan"
	"github.com/siltdb/silt/pkg/testutil"
	"github.com/siltdb/silt/pkg/vm"
	"github.com/siltdb/silt/pkg/vm/process"
)

// trackScan counts lifecycle calls, to assert which operands a plan
// actually ran.
type trackScan struct {
	*valuescan.ValueScan
	opens  int
	closes int
}

func (op *trackScan) Open(proc *process.Process) error {
	op.opens++
	return op.ValueScan.Open(proc)
}

func (op *trackScan) Close(proc *process.Process) error {
	op.closes++
	return op.ValueScan.Close(proc)
}

func int64Node(operands int, limit uint64, nullEquals bool) *plan.SetOpNode {
	schema := testutil.MakeSchema(types.T_int64, 1)
	node := &plan.SetOpNode{Schema: schema, NullEqualsNull: nullEquals, Limit: limit}
	for i := 0; i < operands; i++ {
		node.ExprLists = append(node.ExprLists, testutil.MakeColExprs(schema))
		node.ChildSchemas = append(node.ChildSchemas, schema)
	}
	return node
}

func int64Children(rowLists ...[]types.Tuple) []vm.Operator {
	schema := testutil.MakeSchema(types.T_int64, 1)
	children := make([]vm.Operator, len(rowLists))
	for i, rows := range rowLists {
		children[i] = valuescan.New(schema, rows)
	}
	return children
}

func drain(t *testing.T, proc *process.Process, op *Except) []types.Tuple {
	t.Helper()
	bat := batch.New(op.Schema(), proc.Lim.BatchRows)
	bat.SizeLimit = proc.Lim.BatchSize
	defer bat.Clean(proc.Mp())
	var out []types.Tuple
	for {
		eos, err := op.Next(proc, bat)
		require.NoError(t, err)
		for i := 0; i < bat.RowCount(); i++ {
			row, err := bat.Row(proc.Ctx, i)
			require.NoError(t, err)
			out = append(out, row)
		}
		if eos {
			return out
		}
	}
}

func TestExceptThreeOperands(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(3, 0, true), int64Children(
		testutil.Int64Rows(1, 2, 2, 3),
		testutil.Int64Rows(2),
		testutil.Int64Rows(4),
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Equal(t, []types.Tuple{{int64(1)}, {int64(3)}}, out)
}

func TestExceptDeduplicatesAnchor(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		testutil.Int64Rows(7, 7, 7, 8, 8),
		testutil.Int64Rows(),
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Equal(t, []types.Tuple{{int64(7)}, {int64(8)}}, out)
}

func TestExceptEmptyTableSkipsLaterOperands(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_int64, 1)
	// operand 1 eliminates everything; operand 2 must never run.
	skipped := &trackScan{ValueScan: valuescan.New(schema, testutil.Int64Rows(9))}
	children := int64Children(
		testutil.Int64Rows(1, 2),
		testutil.Int64Rows(1, 2, 3),
	)
	children = append(children, skipped)
	op, err := New(proc, int64Node(3, 0, true), children)
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Empty(t, out)
	require.Zero(t, skipped.opens)
	require.Zero(t, skipped.closes)
}

func TestExceptEmptyAnchor(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_int64, 1)
	probe := &trackScan{ValueScan: valuescan.New(schema, testutil.Int64Rows(1))}
	op, err := New(proc, int64Node(2, 0, true),
		append(int64Children(testutil.Int64Rows()), probe))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Empty(t, out)
	require.Zero(t, probe.opens)
}

func TestExceptProbeOperandsClosedAfterTheirRound(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_int64, 1)
	probe1 := &trackScan{ValueScan: valuescan.New(schema, testutil.Int64Rows(2))}
	probe2 := &trackScan{ValueScan: valuescan.New(schema, testutil.Int64Rows(3))}
	op, err := New(proc, int64Node(3, 0, true), []vm.Operator{
		valuescan.New(schema, testutil.Int64Rows(1, 2, 3, 4)),
		probe1, probe2,
	})
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	// both probe rounds ran inside Open and released their operand.
	require.Equal(t, 1, probe1.opens)
	require.Equal(t, 1, probe1.closes)
	require.Equal(t, 1, probe2.opens)
	require.Equal(t, 1, probe2.closes)
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Equal(t, []types.Tuple{{int64(1)}, {int64(4)}}, out)
	require.Equal(t, 1, probe1.closes)
}

func TestExceptNullNotEqual(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 0, false), int64Children(
		[]types.Tuple{{nil}, {int64(1)}},
		[]types.Tuple{{nil}},
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	// a null key never equals another null key, so the null row survives.
	require.Equal(t, []types.Tuple{{nil}, {int64(1)}}, out)
}

func TestExceptNullEqualsNull(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		[]types.Tuple{{nil}, {int64(1)}},
		[]types.Tuple{{nil}},
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Equal(t, []types.Tuple{{int64(1)}}, out)
}

func TestExceptMultiColumnKey(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_int64, 2)
	node := &plan.SetOpNode{Schema: schema, NullEqualsNull: true}
	for i := 0; i < 3; i++ {
		node.ExprLists = append(node.ExprLists, testutil.MakeColExprs(schema))
		node.ChildSchemas = append(node.ChildSchemas, schema)
	}
	op, err := New(proc, node, []vm.Operator{
		valuescan.New(schema, []types.Tuple{
			{int64(1), int64(1)}, {int64(1), int64(2)}, {int64(2), int64(1)},
		}),
		valuescan.New(schema, []types.Tuple{{int64(1), int64(2)}}),
		valuescan.New(schema, []types.Tuple{{int64(2), int64(1)}}),
	})
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Equal(t, []types.Tuple{{int64(1), int64(1)}}, out)
}

func TestExceptVarcharKeys(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_varchar, 1)
	node := &plan.SetOpNode{Schema: schema, NullEqualsNull: true}
	for i := 0; i < 2; i++ {
		node.ExprLists = append(node.ExprLists, testutil.MakeColExprs(schema))
		node.ChildSchemas = append(node.ChildSchemas, schema)
	}
	op, err := New(proc, node, []vm.Operator{
		valuescan.New(schema, testutil.VarcharRows("ab", "cd", "ab")),
		valuescan.New(schema, testutil.VarcharRows("cd")),
	})
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Equal(t, []types.Tuple{{[]byte("ab")}}, out)
}

func TestExceptSmallBatches(t *testing.T) {
	proc := testutil.NewProc()
	proc.Lim.BatchRows = 3
	var anchor, probe []int64
	for v := int64(0); v < 100; v++ {
		anchor = append(anchor, v)
		if v%2 == 0 {
			probe = append(probe, v)
		}
	}
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		testutil.Int64Rows(anchor...),
		testutil.Int64Rows(probe...),
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Len(t, out, 50)
	for i, row := range out {
		require.Equal(t, int64(2*i+1), row[0])
	}
}

func TestExceptNodeLimit(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 2, true), int64Children(
		testutil.Int64Rows(1, 2, 3, 4, 5),
		testutil.Int64Rows(2),
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.Equal(t, []types.Tuple{{int64(1)}, {int64(3)}}, out)

	// after eos every call stays eos with zero rows.
	bat := batch.New(op.Schema(), proc.Lim.BatchRows)
	defer bat.Clean(proc.Mp())
	for i := 0; i < 3; i++ {
		eos, err := op.Next(proc, bat)
		require.NoError(t, err)
		require.True(t, eos)
		require.Zero(t, bat.RowCount())
	}
	require.NoError(t, op.Close(proc))
}

func TestExceptEosIsSticky(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		testutil.Int64Rows(1),
		testutil.Int64Rows(),
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.Equal(t, []types.Tuple{{int64(1)}}, out)
	bat := batch.New(op.Schema(), proc.Lim.BatchRows)
	defer bat.Clean(proc.Mp())
	eos, err := op.Next(proc, bat)
	require.NoError(t, err)
	require.True(t, eos)
	require.Zero(t, bat.RowCount())
	require.NoError(t, op.Close(proc))
}

func TestExceptCancellation(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		testutil.Int64Rows(1, 2),
		testutil.Int64Rows(1),
	))
	require.NoError(t, err)
	proc.Cancel()
	err = op.Open(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted))
	require.NoError(t, op.Close(proc))
}

func TestExceptQueryRowLimit(t *testing.T) {
	proc := testutil.NewProc()
	proc.Lim.MaxRows = 2
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		testutil.Int64Rows(1, 2, 3, 4),
		testutil.Int64Rows(1),
	))
	require.NoError(t, err)
	err = op.Open(proc)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrLimitExceeded))
	require.NoError(t, op.Close(proc))
}

func TestExceptInitValidation(t *testing.T) {
	proc := testutil.NewProc()

	// too few operands.
	_, err := New(proc, int64Node(2, 0, true), int64Children(testutil.Int64Rows(1)))
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	// key arity mismatch between operands.
	node := int64Node(2, 0, true)
	node.ExprLists[1] = append(node.ExprLists[1], plan.NewColRef(0, types.T_int64.ToType()))
	_, err = New(proc, node, int64Children(testutil.Int64Rows(1), testutil.Int64Rows(2)))
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	// key type mismatch between operands.
	node = int64Node(2, 0, true)
	node.ChildSchemas[1] = testutil.MakeSchema(types.T_varchar, 1)
	node.ExprLists[1] = testutil.MakeColExprs(node.ChildSchemas[1])
	_, err = New(proc, node, int64Children(testutil.Int64Rows(1), testutil.Int64Rows(2)))
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	// column position out of the child schema.
	node = int64Node(2, 0, true)
	node.ExprLists[1] = []plan.Expr{plan.NewColRef(5, types.T_int64.ToType())}
	_, err = New(proc, node, int64Children(testutil.Int64Rows(1), testutil.Int64Rows(2)))
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

func TestExceptMemoryReleasedOnClose(t *testing.T) {
	mp := mpool.MustNewZero("except-leak-test")
	proc := testutil.NewProcWithMPool(mp)
	op, err := New(proc, int64Node(3, 0, true), int64Children(
		testutil.Int64Rows(1, 2, 3, 4, 5, 6),
		testutil.Int64Rows(2, 4),
		testutil.Int64Rows(6),
	))
	require.NoError(t, err)
	require.NoError(t, op.Open(proc))
	out := drain(t, proc, op)
	require.NoError(t, op.Close(proc))
	require.Len(t, out, 3)
	require.Zero(t, mp.CurrNB())
}

func TestExceptString(t *testing.T) {
	proc := testutil.NewProc()
	op, err := New(proc, int64Node(2, 0, true), int64Children(
		testutil.Int64Rows(1),
		testutil.Int64Rows(2),
	))
	require.NoError(t, err)
	var buf bytes.Buffer
	vm.String(op, &buf)
	require.Equal(t, "except(values(1), values(1))", buf.String())
}
