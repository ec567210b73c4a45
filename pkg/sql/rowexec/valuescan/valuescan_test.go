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

package valuescan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/testutil"
)

func TestValueScanBatches(t *testing.T) {
	proc := testutil.NewProc()
	proc.Lim.BatchRows = 2
	schema := testutil.MakeSchema(types.T_int64, 1)
	op := New(schema, testutil.Int64Rows(1, 2, 3, 4, 5))
	require.NoError(t, op.Open(proc))
	bat := batch.New(schema, proc.Lim.BatchRows)
	defer bat.Clean(proc.Mp())

	var got []int64
	for {
		eos, err := op.Next(proc, bat)
		require.NoError(t, err)
		require.LessOrEqual(t, bat.RowCount(), 2)
		for i := 0; i < bat.RowCount(); i++ {
			row, err := bat.Row(proc.Ctx, i)
			require.NoError(t, err)
			got = append(got, row[0].(int64))
		}
		if eos {
			break
		}
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5}, got)
	require.Equal(t, uint64(5), proc.ProducedRows())
	require.NoError(t, op.Close(proc))
}

func TestValueScanReopenReplays(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_int64, 1)
	op := New(schema, testutil.Int64Rows(7, 8))
	bat := batch.New(schema, proc.Lim.BatchRows)
	defer bat.Clean(proc.Mp())

	for round := 0; round < 2; round++ {
		require.NoError(t, op.Open(proc))
		eos, err := op.Next(proc, bat)
		require.NoError(t, err)
		require.True(t, eos)
		require.Equal(t, 2, bat.RowCount())
		require.NoError(t, op.Close(proc))
	}
}

func TestValueScanEmpty(t *testing.T) {
	proc := testutil.NewProc()
	schema := testutil.MakeSchema(types.T_int64, 1)
	op := New(schema, nil)
	require.NoError(t, op.Open(proc))
	bat := batch.New(schema, proc.Lim.BatchRows)
	defer bat.Clean(proc.Mp())
	eos, err := op.Next(proc, bat)
	require.NoError(t, err)
	require.True(t, eos)
	require.Zero(t, bat.RowCount())
	require.NoError(t, op.Close(proc))
}
