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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/siltdb/silt/pkg/common/mpool"
	"github.com/siltdb/silt/pkg/container/types"
)

func int64Schema() []types.Type {
	return []types.Type{types.T_int64.ToType()}
}

func TestBatchAppendAndRead(t *testing.T) {
	ctx := context.Background()
	mp := mpool.MustNewZero("batch-test")
	bat := New(int64Schema(), 4)
	_, _, err := bat.ResizeAndAllocateTupleBuffer(mp)
	require.NoError(t, err)
	defer bat.Clean(mp)

	require.True(t, bat.IsEmpty())
	for v := int64(0); v < 4; v++ {
		require.NoError(t, bat.AppendRow(ctx, types.Tuple{v}))
	}
	require.True(t, bat.IsFull())
	require.Error(t, bat.AppendRow(ctx, types.Tuple{int64(9)}))

	for i := 0; i < 4; i++ {
		row, err := bat.Row(ctx, i)
		require.NoError(t, err)
		require.Equal(t, types.Tuple{int64(i)}, row)
	}
	_, err = bat.Row(ctx, 4)
	require.Error(t, err)
}

func TestBatchResetKeepsBuffer(t *testing.T) {
	ctx := context.Background()
	mp := mpool.MustNewZero("batch-test")
	bat := New(int64Schema(), 4)
	_, _, err := bat.ResizeAndAllocateTupleBuffer(mp)
	require.NoError(t, err)
	defer bat.Clean(mp)

	require.NoError(t, bat.AppendRow(ctx, types.Tuple{int64(1)}))
	held := mp.CurrNB()
	bat.Reset()
	require.Zero(t, bat.RowCount())
	require.True(t, bat.Allocated())
	require.Equal(t, held, mp.CurrNB())
}

func TestBatchResizeReleasesOldBuffer(t *testing.T) {
	mp := mpool.MustNewZero("batch-test")
	bat := New(int64Schema(), 4)
	_, _, err := bat.ResizeAndAllocateTupleBuffer(mp)
	require.NoError(t, err)
	held := mp.CurrNB()

	buf, size, err := bat.ResizeAndAllocateTupleBuffer(mp)
	require.NoError(t, err)
	require.Equal(t, held, mp.CurrNB())
	require.Equal(t, size, int64(len(buf)))
	for _, b := range buf {
		require.Zero(t, b)
	}

	bat.Clean(mp)
	require.Zero(t, mp.CurrNB())
}

func TestBatchResourceLimit(t *testing.T) {
	ctx := context.Background()
	mp := mpool.MustNewZero("batch-test")
	bat := New(int64Schema(), 100)
	bat.SizeLimit = int64(2 * bat.RowSize())
	_, _, err := bat.ResizeAndAllocateTupleBuffer(mp)
	require.NoError(t, err)
	defer bat.Clean(mp)

	require.False(t, bat.AtResourceLimit())
	require.NoError(t, bat.AppendRow(ctx, types.Tuple{int64(1)}))
	require.False(t, bat.AtResourceLimit())
	require.NoError(t, bat.AppendRow(ctx, types.Tuple{int64(2)}))
	require.True(t, bat.AtResourceLimit())
}

func TestBatchWithoutBuffer(t *testing.T) {
	ctx := context.Background()
	bat := New(int64Schema(), 4)
	require.False(t, bat.Allocated())
	require.Error(t, bat.SetRow(ctx, 0, types.Tuple{int64(1)}))
}
