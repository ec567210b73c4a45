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

package moerr

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMoErrCode(t *testing.T) {
	ctx := context.Background()
	err := NewInternalError(ctx, "boom %d", 42)
	require.True(t, IsMoErrCode(err, ErrInternal))
	require.False(t, IsMoErrCode(err, ErrOOM))
	require.Equal(t, "internal error: boom 42", err.Error())
	require.True(t, IsMoErrCode(nil, Ok))
}

func TestLimitExceededIsNotFatal(t *testing.T) {
	err := NewLimitExceeded(context.Background(), "while probing")
	require.True(t, IsMoErrCode(err, ErrLimitExceeded))
	require.False(t, err.Succeeded())
	require.Equal(t, "limit exceeded: while probing", err.Error())
}

func TestOkCodes(t *testing.T) {
	require.True(t, GetOkExpectedEOF().Succeeded())
	require.True(t, IsMoErrCode(GetOkExpectedEOB(), OkExpectedEOB))
	// static instances must compare equal by pointer
	require.Equal(t, GetOkExpectedEOF(), GetOkExpectedEOF())
}

func TestConvertGoError(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, ConvertGoError(ctx, nil))
	moe := NewOOM(ctx)
	require.Equal(t, error(moe), ConvertGoError(ctx, moe))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, io.EOF), ErrUnexpectedEOF))
}
