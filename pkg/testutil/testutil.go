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

// Package testutil carries helpers shared by the operator tests.
package testutil

import (
	"context"

	"github.com/siltdb/silt/pkg/common/mpool"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/sql/plan"
	"github.com/siltdb/silt/pkg/vm/process"
)

// NewProc builds a process with an unbounded pool for tests.
func NewProc() *process.Process {
	return process.New(context.Background(), mpool.MustNewZero("test"))
}

// NewProcWithMPool builds a process backed by the given pool, which
// tests keep a handle on for leak checks.
func NewProcWithMPool(mp *mpool.MPool) *process.Process {
	return process.New(context.Background(), mp)
}

// MakeSchema repeats oid into an n column schema.
func MakeSchema(oid types.T, n int) []types.Type {
	s := make([]types.Type, n)
	for i := range s {
		s[i] = oid.ToType()
	}
	return s
}

// MakeColExprs builds one column-reference expression per schema column,
// the common shape of a set-operation key list.
func MakeColExprs(schema []types.Type) []plan.Expr {
	exprs := make([]plan.Expr, len(schema))
	for i, t := range schema {
		exprs[i] = plan.NewColRef(int32(i), t)
	}
	return exprs
}

// Int64Rows wraps scalars into single-column tuples.
func Int64Rows(vals ...int64) []types.Tuple {
	rows := make([]types.Tuple, len(vals))
	for i, v := range vals {
		rows[i] = types.Tuple{v}
	}
	return rows
}

// VarcharRows wraps strings into single-column tuples.
func VarcharRows(vals ...string) []types.Tuple {
	rows := make([]types.Tuple, len(vals))
	for i, v := range vals {
		rows[i] = types.Tuple{v}
	}
	return rows
}
