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

// Package rowexec holds code shared by the row execution operators.
package rowexec

import (
	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/sql/plan"
	"github.com/siltdb/silt/pkg/vm/process"
)

// ExpressionExecutor evaluates one plan expression against in-flight rows.
type ExpressionExecutor interface {
	Eval(row types.Tuple) (types.TupleElement, error)
	Typ() types.Type
	Free()
}

// NewExpressionExecutor builds an executor for one plan expression,
// validated against the schema of the rows it will see.
func NewExpressionExecutor(proc *process.Process, expr plan.Expr, schema []types.Type) (ExpressionExecutor, error) {
	switch {
	case expr.Col != nil:
		pos := expr.Col.ColPos
		if pos < 0 || int(pos) >= len(schema) {
			return nil, moerr.NewInvalidInput(proc.Ctx,
				"column position %d out of schema arity %d", pos, len(schema))
		}
		if !types.CompatibleTypes(expr.Typ, schema[pos]) {
			return nil, moerr.NewInvalidInput(proc.Ctx,
				"column %d declared %s, schema has %s", pos, expr.Typ.String(), schema[pos].String())
		}
		return &ColumnExpressionExecutor{pos: int(pos), typ: schema[pos]}, nil
	case expr.Lit != nil:
		return &FixedExpressionExecutor{value: expr.Lit.Value, typ: expr.Typ}, nil
	default:
		return nil, moerr.NewNYI(proc.Ctx, "expression without column or literal")
	}
}

// NewExpressionExecutorList builds the executors of one operand's key
// expression list.
func NewExpressionExecutorList(proc *process.Process, exprs []plan.Expr, schema []types.Type) ([]ExpressionExecutor, error) {
	execs := make([]ExpressionExecutor, 0, len(exprs))
	for _, e := range exprs {
		exec, err := NewExpressionExecutor(proc, e, schema)
		if err != nil {
			for _, done := range execs {
				done.Free()
			}
			return nil, err
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

// ColumnExpressionExecutor projects one column of the row.
type ColumnExpressionExecutor struct {
	pos int
	typ types.Type
}

func (expr *ColumnExpressionExecutor) Eval(row types.Tuple) (types.TupleElement, error) {
	if expr.pos >= len(row) {
		return nil, moerr.NewInternalError(nil,
			"column position %d out of row arity %d", expr.pos, len(row))
	}
	return row[expr.pos], nil
}

func (expr *ColumnExpressionExecutor) Typ() types.Type {
	return expr.typ
}

func (expr *ColumnExpressionExecutor) Free() {}

// FixedExpressionExecutor returns a constant for every row.
type FixedExpressionExecutor struct {
	value types.TupleElement
	typ   types.Type
}

func (expr *FixedExpressionExecutor) Eval(_ types.Tuple) (types.TupleElement, error) {
	return expr.value, nil
}

func (expr *FixedExpressionExecutor) Typ() types.Type {
	return expr.typ
}

func (expr *FixedExpressionExecutor) Free() {}
