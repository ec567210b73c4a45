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

// Package plan holds the slice of plan metadata the execution operators
// consume.  A planner or a coordinator hands these nodes to the runtime;
// nothing here is computed at execution time.
package plan

import (
	"fmt"

	"github.com/siltdb/silt/pkg/container/types"
)

// Expr is a key-deriving expression: either a column reference or a
// literal.  Exactly one of Col and Lit is set.
type Expr struct {
	Typ types.Type
	Col *ColRef
	Lit *Literal
}

type ColRef struct {
	ColPos int32
}

type Literal struct {
	Value types.TupleElement
}

func NewColRef(pos int32, typ types.Type) Expr {
	return Expr{Typ: typ, Col: &ColRef{ColPos: pos}}
}

func NewLiteral(v types.TupleElement, typ types.Type) Expr {
	return Expr{Typ: typ, Lit: &Literal{Value: v}}
}

func (e Expr) String() string {
	switch {
	case e.Col != nil:
		return fmt.Sprintf("#%d", e.Col.ColPos)
	case e.Lit != nil:
		return fmt.Sprintf("%v", e.Lit.Value)
	default:
		return "?"
	}
}

// SetOpNode configures one set-operation node.  ExprLists is indexed by
// operand position: list i derives the comparison key from operand i's
// rows, validated against ChildSchemas[i].  Schema is the output tuple
// schema, which is the anchor operand's shape.
type SetOpNode struct {
	ExprLists      [][]Expr
	ChildSchemas   [][]types.Type
	Schema         []types.Type
	NullEqualsNull bool
	// Limit caps the rows this node returns; 0 means no limit.
	Limit uint64
}
