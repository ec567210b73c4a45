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

package types

import (
	"fmt"
)

type T uint8

const (
	T_any T = iota
	T_bool
	T_int8
	T_int16
	T_int32
	T_int64
	T_uint8
	T_uint16
	T_uint32
	T_uint64
	T_float32
	T_float64
	T_char
	T_varchar
)

// Type describes one column of a row schema.  Width only matters for
// char/varchar, where it is the declared maximum byte length.
type Type struct {
	Oid   T
	Width int32
}

func New(oid T, width int32) Type {
	return Type{Oid: oid, Width: width}
}

func (t T) ToType() Type {
	switch t {
	case T_char, T_varchar:
		return Type{Oid: t, Width: 65}
	default:
		return Type{Oid: t}
	}
}

// TypeSize is the fixed byte width of the value part of a row slot.
func (t Type) TypeSize() int {
	switch t.Oid {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32:
		return 4
	case T_int64, T_uint64, T_float64:
		return 8
	case T_char, T_varchar:
		return 2 + int(t.Width)
	default:
		panic(fmt.Sprintf("unexpected type oid %d", t.Oid))
	}
}

func (t Type) IsString() bool {
	return t.Oid == T_char || t.Oid == T_varchar
}

func (t Type) String() string {
	if t.IsString() {
		return fmt.Sprintf("%s(%d)", t.Oid.String(), t.Width)
	}
	return t.Oid.String()
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	}
	return fmt.Sprintf("unexpected_oid[%d]", t)
}

// CompatibleTypes reports whether values of the two types can be compared
// for set-operation key equality.
func CompatibleTypes(a, b Type) bool {
	return a.Oid == b.Oid
}

// TupleElement is one column value of an in-flight row.  The concrete type
// is determined by the column oid: bool, int8..int64, uint8..uint64,
// float32/float64, or []byte for char/varchar.  A nil element is SQL NULL.
type TupleElement any

// Tuple is the in-flight row representation exchanged between operators.
type Tuple []TupleElement

func (tp Tuple) String() string {
	return fmt.Sprintf("%v", []TupleElement(tp))
}
