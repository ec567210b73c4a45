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
	"context"
	"encoding/binary"
	"math"

	"github.com/siltdb/silt/pkg/common/moerr"
)

// Fixed-slot row codec.  A row occupies RowSize(schema) bytes: per column
// one null-flag byte followed by Type.TypeSize() value bytes.  Strings are
// stored as a 2-byte big-endian length plus the declared width.  A zeroed
// slot decodes as the all-NULL row.

const (
	nullFlag    = 0x00
	presentFlag = 0x01
)

// RowSize returns the fixed representative-row size of a schema.
func RowSize(schema []Type) int32 {
	var sz int32
	for _, t := range schema {
		sz += 1 + int32(t.TypeSize())
	}
	return sz
}

// EncodeRow writes row into dst, which must be exactly RowSize(schema)
// bytes.  Unset trailing columns are not allowed: len(row) must equal
// len(schema).
func EncodeRow(ctx context.Context, schema []Type, row Tuple, dst []byte) error {
	if len(row) != len(schema) {
		return moerr.NewInternalError(ctx, "encode row arity %d, schema arity %d", len(row), len(schema))
	}
	if int32(len(dst)) != RowSize(schema) {
		return moerr.NewInternalError(ctx, "encode row slot size %d, want %d", len(dst), RowSize(schema))
	}
	off := 0
	for i, t := range schema {
		vsz := t.TypeSize()
		if row[i] == nil {
			dst[off] = nullFlag
			off += 1 + vsz
			continue
		}
		dst[off] = presentFlag
		off++
		if err := encodeElement(ctx, t, row[i], dst[off:off+vsz]); err != nil {
			return err
		}
		off += vsz
	}
	return nil
}

func encodeElement(ctx context.Context, t Type, e TupleElement, dst []byte) error {
	switch t.Oid {
	case T_bool:
		v, ok := e.(bool)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		if v {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case T_int8:
		v, ok := e.(int8)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		dst[0] = uint8(v)
	case T_int16:
		v, ok := e.(int16)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint16(dst, uint16(v))
	case T_int32:
		v, ok := e.(int32)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint32(dst, uint32(v))
	case T_int64:
		v, ok := e.(int64)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint64(dst, uint64(v))
	case T_uint8:
		v, ok := e.(uint8)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		dst[0] = v
	case T_uint16:
		v, ok := e.(uint16)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint16(dst, v)
	case T_uint32:
		v, ok := e.(uint32)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint32(dst, v)
	case T_uint64:
		v, ok := e.(uint64)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint64(dst, v)
	case T_float32:
		v, ok := e.(float32)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint32(dst, math.Float32bits(v))
	case T_float64:
		v, ok := e.(float64)
		if !ok {
			return typeMismatch(ctx, t, e)
		}
		binary.BigEndian.PutUint64(dst, math.Float64bits(v))
	case T_char, T_varchar:
		v, ok := e.([]byte)
		if !ok {
			if s, sok := e.(string); sok {
				v = []byte(s)
			} else {
				return typeMismatch(ctx, t, e)
			}
		}
		if len(v) > int(t.Width) {
			return moerr.NewInvalidInput(ctx, "string of length %d exceeds %s", len(v), t.String())
		}
		binary.BigEndian.PutUint16(dst, uint16(len(v)))
		copy(dst[2:], v)
	default:
		return moerr.NewNYI(ctx, t.Oid.String())
	}
	return nil
}

// DecodeRow decodes one fixed-size slot back into a Tuple.
func DecodeRow(ctx context.Context, schema []Type, src []byte) (Tuple, error) {
	if int32(len(src)) != RowSize(schema) {
		return nil, moerr.NewInternalError(ctx, "decode row slot size %d, want %d", len(src), RowSize(schema))
	}
	row := make(Tuple, len(schema))
	off := 0
	for i, t := range schema {
		vsz := t.TypeSize()
		if src[off] == nullFlag {
			off += 1 + vsz
			continue
		}
		off++
		val := src[off : off+vsz]
		switch t.Oid {
		case T_bool:
			row[i] = val[0] != 0
		case T_int8:
			row[i] = int8(val[0])
		case T_int16:
			row[i] = int16(binary.BigEndian.Uint16(val))
		case T_int32:
			row[i] = int32(binary.BigEndian.Uint32(val))
		case T_int64:
			row[i] = int64(binary.BigEndian.Uint64(val))
		case T_uint8:
			row[i] = val[0]
		case T_uint16:
			row[i] = binary.BigEndian.Uint16(val)
		case T_uint32:
			row[i] = binary.BigEndian.Uint32(val)
		case T_uint64:
			row[i] = binary.BigEndian.Uint64(val)
		case T_float32:
			row[i] = math.Float32frombits(binary.BigEndian.Uint32(val))
		case T_float64:
			row[i] = math.Float64frombits(binary.BigEndian.Uint64(val))
		case T_char, T_varchar:
			n := binary.BigEndian.Uint16(val)
			b := make([]byte, n)
			copy(b, val[2:2+int(n)])
			row[i] = b
		default:
			return nil, moerr.NewNYI(ctx, t.Oid.String())
		}
		off += vsz
	}
	return row, nil
}

func typeMismatch(ctx context.Context, t Type, e TupleElement) *moerr.Error {
	return moerr.NewInternalError(ctx, "value %v (%T) does not fit column type %s", e, e, t.String())
}
