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
	"encoding/binary"
	"math"
)

// Packer encodes a sequence of tuple elements into a single byte key.
// The encoding is injective: two element sequences produce the same bytes
// iff they are element-wise equal.  It is used to derive composite hash
// keys from per-operand key expressions.
//
// Each element is written as a one-byte type code followed by a fixed-width
// big-endian payload; byte strings carry a 4-byte length prefix so that a
// string boundary can never be confused with the next element.

const (
	nilCode     = 0x00
	falseCode   = 0x26
	trueCode    = 0x27
	int8Code    = 0x28
	int16Code   = 0x29
	int32Code   = 0x3a
	int64Code   = 0x3b
	uint8Code   = 0x3c
	uint16Code  = 0x3d
	uint32Code  = 0x3e
	uint64Code  = 0x40
	float32Code = 0x20
	float64Code = 0x21
	bytesCode   = 0x01
)

type Packer struct {
	buf []byte
}

func NewPacker() *Packer {
	return &Packer{buf: make([]byte, 0, 64)}
}

func (p *Packer) Reset() {
	p.buf = p.buf[:0]
}

// Bytes returns the encoded key.  The slice aliases the packer's buffer
// and is only valid until the next Reset.
func (p *Packer) Bytes() []byte {
	return p.buf
}

func (p *Packer) EncodeNull() {
	p.buf = append(p.buf, nilCode)
}

func (p *Packer) EncodeBool(v bool) {
	if v {
		p.buf = append(p.buf, trueCode)
	} else {
		p.buf = append(p.buf, falseCode)
	}
}

func (p *Packer) EncodeInt8(v int8) {
	p.buf = append(p.buf, int8Code, uint8(v))
}

func (p *Packer) EncodeInt16(v int16) {
	p.buf = append(p.buf, int16Code)
	p.buf = binary.BigEndian.AppendUint16(p.buf, uint16(v))
}

func (p *Packer) EncodeInt32(v int32) {
	p.buf = append(p.buf, int32Code)
	p.buf = binary.BigEndian.AppendUint32(p.buf, uint32(v))
}

func (p *Packer) EncodeInt64(v int64) {
	p.buf = append(p.buf, int64Code)
	p.buf = binary.BigEndian.AppendUint64(p.buf, uint64(v))
}

func (p *Packer) EncodeUint8(v uint8) {
	p.buf = append(p.buf, uint8Code, v)
}

func (p *Packer) EncodeUint16(v uint16) {
	p.buf = append(p.buf, uint16Code)
	p.buf = binary.BigEndian.AppendUint16(p.buf, v)
}

func (p *Packer) EncodeUint32(v uint32) {
	p.buf = append(p.buf, uint32Code)
	p.buf = binary.BigEndian.AppendUint32(p.buf, v)
}

func (p *Packer) EncodeUint64(v uint64) {
	p.buf = append(p.buf, uint64Code)
	p.buf = binary.BigEndian.AppendUint64(p.buf, v)
}

func (p *Packer) EncodeFloat32(v float32) {
	p.buf = append(p.buf, float32Code)
	p.buf = binary.BigEndian.AppendUint32(p.buf, math.Float32bits(v))
}

func (p *Packer) EncodeFloat64(v float64) {
	p.buf = append(p.buf, float64Code)
	p.buf = binary.BigEndian.AppendUint64(p.buf, math.Float64bits(v))
}

func (p *Packer) EncodeStringType(v []byte) {
	p.buf = append(p.buf, bytesCode)
	p.buf = binary.BigEndian.AppendUint32(p.buf, uint32(len(v)))
	p.buf = append(p.buf, v...)
}

// EncodeElement dispatches on the dynamic type of a tuple element.
// Returns false for element types the packer does not understand.
func (p *Packer) EncodeElement(e TupleElement) bool {
	switch v := e.(type) {
	case nil:
		p.EncodeNull()
	case bool:
		p.EncodeBool(v)
	case int8:
		p.EncodeInt8(v)
	case int16:
		p.EncodeInt16(v)
	case int32:
		p.EncodeInt32(v)
	case int64:
		p.EncodeInt64(v)
	case uint8:
		p.EncodeUint8(v)
	case uint16:
		p.EncodeUint16(v)
	case uint32:
		p.EncodeUint32(v)
	case uint64:
		p.EncodeUint64(v)
	case float32:
		p.EncodeFloat32(v)
	case float64:
		p.EncodeFloat64(v)
	case []byte:
		p.EncodeStringType(v)
	case string:
		p.EncodeStringType([]byte(v))
	default:
		return false
	}
	return true
}
