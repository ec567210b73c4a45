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

package hashtable

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/siltdb/silt/pkg/common/mpool"
)

// StringHashMap maps a 128-bit key hash state to a dense 1-based id.
// Key equality is hash-state equality; callers own whatever payload the
// ids index into.  Open addressing with linear probing, resized at 50%
// load.  The cell array lives in mpool memory so table growth is charged
// against the owner's budget.

type StrCell struct {
	HashState [2]uint64
	Mapped    uint64
}

const (
	strCellSize      = uint64(unsafe.Sizeof(StrCell{}))
	kInitialCellCnt  = uint64(1024)
	kLoadFactorNumer = 1
	kLoadFactorDenom = 2
)

var hashSalt = [2][8]byte{
	{0x53, 0x49, 0x4c, 0x54, 0x00, 0x00, 0x00, 0x01},
	{0x53, 0x49, 0x4c, 0x54, 0x00, 0x00, 0x00, 0x02},
}

// HashState derives the 128-bit hash state of a key.
func HashState(key []byte) [2]uint64 {
	var st [2]uint64
	for i := range st {
		var d xxhash.Digest
		d.Reset()
		_, _ = d.Write(hashSalt[i][:])
		_, _ = d.Write(key)
		st[i] = d.Sum64()
	}
	return st
}

type StringHashMap struct {
	cellCnt uint64
	elemCnt uint64
	mask    uint64

	rawData []byte
	cells   []StrCell

	m *mpool.MPool
}

func (ht *StringHashMap) Init(m *mpool.MPool, cellCntHint uint64) error {
	cellCnt := kInitialCellCnt
	for cellCnt < cellCntHint {
		cellCnt <<= 1
	}
	raw, err := m.Alloc(int(cellCnt * strCellSize))
	if err != nil {
		return err
	}
	ht.m = m
	ht.rawData = raw
	ht.cells = unsafe.Slice((*StrCell)(unsafe.Pointer(&raw[0])), cellCnt)
	ht.cellCnt = cellCnt
	ht.mask = cellCnt - 1
	ht.elemCnt = 0
	return nil
}

func (ht *StringHashMap) Cardinality() uint64 {
	return ht.elemCnt
}

// Insert returns the id mapped to the hash state, assigning the next
// dense id when the state is new.
func (ht *StringHashMap) Insert(state [2]uint64) (uint64, error) {
	if err := ht.resizeOnDemand(); err != nil {
		return 0, err
	}
	cell := ht.findCell(state)
	if cell.Mapped == 0 {
		ht.elemCnt++
		cell.HashState = state
		cell.Mapped = ht.elemCnt
	}
	return cell.Mapped, nil
}

// Find returns the id mapped to the hash state, or 0 when absent.
func (ht *StringHashMap) Find(state [2]uint64) uint64 {
	return ht.findCell(state).Mapped
}

func (ht *StringHashMap) findCell(state [2]uint64) *StrCell {
	for idx := state[0] & ht.mask; ; idx = (idx + 1) & ht.mask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 || cell.HashState == state {
			return cell
		}
	}
}

func (ht *StringHashMap) resizeOnDemand() error {
	if (ht.elemCnt+1)*kLoadFactorDenom <= ht.cellCnt*kLoadFactorNumer {
		return nil
	}
	newCellCnt := ht.cellCnt << 1
	newRaw, err := ht.m.Alloc(int(newCellCnt * strCellSize))
	if err != nil {
		return err
	}
	oldCells, oldRaw := ht.cells, ht.rawData
	ht.rawData = newRaw
	ht.cells = unsafe.Slice((*StrCell)(unsafe.Pointer(&newRaw[0])), newCellCnt)
	ht.cellCnt = newCellCnt
	ht.mask = newCellCnt - 1
	for i := range oldCells {
		if oldCells[i].Mapped != 0 {
			cell := ht.findCell(oldCells[i].HashState)
			*cell = oldCells[i]
		}
	}
	ht.m.Free(oldRaw)
	return nil
}

func (ht *StringHashMap) Free() {
	if ht.rawData != nil {
		ht.m.Free(ht.rawData)
		ht.rawData = nil
		ht.cells = nil
	}
	ht.cellCnt, ht.elemCnt, ht.mask = 0, 0, 0
}
