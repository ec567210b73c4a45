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

package hashmap

import (
	"context"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/common/mpool"
	"github.com/siltdb/silt/pkg/container/hashtable"
	"github.com/siltdb/silt/pkg/container/types"
)

// KeyExpr derives one key column from a row.  A nil result is SQL NULL.
type KeyExpr interface {
	Eval(row types.Tuple) (types.TupleElement, error)
	Typ() types.Type
}

// SetHashMap keys one representative row per distinct composite key and
// carries a per-entry matched flag.  It is the working table of the set
// operators: build-side rows are inserted through the build expressions,
// probe-side rows are looked up through the probe expressions.
//
// Entries keep their insertion order; Begin iterates them in that order.
type SetHashMap struct {
	tag        string
	buildExprs []KeyExpr
	probeExprs []KeyExpr
	schema     []types.Type
	rowSize    int32
	nullEquals bool

	m       *mpool.MPool
	ht      hashtable.StringHashMap
	packer  *types.Packer
	entries []setEntry
	// hashed maps a raw-table id (1-based) to an entry index; entries with
	// a null key under nullEquals=false are appended without registration.
	hashed    []int
	unmatched uint64
}

type setEntry struct {
	row     []byte
	matched bool
}

// NewSetHashMap builds an empty table.
//   - buildExprs derive keys from rows being inserted (the anchor shape),
//     probeExprs from rows being looked up; the two lists were validated
//     for arity and type compatibility at plan init, this re-checks as a
//     guard against internal misuse.
//   - schema is the shape of the stored representative rows; the fixed
//     row size follows from it.
//   - nullEquals selects whether two NULL keys compare equal (EXCEPT and
//     INTERSECT want true).
//   - tag names the owning operator for logs and the memory pool.
//   - cellCntHint sizes the initial bucket array.
func NewSetHashMap(buildExprs, probeExprs []KeyExpr, schema []types.Type,
	nullEquals bool, tag string, m *mpool.MPool, cellCntHint uint64) (*SetHashMap, error) {
	ctx := context.Background()
	if len(buildExprs) == 0 || len(buildExprs) != len(probeExprs) {
		return nil, moerr.NewInternalError(ctx,
			"set hash map %s: build arity %d, probe arity %d", tag, len(buildExprs), len(probeExprs))
	}
	for i := range buildExprs {
		if !types.CompatibleTypes(buildExprs[i].Typ(), probeExprs[i].Typ()) {
			return nil, moerr.NewInternalError(ctx,
				"set hash map %s: key %d type %s vs %s", tag, i,
				buildExprs[i].Typ().String(), probeExprs[i].Typ().String())
		}
	}
	mp := &SetHashMap{
		tag:        tag,
		buildExprs: buildExprs,
		probeExprs: probeExprs,
		schema:     schema,
		rowSize:    types.RowSize(schema),
		nullEquals: nullEquals,
		m:          m,
		packer:     types.NewPacker(),
	}
	if err := mp.ht.Init(m, cellCntHint); err != nil {
		return nil, err
	}
	return mp, nil
}

func (mp *SetHashMap) Tag() string {
	return mp.tag
}

func (mp *SetHashMap) RowSize() int32 {
	return mp.rowSize
}

func (mp *SetHashMap) Schema() []types.Type {
	return mp.schema
}

// GroupCount returns the number of entries.
func (mp *SetHashMap) GroupCount() uint64 {
	return uint64(len(mp.entries))
}

// UnmatchedCount returns the number of entries not yet marked.  When it
// hits zero no later probe round can change the result.
func (mp *SetHashMap) UnmatchedCount() uint64 {
	return mp.unmatched
}

func (mp *SetHashMap) keyState(exprs []KeyExpr, row types.Tuple) (st [2]uint64, hasNull bool, err error) {
	mp.packer.Reset()
	for _, expr := range exprs {
		v, err := expr.Eval(row)
		if err != nil {
			return st, false, err
		}
		if v == nil {
			hasNull = true
		}
		if !mp.packer.EncodeElement(v) {
			return st, false, moerr.NewInternalError(context.Background(),
				"set hash map %s: cannot key value of type %T", mp.tag, v)
		}
	}
	return hashtable.HashState(mp.packer.Bytes()), hasNull, nil
}

// Insert adds a row unless its key is already present; returns whether a
// new entry was created.
func (mp *SetHashMap) Insert(ctx context.Context, row types.Tuple) (bool, error) {
	st, hasNull, err := mp.keyState(mp.buildExprs, row)
	if err != nil {
		return false, err
	}
	if hasNull && !mp.nullEquals {
		// null keys never compare equal: every such row is its own entry
		// and can never be matched by a probe.
		return true, mp.appendEntry(ctx, row, 0)
	}
	id, err := mp.ht.Insert(st)
	if err != nil {
		return false, err
	}
	if int(id) <= len(mp.hashed) {
		return false, nil
	}
	return true, mp.appendEntry(ctx, row, id)
}

func (mp *SetHashMap) appendEntry(ctx context.Context, row types.Tuple, id uint64) error {
	slot, err := mp.m.Alloc(int(mp.rowSize))
	if err != nil {
		return err
	}
	if err := types.EncodeRow(ctx, mp.schema, row, slot); err != nil {
		mp.m.Free(slot)
		return err
	}
	mp.entries = append(mp.entries, setEntry{row: slot})
	mp.unmatched++
	if id != 0 {
		mp.hashed = append(mp.hashed, len(mp.entries)-1)
	}
	return nil
}

// Find looks a probe-side row up; ok is false when no entry carries the
// row's key (the not-found sentinel).
func (mp *SetHashMap) Find(_ context.Context, row types.Tuple) (Iterator, bool, error) {
	st, hasNull, err := mp.keyState(mp.probeExprs, row)
	if err != nil {
		return Iterator{}, false, err
	}
	if hasNull && !mp.nullEquals {
		return Iterator{}, false, nil
	}
	id := mp.ht.Find(st)
	if id == 0 {
		return Iterator{}, false, nil
	}
	return Iterator{mp: mp, pos: mp.hashed[id-1]}, true, nil
}

// Begin positions an iterator on the first entry in insertion order.
func (mp *SetHashMap) Begin() Iterator {
	return Iterator{mp: mp}
}

// Free releases every entry row and the bucket array.
func (mp *SetHashMap) Free() {
	for i := range mp.entries {
		mp.m.Free(mp.entries[i].row)
	}
	mp.entries = nil
	mp.hashed = nil
	mp.unmatched = 0
	mp.ht.Free()
}

// Iterator is a position in the table's native (insertion) order.
type Iterator struct {
	mp  *SetHashMap
	pos int
}

func (it *Iterator) HasNext() bool {
	return it.mp != nil && it.pos < len(it.mp.entries)
}

func (it *Iterator) Next() {
	it.pos++
}

// RowBytes returns the fixed-size encoded representative row at the
// current position.
func (it *Iterator) RowBytes() []byte {
	return it.mp.entries[it.pos].row
}

// Row decodes the representative row at the current position.
func (it *Iterator) Row(ctx context.Context) (types.Tuple, error) {
	return types.DecodeRow(ctx, it.mp.schema, it.mp.entries[it.pos].row)
}

func (it *Iterator) Matched() bool {
	return it.mp.entries[it.pos].matched
}

// SetMatched marks the entry at the current position; re-marking is a
// no-op.
func (it *Iterator) SetMatched() {
	if !it.mp.entries[it.pos].matched {
		it.mp.entries[it.pos].matched = true
		it.mp.unmatched--
	}
}
