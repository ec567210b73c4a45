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

package mpool

import (
	"sync"
	"sync/atomic"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/logutil"
)

// Limit of a pool.  0 means no limit.
const NoLimit int64 = 0

// MPool is a memory accounting pool.  Every execution node allocates its
// working memory through one MPool so that a per-node budget can be
// enforced; an allocation beyond the budget fails with ErrOOM and is fatal
// to the owning node.
type MPool struct {
	tag    string
	cap    int64
	currNB atomic.Int64
	highNB atomic.Int64
}

var globalPools sync.Map

func NewMPool(tag string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInternalError(nil, "mpool %s with negative cap %d", tag, cap)
	}
	mp := &MPool{tag: tag, cap: cap}
	globalPools.Store(mp, struct{}{})
	return mp, nil
}

// MustNewZero creates an unbounded pool, for places that cannot fail.
func MustNewZero(tag string) *MPool {
	mp, err := NewMPool(tag, NoLimit)
	if err != nil {
		panic(err)
	}
	return mp
}

func (mp *MPool) Tag() string {
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

// CurrNB returns the current number of bytes held by the pool.  Tests use
// this for leak checking: after all frees it must be zero.
func (mp *MPool) CurrNB() int64 {
	return mp.currNB.Load()
}

func (mp *MPool) HighWaterMark() int64 {
	return mp.highNB.Load()
}

// Alloc allocates sz bytes, zeroed.  The returned slice must be released
// with Free; its capacity is exactly sz.
func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInternalError(nil, "mpool %s alloc size %d", mp.tag, sz)
	}
	if sz == 0 {
		return nil, nil
	}
	nb := mp.currNB.Add(int64(sz))
	if mp.cap != NoLimit && nb > mp.cap {
		mp.currNB.Add(-int64(sz))
		logutil.Errorf("mpool %s out of space, cap %d, need %d", mp.tag, mp.cap, sz)
		return nil, moerr.NewOOM(nil)
	}
	for {
		hi := mp.highNB.Load()
		if nb <= hi || mp.highNB.CompareAndSwap(hi, nb) {
			break
		}
	}
	return make([]byte, sz, sz), nil
}

// Free releases a slice obtained from Alloc.  Freeing nil is a no-op.
func (mp *MPool) Free(bs []byte) {
	if bs == nil {
		return
	}
	if mp.currNB.Add(-int64(cap(bs))) < 0 {
		panic(moerr.NewInternalError(nil, "mpool %s double free", mp.tag))
	}
}

// Grow reallocates a slice to a bigger size, copying the old content.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	data, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(data, old)
	mp.Free(old)
	return data, nil
}

// Release removes the pool from the global registry.  The pool must not be
// used afterwards.
func (mp *MPool) Release() {
	if nb := mp.CurrNB(); nb != 0 {
		logutil.Warnf("mpool %s released with %d bytes in use", mp.tag, nb)
	}
	globalPools.Delete(mp)
}
