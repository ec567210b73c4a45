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

package pipeline

import (
	"bytes"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/vm"
	"github.com/siltdb/silt/pkg/vm/process"
)

// ConsumerFunc receives every non-empty batch a pipeline produces.  The
// batch is only valid for the duration of the call.
type ConsumerFunc func(proc *process.Process, bat *batch.Batch) error

// Pipeline drives one operator tree to completion.  A pipeline runs on a
// single worker; parallelism exists only across pipelines.
type Pipeline struct {
	root   vm.Operator
	schema []types.Type
}

func New(root vm.Operator, schema []types.Type) *Pipeline {
	return &Pipeline{root: root, schema: schema}
}

func (p *Pipeline) String() string {
	var buf bytes.Buffer
	vm.String(p.root, &buf)
	return buf.String()
}

// Run opens the tree, pulls batches until end-of-stream and hands each
// one to consume.  The root is always closed, and close errors are
// combined with the run error.
func (p *Pipeline) Run(proc *process.Process, consume ConsumerFunc) (err error) {
	if err = p.root.Open(proc); err != nil {
		// a failed open still owns whatever the subtree acquired
		return multierr.Combine(err, p.root.Close(proc))
	}
	defer func() {
		err = multierr.Combine(err, p.root.Close(proc))
	}()

	bat := batch.New(p.schema, proc.Lim.BatchRows)
	bat.SizeLimit = proc.Lim.BatchSize
	defer bat.Clean(proc.Mp())
	for {
		eos, err := p.root.Next(proc, bat)
		if err != nil {
			return err
		}
		if !bat.IsEmpty() && consume != nil {
			if err := consume(proc, bat); err != nil {
				return err
			}
		}
		if eos {
			return nil
		}
	}
}

// RunMany executes independent pipelines on a bounded worker pool, one
// process per pipeline.  The first error of each pipeline is kept and all
// are combined.
func RunMany(pipelines []*Pipeline, procs []*process.Process, consume ConsumerFunc, parallelism int) error {
	if len(pipelines) != len(procs) {
		return moerr.NewInternalError(nil, "%d pipelines with %d processes", len(pipelines), len(procs))
	}
	if parallelism < 1 {
		parallelism = 1
	}
	pool, err := ants.NewPool(parallelism)
	if err != nil {
		return moerr.ConvertGoError(nil, err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	errs := make([]error, len(pipelines))
	for i := range pipelines {
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			errs[i] = pipelines[i].Run(procs[i], consume)
		}); err != nil {
			wg.Done()
			errs[i] = moerr.ConvertGoError(procs[i].Ctx, err)
		}
	}
	wg.Wait()
	return multierr.Combine(errs...)
}
