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

package vm

import (
	"bytes"

	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/vm/process"
)

// Operator is one node of a pull-based execution tree.  The caller drives
// it in strict order: Open once, Next until eos, Close exactly once.
// Open may block on the whole subtree; Next fills the caller-supplied
// batch and reports end-of-stream.  After eos, further Next calls must
// keep reporting eos with zero rows and no error.
type Operator interface {
	String(buf *bytes.Buffer)

	Open(proc *process.Process) error
	Next(proc *process.Process, bat *batch.Batch) (bool, error)
	Close(proc *process.Process) error
}

// String renders an operator tree for explain output.
func String(op Operator, buf *bytes.Buffer) {
	op.String(buf)
}
