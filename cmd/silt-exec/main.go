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

// silt-exec runs a multi-way EXCEPT over integer lists given on the
// command line and prints the surviving rows, one per line.
//
//	silt-exec [-cfg engine.toml] [-limit N] [-null-equals=false] LIST LIST...
//
// Each LIST is a comma-separated sequence of int64 values; the token
// "null" stands for SQL NULL.  The first list is the anchor, every later
// list subtracts from it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/siltdb/silt/pkg/common/mpool"
	"github.com/siltdb/silt/pkg/config"
	"github.com/siltdb/silt/pkg/container/batch"
	"github.com/siltdb/silt/pkg/container/types"
	"github.com/siltdb/silt/pkg/logutil"
	"github.com/siltdb/silt/pkg/sql/plan"
	"github.com/siltdb/silt/pkg/sql/rowexec/except"
	"github.com/siltdb/silt/pkg/sql/rowexec/valuescan"
	"github.com/siltdb/silt/pkg/vm"
	"github.com/siltdb/silt/pkg/vm/pipeline"
	"github.com/siltdb/silt/pkg/vm/process"
)

var (
	cfgPath    = flag.String("cfg", "", "path to the engine toml configuration")
	limit      = flag.Uint64("limit", 0, "cap on the rows returned, 0 means unlimited")
	nullEquals = flag.Bool("null-equals", true, "whether two NULL keys compare equal")
)

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx := context.Background()
	conf := config.Default()
	if *cfgPath != "" {
		var err error
		if conf, err = config.Load(ctx, *cfgPath); err != nil {
			return err
		}
	}
	logutil.SetupGlobalLogger(conf.Log)
	if err := conf.Validate(ctx); err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("need at least two operand lists, got %d", len(args))
	}

	schema := []types.Type{types.T_int64.ToType()}
	node := &plan.SetOpNode{Schema: schema, NullEqualsNull: *nullEquals, Limit: *limit}
	children := make([]vm.Operator, len(args))
	for i, arg := range args {
		rows, err := parseRows(arg)
		if err != nil {
			return fmt.Errorf("operand %d: %w", i, err)
		}
		node.ExprLists = append(node.ExprLists, []plan.Expr{plan.NewColRef(0, schema[0])})
		node.ChildSchemas = append(node.ChildSchemas, schema)
		children[i] = valuescan.New(schema, rows)
	}

	mp, err := mpool.NewMPool("silt-exec", conf.MemoryLimit)
	if err != nil {
		return err
	}
	defer mp.Release()
	proc := process.New(ctx, mp)
	proc.Lim = conf.Limitation()

	op, err := except.New(proc, node, children)
	if err != nil {
		return err
	}
	p := pipeline.New(op, schema)
	logutil.Infof("query %s: %s", proc.QueryId(), p.String())
	return p.Run(proc, printRows)
}

func parseRows(s string) ([]types.Tuple, error) {
	var rows []types.Tuple
	if strings.TrimSpace(s) == "" {
		return rows, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if strings.EqualFold(tok, "null") {
			rows = append(rows, types.Tuple{nil})
			continue
		}
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", tok, err)
		}
		rows = append(rows, types.Tuple{v})
	}
	return rows, nil
}

func printRows(proc *process.Process, bat *batch.Batch) error {
	for i := 0; i < bat.RowCount(); i++ {
		row, err := bat.Row(proc.Ctx, i)
		if err != nil {
			return err
		}
		if row[0] == nil {
			fmt.Println("NULL")
		} else {
			fmt.Println(row[0].(int64))
		}
	}
	return nil
}
