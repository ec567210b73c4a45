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

// Package config loads and validates the engine configuration.
package config

import (
	"context"

	"github.com/BurntSushi/toml"

	"github.com/siltdb/silt/pkg/common/moerr"
	"github.com/siltdb/silt/pkg/logutil"
	"github.com/siltdb/silt/pkg/util/fsutil"
	"github.com/siltdb/silt/pkg/vm/process"
)

// EngineConfig is the root of the toml configuration file.
type EngineConfig struct {
	// MemoryLimit bounds the mpool budget of one query; 0 means no limit.
	MemoryLimit int64 `toml:"memory-limit"`
	// BatchRows is the row capacity of batches exchanged between
	// operators.
	BatchRows int `toml:"batch-rows"`
	// BatchSize is the byte budget of one batch; 0 disables the check.
	BatchSize int64 `toml:"batch-size"`
	// ScratchDirs are wiped and recreated at startup.
	ScratchDirs []string `toml:"scratch-dirs"`

	Log logutil.LogConfig `toml:"log"`
}

func Default() EngineConfig {
	return EngineConfig{
		BatchRows: process.DefaultBatchRows,
		Log:       logutil.LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads the toml file at path over the defaults.
func Load(ctx context.Context, path string) (EngineConfig, error) {
	conf := Default()
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return conf, moerr.NewBadConfig(ctx, "%s: %s", path, err)
	}
	return conf, nil
}

// Validate checks the configuration and prepares the scratch
// directories, wiping whatever a previous run left in them.
func (conf *EngineConfig) Validate(ctx context.Context) error {
	if conf.BatchRows <= 0 {
		return moerr.NewBadConfig(ctx, "batch-rows must be positive, got %d", conf.BatchRows)
	}
	if conf.MemoryLimit < 0 {
		return moerr.NewBadConfig(ctx, "memory-limit must not be negative, got %d", conf.MemoryLimit)
	}
	if conf.BatchSize < 0 {
		return moerr.NewBadConfig(ctx, "batch-size must not be negative, got %d", conf.BatchSize)
	}
	for _, dir := range conf.ScratchDirs {
		if err := fsutil.CreateDirectory(ctx, dir); err != nil {
			return err
		}
		if err := fsutil.VerifyIsDirectory(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

// Limitation translates the configuration into per-process limits.
func (conf *EngineConfig) Limitation() process.Limitation {
	return process.Limitation{
		Size:      conf.MemoryLimit,
		BatchRows: conf.BatchRows,
		BatchSize: conf.BatchSize,
	}
}
