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

// Package fsutil prepares and checks the scratch directories the engine
// spills into.
package fsutil

import (
	"context"
	"os"
	"syscall"

	"github.com/siltdb/silt/pkg/common/moerr"
)

// CreateDirectory makes an empty directory at path, removing whatever
// was there before.  Stale scratch contents from a previous run must not
// survive into this one.
func CreateDirectory(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return moerr.NewInternalError(ctx, "remove %s: %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		return moerr.NewInternalError(ctx, "stat %s: %v", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return moerr.NewInternalError(ctx, "create directory %s: %v", path, err)
	}
	return nil
}

// RemovePaths deletes every listed path and anything under it.
func RemovePaths(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return moerr.NewInternalError(ctx, "remove %s: %v", p, err)
		}
	}
	return nil
}

// CreateFile makes an empty file at path, truncating an existing one.
func CreateFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return moerr.NewInternalError(ctx, "create file %s: %v", path, err)
	}
	return f.Close()
}

// ResizeFile grows or shrinks the file at path to size bytes.
func ResizeFile(ctx context.Context, path string, size int64) error {
	if err := os.Truncate(path, size); err != nil {
		return moerr.NewInternalError(ctx, "resize %s to %d: %v", path, size, err)
	}
	return nil
}

// VerifyIsDirectory checks that path exists and is a directory.
func VerifyIsDirectory(ctx context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return moerr.NewInvalidPath(ctx, path)
		}
		return moerr.NewInternalError(ctx, "stat %s: %v", path, err)
	}
	if !fi.IsDir() {
		return moerr.NewInvalidPath(ctx, path)
	}
	return nil
}

// GetSpaceAvailable returns the bytes available to an unprivileged
// caller on the filesystem holding path.
func GetSpaceAvailable(ctx context.Context, path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, moerr.NewInvalidPath(ctx, path)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
