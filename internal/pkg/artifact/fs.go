// Copyright 2025 Stagecraft Authors.
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

package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FsStore keeps artifacts on the local filesystem under
// <root>/<run_id>/<phase>/<path>.
type FsStore struct {
	root string
}

// NewFsStore creates the root directory if needed.
func NewFsStore(root string) (*FsStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root %s: %w", root, err)
	}
	return &FsStore{root: root}, nil
}

func (s *FsStore) runDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *FsStore) List(_ context.Context, runID, pattern string) ([]Ref, error) {
	base := s.runDir(runID)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, nil
	}

	var refs []Ref
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		logical := filepath.ToSlash(rel)
		phase, rest, ok := strings.Cut(logical, "/")
		if !ok {
			// Files directly under the run directory carry no phase partition.
			phase, rest = "", logical
		}
		if pattern != "" && !matchPattern(pattern, logical) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		refs = append(refs, Ref{
			RunID:     runID,
			Phase:     phase,
			Path:      rest,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts for run %s: %w", runID, err)
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].LogicalPath() < refs[j].LogicalPath()
	})
	return refs, nil
}

func (s *FsStore) Get(_ context.Context, ref Ref) (*Object, error) {
	p := filepath.Join(s.runDir(ref.RunID), filepath.FromSlash(ref.LogicalPath()))
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact %s: %w", ref.LogicalPath(), err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", ref.LogicalPath(), err)
	}
	ref.Size = info.Size()
	ref.CreatedAt = info.ModTime()
	return &Object{Ref: ref, Data: data}, nil
}

func (s *FsStore) Put(_ context.Context, ref Ref, data []byte) error {
	p := filepath.Join(s.runDir(ref.RunID), filepath.FromSlash(ref.LogicalPath()))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", ref.LogicalPath(), err)
	}
	return nil
}
