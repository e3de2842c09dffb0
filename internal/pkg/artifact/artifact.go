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
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Storage backend types.
const (
	BackendFs    = "fs"
	BackendMinio = "minio"
)

// ErrNotFound is returned when an artifact ref does not resolve.
var ErrNotFound = errors.New("artifact not found")

// Ref identifies one stored artifact. Logical paths are partitioned
// by phase: "<phase>/<relative path>".
type Ref struct {
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// LogicalPath returns the phase-partitioned path the glob patterns
// match against.
func (r Ref) LogicalPath() string {
	return path.Join(r.Phase, r.Path)
}

// Object is a fetched artifact.
type Object struct {
	Ref  Ref
	Data []byte
}

// Store is the artifact store consulted by the validator and the
// read-side API. Implementations never mutate artifacts on List/Get.
type Store interface {
	// List returns refs under runID whose logical path matches the
	// glob pattern, ordered by logical path.
	List(ctx context.Context, runID, pattern string) ([]Ref, error)

	// Get fetches one artifact by ref.
	Get(ctx context.Context, ref Ref) (*Object, error)

	// Put stores an artifact under the ref's run, phase and path.
	Put(ctx context.Context, ref Ref, data []byte) error
}

// Config selects and configures the storage backend.
type Config struct {
	Backend string      `mapstructure:"backend" json:"backend" yaml:"backend"`
	Fs      FsConfig    `mapstructure:"fs" json:"fs" yaml:"fs"`
	Minio   MinioConfig `mapstructure:"minio" json:"minio" yaml:"minio"`
}

// FsConfig configures the local filesystem backend.
type FsConfig struct {
	Root string `mapstructure:"root" json:"root" yaml:"root"`
}

// MinioConfig configures the object-store backend.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" json:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	UseTLS    bool   `mapstructure:"use_tls" json:"use_tls" yaml:"use_tls"`
	BasePath  string `mapstructure:"base_path" json:"base_path" yaml:"base_path"`
}

// SetDefaults fills missing settings with sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFs
	}
	if c.Fs.Root == "" {
		c.Fs.Root = "artifacts"
	}
}

// NewStore creates the configured artifact store backend.
func NewStore(c Config) (Store, error) {
	c.SetDefaults()
	switch c.Backend {
	case BackendFs:
		return NewFsStore(c.Fs.Root)
	case BackendMinio:
		return NewMinioStore(c.Minio)
	default:
		return nil, fmt.Errorf("unsupported artifact backend: %s", c.Backend)
	}
}

// matchPattern reports whether a glob pattern matches the logical
// path. Patterns match the full phase-partitioned path first; a
// pattern without a separator also matches the file name, so "*.md"
// finds markdown artifacts in any phase directory.
func matchPattern(pattern, logicalPath string) bool {
	if ok, err := path.Match(pattern, logicalPath); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := path.Match(pattern, path.Base(logicalPath)); err == nil && ok {
			return true
		}
	}
	return false
}
