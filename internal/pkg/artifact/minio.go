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
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps artifacts in an S3-compatible bucket under
// <base_path>/<run_id>/<phase>/<path>.
type MinioStore struct {
	client   *minio.Client
	bucket   string
	basePath string
}

// NewMinioStore connects to the configured object store.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStore{
		client:   client,
		bucket:   cfg.Bucket,
		basePath: strings.Trim(cfg.BasePath, "/"),
	}, nil
}

func (s *MinioStore) objectKey(runID, logicalPath string) string {
	if s.basePath == "" {
		return path.Join(runID, logicalPath)
	}
	return path.Join(s.basePath, runID, logicalPath)
}

func (s *MinioStore) runPrefix(runID string) string {
	return s.objectKey(runID, "") + "/"
}

func (s *MinioStore) List(ctx context.Context, runID, pattern string) ([]Ref, error) {
	prefix := s.runPrefix(runID)

	var refs []Ref
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list artifacts for run %s: %w", runID, obj.Err)
		}
		logical := strings.TrimPrefix(obj.Key, prefix)
		if logical == "" {
			continue
		}
		if pattern != "" && !matchPattern(pattern, logical) {
			continue
		}
		phase, rest, ok := strings.Cut(logical, "/")
		if !ok {
			phase, rest = "", logical
		}
		refs = append(refs, Ref{
			RunID:     runID,
			Phase:     phase,
			Path:      rest,
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
		})
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].LogicalPath() < refs[j].LogicalPath()
	})
	return refs, nil
}

func (s *MinioStore) Get(ctx context.Context, ref Ref) (*Object, error) {
	key := s.objectKey(ref.RunID, ref.LogicalPath())

	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat artifact %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s: %w", key, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}

	ref.Size = stat.Size
	ref.CreatedAt = stat.LastModified
	return &Object{Ref: ref, Data: data}, nil
}

func (s *MinioStore) Put(ctx context.Context, ref Ref, data []byte) error {
	key := s.objectKey(ref.RunID, ref.LogicalPath())
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to put artifact %s: %w", key, err)
	}
	return nil
}
