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

package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/pkg/cache"
	"github.com/stagecrafthq/stagecraft/pkg/database"
)

const (
	profileCacheKeyPrefix = "profile:"
	profileCacheTTL       = time.Hour
)

// IProfileRepository defines persistence for delivery profiles.
type IProfileRepository interface {
	Get(ctx context.Context, profileId string) (*model.Profile, error)
	ListEnabled(ctx context.Context) ([]model.Profile, error)
	Create(ctx context.Context, profile *model.Profile) error
	Update(ctx context.Context, profile *model.Profile) error
	Delete(ctx context.Context, profileId string) error
}

type ProfileRepo struct {
	database.IDatabase
	cache.ICache
}

// NewProfileRepo creates the profile repository.
func NewProfileRepo(db database.IDatabase, cache cache.ICache) IProfileRepository {
	return &ProfileRepo{IDatabase: db, ICache: cache}
}

// Get returns an enabled profile by profileId (cached).
func (pr *ProfileRepo) Get(ctx context.Context, profileId string) (*model.Profile, error) {
	keyFunc := func(params ...any) string {
		return profileCacheKeyPrefix + params[0].(string)
	}

	queryFunc := func(ctx context.Context) (*model.Profile, error) {
		var profile model.Profile
		err := pr.Database().WithContext(ctx).
			Where("profile_id = ? AND is_enabled = ?", profileId, model.ProfileEnabled).
			First(&profile).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get profile %s: %w", profileId, err)
		}
		return &profile, nil
	}

	cq := cache.NewCachedQuery(
		pr.ICache,
		keyFunc,
		queryFunc,
		cache.WithTTL[*model.Profile](profileCacheTTL),
		cache.WithLogPrefix[*model.Profile]("[ProfileRepo]"),
	)

	return cq.Get(ctx, profileId)
}

// ListEnabled returns all enabled profiles.
func (pr *ProfileRepo) ListEnabled(ctx context.Context) ([]model.Profile, error) {
	var list []model.Profile
	err := pr.Database().WithContext(ctx).
		Where("is_enabled = ?", model.ProfileEnabled).
		Order("profile_id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Create inserts a profile.
func (pr *ProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	return pr.Database().WithContext(ctx).Create(profile).Error
}

// Update saves a profile and drops its cache entry.
func (pr *ProfileRepo) Update(ctx context.Context, profile *model.Profile) error {
	if err := pr.Database().WithContext(ctx).Save(profile).Error; err != nil {
		return err
	}
	return pr.invalidate(ctx, profile.ProfileId)
}

// Delete disables a profile and drops its cache entry.
func (pr *ProfileRepo) Delete(ctx context.Context, profileId string) error {
	err := pr.Database().WithContext(ctx).
		Model(&model.Profile{}).
		Where("profile_id = ?", profileId).
		Update("is_enabled", model.ProfileDisabled).Error
	if err != nil {
		return err
	}
	return pr.invalidate(ctx, profileId)
}

func (pr *ProfileRepo) invalidate(ctx context.Context, profileId string) error {
	keyFunc := func(params ...any) string {
		return profileCacheKeyPrefix + params[0].(string)
	}
	cq := cache.NewCachedQuery[*model.Profile](pr.ICache, keyFunc, nil)
	return cq.Invalidate(ctx, profileId)
}
