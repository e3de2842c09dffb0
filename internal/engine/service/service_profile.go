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

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/stagecrafthq/stagecraft/internal/engine/model"
	"github.com/stagecrafthq/stagecraft/internal/engine/repo"
	"github.com/stagecrafthq/stagecraft/internal/pkg/workflow"
	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// ProfileService manages stored delivery profiles and mirrors enabled
// ones into the engine's in-memory registry.
type ProfileService struct {
	profiles repo.IProfileRepository
	engine   *workflow.Engine
}

func NewProfileService(profiles repo.IProfileRepository, engine *workflow.Engine) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		engine:   engine,
	}
}

// CreateProfile validates the definition against the engine and stores
// it enabled.
func (s *ProfileService) CreateProfile(ctx context.Context, req *model.CreateProfileReq) (*model.ProfileRep, error) {
	if req.ProfileId == "" {
		return nil, errors.New("profile id cannot be empty")
	}
	if req.Name == "" {
		return nil, errors.New("profile name cannot be empty")
	}

	wp := toWorkflowProfile(req.ProfileId, req.Name, &req.Definition)
	if err := s.engine.RegisterProfile(wp); err != nil {
		return nil, err
	}

	definition, err := sonic.MarshalString(&req.Definition)
	if err != nil {
		return nil, fmt.Errorf("encode profile definition failed: %w", err)
	}
	row := &model.Profile{
		ProfileId:   req.ProfileId,
		Name:        req.Name,
		Description: req.Description,
		Definition:  definition,
		IsEnabled:   model.ProfileEnabled,
	}
	if err := s.profiles.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("create profile failed: %w", err)
	}
	logger.Infow("profile created", "profileId", req.ProfileId, "phases", len(req.Definition.Phases))
	return profileRep(row, &req.Definition), nil
}

// UpdateProfile replaces the stored definition and refreshes the
// engine registry. Runs already in flight keep their loaded profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, profileId string, req *model.CreateProfileReq) (*model.ProfileRep, error) {
	row, err := s.profiles.Get(ctx, profileId)
	if err != nil {
		return nil, fmt.Errorf("get profile failed: %w", err)
	}
	if row == nil {
		return nil, &workflow.InvalidProfileError{ProfileID: profileId, Reason: "not found"}
	}

	name := req.Name
	if name == "" {
		name = row.Name
	}
	wp := toWorkflowProfile(profileId, name, &req.Definition)
	if err := s.engine.RegisterProfile(wp); err != nil {
		return nil, err
	}

	definition, err := sonic.MarshalString(&req.Definition)
	if err != nil {
		return nil, fmt.Errorf("encode profile definition failed: %w", err)
	}
	row.Name = name
	if req.Description != "" {
		row.Description = req.Description
	}
	row.Definition = definition
	if err := s.profiles.Update(ctx, row); err != nil {
		return nil, fmt.Errorf("update profile failed: %w", err)
	}
	return profileRep(row, &req.Definition), nil
}

// GetProfile returns one enabled profile.
func (s *ProfileService) GetProfile(ctx context.Context, profileId string) (*model.ProfileRep, error) {
	row, err := s.profiles.Get(ctx, profileId)
	if err != nil {
		return nil, fmt.Errorf("get profile failed: %w", err)
	}
	if row == nil {
		return nil, &workflow.InvalidProfileError{ProfileID: profileId, Reason: "not found"}
	}
	def, err := decodeDefinition(row.Definition)
	if err != nil {
		return nil, err
	}
	return profileRep(row, def), nil
}

// ListProfiles returns all enabled profiles.
func (s *ProfileService) ListProfiles(ctx context.Context) ([]model.ProfileRep, error) {
	rows, err := s.profiles.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles failed: %w", err)
	}
	reps := make([]model.ProfileRep, 0, len(rows))
	for i := range rows {
		def, err := decodeDefinition(rows[i].Definition)
		if err != nil {
			logger.Warnw("skip profile with bad definition", "profileId", rows[i].ProfileId, "error", err)
			continue
		}
		reps = append(reps, *profileRep(&rows[i], def))
	}
	return reps, nil
}

// DeleteProfile disables the profile. Existing runs are unaffected.
func (s *ProfileService) DeleteProfile(ctx context.Context, profileId string) error {
	if err := s.profiles.Delete(ctx, profileId); err != nil {
		return fmt.Errorf("delete profile failed: %w", err)
	}
	return nil
}

// EnsureLoaded mirrors the stored profile into the engine registry if
// it is not already there.
func (s *ProfileService) EnsureLoaded(ctx context.Context, profileId string) error {
	if _, err := s.engine.Profile(profileId); err == nil {
		return nil
	}
	row, err := s.profiles.Get(ctx, profileId)
	if err != nil {
		return fmt.Errorf("get profile failed: %w", err)
	}
	if row == nil {
		return &workflow.InvalidProfileError{ProfileID: profileId, Reason: "not found"}
	}
	def, err := decodeDefinition(row.Definition)
	if err != nil {
		return err
	}
	return s.engine.RegisterProfile(toWorkflowProfile(row.ProfileId, row.Name, def))
}

// LoadAll mirrors every enabled profile into the engine, typically at
// startup.
func (s *ProfileService) LoadAll(ctx context.Context) error {
	rows, err := s.profiles.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list profiles failed: %w", err)
	}
	for i := range rows {
		def, err := decodeDefinition(rows[i].Definition)
		if err != nil {
			logger.Warnw("skip profile with bad definition", "profileId", rows[i].ProfileId, "error", err)
			continue
		}
		if err := s.engine.RegisterProfile(toWorkflowProfile(rows[i].ProfileId, rows[i].Name, def)); err != nil {
			logger.Warnw("skip invalid profile", "profileId", rows[i].ProfileId, "error", err)
		}
	}
	return nil
}

func decodeDefinition(raw string) (*model.ProfileDefinition, error) {
	var def model.ProfileDefinition
	if err := sonic.UnmarshalString(raw, &def); err != nil {
		return nil, fmt.Errorf("decode profile definition failed: %w", err)
	}
	return &def, nil
}

func toWorkflowProfile(profileId, name string, def *model.ProfileDefinition) *workflow.Profile {
	return &workflow.Profile{
		ID:           profileId,
		Name:         name,
		Phases:       def.Phases,
		ClientPolicy: def.ClientPolicy,
	}
}

func profileRep(row *model.Profile, def *model.ProfileDefinition) *model.ProfileRep {
	return &model.ProfileRep{
		ProfileId:   row.ProfileId,
		Name:        row.Name,
		Description: row.Description,
		Definition:  *def,
		Enabled:     row.IsEnabled == model.ProfileEnabled,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
