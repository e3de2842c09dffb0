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

package workflow

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the durability contract for runs and their histories. The
// engine is the only writer. UpdateRun must compare-and-swap on
// Run.Version and return ErrVersionConflict on a lost race, so the
// per-run serialization guarantee survives process restarts.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	DeleteRun(ctx context.Context, runID string) error

	// SaveRecord inserts or replaces the record keyed by
	// (run, phase, attempt).
	SaveRecord(ctx context.Context, record *PhaseExecutionRecord) error
	ListRecords(ctx context.Context, runID string) ([]*PhaseExecutionRecord, error)

	SaveDecision(ctx context.Context, decision *ConsensusDecision) error
	ListDecisions(ctx context.Context, runID string) ([]*ConsensusDecision, error)

	SaveRollback(ctx context.Context, record *RollbackRecord) error
}

type recordKey struct {
	phase   string
	attempt int
}

// MemoryStore is the in-process Store used by tests and by
// single-node deployments that opt out of a database.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	records   map[string]map[recordKey]*PhaseExecutionRecord
	decisions map[string][]*ConsensusDecision
	rollbacks map[string][]*RollbackRecord
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*Run),
		records:   make(map[string]map[recordKey]*PhaseExecutionRecord),
		decisions: make(map[string][]*ConsensusDecision),
		rollbacks: make(map[string][]*RollbackRecord),
	}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Version = 1
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, &RunNotFoundError{RunID: runID}
	}
	return run.Clone(), nil
}

func (s *MemoryStore) UpdateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.runs[run.ID]
	if !ok {
		return &RunNotFoundError{RunID: run.ID}
	}
	if current.Version != run.Version {
		return ErrVersionConflict
	}
	run.Version++
	run.UpdatedAt = time.Now()
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return &RunNotFoundError{RunID: runID}
	}
	delete(s.runs, runID)
	delete(s.records, runID)
	delete(s.decisions, runID)
	delete(s.rollbacks, runID)
	return nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, record *PhaseExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.records[record.RunID]
	if !ok {
		byKey = make(map[recordKey]*PhaseExecutionRecord)
		s.records[record.RunID] = byKey
	}
	cp := *record
	byKey[recordKey{phase: record.Phase, attempt: record.Attempt}] = &cp
	return nil
}

func (s *MemoryStore) ListRecords(_ context.Context, runID string) ([]*PhaseExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey := s.records[runID]
	out := make([]*PhaseExecutionRecord, 0, len(byKey))
	for _, rec := range byKey {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		if out[i].Phase != out[j].Phase {
			return out[i].Phase < out[j].Phase
		}
		return out[i].Attempt < out[j].Attempt
	})
	return out, nil
}

func (s *MemoryStore) SaveDecision(_ context.Context, decision *ConsensusDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *decision
	s.decisions[decision.RunID] = append(s.decisions[decision.RunID], &cp)
	return nil
}

func (s *MemoryStore) ListDecisions(_ context.Context, runID string) ([]*ConsensusDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ConsensusDecision, 0, len(s.decisions[runID]))
	for _, d := range s.decisions[runID] {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) SaveRollback(_ context.Context, record *RollbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.rollbacks[record.RunID] = append(s.rollbacks[record.RunID], &cp)
	return nil
}

// Rollbacks lists advisory rollback records for a run.
func (s *MemoryStore) Rollbacks(runID string) []*RollbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RollbackRecord, 0, len(s.rollbacks[runID]))
	for _, r := range s.rollbacks[runID] {
		cp := *r
		out = append(out, &cp)
	}
	return out
}
