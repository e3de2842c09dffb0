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

package shutdown

import (
	"context"
	"sync"
	"time"

	"github.com/google/wire"

	"github.com/stagecrafthq/stagecraft/pkg/logger"
)

// ProviderSet is the Wire provider set for the shutdown manager.
var ProviderSet = wire.NewSet(NewManager)

// Hook is a named cleanup function invoked during shutdown.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Manager collects cleanup hooks and runs them in reverse registration order.
type Manager struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	done    bool
}

// NewManager creates a shutdown manager with the default per-hook timeout.
func NewManager() *Manager {
	return &Manager{timeout: 10 * time.Second}
}

// SetTimeout overrides the per-hook timeout.
func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.timeout = d
	}
}

// Register adds a cleanup hook. Hooks run LIFO so dependents stop before dependencies.
func (m *Manager) Register(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Shutdown runs all registered hooks. It is safe to call more than once;
// only the first call executes the hooks.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	timeout := m.timeout
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookCtx, cancel := context.WithTimeout(ctx, timeout)
		if err := hook.Fn(hookCtx); err != nil {
			logger.Warnw("shutdown hook failed", "hook", hook.Name, "error", err)
		} else {
			logger.Debugw("shutdown hook finished", "hook", hook.Name)
		}
		cancel()
	}
}
