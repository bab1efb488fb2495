// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display keeps track of the rotation of every known display.
package display

import (
	"log"
	"sort"
	"sync"

	"github.com/relabs-tech/orientation_tracker/internal/listener"
	"github.com/relabs-tech/orientation_tracker/internal/orientation"
)

// Manager is an in-memory display registry. It implements
// tracker.DisplaySource: every change is announced by display ID and the
// listener looks the rotation up.
type Manager struct {
	mu        sync.RWMutex
	rotations map[string]orientation.Rotation

	listener listener.Gate[string]
}

func NewManager() *Manager {
	return &Manager{rotations: make(map[string]orientation.Rotation)}
}

// AddDisplay registers a display without announcing it.
func (m *Manager) AddDisplay(id string, r orientation.Rotation) {
	m.mu.Lock()
	m.rotations[id] = r
	m.mu.Unlock()
}

// SetRotation records the rotation of a display, adding it if needed, and
// announces the change.
func (m *Manager) SetRotation(id string, r orientation.Rotation) {
	m.mu.Lock()
	m.rotations[id] = r
	m.mu.Unlock()

	m.listener.Deliver(id)
}

// RemoveDisplay forgets a display. A change event is still delivered for it;
// the listener finds nothing and drops it.
func (m *Manager) RemoveDisplay(id string) {
	m.mu.Lock()
	_, ok := m.rotations[id]
	delete(m.rotations, id)
	m.mu.Unlock()

	if ok {
		log.Printf("display: %s removed", id)
	}
	m.listener.Deliver(id)
}

func (m *Manager) DisplayRotation(id string) (orientation.Rotation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rotations[id]
	return r, ok
}

// Displays returns the known display IDs, sorted.
func (m *Manager) Displays() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rotations))
	for id := range m.rotations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) RegisterDisplaySource(fn func(displayID string)) error {
	m.listener.Set(fn)
	return nil
}

func (m *Manager) UnregisterDisplaySource() {
	m.listener.Clear()
}
