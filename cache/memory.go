// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Cache. It is concurrently safe and hands out
// copies of its entries.
type Memory struct {
	mu      sync.Mutex
	entries map[string]map[string]Entry
	pending map[string]map[string]Pending
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty Memory cache
func NewMemory() *Memory {
	return &Memory{
		entries: map[string]map[string]Entry{},
		pending: map[string]map[string]Pending{},
	}
}

// List implements Cache.List
func (m *Memory) List(_ context.Context, partition string) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries[partition]))
	for k := range m.entries[partition] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]*Entry, 0, len(keys))
	for _, k := range keys {
		e := copyEntry(m.entries[partition][k])
		entries = append(entries, &e)
	}
	return entries, nil
}

// Get implements Cache.Get
func (m *Memory) Get(_ context.Context, partition, homeAccountID string) (*Entry, error) {
	const op = "cache.(Memory).Get"
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[partition][homeAccountID]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, homeAccountID, ErrNotFound)
	}
	e = copyEntry(e)
	return &e, nil
}

// Put implements Cache.Put
func (m *Memory) Put(_ context.Context, partition string, e *Entry) error {
	const op = "cache.(Memory).Put"
	if err := validateEntry(op, partition, e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[partition] == nil {
		m.entries[partition] = map[string]Entry{}
	}
	m.entries[partition][e.HomeAccountID] = copyEntry(*e)
	return nil
}

// Delete implements Cache.Delete
func (m *Memory) Delete(_ context.Context, partition, homeAccountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[partition], homeAccountID)
	return nil
}

// PutPending implements Cache.PutPending
func (m *Memory) PutPending(_ context.Context, partition string, p *Pending) error {
	const op = "cache.(Memory).PutPending"
	if err := validatePending(op, partition, p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[partition] == nil {
		m.pending[partition] = map[string]Pending{}
	}
	cp := *p
	cp.Scopes = append([]string(nil), p.Scopes...)
	m.pending[partition][p.State] = cp
	return nil
}

// TakePending implements Cache.TakePending
func (m *Memory) TakePending(_ context.Context, partition, state string) (*Pending, error) {
	const op = "cache.(Memory).TakePending"
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[partition][state]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, state, ErrNotFound)
	}
	delete(m.pending[partition], state)
	return &p, nil
}

func copyEntry(e Entry) Entry {
	e.Scopes = append([]string(nil), e.Scopes...)
	return e
}
