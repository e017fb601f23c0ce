// Package store provides in-process ledger.Store implementations.
package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/referral-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps all ledger state in process memory. Readers share an RWMutex;
// WithTx holds the write lock for the whole unit of work and rolls back to a
// snapshot on error.
type Memory struct {
	mu sync.RWMutex
	st memoryState
}

type memoryState struct {
	entries     []ledger.LedgerEntry
	rewards     map[uuid.UUID]ledger.RewardEvent
	idempotency map[string]uuid.UUID
	definitions map[uuid.UUID]ledger.RewardDefinition
	audit       []ledger.AuditEntry
	seq         int64
}

// NewMemory returns an empty store seeded with defs.
func NewMemory(defs ...ledger.RewardDefinition) *Memory {
	m := &Memory{st: memoryState{
		rewards:     make(map[uuid.UUID]ledger.RewardEvent),
		idempotency: make(map[string]uuid.UUID),
		definitions: make(map[uuid.UUID]ledger.RewardDefinition),
	}}
	for _, d := range defs {
		m.st.definitions[d.ID] = d
	}
	return m
}

// NewSeededMemory returns a store seeded with ledger.DefaultDefinitions.
func NewSeededMemory() *Memory {
	return NewMemory(ledger.DefaultDefinitions()...)
}

func (m *Memory) InsertEntry(_ context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertEntry(e), nil
}

func (m *Memory) InsertReward(_ context.Context, r ledger.RewardEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.rewards[r.ID] = r
	return nil
}

func (m *Memory) UpdateReward(_ context.Context, r ledger.RewardEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateReward(r)
}

func (m *Memory) GetReward(_ context.Context, id uuid.UUID) (ledger.RewardEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getReward(id)
}

func (m *Memory) RewardIDByKey(_ context.Context, key string) (uuid.UUID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.st.idempotency[key]
	return id, ok, nil
}

func (m *Memory) PutIdempotencyKey(_ context.Context, key string, rewardID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.putKey(key, rewardID)
}

func (m *Memory) Entries(_ context.Context, f ledger.EntryFilter) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.filter(f), nil
}

func (m *Memory) AppendAudit(_ context.Context, a ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.audit = append(m.st.audit, a)
	return nil
}

func (m *Memory) AuditTrail(_ context.Context, rewardID uuid.UUID) ([]ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.trail(rewardID), nil
}

func (m *Memory) Definition(_ context.Context, id uuid.UUID) (*ledger.RewardDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.st.definitions[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) Definitions(_ context.Context) ([]ledger.RewardDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.RewardDefinition, 0, len(m.st.definitions))
	for _, d := range m.st.definitions {
		out = append(out, d)
	}
	sortDefinitions(out)
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&txMemoryView{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// txMemoryView is the Store handed to WithTx callbacks. The caller already
// holds the write lock, so it touches state directly.
type txMemoryView struct {
	st *memoryState
}

func (tv *txMemoryView) InsertEntry(_ context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	return tv.st.insertEntry(e), nil
}

func (tv *txMemoryView) InsertReward(_ context.Context, r ledger.RewardEvent) error {
	tv.st.rewards[r.ID] = r
	return nil
}

func (tv *txMemoryView) UpdateReward(_ context.Context, r ledger.RewardEvent) error {
	return tv.st.updateReward(r)
}

func (tv *txMemoryView) GetReward(_ context.Context, id uuid.UUID) (ledger.RewardEvent, error) {
	return tv.st.getReward(id)
}

func (tv *txMemoryView) RewardIDByKey(_ context.Context, key string) (uuid.UUID, bool, error) {
	id, ok := tv.st.idempotency[key]
	return id, ok, nil
}

func (tv *txMemoryView) PutIdempotencyKey(_ context.Context, key string, rewardID uuid.UUID) error {
	return tv.st.putKey(key, rewardID)
}

func (tv *txMemoryView) Entries(_ context.Context, f ledger.EntryFilter) ([]ledger.LedgerEntry, error) {
	return tv.st.filter(f), nil
}

func (tv *txMemoryView) AppendAudit(_ context.Context, a ledger.AuditEntry) error {
	tv.st.audit = append(tv.st.audit, a)
	return nil
}

func (tv *txMemoryView) AuditTrail(_ context.Context, rewardID uuid.UUID) ([]ledger.AuditEntry, error) {
	return tv.st.trail(rewardID), nil
}

// =============================================================================
// UNLOCKED STATE OPERATIONS
// =============================================================================

func (s *memoryState) insertEntry(e ledger.LedgerEntry) ledger.LedgerEntry {
	s.seq++
	e.Seq = s.seq
	stored := copyEntry(e)
	s.entries = append(s.entries, stored)
	return copyEntry(stored)
}

func (s *memoryState) updateReward(r ledger.RewardEvent) error {
	if _, ok := s.rewards[r.ID]; !ok {
		return &ledger.RewardNotFoundError{RewardID: r.ID}
	}
	s.rewards[r.ID] = r
	return nil
}

func (s *memoryState) getReward(id uuid.UUID) (ledger.RewardEvent, error) {
	r, ok := s.rewards[id]
	if !ok {
		return ledger.RewardEvent{}, &ledger.RewardNotFoundError{RewardID: id}
	}
	return r, nil
}

func (s *memoryState) putKey(key string, rewardID uuid.UUID) error {
	if _, ok := s.idempotency[key]; ok {
		return ledger.ErrDuplicateIdempotencyKey
	}
	s.idempotency[key] = rewardID
	return nil
}

func (s *memoryState) filter(f ledger.EntryFilter) []ledger.LedgerEntry {
	var out []ledger.LedgerEntry
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, copyEntry(e))
		}
	}
	return out
}

func (s *memoryState) trail(rewardID uuid.UUID) []ledger.AuditEntry {
	var out []ledger.AuditEntry
	for _, a := range s.audit {
		if a.RewardID == rewardID {
			out = append(out, a)
		}
	}
	return out
}

// clone copies everything WithTx may change. Definitions are read-only.
func (s *memoryState) clone() memoryState {
	return memoryState{
		entries:     append([]ledger.LedgerEntry(nil), s.entries...),
		rewards:     maps.Clone(s.rewards),
		idempotency: maps.Clone(s.idempotency),
		definitions: s.definitions,
		audit:       append([]ledger.AuditEntry(nil), s.audit...),
		seq:         s.seq,
	}
}

// copyEntry detaches e from any map or pointer the caller could write
// through. Stored entries are never handed out directly.
func copyEntry(e ledger.LedgerEntry) ledger.LedgerEntry {
	e.Metadata = maps.Clone(e.Metadata)
	if e.RewardID != nil {
		id := *e.RewardID
		e.RewardID = &id
	}
	if e.ReferenceEntryID != nil {
		id := *e.ReferenceEntryID
		e.ReferenceEntryID = &id
	}
	return e
}

func sortDefinitions(defs []ledger.RewardDefinition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID.String() < defs[j].ID.String() })
}
