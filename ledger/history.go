package ledger

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// DefaultHistoryLimit applies when callers pass a non-positive limit.
const DefaultHistoryLimit = 50

// GetLedgerHistory returns a page of the user's entries across all
// currencies, newest first. Entries created at the same instant are ordered
// newest-inserted first. CurrentBalance covers the default currency only,
// whatever currencies the page contains.
func (m *Manager) GetLedgerHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (LedgerHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := m.store.Entries(ctx, EntryFilter{UserID: userID})
	if err != nil {
		return LedgerHistory{}, m.fail(err)
	}
	SortNewestFirst(entries)

	balance := Project(userID, m.defaultCurrency, entries)
	return LedgerHistory{
		UserID:         userID,
		Entries:        page(entries, limit, offset),
		TotalCount:     len(entries),
		CurrentBalance: balance.CurrentBalance,
	}, nil
}

// SortNewestFirst orders entries by CreatedAt descending, then Seq
// descending.
func SortNewestFirst(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Seq > b.Seq
	})
}

func page(entries []LedgerEntry, limit, offset int) []LedgerEntry {
	if offset >= len(entries) {
		return []LedgerEntry{}
	}
	end := len(entries)
	if limit < end-offset {
		end = offset + limit
	}
	return entries[offset:end]
}
