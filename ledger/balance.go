/*
balance.go - Balance projection

PURPOSE:
  Folds a user's entries for one currency into a UserBalance. This is the
  only place a balance is computed; nothing stores one.

INVARIANT:
  balance(user, currency) == sum(entry.Amount) over that user's entries in
  that currency.

SEE ALSO:
  - lifecycle.go: Projects before every write to stamp BalanceAfter
  - history.go: Reports a default-currency snapshot
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Project folds entries into a balance. Entries for other users or
// currencies are skipped, so callers may pass an unfiltered slice.
func Project(userID uuid.UUID, currency string, entries []LedgerEntry) UserBalance {
	b := UserBalance{
		UserID:         userID,
		Currency:       currency,
		CurrentBalance: decimal.Zero,
	}
	var last time.Time
	for _, e := range entries {
		if e.UserID != userID || e.Currency != currency {
			continue
		}
		b.CurrentBalance = b.CurrentBalance.Add(e.Amount)
		b.TotalEntries++
		if e.CreatedAt.After(last) {
			last = e.CreatedAt
		}
	}
	if b.TotalEntries > 0 {
		b.LastTransactionAt = &last
	}
	return b
}

// projectBalance loads and folds entries through s. Passing the tx-scoped
// store keeps the read inside the caller's unit of work.
func projectBalance(ctx context.Context, s Store, userID uuid.UUID, currency string) (UserBalance, error) {
	entries, err := s.Entries(ctx, EntryFilter{UserID: userID, Currency: currency})
	if err != nil {
		return UserBalance{}, err
	}
	return Project(userID, currency, entries), nil
}
