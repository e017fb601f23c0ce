/*
Package ledger provides the referral reward ledger engine.

PURPOSE:
  This package tracks monetary rewards owed to referring users. Rewards move
  through a small lifecycle (pending, confirmed, reversed) and every monetary
  effect is recorded as an immutable signed ledger entry. Balances are never
  stored; they are folded from entries on every read.

KEY CONCEPTS IN THIS FILE (types.go):
  - LedgerEntry: An immutable signed record (CREDIT, DEBIT, REVERSAL)
  - RewardEvent: The lifecycle record of one referral reward
  - RewardDefinition: Reference data used to resolve a default amount
  - UserBalance: Derived balance for one (user, currency)

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Idempotency: One reward per idempotency key, forever
  4. Projection: Balance = sum(entries), never an independent field

USAGE:
  mgr := ledger.NewManager(store.NewMemory())
  resp, err := mgr.CreateReward(ctx, ledger.CreateRewardInput{
      IdempotencyKey: "referral-123-signup",
      ReferrerUserID: referrer,
      ReferredUserID: referred,
      Amount:         ledger.AmountPtr(decimal.NewFromInt(500)),
  })

SEE ALSO:
  - store.go: Persistence capability set
  - balance.go: Balance projection
  - lifecycle.go: Create / Confirm / Reverse
  - history.go: Paginated ledger history
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used whenever a caller does not name a currency.
const DefaultCurrency = "INR"

// =============================================================================
// LEDGER ENTRY - Immutable signed record
// =============================================================================

type EntryType string

const (
	EntryCredit   EntryType = "CREDIT"
	EntryDebit    EntryType = "DEBIT"
	EntryReversal EntryType = "REVERSAL"
)

// LedgerEntry is written once and never mutated or deleted.
// Corrections are made via REVERSAL entries that reference the original.
type LedgerEntry struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Type             EntryType
	Amount           decimal.Decimal // signed
	Currency         string
	BalanceAfter     decimal.Decimal // balance snapshot at creation time
	RewardID         *uuid.UUID
	ReferenceEntryID *uuid.UUID // entry this one reverses
	IdempotencyKey   string
	Description      string
	CreatedAt        time.Time
	Metadata         map[string]string

	// Seq is the store-assigned insertion order. It breaks ties between
	// entries created at the same instant and carries no business meaning.
	Seq int64
}

// =============================================================================
// REWARD EVENT - Lifecycle record (status is the only mutable part)
// =============================================================================

type RewardStatus string

const (
	StatusPending   RewardStatus = "PENDING"
	StatusConfirmed RewardStatus = "CONFIRMED"
	StatusPaid      RewardStatus = "PAID"
	StatusReversed  RewardStatus = "REVERSED"
	StatusExpired   RewardStatus = "EXPIRED"
)

type RewardEvent struct {
	ID             uuid.UUID
	IdempotencyKey string
	DefinitionID   *uuid.UUID
	ReferrerUserID uuid.UUID
	ReferredUserID uuid.UUID
	Status         RewardStatus
	Amount         decimal.Decimal
	Currency       string
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	PaidAt         *time.Time
	ReversedAt     *time.Time
	ReversalReason *string
}

// =============================================================================
// REWARD DEFINITION - Reference data
// =============================================================================

type RewardDefinition struct {
	ID         uuid.UUID
	Name       string
	RewardType string
	Amount     decimal.Decimal
	Currency   string
}

var (
	SignupBonusID       = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	SubscriptionBonusID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// DefaultDefinitions returns the reward definitions every fresh store is
// seeded with.
func DefaultDefinitions() []RewardDefinition {
	return []RewardDefinition{
		{
			ID:         SignupBonusID,
			Name:       "Referral Signup Bonus",
			RewardType: "VOUCHER",
			Amount:     decimal.RequireFromString("100.00"),
			Currency:   DefaultCurrency,
		},
		{
			ID:         SubscriptionBonusID,
			Name:       "Subscription Bonus",
			RewardType: "VOUCHER",
			Amount:     decimal.RequireFromString("500.00"),
			Currency:   DefaultCurrency,
		},
	}
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// UserBalance is recomputed on every read. It is never persisted.
type UserBalance struct {
	UserID            uuid.UUID
	Currency          string
	CurrentBalance    decimal.Decimal
	TotalEntries      int
	LastTransactionAt *time.Time
}

// RewardResponse is returned by every mutating lifecycle operation.
type RewardResponse struct {
	Reward  RewardEvent
	Entry   *LedgerEntry
	Message string

	// Replayed is true when CreateReward found an existing reward for the key.
	Replayed bool
}

type LedgerHistory struct {
	UserID         uuid.UUID
	Entries        []LedgerEntry
	TotalCount     int
	CurrentBalance decimal.Decimal
}

// AmountPtr is a convenience for optional amounts.
func AmountPtr(d decimal.Decimal) *decimal.Decimal { return &d }
