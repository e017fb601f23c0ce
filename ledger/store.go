/*
store.go - Persistence capability set for entries, rewards and keys

PURPOSE:
  Defines the interface between the lifecycle logic and the backing store.
  No validation or business rule lives behind these interfaces; they are
  pure data access and can be swapped for any durable backend.

KEY INTERFACES:
  Store:            Insert/update/lookup primitives
  TxStore:          Store + all-or-nothing unit of work
  DefinitionLookup: Reward definition reference data

APPEND-ONLY CONTRACT:
  Ledger entries are append-only: InsertEntry is the only entry write.
  Reward events may only have their status fields updated.

IDEMPOTENCY:
  PutIdempotencyKey fails with ErrDuplicateIdempotencyKey if the key is
  already mapped. Durable backends back this with a UNIQUE constraint.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory (tests, dev, default server mode)
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - lifecycle.go: The only writer
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STORE
// =============================================================================

// EntryFilter selects ledger entries. UserID is required; zero-valued
// optional fields do not filter.
type EntryFilter struct {
	UserID   uuid.UUID
	Currency string
	RewardID *uuid.UUID
	Type     EntryType
}

// Matches reports whether e passes the filter.
func (f EntryFilter) Matches(e LedgerEntry) bool {
	if e.UserID != f.UserID {
		return false
	}
	if f.Currency != "" && e.Currency != f.Currency {
		return false
	}
	if f.RewardID != nil && (e.RewardID == nil || *e.RewardID != *f.RewardID) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return true
}

type Store interface {
	// InsertEntry appends an entry and returns it with Seq assigned.
	InsertEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error)

	// InsertReward stores a new reward event.
	InsertReward(ctx context.Context, r RewardEvent) error

	// UpdateReward overwrites the mutable fields of an existing reward.
	UpdateReward(ctx context.Context, r RewardEvent) error

	// GetReward returns ErrRewardNotFound for unknown ids.
	GetReward(ctx context.Context, id uuid.UUID) (RewardEvent, error)

	// RewardIDByKey looks up the idempotency index.
	RewardIDByKey(ctx context.Context, key string) (uuid.UUID, bool, error)

	// PutIdempotencyKey maps key to a reward id. Fails with
	// ErrDuplicateIdempotencyKey if the key is already mapped.
	PutIdempotencyKey(ctx context.Context, key string, rewardID uuid.UUID) error

	// Entries returns matching entries in insertion order.
	Entries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error)

	// AppendAudit records who did what to a reward.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// AuditTrail returns a reward's audit entries in insertion order.
	AuditTrail(ctx context.Context, rewardID uuid.UUID) ([]AuditEntry, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn
	// is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// DefinitionLookup resolves reward definitions. Unknown ids return
// (nil, nil): the core accepts them silently.
type DefinitionLookup interface {
	Definition(ctx context.Context, id uuid.UUID) (*RewardDefinition, error)
	Definitions(ctx context.Context) ([]RewardDefinition, error)
}

// =============================================================================
// AUDIT LOG - Who did what to a reward, and when
// =============================================================================

type AuditAction string

const (
	AuditRewardCreated   AuditAction = "reward_created"
	AuditRewardConfirmed AuditAction = "reward_confirmed"
	AuditRewardReversed  AuditAction = "reward_reversed"
)

type AuditEntry struct {
	ID       uuid.UUID
	RewardID uuid.UUID
	Action   AuditAction
	ActorID  string // empty when the caller did not say
	At       time.Time
	Payload  map[string]string
}
