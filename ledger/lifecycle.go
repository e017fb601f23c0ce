/*
lifecycle.go - Reward lifecycle manager

PURPOSE:
  Orchestrates create, confirm and reverse. The Manager is the only writer of
  the store: it enforces the state machine (transition.go), the idempotency
  contract, and stamps every new entry with the projected balance.

CREATE FLOW (under a per-key lock):
  1. Resolve amount: explicit -> definition default -> zero
  2. Known idempotency key -> return the stored reward + its credit entry
  3. Project balance(referrer, currency)
  4. Write key mapping, PENDING reward, CREDIT entry, audit entry
  Steps 2-4 run inside one store transaction.

REVERSE FLOW:
  Same reward-id lock + transaction. Appends a REVERSAL entry that negates the
  original credit and references it; the reward becomes REVERSED.

CONCURRENCY:
  - Creates sharing a key are serialized (no double credit).
  - Confirm/reverse on the same reward are serialized (no double reversal).
  - Different keys and rewards proceed in parallel up to the store's own
    write serialization.

SEE ALSO:
  - transition.go: Allowed status changes
  - balance.go: Projection used for BalanceAfter
  - errors.go: Error taxonomy
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgCreated   = "Reward created successfully"
	msgReplayed  = "Reward already exists (idempotent return)"
	msgConfirmed = "Reward confirmed successfully"
	msgReversed  = "Reward reversed successfully"
)

// DedupPolicy decides what a re-submitted idempotency key does.
type DedupPolicy string

const (
	// DedupReplay returns the existing reward as a success.
	DedupReplay DedupPolicy = "replay"

	// DedupStrict replays identical payloads and rejects differing ones
	// with IdempotencyConflictError.
	DedupStrict DedupPolicy = "strict"
)

// Recorder receives lifecycle counters. observability.Metrics implements it.
type Recorder interface {
	RewardCreated(currency string)
	RewardReplayed()
	Transition(op string)
	Failure(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RewardCreated(string) {}
func (nopRecorder) RewardReplayed()      {}
func (nopRecorder) Transition(string)    {}
func (nopRecorder) Failure(string)       {}

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	store           TxStore
	defs            DefinitionLookup
	log             *zap.Logger
	rec             Recorder
	now             func() time.Time
	dedup           DedupPolicy
	defaultCurrency string

	createLocks *keyLocks
	rewardLocks *keyLocks
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l.Named("ledger.manager") }
}

func WithDefinitions(d DefinitionLookup) Option {
	return func(m *Manager) { m.defs = d }
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.rec = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithDedupPolicy(p DedupPolicy) Option {
	return func(m *Manager) { m.dedup = p }
}

func WithDefaultCurrency(c string) Option {
	return func(m *Manager) {
		if c = strings.TrimSpace(c); c != "" {
			m.defaultCurrency = c
		}
	}
}

// NewManager builds a manager over store. If store also implements
// DefinitionLookup it is used to resolve definition amounts unless
// WithDefinitions says otherwise.
func NewManager(store TxStore, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		log:             zap.NewNop(),
		rec:             nopRecorder{},
		now:             time.Now,
		dedup:           DedupReplay,
		defaultCurrency: DefaultCurrency,
		createLocks:     newKeyLocks(),
		rewardLocks:     newKeyLocks(),
	}
	if d, ok := store.(DefinitionLookup); ok {
		m.defs = d
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultCurrency is the currency used when callers omit one.
func (m *Manager) DefaultCurrency() string { return m.defaultCurrency }

// =============================================================================
// CREATE
// =============================================================================

type CreateRewardInput struct {
	IdempotencyKey string
	ReferrerUserID uuid.UUID
	ReferredUserID uuid.UUID
	DefinitionID   *uuid.UUID
	Amount         *decimal.Decimal
	Currency       string
	Description    string
}

func (in CreateRewardInput) validate() error {
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return &ValidationError{Field: "idempotency_key", Message: "must not be empty"}
	}
	if in.ReferrerUserID == uuid.Nil {
		return &ValidationError{Field: "referrer_user_id", Message: "must be set"}
	}
	if in.ReferredUserID == uuid.Nil {
		return &ValidationError{Field: "referred_user_id", Message: "must be set"}
	}
	return nil
}

// CreateReward credits the referrer once per idempotency key. Zero and
// negative amounts are accepted; unknown user and definition ids are too.
func (m *Manager) CreateReward(ctx context.Context, in CreateRewardInput) (RewardResponse, error) {
	if err := in.validate(); err != nil {
		return RewardResponse{}, m.fail(err)
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = m.defaultCurrency
	}

	unlock := m.createLocks.Lock(in.IdempotencyKey)
	defer unlock()

	// Resolved outside the transaction: lookups take the store's read lock.
	amount, err := m.resolveAmount(ctx, in)
	if err != nil {
		return RewardResponse{}, m.fail(err)
	}

	var resp RewardResponse
	err = m.store.WithTx(ctx, func(s Store) error {
		existingID, found, err := s.RewardIDByKey(ctx, in.IdempotencyKey)
		if err != nil {
			return err
		}
		if found {
			resp, err = m.replay(ctx, s, existingID, in, currency)
			return err
		}
		resp, err = m.create(ctx, s, in, amount, currency)
		return err
	})
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		// Another writer on the same backend indexed the key first.
		err = m.store.WithTx(ctx, func(s Store) error {
			existingID, found, err := s.RewardIDByKey(ctx, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: key %q reported duplicate but is not indexed", ErrLedgerInconsistent, in.IdempotencyKey)
			}
			resp, err = m.replay(ctx, s, existingID, in, currency)
			return err
		})
	}
	if err != nil {
		return RewardResponse{}, m.fail(err)
	}

	if resp.Replayed {
		m.rec.RewardReplayed()
		m.log.Info("reward replayed",
			zap.String("reward_id", resp.Reward.ID.String()),
			zap.String("idempotency_key", in.IdempotencyKey))
	} else {
		m.rec.RewardCreated(currency)
		m.log.Info("reward created",
			zap.String("reward_id", resp.Reward.ID.String()),
			zap.String("referrer_user_id", in.ReferrerUserID.String()),
			zap.String("amount", amount.String()),
			zap.String("currency", currency))
	}
	return resp, nil
}

func (m *Manager) resolveAmount(ctx context.Context, in CreateRewardInput) (decimal.Decimal, error) {
	if in.Amount != nil {
		return *in.Amount, nil
	}
	if in.DefinitionID != nil && m.defs != nil {
		def, err := m.defs.Definition(ctx, *in.DefinitionID)
		if err != nil {
			return decimal.Zero, err
		}
		if def != nil {
			return def.Amount, nil
		}
	}
	return decimal.Zero, nil
}

func (m *Manager) create(ctx context.Context, s Store, in CreateRewardInput, amount decimal.Decimal, currency string) (RewardResponse, error) {
	balance, err := projectBalance(ctx, s, in.ReferrerUserID, currency)
	if err != nil {
		return RewardResponse{}, err
	}

	now := m.now().UTC()
	reward := RewardEvent{
		ID:             uuid.New(),
		IdempotencyKey: in.IdempotencyKey,
		DefinitionID:   in.DefinitionID,
		ReferrerUserID: in.ReferrerUserID,
		ReferredUserID: in.ReferredUserID,
		Status:         StatusPending,
		Amount:         amount,
		Currency:       currency,
		CreatedAt:      now,
	}

	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Referral reward credit for %s", in.ReferredUserID)
	}
	metadata := map[string]string{"referred_user_id": in.ReferredUserID.String()}
	if in.DefinitionID != nil {
		metadata["reward_definition_id"] = in.DefinitionID.String()
	}
	rewardID := reward.ID
	entry := LedgerEntry{
		ID:             uuid.New(),
		UserID:         in.ReferrerUserID,
		Type:           EntryCredit,
		Amount:         amount,
		Currency:       currency,
		BalanceAfter:   balance.CurrentBalance.Add(amount),
		RewardID:       &rewardID,
		IdempotencyKey: in.IdempotencyKey,
		Description:    description,
		CreatedAt:      now,
		Metadata:       metadata,
	}

	if err := s.PutIdempotencyKey(ctx, in.IdempotencyKey, reward.ID); err != nil {
		return RewardResponse{}, err
	}
	if err := s.InsertReward(ctx, reward); err != nil {
		return RewardResponse{}, err
	}
	entry, err = s.InsertEntry(ctx, entry)
	if err != nil {
		return RewardResponse{}, err
	}
	if err := s.AppendAudit(ctx, AuditEntry{
		ID:       uuid.New(),
		RewardID: reward.ID,
		Action:   AuditRewardCreated,
		At:       now,
		Payload: map[string]string{
			"amount":   amount.String(),
			"currency": currency,
			"entry_id": entry.ID.String(),
		},
	}); err != nil {
		return RewardResponse{}, err
	}

	return RewardResponse{Reward: reward, Entry: &entry, Message: msgCreated}, nil
}

func (m *Manager) replay(ctx context.Context, s Store, id uuid.UUID, in CreateRewardInput, currency string) (RewardResponse, error) {
	reward, err := s.GetReward(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return RewardResponse{}, fmt.Errorf("%w: idempotency key %q maps to missing reward %s", ErrLedgerInconsistent, in.IdempotencyKey, id)
		}
		return RewardResponse{}, err
	}
	if m.dedup == DedupStrict && !samePayload(reward, in, currency) {
		return RewardResponse{}, &IdempotencyConflictError{Key: in.IdempotencyKey, ExistingID: reward.ID}
	}
	credit, err := creditEntry(ctx, s, reward)
	if err != nil {
		return RewardResponse{}, err
	}
	return RewardResponse{Reward: reward, Entry: &credit, Message: msgReplayed, Replayed: true}, nil
}

func samePayload(r RewardEvent, in CreateRewardInput, currency string) bool {
	if r.ReferrerUserID != in.ReferrerUserID || r.ReferredUserID != in.ReferredUserID || r.Currency != currency {
		return false
	}
	if in.Amount != nil && !in.Amount.Equal(r.Amount) {
		return false
	}
	if in.DefinitionID != nil && (r.DefinitionID == nil || *r.DefinitionID != *in.DefinitionID) {
		return false
	}
	return true
}

// =============================================================================
// CONFIRM / REVERSE
// =============================================================================

type ConfirmInput struct {
	PerformedBy string
}

type ReverseInput struct {
	Reason      string
	PerformedBy string
}

// ConfirmReward moves a PENDING reward to CONFIRMED. It has no monetary
// effect; the response carries the original credit entry.
func (m *Manager) ConfirmReward(ctx context.Context, id uuid.UUID, in ConfirmInput) (RewardResponse, error) {
	unlock := m.rewardLocks.Lock(id.String())
	defer unlock()

	var resp RewardResponse
	err := m.store.WithTx(ctx, func(s Store) error {
		reward, next, err := m.load(ctx, s, id, OpConfirm)
		if err != nil {
			return err
		}
		credit, err := creditEntry(ctx, s, reward)
		if err != nil {
			return err
		}

		now := m.now().UTC()
		reward.Status = next
		reward.ConfirmedAt = &now
		if err := s.UpdateReward(ctx, reward); err != nil {
			return err
		}
		if err := s.AppendAudit(ctx, AuditEntry{
			ID:       uuid.New(),
			RewardID: reward.ID,
			Action:   AuditRewardConfirmed,
			ActorID:  in.PerformedBy,
			At:       now,
		}); err != nil {
			return err
		}
		resp = RewardResponse{Reward: reward, Entry: &credit, Message: msgConfirmed}
		return nil
	})
	if err != nil {
		return RewardResponse{}, m.fail(err)
	}

	m.rec.Transition(string(OpConfirm))
	m.log.Info("reward confirmed",
		zap.String("reward_id", id.String()),
		zap.String("performed_by", in.PerformedBy))
	return resp, nil
}

// ReverseReward undoes a PENDING or CONFIRMED reward in full. The response
// carries the new REVERSAL entry.
func (m *Manager) ReverseReward(ctx context.Context, id uuid.UUID, in ReverseInput) (RewardResponse, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return RewardResponse{}, m.fail(&ValidationError{Field: "reason", Message: "must not be empty"})
	}

	unlock := m.rewardLocks.Lock(id.String())
	defer unlock()

	var resp RewardResponse
	err := m.store.WithTx(ctx, func(s Store) error {
		reward, next, err := m.load(ctx, s, id, OpReverse)
		if err != nil {
			return err
		}
		original, err := creditEntry(ctx, s, reward)
		if err != nil {
			return err
		}
		balance, err := projectBalance(ctx, s, reward.ReferrerUserID, reward.Currency)
		if err != nil {
			return err
		}

		now := m.now().UTC()
		reversalAmount := original.Amount.Neg()
		originalID := original.ID
		rewardID := reward.ID
		reversal := LedgerEntry{
			ID:               uuid.New(),
			UserID:           reward.ReferrerUserID,
			Type:             EntryReversal,
			Amount:           reversalAmount,
			Currency:         reward.Currency,
			BalanceAfter:     balance.CurrentBalance.Add(reversalAmount),
			RewardID:         &rewardID,
			ReferenceEntryID: &originalID,
			IdempotencyKey:   reward.IdempotencyKey + ":reversal",
			Description:      "Reversal: " + in.Reason,
			CreatedAt:        now,
			Metadata: map[string]string{
				"reversal_reason":   in.Reason,
				"performed_by":      in.PerformedBy,
				"original_entry_id": original.ID.String(),
				"original_amount":   original.Amount.String(),
			},
		}
		reversal, err = s.InsertEntry(ctx, reversal)
		if err != nil {
			return err
		}

		reason := in.Reason
		reward.Status = next
		reward.ReversedAt = &now
		reward.ReversalReason = &reason
		if err := s.UpdateReward(ctx, reward); err != nil {
			return err
		}
		if err := s.AppendAudit(ctx, AuditEntry{
			ID:       uuid.New(),
			RewardID: reward.ID,
			Action:   AuditRewardReversed,
			ActorID:  in.PerformedBy,
			At:       now,
			Payload: map[string]string{
				"reason":   in.Reason,
				"entry_id": reversal.ID.String(),
			},
		}); err != nil {
			return err
		}
		resp = RewardResponse{Reward: reward, Entry: &reversal, Message: msgReversed}
		return nil
	})
	if err != nil {
		return RewardResponse{}, m.fail(err)
	}

	m.rec.Transition(string(OpReverse))
	m.log.Info("reward reversed",
		zap.String("reward_id", id.String()),
		zap.String("reason", in.Reason),
		zap.String("performed_by", in.PerformedBy))
	return resp, nil
}

// load fetches a reward and checks op against the transition table.
func (m *Manager) load(ctx context.Context, s Store, id uuid.UUID, op Operation) (RewardEvent, RewardStatus, error) {
	reward, err := s.GetReward(ctx, id)
	if err != nil {
		return RewardEvent{}, "", err
	}
	next, ok := NextStatus(reward.Status, op)
	if !ok {
		return RewardEvent{}, "", &InvalidTransitionError{RewardID: id, From: reward.Status, Op: op}
	}
	return reward, next, nil
}

// creditEntry finds the reward's original CREDIT entry. Its absence breaks
// the one-credit-per-reward invariant.
func creditEntry(ctx context.Context, s Store, r RewardEvent) (LedgerEntry, error) {
	id := r.ID
	entries, err := s.Entries(ctx, EntryFilter{
		UserID:   r.ReferrerUserID,
		Currency: r.Currency,
		RewardID: &id,
		Type:     EntryCredit,
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	if len(entries) == 0 {
		return LedgerEntry{}, fmt.Errorf("%w: original credit entry not found for reward %s", ErrLedgerInconsistent, r.ID)
	}
	return entries[0], nil
}

// =============================================================================
// READS
// =============================================================================

func (m *Manager) GetReward(ctx context.Context, id uuid.UUID) (RewardEvent, error) {
	r, err := m.store.GetReward(ctx, id)
	if err != nil {
		return RewardEvent{}, m.fail(err)
	}
	return r, nil
}

// GetBalance projects the user's balance for currency ("" means the
// default currency).
func (m *Manager) GetBalance(ctx context.Context, userID uuid.UUID, currency string) (UserBalance, error) {
	if currency = strings.TrimSpace(currency); currency == "" {
		currency = m.defaultCurrency
	}
	b, err := projectBalance(ctx, m.store, userID, currency)
	if err != nil {
		return UserBalance{}, m.fail(err)
	}
	return b, nil
}

// AuditTrail returns who confirmed or reversed a reward, oldest first.
func (m *Manager) AuditTrail(ctx context.Context, rewardID uuid.UUID) ([]AuditEntry, error) {
	if _, err := m.store.GetReward(ctx, rewardID); err != nil {
		return nil, m.fail(err)
	}
	return m.store.AuditTrail(ctx, rewardID)
}

// Definitions lists the configured reward definitions.
func (m *Manager) Definitions(ctx context.Context) ([]RewardDefinition, error) {
	if m.defs == nil {
		return nil, nil
	}
	return m.defs.Definitions(ctx)
}

// =============================================================================
// FAILURE ACCOUNTING
// =============================================================================

func (m *Manager) fail(err error) error {
	kind := errorKind(err)
	m.rec.Failure(kind)
	if kind == "inconsistent" {
		m.log.Error("ledger invariant violated", zap.Error(err))
	}
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRewardNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_transition"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIdempotencyConflict):
		return "conflict"
	case errors.Is(err, ErrLedgerInconsistent):
		return "inconsistent"
	default:
		return "store"
	}
}
