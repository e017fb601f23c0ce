package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/referral-ledger/ledger"
	"github.com/warp/referral-ledger/ledger/store"
)

func testEntry(user uuid.UUID, amount int64) ledger.LedgerEntry {
	return ledger.LedgerEntry{
		ID:             uuid.New(),
		UserID:         user,
		Type:           ledger.EntryCredit,
		Amount:         decimal.NewFromInt(amount),
		Currency:       "INR",
		BalanceAfter:   decimal.NewFromInt(amount),
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Metadata:       map[string]string{"k": "v"},
	}
}

func TestMemory_InsertEntryAssignsSeq(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	user := uuid.New()

	first, err := mem.InsertEntry(ctx, testEntry(user, 1))
	require.NoError(t, err)
	second, err := mem.InsertEntry(ctx, testEntry(user, 2))
	require.NoError(t, err)
	assert.Less(t, first.Seq, second.Seq)

	entries, err := mem.Entries(ctx, ledger.EntryFilter{UserID: user})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID, "insertion order")
}

func TestMemory_DuplicateIdempotencyKey(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.PutIdempotencyKey(ctx, "k", uuid.New()))
	err := mem.PutIdempotencyKey(ctx, "k", uuid.New())
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	_, found, err := mem.RewardIDByKey(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_UpdateUnknownReward(t *testing.T) {
	mem := store.NewMemory()
	err := mem.UpdateReward(context.Background(), ledger.RewardEvent{ID: uuid.New()})
	assert.ErrorIs(t, err, ledger.ErrRewardNotFound)

	_, err = mem.GetReward(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ledger.ErrRewardNotFound)
}

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes an entry, a key, and a reward
	// WHEN: The callback fails
	// THEN: None of the writes survive
	mem := store.NewMemory()
	ctx := context.Background()
	user := uuid.New()
	rewardID := uuid.New()
	boom := errors.New("boom")

	err := mem.WithTx(ctx, func(s ledger.Store) error {
		if _, err := s.InsertEntry(ctx, testEntry(user, 5)); err != nil {
			return err
		}
		if err := s.PutIdempotencyKey(ctx, "tx-key", rewardID); err != nil {
			return err
		}
		if err := s.InsertReward(ctx, ledger.RewardEvent{ID: rewardID}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := mem.Entries(ctx, ledger.EntryFilter{UserID: user})
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, found, err := mem.RewardIDByKey(ctx, "tx-key")
	require.NoError(t, err)
	assert.False(t, found)
	_, err = mem.GetReward(ctx, rewardID)
	assert.ErrorIs(t, err, ledger.ErrRewardNotFound)
}

func TestMemory_WithTxCommits(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	user := uuid.New()

	err := mem.WithTx(ctx, func(s ledger.Store) error {
		_, err := s.InsertEntry(ctx, testEntry(user, 5))
		return err
	})
	require.NoError(t, err)

	entries, err := mem.Entries(ctx, ledger.EntryFilter{UserID: user})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMemory_Definitions(t *testing.T) {
	mem := store.NewSeededMemory()
	ctx := context.Background()

	defs, err := mem.Definitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, ledger.SignupBonusID, defs[0].ID)

	d, err := mem.Definition(ctx, ledger.SubscriptionBonusID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(500)))

	missing, err := mem.Definition(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_StoredEntriesCannotBeMutatedByCallers(t *testing.T) {
	// GIVEN: A stored entry
	// WHEN: The caller writes through the returned metadata and id pointers
	// THEN: The stored entry is unchanged
	mem := store.NewMemory()
	ctx := context.Background()
	user := uuid.New()
	rewardID := uuid.New()
	e := testEntry(user, 10)
	e.RewardID = &rewardID

	inserted, err := mem.InsertEntry(ctx, e)
	require.NoError(t, err)
	inserted.Metadata["k"] = "tampered"
	*inserted.RewardID = uuid.Nil
	e.Metadata["k"] = "tampered-input"

	listed, err := mem.Entries(ctx, ledger.EntryFilter{UserID: user})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Metadata["k"] = "tampered-again"

	again, err := mem.Entries(ctx, ledger.EntryFilter{UserID: user})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "v", again[0].Metadata["k"])
	require.NotNil(t, again[0].RewardID)
	assert.Equal(t, rewardID, *again[0].RewardID)
}
