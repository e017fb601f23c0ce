package ledger_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/referral-ledger/ledger"
	"github.com/warp/referral-ledger/ledger/store"
)

// seedHistory creates n rewards of 10, 20, 30, ... for referrer.
func seedHistory(t *testing.T, m *ledger.Manager, referrer uuid.UUID, n int) []ledger.RewardResponse {
	t.Helper()
	var out []ledger.RewardResponse
	for i := 1; i <= n; i++ {
		in := createInput(uuid.NewString(), referrer, decimal.NewFromInt(int64(10*i)).String())
		resp, err := m.CreateReward(context.Background(), in)
		require.NoError(t, err)
		out = append(out, resp)
	}
	return out
}

func TestLedgerHistory_NewestFirst(t *testing.T) {
	m, _ := newTestManager(t)
	referrer := uuid.New()
	created := seedHistory(t, m, referrer, 3)

	h, err := m.GetLedgerHistory(context.Background(), referrer, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, referrer, h.UserID)
	assert.Equal(t, 3, h.TotalCount)
	require.Len(t, h.Entries, 3)
	assert.Equal(t, created[2].Entry.ID, h.Entries[0].ID)
	assert.Equal(t, created[1].Entry.ID, h.Entries[1].ID)
	assert.Equal(t, created[0].Entry.ID, h.Entries[2].ID)
	assert.True(t, h.CurrentBalance.Equal(decimal.NewFromInt(60)))
}

func TestLedgerHistory_SameInstantOrdersByInsertion(t *testing.T) {
	// GIVEN: A frozen clock so a credit and its reversal share a timestamp
	// WHEN: Reading history
	// THEN: The later-inserted reversal comes first
	frozen := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	m := ledger.NewManager(store.NewSeededMemory(), ledger.WithClock(func() time.Time { return frozen }))
	ctx := context.Background()
	referrer := uuid.New()

	created, err := m.CreateReward(ctx, createInput("frozen-1", referrer, "500"))
	require.NoError(t, err)
	reversed, err := m.ReverseReward(ctx, created.Reward.ID, ledger.ReverseInput{Reason: "test"})
	require.NoError(t, err)

	h, err := m.GetLedgerHistory(ctx, referrer, 10, 0)
	require.NoError(t, err)
	require.Len(t, h.Entries, 2)
	assert.Equal(t, reversed.Entry.ID, h.Entries[0].ID)
	assert.Equal(t, created.Entry.ID, h.Entries[1].ID)
}

func TestLedgerHistory_Pagination(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	referrer := uuid.New()
	created := seedHistory(t, m, referrer, 5)

	tests := []struct {
		name   string
		limit  int
		offset int
		want   []int // indexes into created, newest first
	}{
		{"first page", 2, 0, []int{4, 3}},
		{"second page", 2, 2, []int{2, 1}},
		{"tail", 2, 4, []int{0}},
		{"offset past end", 2, 5, nil},
		{"far past end", 10, 100, nil},
		{"non-positive limit uses default", 0, 0, []int{4, 3, 2, 1, 0}},
		{"negative offset treated as zero", 1, -3, []int{4}},
		{"max int limit", math.MaxInt, 1, []int{3, 2, 1, 0}},
		{"max int limit and offset", math.MaxInt, math.MaxInt, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := m.GetLedgerHistory(ctx, referrer, tt.limit, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, 5, h.TotalCount)
			assert.NotNil(t, h.Entries)
			require.Len(t, h.Entries, len(tt.want))
			for i, idx := range tt.want {
				assert.Equal(t, created[idx].Entry.ID, h.Entries[i].ID)
			}
		})
	}
}

func TestLedgerHistory_BalanceIsDefaultCurrencyOnly(t *testing.T) {
	// GIVEN: An INR reward and a USD reward for one user
	// WHEN: Reading history
	// THEN: Both entries are listed but CurrentBalance only sums INR
	m, _ := newTestManager(t)
	ctx := context.Background()
	referrer := uuid.New()

	_, err := m.CreateReward(ctx, createInput("inr", referrer, "100"))
	require.NoError(t, err)
	usd := createInput("usd", referrer, "7")
	usd.Currency = "USD"
	_, err = m.CreateReward(ctx, usd)
	require.NoError(t, err)

	h, err := m.GetLedgerHistory(ctx, referrer, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalCount)
	assert.True(t, h.CurrentBalance.Equal(decimal.NewFromInt(100)))

	usdBalance, err := m.GetBalance(ctx, referrer, "USD")
	require.NoError(t, err)
	assert.True(t, usdBalance.CurrentBalance.Equal(decimal.NewFromInt(7)))
}

func TestLedgerHistory_UnknownUser(t *testing.T) {
	m, _ := newTestManager(t)
	h, err := m.GetLedgerHistory(context.Background(), uuid.New(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, h.TotalCount)
	assert.Empty(t, h.Entries)
	assert.True(t, h.CurrentBalance.IsZero())
}
