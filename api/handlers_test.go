/*
handlers_test.go - HTTP tests for the ledger API

Tests for:
- Reward create / replay / confirm / reverse over HTTP
- Status code mapping for the error taxonomy
- Balance, history, definitions, health and metrics endpoints
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/referral-ledger/api"
	"github.com/warp/referral-ledger/ledger"
	"github.com/warp/referral-ledger/ledger/store"
	"github.com/warp/referral-ledger/observability"
	"go.uber.org/zap"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, opts ...ledger.Option) *httptest.Server {
	t.Helper()
	registry := prometheus.NewRegistry()
	opts = append(opts, ledger.WithRecorder(observability.NewMetrics(registry)))
	mgr := ledger.NewManager(store.NewSeededMemory(), opts...)

	router := api.NewRouter(api.NewHandler(mgr, zap.NewNop()), api.RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createBody(key string, referrer uuid.UUID) map[string]any {
	return map[string]any{
		"idempotency_key":      key,
		"referrer_user_id":     referrer.String(),
		"referred_user_id":     uuid.NewString(),
		"reward_definition_id": ledger.SubscriptionBonusID.String(),
	}
}

// =============================================================================
// REWARDS
// =============================================================================

func TestAPI_CreateAndReplay(t *testing.T) {
	// GIVEN: A fresh server
	// WHEN: The same create request is posted twice
	// THEN: 201 then 200, same reward, balance 500.00
	srv := newTestServer(t)
	referrer := uuid.New()
	body := createBody("http-1", referrer)

	var first api.RewardResponseDTO
	status := doJSON(t, http.MethodPost, srv.URL+"/api/rewards", body, &first)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PENDING", first.Reward.Status)
	assert.Equal(t, "500.00", first.Reward.Amount)
	require.NotNil(t, first.LedgerEntry)
	assert.Equal(t, "CREDIT", first.LedgerEntry.EntryType)
	assert.Equal(t, "500.00", first.LedgerEntry.BalanceAfter)

	var second api.RewardResponseDTO
	status = doJSON(t, http.MethodPost, srv.URL+"/api/rewards", body, &second)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first.Reward.ID, second.Reward.ID)
	assert.Equal(t, "Reward already exists (idempotent return)", second.Message)

	var balance api.BalanceDTO
	status = doJSON(t, http.MethodGet, srv.URL+"/api/users/"+referrer.String()+"/balance", nil, &balance)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "500.00", balance.CurrentBalance)
	assert.Equal(t, 1, balance.TotalEntries)
	assert.Equal(t, "INR", balance.Currency)
}

func TestAPI_ExplicitAmountAsString(t *testing.T) {
	srv := newTestServer(t)
	body := createBody("http-amt", uuid.New())
	body["amount"] = "12.5"

	var resp api.RewardResponseDTO
	status := doJSON(t, http.MethodPost, srv.URL+"/api/rewards", body, &resp)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "12.50", resp.Reward.Amount)
}

func TestAPI_ConfirmThenReverse(t *testing.T) {
	srv := newTestServer(t)
	referrer := uuid.New()

	var created api.RewardResponseDTO
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/rewards", createBody("http-2", referrer), &created))
	rewardURL := srv.URL + "/api/rewards/" + created.Reward.ID

	var confirmed api.RewardResponseDTO
	status := doJSON(t, http.MethodPost, rewardURL+"/confirm", map[string]string{"performed_by": "ops"}, &confirmed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CONFIRMED", confirmed.Reward.Status)
	assert.NotNil(t, confirmed.Reward.ConfirmedAt)

	var reversed api.RewardResponseDTO
	status = doJSON(t, http.MethodPost, rewardURL+"/reverse", map[string]string{"reason": "fraud"}, &reversed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "REVERSED", reversed.Reward.Status)
	require.NotNil(t, reversed.LedgerEntry)
	assert.Equal(t, "REVERSAL", reversed.LedgerEntry.EntryType)
	assert.Equal(t, "-500.00", reversed.LedgerEntry.Amount)
	assert.Equal(t, "0.00", reversed.LedgerEntry.BalanceAfter)
	require.NotNil(t, reversed.LedgerEntry.ReferenceEntryID)
	assert.Equal(t, created.LedgerEntry.ID, *reversed.LedgerEntry.ReferenceEntryID)

	var again api.ErrorResponse
	status = doJSON(t, http.MethodPost, rewardURL+"/reverse", map[string]string{"reason": "again"}, &again)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, again.Details, "only PENDING or CONFIRMED")

	var fetched api.RewardDTO
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, rewardURL, nil, &fetched))
	assert.Equal(t, "REVERSED", fetched.Status)
	require.NotNil(t, fetched.ReversalReason)
	assert.Equal(t, "fraud", *fetched.ReversalReason)
}

func TestAPI_ConfirmWithoutBody(t *testing.T) {
	srv := newTestServer(t)
	var created api.RewardResponseDTO
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/rewards", createBody("http-3", uuid.New()), &created))

	resp, err := http.Post(srv.URL+"/api/rewards/"+created.Reward.ID+"/confirm", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, ledger.WithDedupPolicy(ledger.DedupStrict))
	referrer := uuid.New()
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/rewards", createBody("strict", referrer), nil))

	conflicting := createBody("strict", referrer)
	conflicting["amount"] = "1"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown reward", http.MethodGet, "/api/rewards/" + uuid.NewString(), nil, http.StatusNotFound},
		{"malformed reward id", http.MethodGet, "/api/rewards/not-a-uuid", nil, http.StatusBadRequest},
		{"confirm unknown", http.MethodPost, "/api/rewards/" + uuid.NewString() + "/confirm", nil, http.StatusNotFound},
		{"reverse without reason", http.MethodPost, "/api/rewards/" + uuid.NewString() + "/reverse", map[string]string{}, http.StatusBadRequest},
		{"missing key", http.MethodPost, "/api/rewards", createBody("", referrer), http.StatusBadRequest},
		{"strict conflict", http.MethodPost, "/api/rewards", conflicting, http.StatusConflict},
		{"bad limit", http.MethodGet, "/api/users/" + referrer.String() + "/ledger?limit=abc", nil, http.StatusBadRequest},
		{"malformed user id", http.MethodGet, "/api/users/xyz/balance", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp api.ErrorResponse
			status := doJSON(t, tt.method, srv.URL+tt.path, tt.body, &errResp)
			assert.Equal(t, tt.want, status)
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestAPI_MalformedBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/rewards", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// USERS AND REFERENCE DATA
// =============================================================================

func TestAPI_LedgerHistory(t *testing.T) {
	srv := newTestServer(t)
	referrer := uuid.New()
	for _, key := range []string{"h-1", "h-2", "h-3"} {
		require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/rewards", createBody(key, referrer), nil))
	}

	var history api.LedgerHistoryDTO
	status := doJSON(t, http.MethodGet, srv.URL+"/api/users/"+referrer.String()+"/ledger?limit=2&offset=0", nil, &history)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, history.TotalCount)
	assert.Len(t, history.Entries, 2)
	assert.Equal(t, "1500.00", history.CurrentBalance)
	assert.Equal(t, "h-3", history.Entries[0].IdempotencyKey)

	var empty api.LedgerHistoryDTO
	status = doJSON(t, http.MethodGet, srv.URL+"/api/users/"+referrer.String()+"/ledger?offset=10", nil, &empty)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, empty.TotalCount)
	assert.NotNil(t, empty.Entries)
	assert.Empty(t, empty.Entries)
}

func TestAPI_Definitions(t *testing.T) {
	srv := newTestServer(t)
	var defs []api.DefinitionDTO
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/definitions", nil, &defs))
	require.Len(t, defs, 2)
	assert.Equal(t, "100.00", defs[0].Amount)
	assert.Equal(t, "500.00", defs[1].Amount)
}

func TestAPI_AuditTrail(t *testing.T) {
	srv := newTestServer(t)
	var created api.RewardResponseDTO
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/rewards", createBody("audit", uuid.New()), &created))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/rewards/"+created.Reward.ID+"/confirm", map[string]string{"performed_by": "ops"}, nil))

	var trail []map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/rewards/"+created.Reward.ID+"/audit", nil, &trail))
	require.Len(t, trail, 2)
	assert.Equal(t, "reward_confirmed", trail[1]["action"])
	assert.Equal(t, "ops", trail[1]["actor_id"])
}

// =============================================================================
// SYSTEM
// =============================================================================

func TestAPI_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	var health map[string]string
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", nil, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "referral-ledger", health["service"])

	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/rewards", createBody("m-1", uuid.New()), nil))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `referral_ledger_rewards_created_total{currency="INR"} 1`)
}
