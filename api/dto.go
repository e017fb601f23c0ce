/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are rendered as strings with two decimal places ("500.00") so
  clients never parse money through a float. Requests accept either a JSON
  number or a string.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/referral-ledger/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateRewardRequest struct {
	IdempotencyKey     string           `json:"idempotency_key"`
	ReferrerUserID     uuid.UUID        `json:"referrer_user_id"`
	ReferredUserID     uuid.UUID        `json:"referred_user_id"`
	RewardDefinitionID *uuid.UUID       `json:"reward_definition_id,omitempty"`
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	Currency           string           `json:"currency,omitempty"`
	Description        string           `json:"description,omitempty"`
}

type ConfirmRewardRequest struct {
	PerformedBy string `json:"performed_by,omitempty"`
}

type ReverseRewardRequest struct {
	Reason      string `json:"reason"`
	PerformedBy string `json:"performed_by,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type RewardDTO struct {
	ID                 string     `json:"id"`
	IdempotencyKey     string     `json:"idempotency_key"`
	RewardDefinitionID *string    `json:"reward_definition_id"`
	ReferrerUserID     string     `json:"referrer_user_id"`
	ReferredUserID     string     `json:"referred_user_id"`
	Status             string     `json:"status"`
	Amount             string     `json:"amount"`
	Currency           string     `json:"currency"`
	CreatedAt          time.Time  `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at"`
	PaidAt             *time.Time `json:"paid_at"`
	ReversedAt         *time.Time `json:"reversed_at"`
	ReversalReason     *string    `json:"reversal_reason"`
}

type LedgerEntryDTO struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	EntryType        string            `json:"entry_type"`
	Amount           string            `json:"amount"`
	Currency         string            `json:"currency"`
	BalanceAfter     string            `json:"balance_after"`
	RewardEventID    *string           `json:"reward_event_id"`
	ReferenceEntryID *string           `json:"reference_entry_id"`
	IdempotencyKey   string            `json:"idempotency_key"`
	Description      string            `json:"description"`
	CreatedAt        time.Time         `json:"created_at"`
	Metadata         map[string]string `json:"metadata"`
}

type RewardResponseDTO struct {
	Reward      RewardDTO       `json:"reward"`
	LedgerEntry *LedgerEntryDTO `json:"ledger_entry"`
	Message     string          `json:"message"`
}

type BalanceDTO struct {
	UserID            string     `json:"user_id"`
	Currency          string     `json:"currency"`
	CurrentBalance    string     `json:"current_balance"`
	TotalEntries      int        `json:"total_entries"`
	LastTransactionAt *time.Time `json:"last_transaction_at"`
}

type LedgerHistoryDTO struct {
	UserID         string           `json:"user_id"`
	Entries        []LedgerEntryDTO `json:"entries"`
	TotalCount     int              `json:"total_count"`
	CurrentBalance string           `json:"current_balance"`
}

type DefinitionDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RewardType string `json:"reward_type"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toRewardDTO(r ledger.RewardEvent) RewardDTO {
	return RewardDTO{
		ID:                 r.ID.String(),
		IdempotencyKey:     r.IdempotencyKey,
		RewardDefinitionID: optionalID(r.DefinitionID),
		ReferrerUserID:     r.ReferrerUserID.String(),
		ReferredUserID:     r.ReferredUserID.String(),
		Status:             string(r.Status),
		Amount:             money(r.Amount),
		Currency:           r.Currency,
		CreatedAt:          r.CreatedAt,
		ConfirmedAt:        r.ConfirmedAt,
		PaidAt:             r.PaidAt,
		ReversedAt:         r.ReversedAt,
		ReversalReason:     r.ReversalReason,
	}
}

func toEntryDTO(e ledger.LedgerEntry) LedgerEntryDTO {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return LedgerEntryDTO{
		ID:               e.ID.String(),
		UserID:           e.UserID.String(),
		EntryType:        string(e.Type),
		Amount:           money(e.Amount),
		Currency:         e.Currency,
		BalanceAfter:     money(e.BalanceAfter),
		RewardEventID:    optionalID(e.RewardID),
		ReferenceEntryID: optionalID(e.ReferenceEntryID),
		IdempotencyKey:   e.IdempotencyKey,
		Description:      e.Description,
		CreatedAt:        e.CreatedAt,
		Metadata:         metadata,
	}
}

func toRewardResponseDTO(resp ledger.RewardResponse) RewardResponseDTO {
	out := RewardResponseDTO{
		Reward:  toRewardDTO(resp.Reward),
		Message: resp.Message,
	}
	if resp.Entry != nil {
		e := toEntryDTO(*resp.Entry)
		out.LedgerEntry = &e
	}
	return out
}

func toBalanceDTO(b ledger.UserBalance) BalanceDTO {
	return BalanceDTO{
		UserID:            b.UserID.String(),
		Currency:          b.Currency,
		CurrentBalance:    money(b.CurrentBalance),
		TotalEntries:      b.TotalEntries,
		LastTransactionAt: b.LastTransactionAt,
	}
}

func toHistoryDTO(h ledger.LedgerHistory) LedgerHistoryDTO {
	entries := make([]LedgerEntryDTO, 0, len(h.Entries))
	for _, e := range h.Entries {
		entries = append(entries, toEntryDTO(e))
	}
	return LedgerHistoryDTO{
		UserID:         h.UserID.String(),
		Entries:        entries,
		TotalCount:     h.TotalCount,
		CurrentBalance: money(h.CurrentBalance),
	}
}

func toDefinitionDTO(d ledger.RewardDefinition) DefinitionDTO {
	return DefinitionDTO{
		ID:         d.ID.String(),
		Name:       d.Name,
		RewardType: d.RewardType,
		Amount:     money(d.Amount),
		Currency:   d.Currency,
	}
}
