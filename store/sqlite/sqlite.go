/*
Package sqlite provides a SQLite-backed implementation of the ledger store.

PURPOSE:
  Implements ledger.TxStore and ledger.DefinitionLookup using SQLite. The
  same schema ports to PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on ledger_entries
  - BEFORE UPDATE / BEFORE DELETE triggers abort any attempt anyway
  - Corrections via REVERSAL entries only

KEY TABLES:
  ledger_entries:     Immutable signed entries (seq = insertion order)
  reward_events:      Reward lifecycle rows (status fields mutable)
  idempotency_keys:   key -> reward id (PRIMARY KEY on key)
  reward_definitions: Reference data for default amounts
  audit_log:          Who confirmed/reversed what

IDEMPOTENCY:
  The PRIMARY KEY on idempotency_keys.key is the cross-process guard: a
  second writer racing on the same key gets ErrDuplicateIdempotencyKey and
  the manager replays the winner's reward.

CONCURRENCY:
  Uses sync.RWMutex for in-process readers/writers and a single open
  connection, so every WithTx is one SQLite transaction.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  mgr := ledger.NewManager(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/referral-ledger/ledger"
)

const timeLayout = time.RFC3339Nano

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: required for ":memory:" and keeps WithTx single-writer.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reward_event_id TEXT,
		reference_entry_id TEXT,
		idempotency_key TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_currency
		ON ledger_entries(user_id, currency);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_reward
		ON ledger_entries(reward_event_id) WHERE reward_event_id IS NOT NULL;
	-- Not unique: entry keys derive from caller keys (e.g. "<key>:reversal").
	-- Dedup lives in idempotency_keys.
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_idempotency_key
		ON ledger_entries(idempotency_key);

	CREATE TRIGGER IF NOT EXISTS ledger_entries_no_update
		BEFORE UPDATE ON ledger_entries
		BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END;
	CREATE TRIGGER IF NOT EXISTS ledger_entries_no_delete
		BEFORE DELETE ON ledger_entries
		BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END;

	-- Reward lifecycle
	CREATE TABLE IF NOT EXISTS reward_events (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		reward_definition_id TEXT,
		referrer_user_id TEXT NOT NULL,
		referred_user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL,
		confirmed_at TEXT,
		paid_at TEXT,
		reversed_at TEXT,
		reversal_reason TEXT
	);

	CREATE TABLE IF NOT EXISTS idempotency_keys (
		key TEXT PRIMARY KEY,
		reward_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reward_definitions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		reward_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		reward_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor_id TEXT,
		at TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_reward
		ON audit_log(reward_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SeedDefinitions inserts definitions that are not present yet.
func (s *Store) SeedDefinitions(ctx context.Context, defs ...ledger.RewardDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range defs {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO reward_definitions (id, name, reward_type, amount, currency)
			 VALUES (?, ?, ?, ?, ?)`,
			d.ID.String(), d.Name, d.RewardType, d.Amount.String(), d.Currency,
		)
		if err != nil {
			return fmt.Errorf("failed to seed definition %s: %w", d.ID, err)
		}
	}
	return nil
}

// =============================================================================
// ledger.Store (locked, outside transactions)
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertEntry(ctx, e)
}

func (s *Store) InsertReward(ctx context.Context, r ledger.RewardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.InsertReward(ctx, r)
}

func (s *Store) UpdateReward(ctx context.Context, r ledger.RewardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateReward(ctx, r)
}

func (s *Store) GetReward(ctx context.Context, id uuid.UUID) (ledger.RewardEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetReward(ctx, id)
}

func (s *Store) RewardIDByKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.RewardIDByKey(ctx, key)
}

func (s *Store) PutIdempotencyKey(ctx context.Context, key string, rewardID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.PutIdempotencyKey(ctx, key, rewardID)
}

func (s *Store) Entries(ctx context.Context, f ledger.EntryFilter) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Entries(ctx, f)
}

func (s *Store) AppendAudit(ctx context.Context, a ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.AppendAudit(ctx, a)
}

func (s *Store) AuditTrail(ctx context.Context, rewardID uuid.UUID) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.AuditTrail(ctx, rewardID)
}

// =============================================================================
// ledger.DefinitionLookup
// =============================================================================

func (s *Store) Definition(ctx context.Context, id uuid.UUID) (*ledger.RewardDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, reward_type, amount, currency FROM reward_definitions WHERE id = ?`,
		id.String())
	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Definitions(ctx context.Context) ([]ledger.RewardDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, reward_type, amount, currency FROM reward_definitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	var defs []ledger.RewardDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - Shared by Store and transactions
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ledger.Store over a *sql.DB or *sql.Tx without locking.
type queries struct {
	db querier
}

func (q queries) InsertEntry(ctx context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return e, fmt.Errorf("failed to encode entry metadata: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, user_id, entry_type, amount, currency, balance_after, reward_event_id,
		 reference_entry_id, idempotency_key, description, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(),
		e.UserID.String(),
		string(e.Type),
		e.Amount.String(),
		e.Currency,
		e.BalanceAfter.String(),
		nullUUID(e.RewardID),
		nullUUID(e.ReferenceEntryID),
		e.IdempotencyKey,
		e.Description,
		string(metadataJSON),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return e, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("failed to read entry sequence: %w", err)
	}
	e.Seq = seq
	return e, nil
}

func (q queries) InsertReward(ctx context.Context, r ledger.RewardEvent) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reward_events
		(id, idempotency_key, reward_definition_id, referrer_user_id, referred_user_id,
		 status, amount, currency, created_at, confirmed_at, paid_at, reversed_at, reversal_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(),
		r.IdempotencyKey,
		nullUUID(r.DefinitionID),
		r.ReferrerUserID.String(),
		r.ReferredUserID.String(),
		string(r.Status),
		r.Amount.String(),
		r.Currency,
		r.CreatedAt.UTC().Format(timeLayout),
		nullTime(r.ConfirmedAt),
		nullTime(r.PaidAt),
		nullTime(r.ReversedAt),
		nullStringPtr(r.ReversalReason),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert reward: %w", err)
	}
	return nil
}

// UpdateReward writes only the lifecycle fields.
func (q queries) UpdateReward(ctx context.Context, r ledger.RewardEvent) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE reward_events
		SET status = ?, confirmed_at = ?, paid_at = ?, reversed_at = ?, reversal_reason = ?
		WHERE id = ?`,
		string(r.Status),
		nullTime(r.ConfirmedAt),
		nullTime(r.PaidAt),
		nullTime(r.ReversedAt),
		nullStringPtr(r.ReversalReason),
		r.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	if n == 0 {
		return &ledger.RewardNotFoundError{RewardID: r.ID}
	}
	return nil
}

func (q queries) GetReward(ctx context.Context, id uuid.UUID) (ledger.RewardEvent, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, reward_definition_id, referrer_user_id, referred_user_id,
		       status, amount, currency, created_at, confirmed_at, paid_at, reversed_at, reversal_reason
		FROM reward_events WHERE id = ?`, id.String())

	r, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.RewardEvent{}, &ledger.RewardNotFoundError{RewardID: id}
	}
	return r, err
}

func (q queries) RewardIDByKey(ctx context.Context, key string) (uuid.UUID, bool, error) {
	var raw string
	err := q.db.QueryRowContext(ctx,
		`SELECT reward_id FROM idempotency_keys WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt reward id for key %q: %w", key, err)
	}
	return id, true, nil
}

func (q queries) PutIdempotencyKey(ctx context.Context, key string, rewardID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, reward_id) VALUES (?, ?)`, key, rewardID.String())
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to index idempotency key: %w", err)
	}
	return nil
}

func (q queries) Entries(ctx context.Context, f ledger.EntryFilter) ([]ledger.LedgerEntry, error) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID.String()}
	if f.Currency != "" {
		where = append(where, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.RewardID != nil {
		where = append(where, "reward_event_id = ?")
		args = append(args, f.RewardID.String())
	}
	if f.Type != "" {
		where = append(where, "entry_type = ?")
		args = append(args, string(f.Type))
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT seq, id, user_id, entry_type, amount, currency, balance_after, reward_event_id,
		       reference_entry_id, idempotency_key, description, metadata_json, created_at
		FROM ledger_entries
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q queries) AppendAudit(ctx context.Context, a ledger.AuditEntry) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, reward_id, action, actor_id, at, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID.String(),
		a.RewardID.String(),
		string(a.Action),
		nullString(a.ActorID),
		a.At.UTC().Format(timeLayout),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (q queries) AuditTrail(ctx context.Context, rewardID uuid.UUID) ([]ledger.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, reward_id, action, actor_id, at, payload_json
		FROM audit_log WHERE reward_id = ? ORDER BY seq ASC`, rewardID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var trail []ledger.AuditEntry
	for rows.Next() {
		var (
			a               ledger.AuditEntry
			id, rid, action string
			actor, payload  sql.NullString
			at              string
		)
		if err := rows.Scan(&id, &rid, &action, &actor, &at, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if a.RewardID, err = uuid.Parse(rid); err != nil {
			return nil, err
		}
		if a.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, err
		}
		a.Action = ledger.AuditAction(action)
		a.ActorID = actor.String
		if payload.Valid && payload.String != "" && payload.String != "null" {
			if err := json.Unmarshal([]byte(payload.String), &a.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		trail = append(trail, a)
	}
	return trail, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ledger.LedgerEntry, error) {
	var (
		e                                  ledger.LedgerEntry
		id, userID, entryType              string
		amount, balanceAfter, createdAt    string
		rewardID, referenceID, metadataRaw sql.NullString
	)
	err := row.Scan(&e.Seq, &id, &userID, &entryType, &amount, &e.Currency, &balanceAfter,
		&rewardID, &referenceID, &e.IdempotencyKey, &e.Description, &metadataRaw, &createdAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	if e.ID, err = uuid.Parse(id); err != nil {
		return e, err
	}
	if e.UserID, err = uuid.Parse(userID); err != nil {
		return e, err
	}
	e.Type = ledger.EntryType(entryType)
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("corrupt amount on entry %s: %w", id, err)
	}
	if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return e, fmt.Errorf("corrupt balance on entry %s: %w", id, err)
	}
	if e.RewardID, err = parseNullUUID(rewardID); err != nil {
		return e, err
	}
	if e.ReferenceEntryID, err = parseNullUUID(referenceID); err != nil {
		return e, err
	}
	if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return e, err
	}
	if metadataRaw.Valid && metadataRaw.String != "" && metadataRaw.String != "null" {
		if err := json.Unmarshal([]byte(metadataRaw.String), &e.Metadata); err != nil {
			return e, fmt.Errorf("corrupt metadata on entry %s: %w", id, err)
		}
	}
	return e, nil
}

func scanReward(row scanner) (ledger.RewardEvent, error) {
	var (
		r                               ledger.RewardEvent
		id, referrer, referred          string
		status, amount, createdAt       string
		definitionID                    sql.NullString
		confirmedAt, paidAt, reversedAt sql.NullString
		reversalReason                  sql.NullString
	)
	err := row.Scan(&id, &r.IdempotencyKey, &definitionID, &referrer, &referred,
		&status, &amount, &r.Currency, &createdAt, &confirmedAt, &paidAt, &reversedAt, &reversalReason)
	if err != nil {
		return r, err
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return r, err
	}
	if r.ReferrerUserID, err = uuid.Parse(referrer); err != nil {
		return r, err
	}
	if r.ReferredUserID, err = uuid.Parse(referred); err != nil {
		return r, err
	}
	if r.DefinitionID, err = parseNullUUID(definitionID); err != nil {
		return r, err
	}
	r.Status = ledger.RewardStatus(status)
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return r, fmt.Errorf("corrupt amount on reward %s: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return r, err
	}
	if r.ConfirmedAt, err = parseNullTime(confirmedAt); err != nil {
		return r, err
	}
	if r.PaidAt, err = parseNullTime(paidAt); err != nil {
		return r, err
	}
	if r.ReversedAt, err = parseNullTime(reversedAt); err != nil {
		return r, err
	}
	if reversalReason.Valid {
		reason := reversalReason.String
		r.ReversalReason = &reason
	}
	return r, nil
}

func scanDefinition(row scanner) (ledger.RewardDefinition, error) {
	var (
		d          ledger.RewardDefinition
		id, amount string
	)
	if err := row.Scan(&id, &d.Name, &d.RewardType, &amount, &d.Currency); err != nil {
		return d, err
	}
	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return d, err
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return d, fmt.Errorf("corrupt amount on definition %s: %w", id, err)
	}
	return d, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseNullUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
