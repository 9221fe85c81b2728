// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielhkuo/stall-allot/models"
)

const (
	defaultListLimit     = 50
	defaultActivityLimit = 200
)

// SQL implements Store on database/sql for SQLite and PostgreSQL.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQL)(nil)

// New wraps an open connection. The schema must already exist.
func New(conn *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: conn, dialect: dialect}
}

// DB exposes the underlying connection for health checks.
func (s *SQL) DB() *sql.DB { return s.db }

// Dialect reports the SQL flavour in use.
func (s *SQL) Dialect() Dialect { return s.dialect }

// Close closes the underlying connection.
func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) q(query string) string { return s.dialect.rebind(query) }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Stalls

func (s *SQL) UpsertStall(ctx context.Context, stall models.Stall) (models.Stall, error) {
	if stall.ID == "" {
		return models.Stall{}, fmt.Errorf("stall id is required")
	}
	// A locked stall keeps its mode and branch until the open process ends.
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO stall (id, branch_id, allocation_mode, availability, assigned_to, updated_at)
		VALUES (?, ?, ?, 'available', '', ?)
		ON CONFLICT (id) DO UPDATE SET
			branch_id = excluded.branch_id,
			allocation_mode = excluded.allocation_mode,
			updated_at = excluded.updated_at
		WHERE stall.availability <> 'locked'
			OR (stall.branch_id = excluded.branch_id AND stall.allocation_mode = excluded.allocation_mode)
	`), stall.ID, stall.BranchID, string(stall.AllocationMode), stall.UpdatedAt.UnixMilli())
	if err != nil {
		return models.Stall{}, fmt.Errorf("failed to upsert stall: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Stall{}, fmt.Errorf("failed to upsert stall: %w", err)
	}
	if n == 0 {
		return models.Stall{}, ErrConflict
	}
	return s.GetStall(ctx, stall.ID)
}

func (s *SQL) GetStall(ctx context.Context, id string) (models.Stall, error) {
	return s.getStall(ctx, s.db, id)
}

func (s *SQL) getStall(ctx context.Context, q querier, id string) (models.Stall, error) {
	var (
		stall     models.Stall
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, s.q(`
		SELECT id, branch_id, allocation_mode, availability, assigned_to, updated_at
		FROM stall WHERE id = ?
	`), id).Scan(&stall.ID, &stall.BranchID, &stall.AllocationMode, &stall.Availability, &stall.AssignedTo, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Stall{}, ErrNotFound
	}
	if err != nil {
		return models.Stall{}, fmt.Errorf("failed to get stall: %w", err)
	}
	stall.UpdatedAt = fromMillis(updatedAt)
	return stall, nil
}

// Branch managers

func (s *SQL) AddBranchManager(ctx context.Context, branchID, actorID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO branch_manager (branch_id, actor_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (branch_id, actor_id) DO NOTHING
	`), branchID, actorID, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to add branch manager: %w", err)
	}
	return nil
}

func (s *SQL) IsBranchManager(ctx context.Context, branchID, actorID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM branch_manager WHERE branch_id = ? AND actor_id = ?
	`), branchID, actorID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check branch manager: %w", err)
	}
	return n > 0, nil
}

// Processes

const processColumns = `id, stall_id, branch_id, kind, status, configured_duration_hours, extended_hours,
	created_by, created_at, activated_at, expires_at, resolved_at, cancelled_at, entry_count,
	starting_price, minimum_increment, current_highest, leader_id, version`

// CreateProcess locks the stall and inserts the dormant process in one
// transaction. It returns ErrConflict when the stall is not available in a
// matching mode or already carries an open process.
func (s *SQL) CreateProcess(ctx context.Context, p models.Process) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := p.CreatedAt.UnixMilli()
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE stall SET availability = 'locked', updated_at = ?
		WHERE id = ? AND availability = 'available' AND allocation_mode = ?
	`), created, p.StallID, string(p.Kind))
	if err != nil {
		return fmt.Errorf("failed to lock stall: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}

	var startingPrice, minIncrement decimal.NullDecimal
	if p.Auction != nil {
		startingPrice = decimal.NewNullDecimal(p.Auction.StartingPrice)
		minIncrement = decimal.NewNullDecimal(p.Auction.MinimumIncrement)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO allocation_process (
			id, stall_id, branch_id, kind, status, configured_duration_hours, extended_hours,
			created_by, created_at, entry_count, starting_price, minimum_increment,
			leader_id, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, 0, ?, ?, '', 1, ?)
	`), p.ID, p.StallID, p.BranchID, string(p.Kind), string(models.StatusDormant),
		p.ConfiguredDurationHours, p.CreatedBy, created, startingPrice, minIncrement, created)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert process: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQL) GetProcess(ctx context.Context, id string) (models.Process, error) {
	return s.getProcess(ctx, s.db, id)
}

func (s *SQL) getProcess(ctx context.Context, q querier, id string) (models.Process, error) {
	p, err := scanProcess(q.QueryRowContext(ctx, s.q(`SELECT `+processColumns+` FROM allocation_process WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Process{}, ErrNotFound
	}
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to get process: %w", err)
	}
	return p, nil
}

func (s *SQL) ListProcesses(ctx context.Context, filter ProcessFilter) ([]models.Process, error) {
	var (
		where []string
		args  []any
	)
	if filter.StallID != "" {
		where = append(where, "stall_id = ?")
		args = append(args, filter.StallID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + processColumns + ` FROM allocation_process`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	return s.queryProcesses(ctx, query, args...)
}

// ListDueProcesses returns active processes whose expiry is at or before
// now, oldest expiry first.
func (s *SQL) ListDueProcesses(ctx context.Context, now time.Time, limit int) ([]models.Process, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.queryProcesses(ctx, `
		SELECT `+processColumns+` FROM allocation_process
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at, id
		LIMIT ?
	`, now.UnixMilli(), limit)
}

func (s *SQL) queryProcesses(ctx context.Context, query string, args ...any) ([]models.Process, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	defer rows.Close()

	processes := []models.Process{}
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process: %w", err)
		}
		processes = append(processes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processes: %w", err)
	}
	return processes, nil
}

func scanProcess(row rowScanner) (models.Process, error) {
	var (
		p                                               models.Process
		createdAt                                       int64
		activatedAt, expiresAt, resolvedAt, cancelledAt sql.NullInt64
		startingPrice, minIncrement, currentHighest     decimal.NullDecimal
	)
	err := row.Scan(
		&p.ID, &p.StallID, &p.BranchID, &p.Kind, &p.Status, &p.ConfiguredDurationHours, &p.ExtendedHours,
		&p.CreatedBy, &createdAt, &activatedAt, &expiresAt, &resolvedAt, &cancelledAt, &p.EntryCount,
		&startingPrice, &minIncrement, &currentHighest, &p.LeaderID, &p.Version,
	)
	if err != nil {
		return models.Process{}, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.ActivatedAt = timePtr(activatedAt)
	p.ExpiresAt = timePtr(expiresAt)
	p.ResolvedAt = timePtr(resolvedAt)
	p.CancelledAt = timePtr(cancelledAt)
	if startingPrice.Valid {
		p.Auction = &models.AuctionParams{
			StartingPrice:    startingPrice.Decimal,
			MinimumIncrement: minIncrement.Decimal,
		}
	}
	p.CurrentHighest = decimalPtr(currentHighest)
	return p, nil
}

// Entries

func (s *SQL) HasEntry(ctx context.Context, processID, claimantID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM allocation_entry WHERE process_id = ? AND claimant_id = ?
	`), processID, claimantID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check entry: %w", err)
	}
	return n > 0, nil
}

// ListEntries returns the entries of a process in admission order.
func (s *SQL) ListEntries(ctx context.Context, processID string) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT e.process_id, e.seq, p.kind, e.claimant_id, e.amount, e.submitted_at
		FROM allocation_entry e
		JOIN allocation_process p ON p.id = e.process_id
		WHERE e.process_id = ?
		ORDER BY e.seq
	`), processID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var (
			e           models.Entry
			amount      decimal.NullDecimal
			submittedAt int64
		)
		if err := rows.Scan(&e.ProcessID, &e.Seq, &e.Kind, &e.ClaimantID, &amount, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Amount = decimalPtr(amount)
		e.SubmittedAt = fromMillis(submittedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}

// AppendEntry applies the admission compare-and-swap and inserts the entry.
// The process row must still be at ExpectVersion, open, and not past due at
// Now; otherwise ErrConflict. A second entry by the same claimant yields
// ErrDuplicate.
func (s *SQL) AppendEntry(ctx context.Context, params AppendEntryParams) (models.Process, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := params.Now.UnixMilli()
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE allocation_process SET
			status = 'active',
			activated_at = COALESCE(activated_at, ?),
			expires_at = COALESCE(expires_at, ?),
			entry_count = entry_count + 1,
			current_highest = ?,
			leader_id = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
			AND status IN ('dormant', 'active')
			AND (expires_at IS NULL OR expires_at > ?)
	`), nullMillis(params.ActivatedAt), nullMillis(params.ExpiresAt), nullDecimal(params.CurrentHighest),
		params.LeaderID, now, params.ProcessID, params.ExpectVersion, now)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to update process: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Process{}, ErrConflict
	}

	e := params.Entry
	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO allocation_entry (process_id, seq, claimant_id, amount, submitted_at)
		VALUES (?, ?, ?, ?, ?)
	`), params.ProcessID, e.Seq, e.ClaimantID, nullDecimal(e.Amount), e.SubmittedAt.UnixMilli())
	if isUniqueViolation(err) {
		return models.Process{}, ErrDuplicate
	}
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to insert entry: %w", err)
	}

	p, err := s.getProcess(ctx, tx, params.ProcessID)
	if err != nil {
		return models.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Process{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// Lifecycle

func (s *SQL) ExtendProcess(ctx context.Context, params ExtendParams) (models.Process, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE allocation_process SET
			extended_hours = extended_hours + ?,
			expires_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ? AND status = 'active'
	`), params.ExtraHours, params.ExpiresAt.UnixMilli(), params.Now.UnixMilli(), params.ProcessID, params.ExpectVersion)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to extend process: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Process{}, ErrConflict
	}

	p, err := s.getProcess(ctx, tx, params.ProcessID)
	if err != nil {
		return models.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Process{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

func (s *SQL) CancelProcess(ctx context.Context, params CancelParams) (models.Process, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := params.Now.UnixMilli()
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE allocation_process SET
			status = 'cancelled',
			cancelled_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ? AND status IN ('dormant', 'active')
	`), now, now, params.ProcessID, params.ExpectVersion)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to cancel process: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Process{}, ErrConflict
	}

	_, err = tx.ExecContext(ctx, s.q(`
		UPDATE stall SET availability = 'available', assigned_to = '', updated_at = ?
		WHERE id = ? AND availability = 'locked'
	`), now, params.StallID)
	if err != nil {
		return models.Process{}, fmt.Errorf("failed to unlock stall: %w", err)
	}

	p, err := s.getProcess(ctx, tx, params.ProcessID)
	if err != nil {
		return models.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Process{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// Outcomes

func (s *SQL) GetOutcome(ctx context.Context, processID string) (models.Outcome, error) {
	return s.getOutcome(ctx, s.db, processID)
}

func (s *SQL) getOutcome(ctx context.Context, q querier, processID string) (models.Outcome, error) {
	var (
		o          models.Outcome
		amount     decimal.NullDecimal
		resolvedAt int64
	)
	err := q.QueryRowContext(ctx, s.q(`
		SELECT process_id, winner_id, winning_amount, entry_count, method, resolved_by, draw_seed, resolved_at
		FROM allocation_outcome WHERE process_id = ?
	`), processID).Scan(&o.ProcessID, &o.WinnerID, &amount, &o.EntryCount, &o.Method, &o.ResolvedBy, &o.DrawSeed, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Outcome{}, ErrNotFound
	}
	if err != nil {
		return models.Outcome{}, fmt.Errorf("failed to get outcome: %w", err)
	}
	o.WinningAmount = decimalPtr(amount)
	o.ResolvedAt = fromMillis(resolvedAt)
	return o, nil
}

// CommitOutcome records the outcome at most once. When an outcome already
// exists it is returned with created=false. Otherwise the process must still
// be active, due at the outcome's ResolvedAt and at ExpectVersion, or
// ErrConflict is returned. The stall is assigned to the winner, or released
// when there is none.
func (s *SQL) CommitOutcome(ctx context.Context, params CommitParams) (models.Outcome, bool, error) {
	o := params.Outcome

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Outcome{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.getOutcome(ctx, tx, o.ProcessID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Outcome{}, false, err
	}

	resolved := o.ResolvedAt.UnixMilli()
	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE allocation_process SET
			status = 'resolved',
			resolved_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ? AND status = 'active' AND expires_at <= ?
	`), resolved, resolved, o.ProcessID, params.ExpectVersion, resolved)
	if err != nil {
		return models.Outcome{}, false, fmt.Errorf("failed to resolve process: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Outcome{}, false, ErrConflict
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO allocation_outcome (process_id, winner_id, winning_amount, entry_count, method, resolved_by, draw_seed, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), o.ProcessID, o.WinnerID, nullDecimal(o.WinningAmount), o.EntryCount, string(o.Method), o.ResolvedBy, o.DrawSeed, resolved)
	if isUniqueViolation(err) {
		return models.Outcome{}, false, ErrConflict
	}
	if err != nil {
		return models.Outcome{}, false, fmt.Errorf("failed to insert outcome: %w", err)
	}

	availability := models.AvailabilityAvailable
	if !o.NoWinner() {
		availability = models.AvailabilityAssigned
	}
	_, err = tx.ExecContext(ctx, s.q(`
		UPDATE stall SET availability = ?, assigned_to = ?, updated_at = ? WHERE id = ?
	`), string(availability), o.WinnerID, resolved, params.StallID)
	if err != nil {
		return models.Outcome{}, false, fmt.Errorf("failed to update stall: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Outcome{}, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return o, true, nil
}

// Activity

func (s *SQL) RecordActivity(ctx context.Context, record models.ActivityRecord) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO activity_log (id, process_id, type, actor, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), record.ID, record.ProcessID, record.Type, record.Actor, record.Payload, record.OccurredAt.UnixMilli())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

func (s *SQL) ListActivity(ctx context.Context, processID string, limit int) ([]models.ActivityRecord, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, process_id, type, actor, payload, occurred_at
		FROM activity_log
		WHERE process_id = ?
		ORDER BY occurred_at, id
		LIMIT ?
	`), processID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	records := []models.ActivityRecord{}
	for rows.Next() {
		var (
			r          models.ActivityRecord
			occurredAt int64
		)
		if err := rows.Scan(&r.ID, &r.ProcessID, &r.Type, &r.Actor, &r.Payload, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		r.OccurredAt = fromMillis(occurredAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return records, nil
}

// Conversions

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
