package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// txStore is the transaction-scoped store. Its lock methods use
// SELECT ... FOR UPDATE so the row stays ours until commit or rollback.
type txStore struct {
	tx pgx.Tx
}

var _ Tx = (*txStore)(nil)

func (t *txStore) LockBalance(ctx context.Context, employeeID, leaveTypeID string, year int) (Balance, error) {
	var b Balance
	err := t.tx.QueryRow(ctx, `
    SELECT id, employee_id, leave_type_id, year, allocated_days, used_days, pending_days, carried_forward_days, updated_at
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type_id = $2 AND year = $3
    FOR UPDATE
  `, employeeID, leaveTypeID, year).Scan(
		&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Year,
		&b.Allocated, &b.Used, &b.Pending, &b.CarriedForward, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, fmt.Errorf("%w: no balance for employee %s, type %s, year %d", ErrNotFound, employeeID, leaveTypeID, year)
	}
	return b, err
}

func (t *txStore) SaveBalance(ctx context.Context, b Balance) error {
	_, err := t.tx.Exec(ctx, `
    UPDATE leave_balances
    SET allocated_days = $1, used_days = $2, pending_days = $3, carried_forward_days = $4, updated_at = now()
    WHERE id = $5
  `, b.Allocated, b.Used, b.Pending, b.CarriedForward, b.ID)
	return err
}

func (t *txStore) InsertRequest(ctx context.Context, req Request) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO leave_requests
      (id, employee_id, leave_type_id, start_date, end_date, half_day, half_day_session,
       total_days, working_days, weekend_days, holiday_days, reason, document_ref, status, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
  `, req.ID, req.EmployeeID, req.LeaveTypeID, req.StartDate, req.EndDate, req.HalfDay, nullable(req.HalfDaySession),
		req.TotalDays, req.WorkingDays, req.WeekendDays, req.HolidayDays, req.Reason, nullable(req.DocumentRef),
		req.Status, req.CreatedAt)
	return err
}

func (t *txStore) InsertSteps(ctx context.Context, steps []ApprovalStep) error {
	for _, step := range steps {
		if _, err := t.tx.Exec(ctx, `
      INSERT INTO leave_approval_steps (id, leave_request_id, level, approver_id, approver_role, decision)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, step.ID, step.RequestID, step.Level, step.ApproverID, step.ApproverRole, step.Decision); err != nil {
			return err
		}
	}
	return nil
}

func (t *txStore) LockRequest(ctx context.Context, requestID string) (Request, error) {
	var req Request
	var session, documentRef, decidedBy, note *string
	err := t.tx.QueryRow(ctx, `
    SELECT id, employee_id, leave_type_id, start_date, end_date, half_day, half_day_session,
           total_days, working_days, weekend_days, holiday_days, reason, document_ref,
           status, decided_by, decided_at, decision_note, created_at
    FROM leave_requests
    WHERE id = $1
    FOR UPDATE
  `, requestID).Scan(
		&req.ID, &req.EmployeeID, &req.LeaveTypeID, &req.StartDate, &req.EndDate, &req.HalfDay, &session,
		&req.TotalDays, &req.WorkingDays, &req.WeekendDays, &req.HolidayDays, &req.Reason, &documentRef,
		&req.Status, &decidedBy, &req.DecidedAt, &note, &req.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("%w: leave request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return Request{}, err
	}
	req.HalfDaySession = deref(session)
	req.DocumentRef = deref(documentRef)
	req.DecidedBy = deref(decidedBy)
	req.DecisionNote = deref(note)
	return req, nil
}

func (t *txStore) RequestSteps(ctx context.Context, requestID string) ([]ApprovalStep, error) {
	rows, err := t.tx.Query(ctx, `
    SELECT id, leave_request_id, level, approver_id, approver_role, decision, comments, decided_at
    FROM leave_approval_steps
    WHERE leave_request_id = $1
    ORDER BY level
  `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []ApprovalStep
	for rows.Next() {
		var step ApprovalStep
		var comments *string
		if err := rows.Scan(&step.ID, &step.RequestID, &step.Level, &step.ApproverID, &step.ApproverRole, &step.Decision, &comments, &step.DecidedAt); err != nil {
			return nil, err
		}
		step.Comments = deref(comments)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (t *txStore) SaveStepDecision(ctx context.Context, stepID, decision, comments string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE leave_approval_steps
    SET decision = $1, comments = $2, decided_at = $3
    WHERE id = $4 AND decision = 'pending'
  `, decision, nullable(comments), at, stepID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

func (t *txStore) SaveRequestStatus(ctx context.Context, requestID, status, actorID, note string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `
    UPDATE leave_requests
    SET status = $1, decided_by = $2, decision_note = $3, decided_at = $4
    WHERE id = $5
  `, status, actorID, nullable(note), at, requestID)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
