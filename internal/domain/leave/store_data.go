package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const policyColumns = `
    id, name, code, paid, accrual_frequency, default_annual_days,
    min_days_per_request, max_days_per_request, max_consecutive_days, carry_forward_limit,
    allow_negative, counts_weekends, counts_holidays, requires_document,
    notice_days, probation_allowed, half_day_allowed, approval_levels, requires_hr_approval, created_at`

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	err := row.Scan(
		&p.ID, &p.Name, &p.Code, &p.Paid, &p.AccrualFrequency, &p.DefaultAnnualDays,
		&p.MinDaysPerRequest, &p.MaxDaysPerRequest, &p.MaxConsecutiveDays, &p.CarryForwardLimit,
		&p.AllowNegative, &p.CountsWeekends, &p.CountsHolidays, &p.RequiresDocument,
		&p.NoticeDays, &p.ProbationAllowed, &p.HalfDayAllowed, &p.ApprovalLevels, &p.RequiresHRApproval, &p.CreatedAt,
	)
	return p, err
}

func (s *Store) PolicyByLeaveType(ctx context.Context, leaveTypeID string) (Policy, error) {
	p, err := scanPolicy(s.Pool.QueryRow(ctx, `
    SELECT`+policyColumns+`
    FROM leave_type_policies
    WHERE id = $1 AND deleted_at IS NULL
  `, leaveTypeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, fmt.Errorf("%w: leave type %s", ErrNotFound, leaveTypeID)
	}
	return p, err
}

func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT`+policyColumns+`
    FROM leave_type_policies
    WHERE deleted_at IS NULL
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (s *Store) BalancesForEmployee(ctx context.Context, employeeID string, year int) ([]EmployeeBalance, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT b.id, b.employee_id, b.leave_type_id, b.year,
           b.allocated_days, b.used_days, b.pending_days, b.carried_forward_days, b.updated_at,
           p.name
    FROM leave_balances b
    JOIN leave_type_policies p ON p.id = b.leave_type_id
    WHERE b.employee_id = $1 AND b.year = $2
    ORDER BY p.name
  `, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []EmployeeBalance
	for rows.Next() {
		var b EmployeeBalance
		if err := rows.Scan(
			&b.ID, &b.EmployeeID, &b.LeaveTypeID, &b.Year,
			&b.Allocated, &b.Used, &b.Pending, &b.CarriedForward, &b.UpdatedAt,
			&b.LeaveTypeName,
		); err != nil {
			return nil, err
		}
		b.AvailableDays = b.Available()
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if balances == nil {
		return nil, fmt.Errorf("%w: no balances for employee %s in %d", ErrNotFound, employeeID, year)
	}
	return balances, nil
}

const requestColumns = `
    id, employee_id, leave_type_id, start_date, end_date, half_day, half_day_session,
    total_days, working_days, weekend_days, holiday_days, reason, document_ref,
    status, decided_by, decided_at, decision_note, created_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var session, documentRef, decidedBy, note *string
	err := row.Scan(
		&req.ID, &req.EmployeeID, &req.LeaveTypeID, &req.StartDate, &req.EndDate, &req.HalfDay, &session,
		&req.TotalDays, &req.WorkingDays, &req.WeekendDays, &req.HolidayDays, &req.Reason, &documentRef,
		&req.Status, &decidedBy, &req.DecidedAt, &note, &req.CreatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	req.HalfDaySession = deref(session)
	req.DocumentRef = deref(documentRef)
	req.DecidedBy = deref(decidedBy)
	req.DecisionNote = deref(note)
	return req, nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (Request, error) {
	req, err := scanRequest(s.Pool.QueryRow(ctx, `
    SELECT`+requestColumns+`
    FROM leave_requests
    WHERE id = $1
  `, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, fmt.Errorf("%w: leave request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return Request{}, err
	}

	steps, err := s.stepsForRequests(ctx, []string{requestID})
	if err != nil {
		return Request{}, err
	}
	req.Steps = steps[requestID]
	return req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.EmployeeID != "" {
		where += " AND employee_id = " + next(filter.EmployeeID)
	}
	if filter.LeaveTypeID != "" {
		where += " AND leave_type_id = " + next(filter.LeaveTypeID)
	}
	if filter.Status != "" {
		where += " AND status = " + next(filter.Status)
	}
	if !filter.From.IsZero() {
		where += " AND end_date >= " + next(filter.From)
	}
	if !filter.To.IsZero() {
		where += " AND start_date <= " + next(filter.To)
	}

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT COUNT(1) FROM leave_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}
	query := "SELECT" + requestColumns + " FROM leave_requests" + where +
		" ORDER BY created_at DESC LIMIT " + next(limit) + " OFFSET " + next(filter.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// PendingApprovals lists pending requests that currently name the approver
// in a pending step.
func (s *Store) PendingApprovals(ctx context.Context, approverID string) ([]Request, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT r.id, r.employee_id, r.leave_type_id, r.start_date, r.end_date, r.half_day, r.half_day_session,
           r.total_days, r.working_days, r.weekend_days, r.holiday_days, r.reason, r.document_ref,
           r.status, r.decided_by, r.decided_at, r.decision_note, r.created_at
    FROM leave_requests r
    JOIN leave_approval_steps st ON st.leave_request_id = r.id
    WHERE st.approver_id = $1 AND st.decision = 'pending' AND r.status = 'pending'
    ORDER BY r.created_at
  `, approverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// CalendarEntries returns approved and still-pending leave overlapping the
// range, optionally restricted to one department.
func (s *Store) CalendarEntries(ctx context.Context, from, to time.Time, department string) ([]CalendarEntry, error) {
	query := `
    SELECT r.id, r.employee_id, e.first_name || ' ' || e.last_name, e.department,
           p.name, r.start_date, r.end_date, r.working_days, r.status
    FROM leave_requests r
    JOIN employees e ON e.id = r.employee_id
    JOIN leave_type_policies p ON p.id = r.leave_type_id
    WHERE r.status IN ('approved','pending') AND r.start_date <= $2 AND r.end_date >= $1
  `
	args := []any{from, to}
	if department != "" {
		query += " AND e.department = $3"
		args = append(args, department)
	}
	query += " ORDER BY r.start_date"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CalendarEntry
	for rows.Next() {
		var entry CalendarEntry
		var dept *string
		if err := rows.Scan(&entry.RequestID, &entry.EmployeeID, &entry.EmployeeName, &dept,
			&entry.LeaveTypeName, &entry.StartDate, &entry.EndDate, &entry.WorkingDays, &entry.Status); err != nil {
			return nil, err
		}
		entry.Department = deref(dept)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AdjustAllocation applies a manual HR correction to allocated days and
// records an adjustment row alongside it, in one transaction.
func (s *Store) AdjustAllocation(ctx context.Context, employeeID, leaveTypeID string, year int, amount decimal.Decimal, reason, actorID string) error {
	return s.InTx(ctx, func(tx Tx) error {
		t := tx.(*txStore)
		if _, err := t.tx.Exec(ctx, `
      INSERT INTO leave_balances (employee_id, leave_type_id, year, allocated_days, used_days, pending_days, carried_forward_days)
      VALUES ($1,$2,$3,$4,0,0,0)
      ON CONFLICT (employee_id, leave_type_id, year)
      DO UPDATE SET allocated_days = leave_balances.allocated_days + EXCLUDED.allocated_days, updated_at = now()
    `, employeeID, leaveTypeID, year, amount); err != nil {
			return err
		}
		_, err := t.tx.Exec(ctx, `
      INSERT INTO leave_balance_adjustments (employee_id, leave_type_id, year, amount, reason, created_by)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, employeeID, leaveTypeID, year, amount, reason, actorID)
		return err
	})
}

func (s *Store) stepsForRequests(ctx context.Context, requestIDs []string) (map[string][]ApprovalStep, error) {
	out := map[string][]ApprovalStep{}
	if len(requestIDs) == 0 {
		return out, nil
	}
	rows, err := s.Pool.Query(ctx, `
    SELECT id, leave_request_id, level, approver_id, approver_role, decision, comments, decided_at
    FROM leave_approval_steps
    WHERE leave_request_id = ANY($1)
    ORDER BY level
  `, requestIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var step ApprovalStep
		var comments *string
		if err := rows.Scan(&step.ID, &step.RequestID, &step.Level, &step.ApproverID, &step.ApproverRole, &step.Decision, &comments, &step.DecidedAt); err != nil {
			return nil, err
		}
		step.Comments = deref(comments)
		out[step.RequestID] = append(out[step.RequestID], step)
	}
	return out, rows.Err()
}
