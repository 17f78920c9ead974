package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service owns the request state machine and drives every transition through
// one store transaction, so a reservation and the rows that justify it can
// never come apart.
type Service struct {
	Store     StoreAPI
	Holidays  HolidayCalendar
	Directory Directory
	Notifier  Notifier

	ledger Ledger
}

func NewService(store StoreAPI, holidays HolidayCalendar, directory Directory, notifier Notifier) *Service {
	return &Service{Store: store, Holidays: holidays, Directory: directory, Notifier: notifier}
}

type ApplyInput struct {
	EmployeeID     string
	LeaveTypeID    string
	StartDate      time.Time
	EndDate        time.Time
	HalfDay        bool
	HalfDaySession string
	Reason         string
	DocumentRef    string
	Now            time.Time
}

// Apply validates an application against policy and balance, then persists
// the request, its approval steps and the balance reservation atomically.
// A failed reservation leaves nothing behind.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (Request, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if err := ValidateApplyInput(in); err != nil {
		return Request{}, err
	}

	policy, err := s.Store.PolicyByLeaveType(ctx, in.LeaveTypeID)
	if err != nil {
		return Request{}, err
	}

	onProbation, err := s.Directory.OnProbation(ctx, in.EmployeeID, in.Now)
	if err != nil {
		return Request{}, err
	}

	nonWorking, err := s.Holidays.NonWorkingDates(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return Request{}, err
	}
	breakdown := Decompose(in.StartDate, in.EndDate, in.HalfDay, policy, nonWorking)

	if err := ValidateAgainstPolicy(policy, breakdown, in, onProbation); err != nil {
		return Request{}, err
	}

	chain, err := s.approvalChain(ctx, in.EmployeeID, policy)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		ID:             uuid.NewString(),
		EmployeeID:     in.EmployeeID,
		LeaveTypeID:    in.LeaveTypeID,
		StartDate:      truncateToDay(in.StartDate),
		EndDate:        truncateToDay(in.EndDate),
		HalfDay:        in.HalfDay,
		HalfDaySession: in.HalfDaySession,
		TotalDays:      breakdown.Total,
		WorkingDays:    breakdown.Working,
		WeekendDays:    breakdown.Weekend,
		HolidayDays:    breakdown.Holiday,
		Reason:         in.Reason,
		DocumentRef:    in.DocumentRef,
		Status:         StatusPending,
		CreatedAt:      in.Now,
	}
	steps := make([]ApprovalStep, 0, len(chain))
	for i, approver := range chain {
		steps = append(steps, ApprovalStep{
			ID:           uuid.NewString(),
			RequestID:    req.ID,
			Level:        i + 1,
			ApproverID:   approver.EmployeeID,
			ApproverRole: approver.Role,
			Decision:     DecisionPending,
		})
	}

	year := in.StartDate.Year()
	err = s.Store.InTx(ctx, func(tx Tx) error {
		if err := s.ledger.Reserve(ctx, tx, in.EmployeeID, in.LeaveTypeID, year, breakdown.Working, policy.AllowNegative); err != nil {
			return err
		}
		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		return tx.InsertSteps(ctx, steps)
	})
	if err != nil {
		return Request{}, err
	}
	req.Steps = steps

	s.notify(ctx, steps[0].ApproverID, "leave.request.submitted",
		"Leave approval needed",
		fmt.Sprintf("%s days of %s leave await your decision", req.WorkingDays, policy.Name))
	s.notify(ctx, req.EmployeeID, "leave.request.created",
		"Leave request submitted",
		fmt.Sprintf("Your %s leave request for %s days is pending approval", policy.Name, req.WorkingDays))
	return req, nil
}

func (s *Service) approvalChain(ctx context.Context, employeeID string, policy Policy) ([]Approver, error) {
	levels := policy.ApprovalLevels
	if levels <= 0 {
		levels = 1
	}
	managers, err := s.Directory.ManagerChain(ctx, employeeID, levels)
	if err != nil {
		return nil, err
	}
	hrApprover := ""
	if policy.RequiresHRApproval || len(managers) == 0 {
		if hrApprover, err = s.Directory.HRApprover(ctx); err != nil {
			return nil, err
		}
	}
	chain := BuildApprovalChain(managers, hrApprover, policy)
	if len(chain) == 0 && hrApprover != "" {
		// Employees without a manager route straight to HR.
		chain = []Approver{{EmployeeID: hrApprover, Role: ApproverRoleHR}}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no approver available for employee %s", employeeID)
	}
	return chain, nil
}

type DecideInput struct {
	RequestID  string
	ApproverID string
	Comments   string
	Now        time.Time
}

// Approve records one approver's decision. The request only becomes approved,
// and the reservation only becomes consumption, when the actioned step is the
// last one still required.
func (s *Service) Approve(ctx context.Context, in DecideInput) (Request, error) {
	return s.decide(ctx, in, DecisionApproved)
}

// Reject is final on the first rejecting approver: the reservation is
// released and remaining steps are never consulted.
func (s *Service) Reject(ctx context.Context, in DecideInput) (Request, error) {
	return s.decide(ctx, in, DecisionRejected)
}

func (s *Service) decide(ctx context.Context, in DecideInput, decision string) (Request, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.RequestID == "" || in.ApproverID == "" {
		return Request{}, ErrValidation
	}

	var out Request
	var nextApprover string
	err := s.Store.InTx(ctx, func(tx Tx) error {
		out = Request{}
		nextApprover = ""

		// Row lock on the request serializes simultaneous approvers; the
		// terminal check below must happen under that lock.
		req, err := tx.LockRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Terminal() {
			return ErrAlreadyProcessed
		}
		steps, err := tx.RequestSteps(ctx, req.ID)
		if err != nil {
			return err
		}
		step := pendingStepFor(steps, in.ApproverID)
		if step == nil {
			// An approver whose own step is already decided gets
			// AlreadyProcessed; an actor outside the chain gets Unauthorized.
			if hasStepFor(steps, in.ApproverID) {
				return ErrAlreadyProcessed
			}
			return ErrUnauthorized
		}
		if err := tx.SaveStepDecision(ctx, step.ID, decision, in.Comments, in.Now); err != nil {
			return err
		}
		step.Decision = decision
		step.Comments = in.Comments
		step.DecidedAt = &in.Now

		year := req.StartDate.Year()
		switch decision {
		case DecisionApproved:
			if lastRequiredApproval(steps, step.ID) {
				if err := s.ledger.Commit(ctx, tx, req.EmployeeID, req.LeaveTypeID, year, req.WorkingDays); err != nil {
					return err
				}
				if err := tx.SaveRequestStatus(ctx, req.ID, StatusApproved, in.ApproverID, in.Comments, in.Now); err != nil {
					return err
				}
				req.Status = StatusApproved
				req.DecidedBy = in.ApproverID
				req.DecidedAt = &in.Now
			} else if next := nextPendingApprover(steps, step.ID); next != nil {
				nextApprover = next.ApproverID
			}
		case DecisionRejected:
			if err := s.ledger.Release(ctx, tx, req.EmployeeID, req.LeaveTypeID, year, req.WorkingDays); err != nil {
				return err
			}
			if err := tx.SaveRequestStatus(ctx, req.ID, StatusRejected, in.ApproverID, in.Comments, in.Now); err != nil {
				return err
			}
			req.Status = StatusRejected
			req.DecidedBy = in.ApproverID
			req.DecidedAt = &in.Now
			req.DecisionNote = in.Comments
		}
		req.Steps = steps
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	switch out.Status {
	case StatusApproved:
		s.notify(ctx, out.EmployeeID, "leave.request.approved", "Leave approved",
			fmt.Sprintf("Your leave request for %s days was approved", out.WorkingDays))
	case StatusRejected:
		s.notify(ctx, out.EmployeeID, "leave.request.rejected", "Leave rejected",
			fmt.Sprintf("Your leave request was rejected: %s", in.Comments))
	default:
		if nextApprover != "" {
			s.notify(ctx, nextApprover, "leave.request.submitted", "Leave approval needed",
				fmt.Sprintf("A leave request for %s days awaits your decision", out.WorkingDays))
		}
	}
	return out, nil
}

type CancelInput struct {
	RequestID string
	ActorID   string
	Reason    string
	Now       time.Time
}

// Cancel closes a request. While pending, the employee or any pending
// approver may cancel and the reservation is released. Once approved, only
// the employee may cancel, and only until the leave period has elapsed;
// the consumed days are then refunded.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (Request, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	if in.RequestID == "" || in.ActorID == "" {
		return Request{}, ErrValidation
	}

	var out Request
	err := s.Store.InTx(ctx, func(tx Tx) error {
		out = Request{}

		req, err := tx.LockRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		year := req.StartDate.Year()

		switch req.Status {
		case StatusPending:
			if in.ActorID != req.EmployeeID {
				steps, err := tx.RequestSteps(ctx, req.ID)
				if err != nil {
					return err
				}
				if pendingStepFor(steps, in.ActorID) == nil {
					return ErrUnauthorized
				}
			}
			if err := s.ledger.Release(ctx, tx, req.EmployeeID, req.LeaveTypeID, year, req.WorkingDays); err != nil {
				return err
			}
		case StatusApproved:
			if in.ActorID != req.EmployeeID {
				return ErrUnauthorized
			}
			if truncateToDay(req.EndDate).Before(truncateToDay(in.Now)) {
				// Leave already taken; the ledger entry is history now.
				return ErrAlreadyProcessed
			}
			if err := s.ledger.RefundUsed(ctx, tx, req.EmployeeID, req.LeaveTypeID, year, req.WorkingDays); err != nil {
				return err
			}
		default:
			return ErrAlreadyProcessed
		}

		if err := tx.SaveRequestStatus(ctx, req.ID, StatusCancelled, in.ActorID, in.Reason, in.Now); err != nil {
			return err
		}
		req.Status = StatusCancelled
		req.DecidedBy = in.ActorID
		req.DecidedAt = &in.Now
		req.DecisionNote = in.Reason
		out = req
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	s.notify(ctx, out.EmployeeID, "leave.request.cancelled", "Leave cancelled",
		fmt.Sprintf("Leave request %s was cancelled", out.ID))
	return out, nil
}

func (s *Service) ListTypes(ctx context.Context) ([]Policy, error) {
	return s.Store.ListPolicies(ctx)
}

func (s *Service) Balances(ctx context.Context, employeeID string, year int) ([]EmployeeBalance, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.Store.BalancesForEmployee(ctx, employeeID, year)
}

func (s *Service) GetRequest(ctx context.Context, requestID string) (Request, error) {
	return s.Store.GetRequest(ctx, requestID)
}

func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]Request, int, error) {
	return s.Store.ListRequests(ctx, filter)
}

func (s *Service) PendingApprovals(ctx context.Context, approverID string) ([]Request, error) {
	return s.Store.PendingApprovals(ctx, approverID)
}

func (s *Service) Calendar(ctx context.Context, from, to time.Time, department string) ([]CalendarEntry, error) {
	return s.Store.CalendarEntries(ctx, from, to, department)
}

func (s *Service) AdjustAllocation(ctx context.Context, employeeID, leaveTypeID string, year int, amount decimal.Decimal, reason, actorID string) error {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.Store.AdjustAllocation(ctx, employeeID, leaveTypeID, year, amount, reason, actorID)
}

func (s *Service) notify(ctx context.Context, employeeID, event, title, body string) {
	if s.Notifier == nil || employeeID == "" {
		return
	}
	s.Notifier.Notify(ctx, employeeID, event, title, body)
}
