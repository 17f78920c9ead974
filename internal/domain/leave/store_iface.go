package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StoreAPI is everything the lifecycle needs from persistence. Mutating
// flows run through InTx so a whole transition commits or rolls back as one.
type StoreAPI interface {
	PolicyByLeaveType(ctx context.Context, leaveTypeID string) (Policy, error)
	ListPolicies(ctx context.Context) ([]Policy, error)
	BalancesForEmployee(ctx context.Context, employeeID string, year int) ([]EmployeeBalance, error)
	GetRequest(ctx context.Context, requestID string) (Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, int, error)
	PendingApprovals(ctx context.Context, approverID string) ([]Request, error)
	CalendarEntries(ctx context.Context, from, to time.Time, department string) ([]CalendarEntry, error)
	AdjustAllocation(ctx context.Context, employeeID, leaveTypeID string, year int, amount decimal.Decimal, reason, actorID string) error

	// InTx runs fn inside one database transaction. Transient lock conflicts
	// are retried a fixed number of times before surfacing ErrConflict, so
	// fn must be safe to re-run from scratch.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the transaction-scoped surface. Lock methods take a row lock that
// is held until the transaction ends.
type Tx interface {
	LockBalance(ctx context.Context, employeeID, leaveTypeID string, year int) (Balance, error)
	SaveBalance(ctx context.Context, b Balance) error
	InsertRequest(ctx context.Context, req Request) error
	InsertSteps(ctx context.Context, steps []ApprovalStep) error
	LockRequest(ctx context.Context, requestID string) (Request, error)
	RequestSteps(ctx context.Context, requestID string) ([]ApprovalStep, error)
	SaveStepDecision(ctx context.Context, stepID, decision, comments string, at time.Time) error
	SaveRequestStatus(ctx context.Context, requestID, status, actorID, note string, at time.Time) error
}

// HolidayCalendar supplies the organisation's non-working dates for a range,
// keyed by DateKey. Injected so day counting stays pure and testable.
type HolidayCalendar interface {
	NonWorkingDates(ctx context.Context, from, to time.Time) (map[string]bool, error)
}

// Directory is the employee-directory collaborator: reporting chains,
// probation status and the HR approver pool live outside this core.
type Directory interface {
	ManagerChain(ctx context.Context, employeeID string, maxLevels int) ([]string, error)
	OnProbation(ctx context.Context, employeeID string, asOf time.Time) (bool, error)
	HRApprover(ctx context.Context) (string, error)
}

// Notifier is told about state transitions after the owning transaction has
// committed. Best effort; implementations must never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, employeeID, event, title, body string)
}
