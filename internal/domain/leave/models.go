package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

const (
	SessionMorning   = "AM"
	SessionAfternoon = "PM"
)

const (
	ApproverRoleManager = "manager"
	ApproverRoleHR      = "hr"
)

// Policy is the full rule set for one leave category. Administered out of
// band; read-only here. A request is validated against the policy as it
// stood at application time, so later edits only affect future requests.
type Policy struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Code               string          `json:"code"`
	Paid               bool            `json:"paid"`
	AccrualFrequency   string          `json:"accrualFrequency"`
	DefaultAnnualDays  decimal.Decimal `json:"defaultAnnualDays"`
	MinDaysPerRequest  decimal.Decimal `json:"minDaysPerRequest"`
	MaxDaysPerRequest  decimal.Decimal `json:"maxDaysPerRequest"`
	MaxConsecutiveDays decimal.Decimal `json:"maxConsecutiveDays"`
	CarryForwardLimit  decimal.Decimal `json:"carryForwardLimit"`
	AllowNegative      bool            `json:"allowNegative"`
	CountsWeekends     bool            `json:"countsWeekends"`
	CountsHolidays     bool            `json:"countsHolidays"`
	RequiresDocument   bool            `json:"requiresDocument"`
	NoticeDays         int             `json:"noticeDays"`
	ProbationAllowed   bool            `json:"probationAllowed"`
	HalfDayAllowed     bool            `json:"halfDayAllowed"`
	ApprovalLevels     int             `json:"approvalLevels"`
	RequiresHRApproval bool            `json:"requiresHrApproval"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// Balance is one ledger row per (employee, leave type, year). The pending
// and used columns move only through the Ledger operations.
type Balance struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	LeaveTypeID    string          `json:"leaveTypeId"`
	Year           int             `json:"year"`
	Allocated      decimal.Decimal `json:"allocatedDays"`
	Used           decimal.Decimal `json:"usedDays"`
	Pending        decimal.Decimal `json:"pendingDays"`
	CarriedForward decimal.Decimal `json:"carriedForwardDays"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Available is allocated + carried forward minus everything spoken for.
func (b Balance) Available() decimal.Decimal {
	return b.Allocated.Add(b.CarriedForward).Sub(b.Used).Sub(b.Pending)
}

// EmployeeBalance is a Balance joined with its leave type name for listing.
type EmployeeBalance struct {
	Balance
	LeaveTypeName string          `json:"leaveTypeName"`
	AvailableDays decimal.Decimal `json:"availableDays"`
}

type Request struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	LeaveTypeID    string          `json:"leaveTypeId"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	HalfDay        bool            `json:"halfDay"`
	HalfDaySession string          `json:"halfDaySession,omitempty"`
	TotalDays      decimal.Decimal `json:"totalDays"`
	WorkingDays    decimal.Decimal `json:"workingDays"`
	WeekendDays    decimal.Decimal `json:"weekendDays"`
	HolidayDays    decimal.Decimal `json:"holidayDays"`
	Reason         string          `json:"reason"`
	DocumentRef    string          `json:"documentRef,omitempty"`
	Status         string          `json:"status"`
	DecidedBy      string          `json:"decidedBy,omitempty"`
	DecidedAt      *time.Time      `json:"decidedAt,omitempty"`
	DecisionNote   string          `json:"decisionNote,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Steps          []ApprovalStep  `json:"steps,omitempty"`
}

// Terminal reports whether the request has reached a final status.
func (r Request) Terminal() bool {
	return r.Status != StatusPending
}

// ApprovalStep is one approver's required decision. All steps for a request
// are created with it and each transitions at most once out of pending.
type ApprovalStep struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"requestId"`
	Level        int        `json:"level"`
	ApproverID   string     `json:"approverId"`
	ApproverRole string     `json:"approverRole"`
	Decision     string     `json:"decision"`
	Comments     string     `json:"comments,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
}

type RequestFilter struct {
	EmployeeID  string
	LeaveTypeID string
	Status      string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// CalendarEntry is an approved or pending absence shown on the team calendar.
type CalendarEntry struct {
	RequestID     string          `json:"requestId"`
	EmployeeID    string          `json:"employeeId"`
	EmployeeName  string          `json:"employeeName"`
	Department    string          `json:"department,omitempty"`
	LeaveTypeName string          `json:"leaveTypeName"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	WorkingDays   decimal.Decimal `json:"workingDays"`
	Status        string          `json:"status"`
}
