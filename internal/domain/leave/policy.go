package leave

import "time"

// ValidateAgainstPolicy runs every pre-reservation policy check for an
// application. It never touches storage; violations come back as
// PolicyViolationError so callers can surface the broken rule verbatim.
func ValidateAgainstPolicy(p Policy, bd DayBreakdown, in ApplyInput, onProbation bool) error {
	if onProbation && !p.ProbationAllowed {
		return violation("probation", "%s leave is not available during probation", p.Name)
	}
	if in.HalfDay && !p.HalfDayAllowed {
		return violation("half_day", "%s leave cannot be taken as a half day", p.Name)
	}
	if p.RequiresDocument && in.DocumentRef == "" {
		return violation("document_required", "%s leave requires a supporting document", p.Name)
	}
	if p.NoticeDays > 0 {
		noticeCutoff := truncateToDay(in.Now).AddDate(0, 0, p.NoticeDays)
		if truncateToDay(in.StartDate).Before(noticeCutoff) {
			return violation("notice", "%s leave requires %d days notice", p.Name, p.NoticeDays)
		}
	}
	if bd.Working.IsZero() {
		return violation("working_days", "requested range contains no working days")
	}
	if p.MinDaysPerRequest.IsPositive() && bd.Working.LessThan(p.MinDaysPerRequest) {
		return violation("min_days", "at least %s days per request", p.MinDaysPerRequest)
	}
	if p.MaxDaysPerRequest.IsPositive() && bd.Working.GreaterThan(p.MaxDaysPerRequest) {
		return violation("max_days", "at most %s days per request", p.MaxDaysPerRequest)
	}
	if p.MaxConsecutiveDays.IsPositive() && bd.Total.GreaterThan(p.MaxConsecutiveDays) {
		return violation("max_consecutive", "at most %s consecutive calendar days", p.MaxConsecutiveDays)
	}
	return nil
}

// ValidateApplyInput is the pre-policy shape check: it rejects malformed
// input before any lookup or transaction happens.
func ValidateApplyInput(in ApplyInput) error {
	if in.EmployeeID == "" || in.LeaveTypeID == "" {
		return ErrValidation
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return ErrValidation
	}
	if in.EndDate.Before(in.StartDate) {
		return ErrValidation
	}
	if in.HalfDay {
		if !sameDate(in.StartDate, in.EndDate) {
			return ErrValidation
		}
		if in.HalfDaySession != SessionMorning && in.HalfDaySession != SessionAfternoon {
			return ErrValidation
		}
	}
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
