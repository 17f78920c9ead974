package leave

import "sort"

// Approver is one entry in the derived approval chain, lowest level first.
type Approver struct {
	EmployeeID string
	Role       string
}

// BuildApprovalChain derives the ordered approver list for a request:
// the employee's manager chain up to the policy's configured level count,
// then an HR approver as the final level when the policy demands one.
// The chain is fixed at application time; steps are never added later.
func BuildApprovalChain(managers []string, hrApprover string, p Policy) []Approver {
	levels := p.ApprovalLevels
	if levels <= 0 {
		levels = 1
	}
	if levels > len(managers) {
		levels = len(managers)
	}

	chain := make([]Approver, 0, levels+1)
	for _, m := range managers[:levels] {
		chain = append(chain, Approver{EmployeeID: m, Role: ApproverRoleManager})
	}
	if p.RequiresHRApproval && hrApprover != "" {
		chain = append(chain, Approver{EmployeeID: hrApprover, Role: ApproverRoleHR})
	}
	return chain
}

// pendingStepFor returns the step this approver is required to decide,
// or nil when no pending step names them.
func pendingStepFor(steps []ApprovalStep, approverID string) *ApprovalStep {
	for i := range steps {
		if steps[i].ApproverID == approverID && steps[i].Decision == DecisionPending {
			return &steps[i]
		}
	}
	return nil
}

// hasStepFor reports whether any step, decided or not, names the approver.
// Distinguishes an approver re-acting on their settled step from an actor
// who was never part of the chain.
func hasStepFor(steps []ApprovalStep, approverID string) bool {
	for i := range steps {
		if steps[i].ApproverID == approverID {
			return true
		}
	}
	return false
}

// lastRequiredApproval reports whether approving stepID settles the whole
// request: true exactly when every other step is already approved. It must
// be evaluated inside the same transaction that writes the step decision,
// so two simultaneous final approvers cannot both see themselves as last.
func lastRequiredApproval(steps []ApprovalStep, stepID string) bool {
	for _, s := range steps {
		if s.ID == stepID {
			continue
		}
		if s.Decision != DecisionApproved {
			return false
		}
	}
	return true
}

// nextPendingApprover returns the lowest-level step still pending after the
// given step, used only to decide who to notify next. Lower-level decisions
// never auto-approve or invalidate higher levels.
func nextPendingApprover(steps []ApprovalStep, decidedStepID string) *ApprovalStep {
	remaining := make([]ApprovalStep, 0, len(steps))
	for _, s := range steps {
		if s.ID != decidedStepID && s.Decision == DecisionPending {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		return nil
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Level < remaining[j].Level })
	return &remaining[0]
}
