package leave

import "testing"

func TestBuildApprovalChain(t *testing.T) {
	managers := []string{"mgr-1", "mgr-2", "mgr-3"}

	tests := []struct {
		name     string
		managers []string
		hr       string
		policy   Policy
		want     []Approver
	}{
		{
			name:     "single level",
			managers: managers,
			policy:   Policy{ApprovalLevels: 1},
			want:     []Approver{{EmployeeID: "mgr-1", Role: ApproverRoleManager}},
		},
		{
			name:     "zero levels defaults to one",
			managers: managers,
			want:     []Approver{{EmployeeID: "mgr-1", Role: ApproverRoleManager}},
		},
		{
			name:     "levels capped by available managers",
			managers: managers[:2],
			policy:   Policy{ApprovalLevels: 5},
			want: []Approver{
				{EmployeeID: "mgr-1", Role: ApproverRoleManager},
				{EmployeeID: "mgr-2", Role: ApproverRoleManager},
			},
		},
		{
			name:     "hr appended when required",
			managers: managers,
			hr:       "hr-1",
			policy:   Policy{ApprovalLevels: 2, RequiresHRApproval: true},
			want: []Approver{
				{EmployeeID: "mgr-1", Role: ApproverRoleManager},
				{EmployeeID: "mgr-2", Role: ApproverRoleManager},
				{EmployeeID: "hr-1", Role: ApproverRoleHR},
			},
		},
		{
			name:   "no managers and no hr requirement yields empty chain",
			policy: Policy{ApprovalLevels: 1},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildApprovalChain(tt.managers, tt.hr, tt.policy)
			if len(got) != len(tt.want) {
				t.Fatalf("chain length = %d, want %d (%+v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("chain[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPendingStepFor(t *testing.T) {
	steps := []ApprovalStep{
		{ID: "s1", Level: 1, ApproverID: "mgr-1", Decision: DecisionApproved},
		{ID: "s2", Level: 2, ApproverID: "mgr-2", Decision: DecisionPending},
	}

	if got := pendingStepFor(steps, "mgr-2"); got == nil || got.ID != "s2" {
		t.Fatalf("expected s2, got %+v", got)
	}
	if got := pendingStepFor(steps, "mgr-1"); got != nil {
		t.Fatalf("approver with settled step should have no pending step, got %+v", got)
	}
	if got := pendingStepFor(steps, "stranger"); got != nil {
		t.Fatalf("unknown approver should have no pending step, got %+v", got)
	}
}

func TestLastRequiredApproval(t *testing.T) {
	steps := []ApprovalStep{
		{ID: "s1", Level: 1, Decision: DecisionApproved},
		{ID: "s2", Level: 2, Decision: DecisionPending},
		{ID: "s3", Level: 3, Decision: DecisionPending},
	}

	if lastRequiredApproval(steps, "s2") {
		t.Fatal("s3 still pending, s2 must not settle the request")
	}
	steps[1].Decision = DecisionApproved
	if !lastRequiredApproval(steps, "s3") {
		t.Fatal("every other step approved, s3 should settle the request")
	}
}

func TestNextPendingApprover(t *testing.T) {
	steps := []ApprovalStep{
		{ID: "s3", Level: 3, ApproverID: "hr-1", Decision: DecisionPending},
		{ID: "s1", Level: 1, ApproverID: "mgr-1", Decision: DecisionPending},
		{ID: "s2", Level: 2, ApproverID: "mgr-2", Decision: DecisionPending},
	}

	next := nextPendingApprover(steps, "s1")
	if next == nil || next.ApproverID != "mgr-2" {
		t.Fatalf("expected mgr-2 next, got %+v", next)
	}

	steps[2].Decision = DecisionApproved
	next = nextPendingApprover(steps, "s1")
	if next == nil || next.ApproverID != "hr-1" {
		t.Fatalf("expected hr-1 next, got %+v", next)
	}

	if got := nextPendingApprover([]ApprovalStep{{ID: "s1", Decision: DecisionPending}}, "s1"); got != nil {
		t.Fatalf("no remaining pending steps expected, got %+v", got)
	}
}
