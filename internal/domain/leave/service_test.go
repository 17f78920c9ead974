package leave

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps the whole ledger in memory and gives InTx snapshot
// semantics: a failing callback leaves no trace, like a rolled-back
// database transaction.
type fakeStore struct {
	policies map[string]Policy
	balances map[string]*Balance
	requests map[string]*Request
	steps    map[string][]ApprovalStep
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		policies: map[string]Policy{},
		balances: map[string]*Balance{},
		requests: map[string]*Request{},
		steps:    map[string][]ApprovalStep{},
	}
}

func balanceKey(employeeID, leaveTypeID string, year int) string {
	return fmt.Sprintf("%s|%s|%d", employeeID, leaveTypeID, year)
}

func (f *fakeStore) seedBalance(employeeID, leaveTypeID string, year int, allocated string) {
	key := balanceKey(employeeID, leaveTypeID, year)
	f.balances[key] = &Balance{
		ID:          key,
		EmployeeID:  employeeID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Allocated:   decimal.RequireFromString(allocated),
	}
}

func (f *fakeStore) snapshot() *fakeStore {
	copied := newFakeStore()
	for k, v := range f.policies {
		copied.policies[k] = v
	}
	for k, v := range f.balances {
		b := *v
		copied.balances[k] = &b
	}
	for k, v := range f.requests {
		r := *v
		copied.requests[k] = &r
	}
	for k, v := range f.steps {
		copied.steps[k] = append([]ApprovalStep(nil), v...)
	}
	return copied
}

func (f *fakeStore) restore(from *fakeStore) {
	f.policies = from.policies
	f.balances = from.balances
	f.requests = from.requests
	f.steps = from.steps
}

func (f *fakeStore) PolicyByLeaveType(_ context.Context, leaveTypeID string) (Policy, error) {
	p, ok := f.policies[leaveTypeID]
	if !ok {
		return Policy{}, fmt.Errorf("%w: leave type %s", ErrNotFound, leaveTypeID)
	}
	return p, nil
}

func (f *fakeStore) ListPolicies(context.Context) ([]Policy, error) {
	var out []Policy
	for _, p := range f.policies {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) BalancesForEmployee(_ context.Context, employeeID string, year int) ([]EmployeeBalance, error) {
	var out []EmployeeBalance
	for _, b := range f.balances {
		if b.EmployeeID == employeeID && b.Year == year {
			eb := EmployeeBalance{Balance: *b}
			eb.AvailableDays = b.Available()
			out = append(out, eb)
		}
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

func (f *fakeStore) GetRequest(_ context.Context, requestID string) (Request, error) {
	r, ok := f.requests[requestID]
	if !ok {
		return Request{}, ErrNotFound
	}
	req := *r
	req.Steps = append([]ApprovalStep(nil), f.steps[requestID]...)
	return req, nil
}

func (f *fakeStore) ListRequests(context.Context, RequestFilter) ([]Request, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) PendingApprovals(context.Context, string) ([]Request, error) {
	return nil, nil
}

func (f *fakeStore) CalendarEntries(context.Context, time.Time, time.Time, string) ([]CalendarEntry, error) {
	return nil, nil
}

func (f *fakeStore) AdjustAllocation(_ context.Context, employeeID, leaveTypeID string, year int, amount decimal.Decimal, _, _ string) error {
	key := balanceKey(employeeID, leaveTypeID, year)
	b, ok := f.balances[key]
	if !ok {
		f.seedBalance(employeeID, leaveTypeID, year, "0")
		b = f.balances[key]
	}
	b.Allocated = b.Allocated.Add(amount)
	return nil
}

func (f *fakeStore) InTx(_ context.Context, fn func(Tx) error) error {
	before := f.snapshot()
	if err := fn(&fakeTx{store: f}); err != nil {
		f.restore(before)
		return err
	}
	return nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) LockBalance(_ context.Context, employeeID, leaveTypeID string, year int) (Balance, error) {
	b, ok := t.store.balances[balanceKey(employeeID, leaveTypeID, year)]
	if !ok {
		return Balance{}, fmt.Errorf("%w: no balance for %s", ErrNotFound, employeeID)
	}
	return *b, nil
}

func (t *fakeTx) SaveBalance(_ context.Context, b Balance) error {
	copied := b
	t.store.balances[balanceKey(b.EmployeeID, b.LeaveTypeID, b.Year)] = &copied
	return nil
}

func (t *fakeTx) InsertRequest(_ context.Context, req Request) error {
	copied := req
	t.store.requests[req.ID] = &copied
	return nil
}

func (t *fakeTx) InsertSteps(_ context.Context, steps []ApprovalStep) error {
	for _, s := range steps {
		t.store.steps[s.RequestID] = append(t.store.steps[s.RequestID], s)
	}
	return nil
}

func (t *fakeTx) LockRequest(_ context.Context, requestID string) (Request, error) {
	r, ok := t.store.requests[requestID]
	if !ok {
		return Request{}, fmt.Errorf("%w: leave request %s", ErrNotFound, requestID)
	}
	return *r, nil
}

func (t *fakeTx) RequestSteps(_ context.Context, requestID string) ([]ApprovalStep, error) {
	return append([]ApprovalStep(nil), t.store.steps[requestID]...), nil
}

func (t *fakeTx) SaveStepDecision(_ context.Context, stepID, decision, comments string, at time.Time) error {
	for requestID, steps := range t.store.steps {
		for i := range steps {
			if steps[i].ID != stepID {
				continue
			}
			if steps[i].Decision != DecisionPending {
				return ErrAlreadyProcessed
			}
			steps[i].Decision = decision
			steps[i].Comments = comments
			decided := at
			steps[i].DecidedAt = &decided
			t.store.steps[requestID] = steps
			return nil
		}
	}
	return ErrNotFound
}

func (t *fakeTx) SaveRequestStatus(_ context.Context, requestID, status, actorID, note string, at time.Time) error {
	r, ok := t.store.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.DecidedBy = actorID
	r.DecisionNote = note
	decided := at
	r.DecidedAt = &decided
	return nil
}

type fakeDirectory struct {
	managers  []string
	probation bool
	hr        string
}

func (d *fakeDirectory) ManagerChain(_ context.Context, _ string, maxLevels int) ([]string, error) {
	if maxLevels > len(d.managers) {
		maxLevels = len(d.managers)
	}
	return d.managers[:maxLevels], nil
}

func (d *fakeDirectory) OnProbation(context.Context, string, time.Time) (bool, error) {
	return d.probation, nil
}

func (d *fakeDirectory) HRApprover(context.Context) (string, error) {
	return d.hr, nil
}

type fakeCalendar struct {
	dates map[string]bool
}

func (c *fakeCalendar) NonWorkingDates(context.Context, time.Time, time.Time) (map[string]bool, error) {
	return c.dates, nil
}

type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, employeeID, event, _, _ string) {
	n.events = append(n.events, event+"->"+employeeID)
}

type fixture struct {
	store    *fakeStore
	dir      *fakeDirectory
	cal      *fakeCalendar
	notifier *fakeNotifier
	svc      *Service
}

func newFixture(policy Policy) *fixture {
	store := newFakeStore()
	store.policies["annual"] = policy
	store.seedBalance("emp-1", "annual", 2026, "10")

	dir := &fakeDirectory{managers: []string{"mgr-1", "mgr-2"}, hr: "hr-1"}
	cal := &fakeCalendar{dates: map[string]bool{}}
	notifier := &fakeNotifier{}

	return &fixture{
		store:    store,
		dir:      dir,
		cal:      cal,
		notifier: notifier,
		svc:      NewService(store, cal, dir, notifier),
	}
}

func annualPolicy() Policy {
	return Policy{
		ID:               "annual",
		Name:             "Annual",
		Code:             "AL",
		Paid:             true,
		ProbationAllowed: true,
		HalfDayAllowed:   true,
		ApprovalLevels:   1,
	}
}

func applyInput() ApplyInput {
	return ApplyInput{
		EmployeeID:  "emp-1",
		LeaveTypeID: "annual",
		StartDate:   date(2026, time.March, 2),
		EndDate:     date(2026, time.March, 6),
		Reason:      "family trip",
		Now:         date(2026, time.February, 2),
	}
}

func (f *fixture) balance(t *testing.T) Balance {
	t.Helper()
	b, ok := f.store.balances[balanceKey("emp-1", "annual", 2026)]
	require.True(t, ok)
	return *b
}

func TestApplyReservesBalanceAndBuildsChain(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, req.Status)
	assertDecimal(t, "working", req.WorkingDays, "5")
	assertDecimal(t, "total", req.TotalDays, "5")
	require.Len(t, req.Steps, 1)
	assert.Equal(t, "mgr-1", req.Steps[0].ApproverID)
	assert.Equal(t, ApproverRoleManager, req.Steps[0].ApproverRole)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "5")
	assertDecimal(t, "used", b.Used, "0")
	assertDecimal(t, "available", b.Available(), "5")

	assert.Contains(t, f.notifier.events, "leave.request.submitted->mgr-1")
	assert.Contains(t, f.notifier.events, "leave.request.created->emp-1")
}

func TestApplyInsufficientBalanceLeavesNothingBehind(t *testing.T) {
	f := newFixture(annualPolicy())
	f.store.seedBalance("emp-1", "annual", 2026, "3")
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, applyInput())
	require.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Empty(t, f.store.requests)
	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
	assert.Empty(t, f.notifier.events)
}

func TestSecondApplyFailsWhileFirstIsPending(t *testing.T) {
	f := newFixture(annualPolicy())
	f.store.seedBalance("emp-1", "annual", 2026, "8")
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	second := applyInput()
	second.StartDate = date(2026, time.March, 9)
	second.EndDate = date(2026, time.March, 13)
	_, err = f.svc.Apply(ctx, second)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "5")
	assertDecimal(t, "available", b.Available(), "3")
	assert.Len(t, f.store.requests, 1)
}

func TestApplyAllowNegativeOverdraws(t *testing.T) {
	p := annualPolicy()
	p.AllowNegative = true
	f := newFixture(p)
	f.store.seedBalance("emp-1", "annual", 2026, "3")
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)

	b := f.balance(t)
	assertDecimal(t, "available", b.Available(), "-2")
}

func TestApplyPolicyViolationSurfacesRule(t *testing.T) {
	p := annualPolicy()
	p.RequiresDocument = true
	f := newFixture(p)
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, applyInput())
	var pv *PolicyViolationError
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, "document_required", pv.Rule)
	assert.Empty(t, f.store.requests)
}

func TestApplyHalfDayConsumesHalf(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	in := applyInput()
	in.StartDate = date(2026, time.March, 4)
	in.EndDate = in.StartDate
	in.HalfDay = true
	in.HalfDaySession = SessionMorning

	req, err := f.svc.Apply(ctx, in)
	require.NoError(t, err)
	assertDecimal(t, "working", req.WorkingDays, "0.5")

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0.5")
	assertDecimal(t, "available", b.Available(), "9.5")
}

func TestApplyWithoutManagerRoutesToHR(t *testing.T) {
	f := newFixture(annualPolicy())
	f.dir.managers = nil
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	require.Len(t, req.Steps, 1)
	assert.Equal(t, "hr-1", req.Steps[0].ApproverID)
	assert.Equal(t, ApproverRoleHR, req.Steps[0].ApproverRole)
}

func TestApplyWithoutAnyApproverFails(t *testing.T) {
	f := newFixture(annualPolicy())
	f.dir.managers = nil
	f.dir.hr = ""
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, applyInput())
	require.Error(t, err)
	assert.Empty(t, f.store.requests)
	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
}

func TestSingleLevelApprovalCommitsLedger(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	out, err := f.svc.Approve(ctx, DecideInput{
		RequestID:  req.ID,
		ApproverID: "mgr-1",
		Now:        date(2026, time.February, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
	assert.Equal(t, "mgr-1", out.DecidedBy)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "used", b.Used, "5")
	assertDecimal(t, "available", b.Available(), "5")

	assert.Contains(t, f.notifier.events, "leave.request.approved->emp-1")
}

func TestMultiLevelApprovalWaitsForEveryLevel(t *testing.T) {
	p := annualPolicy()
	p.ApprovalLevels = 2
	p.RequiresHRApproval = true
	f := newFixture(p)
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	require.Len(t, req.Steps, 3)

	out, err := f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, out.Status)
	assert.Contains(t, f.notifier.events, "leave.request.submitted->mgr-2")

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "5")
	assertDecimal(t, "used", b.Used, "0")

	out, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-2"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, out.Status)

	out, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "hr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)

	b = f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "used", b.Used, "5")
}

func TestHigherLevelCanApproveOutOfOrder(t *testing.T) {
	p := annualPolicy()
	p.ApprovalLevels = 2
	f := newFixture(p)
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	require.Len(t, req.Steps, 2)

	// The second-level manager decides first; the request settles only once
	// the first level also approves.
	out, err := f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-2"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, out.Status)

	out, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, out.Status)
}

func TestRejectionReleasesReservationImmediately(t *testing.T) {
	p := annualPolicy()
	p.ApprovalLevels = 2
	f := newFixture(p)
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	out, err := f.svc.Reject(ctx, DecideInput{
		RequestID:  req.ID,
		ApproverID: "mgr-1",
		Comments:   "coverage gap",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)
	assert.Equal(t, "coverage gap", out.DecisionNote)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "used", b.Used, "0")
	assertDecimal(t, "available", b.Available(), "10")

	assert.Contains(t, f.notifier.events, "leave.request.rejected->emp-1")
}

func TestLaterRejectionOverridesEarlierApproval(t *testing.T) {
	p := annualPolicy()
	p.ApprovalLevels = 2
	f := newFixture(p)
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	out, err := f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, out.Status)

	out, err = f.svc.Reject(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-2", Comments: "headcount freeze"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, out.Status)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "used", b.Used, "0")
}

func TestApproverCannotActTwiceOnOwnStep(t *testing.T) {
	p := annualPolicy()
	p.ApprovalLevels = 2
	f := newFixture(p)
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	out, err := f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)
	require.Equal(t, StatusPending, out.Status)

	// The request is still open, but this approver's step is settled.
	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = f.svc.Reject(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "5")
	assertDecimal(t, "used", b.Used, "0")
}

func TestDecisionByStrangerIsUnauthorized(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "stranger"})
	require.ErrorIs(t, err, ErrUnauthorized)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "5")
}

func TestDecideOnSettledRequestIsAlreadyProcessed(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	// The ledger must not move twice.
	b := f.balance(t)
	assertDecimal(t, "used", b.Used, "5")
	assertDecimal(t, "pending", b.Pending, "0")
}

func TestEmployeeCancelsPendingRequest(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	out, err := f.svc.Cancel(ctx, CancelInput{
		RequestID: req.ID,
		ActorID:   "emp-1",
		Reason:    "plans changed",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Status)

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "available", b.Available(), "10")
}

func TestPendingApproverMayCancel(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	out, err := f.svc.Cancel(ctx, CancelInput{RequestID: req.ID, ActorID: "mgr-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Status)
}

func TestOutsiderCannotCancel(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, CancelInput{RequestID: req.ID, ActorID: "stranger"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestEmployeeCancelsApprovedRequestBeforePeriod(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)

	out, err := f.svc.Cancel(ctx, CancelInput{
		RequestID: req.ID,
		ActorID:   "emp-1",
		Now:       date(2026, time.February, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, out.Status)

	b := f.balance(t)
	assertDecimal(t, "used", b.Used, "0")
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "available", b.Available(), "10")
}

func TestApprovedRequestCannotBeCancelledAfterPeriod(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, CancelInput{
		RequestID: req.ID,
		ActorID:   "emp-1",
		Now:       date(2026, time.March, 10),
	})
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	b := f.balance(t)
	assertDecimal(t, "used", b.Used, "5")
}

func TestOnlyEmployeeCancelsApprovedRequest(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, CancelInput{
		RequestID: req.ID,
		ActorID:   "mgr-1",
		Now:       date(2026, time.February, 20),
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestFullLifecycleConservesAllocation(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, DecideInput{RequestID: req.ID, ApproverID: "mgr-1"})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, CancelInput{
		RequestID: req.ID,
		ActorID:   "emp-1",
		Now:       date(2026, time.February, 20),
	})
	require.NoError(t, err)

	b := f.balance(t)
	assertDecimal(t, "allocated", b.Allocated, "10")
	assertDecimal(t, "used", b.Used, "0")
	assertDecimal(t, "pending", b.Pending, "0")
	assertDecimal(t, "available", b.Available(), "10")
}

func TestApplyCountsHolidaysFromCalendar(t *testing.T) {
	f := newFixture(annualPolicy())
	f.cal.dates = map[string]bool{"2026-03-04": true}
	ctx := context.Background()

	req, err := f.svc.Apply(ctx, applyInput())
	require.NoError(t, err)
	assertDecimal(t, "working", req.WorkingDays, "4")
	assertDecimal(t, "holiday", req.HolidayDays, "1")

	b := f.balance(t)
	assertDecimal(t, "pending", b.Pending, "4")
}

func TestApplyOnProbationBlockedByPolicy(t *testing.T) {
	p := annualPolicy()
	p.ProbationAllowed = false
	f := newFixture(p)
	f.dir.probation = true
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, applyInput())
	var pv *PolicyViolationError
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, "probation", pv.Rule)
}

func TestAdjustAllocationIncreasesAllocated(t *testing.T) {
	f := newFixture(annualPolicy())
	ctx := context.Background()

	err := f.svc.AdjustAllocation(ctx, "emp-1", "annual", 2026, decimal.NewFromInt(2), "service award", "hr-1")
	require.NoError(t, err)

	b := f.balance(t)
	assertDecimal(t, "allocated", b.Allocated, "12")
}
