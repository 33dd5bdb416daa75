package team

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/incentive/internal/domain/commission"
	"github.com/clinicops/incentive/internal/domain/employee"
	"github.com/clinicops/incentive/internal/domain/target"
)

// -- Mock Repositories --

type mockTeamRepo struct {
	teams   map[uuid.UUID]*Team
	members map[uuid.UUID][]*Member // keyed by team
}

func newMockTeamRepo() *mockTeamRepo {
	return &mockTeamRepo{
		teams:   make(map[uuid.UUID]*Team),
		members: make(map[uuid.UUID][]*Member),
	}
}

func (m *mockTeamRepo) Create(_ context.Context, t *Team) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	m.teams[t.ID] = t
	return nil
}

func (m *mockTeamRepo) GetByID(_ context.Context, id uuid.UUID) (*Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *mockTeamRepo) Update(_ context.Context, t *Team) error {
	if _, ok := m.teams[t.ID]; !ok {
		return ErrNotFound
	}
	m.teams[t.ID] = t
	return nil
}

func (m *mockTeamRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.teams[id]; !ok {
		return ErrNotFound
	}
	delete(m.teams, id)
	delete(m.members, id)
	return nil
}

func (m *mockTeamRepo) List(_ context.Context, f Filter, _, _ int) ([]*Team, int, error) {
	var out []*Team
	for _, t := range m.teams {
		if f.Active != nil && t.IsActive != *f.Active {
			continue
		}
		if f.LeaderID != nil && t.LeaderID != *f.LeaderID {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockTeamRepo) AddMember(_ context.Context, member *Member) error {
	for _, members := range m.members {
		for _, existing := range members {
			if existing.EmployeeID == member.EmployeeID && existing.IsActive {
				return ErrAlreadyOnTeam
			}
		}
	}
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	member.IsActive = true
	m.members[member.TeamID] = append(m.members[member.TeamID], member)
	return nil
}

func (m *mockTeamRepo) RemoveMember(_ context.Context, teamID, employeeID uuid.UUID) error {
	for _, member := range m.members[teamID] {
		if member.EmployeeID == employeeID && member.IsActive {
			member.IsActive = false
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockTeamRepo) ListMembers(_ context.Context, teamID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for _, member := range m.members[teamID] {
		if member.IsActive {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *mockTeamRepo) ActiveTeamFor(_ context.Context, employeeID uuid.UUID) (*Team, error) {
	for teamID, members := range m.members {
		for _, member := range members {
			if member.EmployeeID == employeeID && member.IsActive {
				return m.teams[teamID], nil
			}
		}
	}
	return nil, ErrNotFound
}

type mockEmployees struct {
	employees map[uuid.UUID]*employee.Employee
}

func newMockEmployees() *mockEmployees {
	return &mockEmployees{employees: make(map[uuid.UUID]*employee.Employee)}
}

func (m *mockEmployees) add(name, role string) uuid.UUID {
	id := uuid.New()
	m.employees[id] = &employee.Employee{ID: id, Name: name, Role: role}
	return id
}

func (m *mockEmployees) GetByID(_ context.Context, id uuid.UUID) (*employee.Employee, error) {
	e, ok := m.employees[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	return e, nil
}

func (m *mockEmployees) Role(_ context.Context, id uuid.UUID) (string, error) {
	e, ok := m.employees[id]
	if !ok {
		return "", employee.ErrNotFound
	}
	return e.Role, nil
}

func (m *mockEmployees) FindAnyByRole(_ context.Context, role string) (*employee.Employee, error) {
	for _, e := range m.employees {
		if e.Role == role {
			return e, nil
		}
	}
	return nil, employee.ErrNotFound
}

func (m *mockEmployees) ListByRole(_ context.Context, role string, _, _ int) ([]*employee.Employee, int, error) {
	var out []*employee.Employee
	for _, e := range m.employees {
		if e.Role == role {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *mockEmployees) IncrementCommissionCount(_ context.Context, id uuid.UUID) error {
	e, ok := m.employees[id]
	if !ok {
		return employee.ErrNotFound
	}
	e.CommissionCount++
	return nil
}

// mockTargetRepo implements just enough of target.Repository for the
// aggregation paths.
type mockTargetRepo struct {
	targets map[uuid.UUID]*target.Target
}

func newMockTargetRepo() *mockTargetRepo {
	return &mockTargetRepo{targets: make(map[uuid.UUID]*target.Target)}
}

func (m *mockTargetRepo) Create(_ context.Context, t *target.Target) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.targets[t.ID] = t
	return nil
}

func (m *mockTargetRepo) GetByID(_ context.Context, id uuid.UUID) (*target.Target, error) {
	t, ok := m.targets[id]
	if !ok {
		return nil, target.ErrNotFound
	}
	return t, nil
}

func (m *mockTargetRepo) Update(_ context.Context, t *target.Target) error {
	m.targets[t.ID] = t
	return nil
}

func (m *mockTargetRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.targets, id)
	return nil
}

func (m *mockTargetRepo) List(_ context.Context, _ target.Filter, _, _ int) ([]*target.Target, int, error) {
	return nil, 0, nil
}

func (m *mockTargetRepo) ListActiveForEmployeeCategoryDate(_ context.Context, employeeID uuid.UUID, category string, day time.Time) ([]*target.Target, error) {
	var out []*target.Target
	for _, t := range m.targets {
		if t.AssignedToID == employeeID && t.Category == category && t.IsActive &&
			t.Window().Contains(day) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTargetRepo) ListActiveForTeam(_ context.Context, teamID uuid.UUID) ([]*target.Target, error) {
	var out []*target.Target
	for _, t := range m.targets {
		if t.TeamID != nil && *t.TeamID == teamID && t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTargetRepo) UpdateProgressValue(_ context.Context, id uuid.UUID, value int, completedAt *time.Time) error {
	t, ok := m.targets[id]
	if !ok {
		return target.ErrNotFound
	}
	t.CurrentValue = value
	if t.CompletedAt == nil {
		t.CompletedAt = completedAt
	}
	return nil
}

func (m *mockTargetRepo) AddDayProgress(_ context.Context, _ uuid.UUID, _ time.Time, _ int) error {
	return nil
}

func (m *mockTargetRepo) SetDayProgress(_ context.Context, _ uuid.UUID, _ time.Time, _ int, _ string) error {
	return nil
}

func (m *mockTargetRepo) ListProgress(_ context.Context, _ uuid.UUID) ([]*target.Progress, error) {
	return nil, nil
}

func (m *mockTargetRepo) RetireExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (m *mockTargetRepo) Stats(_ context.Context, _ target.Filter, _ time.Time) (*target.Stats, error) {
	return &target.Stats{}, nil
}

type ledgerCall struct {
	employeeID uuid.UUID
	start, end time.Time
}

// mockLedger counts per (employee, commission type) and records the windows
// it was asked about.
type mockLedger struct {
	counts map[uuid.UUID]map[string]int
	calls  []ledgerCall
}

func newMockLedger() *mockLedger {
	return &mockLedger{counts: make(map[uuid.UUID]map[string]int)}
}

func (m *mockLedger) set(employeeID uuid.UUID, commissionType string, n int) {
	if m.counts[employeeID] == nil {
		m.counts[employeeID] = make(map[string]int)
	}
	m.counts[employeeID][commissionType] = n
}

func (m *mockLedger) CountForEmployee(_ context.Context, employeeID uuid.UUID, commissionType string, start, end time.Time) (int, error) {
	m.calls = append(m.calls, ledgerCall{employeeID: employeeID, start: start, end: end})
	return m.counts[employeeID][commissionType], nil
}

type mockVisits struct {
	counts map[uuid.UUID]int
}

func (m *mockVisits) CountQualifyingNewPatientVisits(_ context.Context, salesID uuid.UUID, _, _ time.Time) (int, error) {
	return m.counts[salesID], nil
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// -- Fixture --

type fixture struct {
	svc       *Service
	repo      *mockTeamRepo
	employees *mockEmployees
	targets   *mockTargetRepo
	ledger    *mockLedger
	visits    *mockVisits
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockTeamRepo(),
		employees: newMockEmployees(),
		targets:   newMockTargetRepo(),
		ledger:    newMockLedger(),
		visits:    &mockVisits{counts: make(map[uuid.UUID]int)},
	}
	calcs := target.NewCalculatorSet(f.ledger, f.visits)
	f.svc = NewService(f.repo, f.employees, f.targets, calcs, passTx{}, zerolog.Nop())
	return f
}

func currentWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.AddDate(0, 0, -15), now.AddDate(0, 0, 15)
}

func (f *fixture) addTeamTarget(teamID uuid.UUID, leaderID uuid.UUID, category string, targetValue int) *target.Target {
	start, end := currentWindow()
	t := &target.Target{
		ID: uuid.New(), AssignedToID: leaderID, Type: target.TypeMonthly,
		Category: category, TargetValue: targetValue,
		StartDate: start, EndDate: end, IsActive: true, TeamID: &teamID,
	}
	f.targets.targets[t.ID] = t
	return t
}

// -- Tests --

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leader := f.employees.add("Avery", employee.RoleSales)
	staff := f.employees.add("Blake", employee.RoleStaff)
	member := f.employees.add("Casey", employee.RoleCoordinator)

	if _, err := f.svc.Create(ctx, CreateInput{LeaderID: leader}); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := f.svc.Create(ctx, CreateInput{Name: "North"}); err == nil {
		t.Error("expected error for missing leader")
	}
	if _, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: staff}); err == nil {
		t.Error("expected error for ineligible leader role")
	}
	if _, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader, MemberIDs: []uuid.UUID{leader}}); err == nil {
		t.Error("expected error for leader listed as member")
	}
	if _, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader, MemberIDs: []uuid.UUID{member, member}}); err == nil {
		t.Error("expected error for duplicate member")
	}

	v, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader, MemberIDs: []uuid.UUID{member}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.LeaderName != "North Avery" {
		t.Errorf("expected leader display name North Avery, got %s", v.LeaderName)
	}
	if len(v.Members) != 1 || v.Members[0].Name != "Casey" {
		t.Errorf("unexpected roster: %+v", v.Members)
	}
}

func TestCreate_MemberOnAnotherTeam(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leaderA := f.employees.add("Avery", employee.RoleSales)
	leaderB := f.employees.add("Blake", employee.RoleCoordinator)
	shared := f.employees.add("Casey", employee.RoleCoordinator)

	if _, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leaderA, MemberIDs: []uuid.UUID{shared}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{Name: "South", LeaderID: leaderB, MemberIDs: []uuid.UUID{shared}}); !errors.Is(err, ErrAlreadyOnTeam) {
		t.Fatalf("expected ErrAlreadyOnTeam, got %v", err)
	}
}

func TestGet_LeaderNameIsDerived(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leader := f.employees.add("Avery", employee.RoleSales)
	v, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rename the employee; the team view must follow without any team write.
	f.employees.employees[leader].Name = "Avery Q."
	got, err := f.svc.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LeaderName != "North Avery Q." {
		t.Errorf("expected derived leader name, got %s", got.LeaderName)
	}
	// The employee row itself stays untouched.
	if f.employees.employees[leader].Name != "Avery Q." {
		t.Errorf("employee name must not be rewritten, got %s", f.employees.employees[leader].Name)
	}
}

func TestAddMember_LeaderRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leader := f.employees.add("Avery", employee.RoleSales)
	v, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.AddMember(ctx, v.ID, leader); err == nil {
		t.Error("expected error adding leader as member")
	}
}

func TestProgress_AggregatesLeaderAndMembers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leader := f.employees.add("Avery", employee.RoleCoordinator)
	member1 := f.employees.add("Blake", employee.RoleCoordinator)
	member2 := f.employees.add("Casey", employee.RoleCoordinator)

	v, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader, MemberIDs: []uuid.UUID{member1, member2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tt := f.addTeamTarget(v.ID, leader, target.CategoryFollowUpPatients, 10)

	f.ledger.set(leader, commission.TypeFollowUp, 3)
	f.ledger.set(member1, commission.TypeFollowUp, 2)
	f.ledger.set(member2, commission.TypeFollowUp, 1)

	progress, err := f.svc.Progress(ctx, v.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("expected 1 team target, got %d", len(progress))
	}

	p := progress[0]
	if p.Total != 6 {
		t.Errorf("expected total 6, got %d", p.Total)
	}
	if len(p.Members) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(p.Members))
	}
	leaders := 0
	for _, mp := range p.Members {
		if mp.IsLeader {
			leaders++
			if mp.EmployeeID != leader || mp.Value != 3 {
				t.Errorf("unexpected leader row: %+v", mp)
			}
		}
	}
	if leaders != 1 {
		t.Errorf("expected exactly one leader row, got %d", leaders)
	}

	// The sum is written back to the team target row.
	if f.targets.targets[tt.ID].CurrentValue != 6 {
		t.Errorf("expected write-back of 6, got %d", f.targets.targets[tt.ID].CurrentValue)
	}
	if f.targets.targets[tt.ID].CompletedAt != nil {
		t.Error("team target below threshold must not be completed")
	}
}

func TestProgress_MemberOwnWindowWins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leader := f.employees.add("Avery", employee.RoleCoordinator)
	member := f.employees.add("Blake", employee.RoleCoordinator)
	v, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader, MemberIDs: []uuid.UUID{member}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.addTeamTarget(v.ID, leader, target.CategoryFollowUpPatients, 10)

	// The member also has a personal target over a narrower window.
	now := time.Now().UTC()
	personal := &target.Target{
		ID: uuid.New(), AssignedToID: member, Type: target.TypeWeekly,
		Category: target.CategoryFollowUpPatients, TargetValue: 3,
		StartDate: now.AddDate(0, 0, -3), EndDate: now.AddDate(0, 0, 3), IsActive: true,
	}
	f.targets.targets[personal.ID] = personal

	if _, err := f.svc.Progress(ctx, v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var memberCall *ledgerCall
	for i := range f.ledger.calls {
		if f.ledger.calls[i].employeeID == member {
			memberCall = &f.ledger.calls[i]
		}
	}
	if memberCall == nil {
		t.Fatal("member was never computed")
	}
	wantStart, _ := personal.Window().Bounds()
	if !memberCall.start.Equal(wantStart) {
		t.Errorf("expected member measured over own window starting %s, got %s", wantStart, memberCall.start)
	}
}

func TestProgress_CompletionStampsTeamTarget(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leader := f.employees.add("Avery", employee.RoleCoordinator)
	v, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tt := f.addTeamTarget(v.ID, leader, target.CategoryFollowUpPatients, 2)
	f.ledger.set(leader, commission.TypeFollowUp, 5)

	if _, err := f.svc.Progress(ctx, v.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.targets.targets[tt.ID].CompletedAt == nil {
		t.Error("expected team target completion stamp")
	}
}

func TestLeaderboard_RanksByCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	leaderA := f.employees.add("Avery", employee.RoleCoordinator)
	leaderB := f.employees.add("Blake", employee.RoleCoordinator)

	teamA, err := f.svc.Create(ctx, CreateInput{Name: "North", LeaderID: leaderA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	teamB, err := f.svc.Create(ctx, CreateInput{Name: "South", LeaderID: leaderB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.addTeamTarget(teamA.ID, leaderA, target.CategoryFollowUpPatients, 10)
	f.addTeamTarget(teamB.ID, leaderB, target.CategoryFollowUpPatients, 10)
	f.ledger.set(leaderA, commission.TypeFollowUp, 2)
	f.ledger.set(leaderB, commission.TypeFollowUp, 8)

	entries, err := f.svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].TeamName != "South" || entries[0].CompletionPct != 80 {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].LeaderName != "South Blake" {
		t.Errorf("expected leader display name South Blake, got %s", entries[0].LeaderName)
	}
	if entries[1].TeamName != "North" || entries[1].CompletionPct != 20 {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}
