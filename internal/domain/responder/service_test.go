package responder

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	responders map[uuid.UUID]*Responder
}

func newMockRepo() *mockRepo {
	return &mockRepo{responders: make(map[uuid.UUID]*Responder)}
}

func (m *mockRepo) Create(ctx context.Context, r *Responder) error {
	r.ID = uuid.New()
	m.responders[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Responder, error) {
	r, ok := m.responders[id]
	if !ok {
		return nil, context.Canceled
	}
	return r, nil
}

func (m *mockRepo) Update(ctx context.Context, r *Responder) error {
	m.responders[r.ID] = r
	return nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Responder, int, error) {
	var items []*Responder
	for _, r := range m.responders {
		items = append(items, r)
	}
	return items, len(items), nil
}

func (m *mockRepo) RankedAvailable(ctx context.Context, roles []string, limit int) ([]*Responder, error) {
	roleSet := make(map[string]bool)
	for _, role := range roles {
		roleSet[role] = true
	}
	var items []*Responder
	for _, r := range m.responders {
		if r.Available && roleSet[r.Role] {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ActiveCases < items[j].ActiveCases })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockRepo) AdjustLoad(ctx context.Context, id uuid.UUID, delta int) error {
	if r, ok := m.responders[id]; ok {
		r.ActiveCases += delta
		if r.ActiveCases < 0 {
			r.ActiveCases = 0
		}
	}
	return nil
}

func TestCreateResponder(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())

	res := &Responder{Name: "Dana Ortiz", Role: RoleNurse, Available: true}
	if err := svc.Create(context.Background(), res); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.ID == uuid.Nil {
		t.Error("expected responder ID to be assigned")
	}
}

func TestCreateResponder_InvalidRole(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())

	err := svc.Create(context.Background(), &Responder{Name: "X", Role: "janitor"})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestCreateResponder_NameRequired(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())

	if err := svc.Create(context.Background(), &Responder{Role: RoleNurse}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestSetAvailability(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())

	res := &Responder{Name: "Dana Ortiz", Role: RoleNurse, Available: true}
	if err := svc.Create(context.Background(), res); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.SetAvailability(context.Background(), res.ID, false); err != nil {
		t.Fatalf("SetAvailability failed: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), res.ID)
	if got.Available {
		t.Error("expected responder to be unavailable")
	}
}

func TestRankedAvailable_LeastLoadedFirst(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, zerolog.Nop())

	busy := &Responder{Name: "Busy", Role: RoleOnCallDoctor, Available: true}
	idle := &Responder{Name: "Idle", Role: RoleOnCallDoctor, Available: true}
	off := &Responder{Name: "Off", Role: RoleOnCallDoctor, Available: false}
	for _, r := range []*Responder{busy, idle, off} {
		if err := svc.Create(context.Background(), r); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	repo.AdjustLoad(context.Background(), busy.ID, 3)

	ranked, err := svc.RankedAvailable(context.Background(), []string{RoleOnCallDoctor}, 10)
	if err != nil {
		t.Fatalf("RankedAvailable failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 available responders, got %d", len(ranked))
	}
	if ranked[0].ID != idle.ID {
		t.Error("expected least-loaded responder first")
	}
}

func TestRankedAvailable_RequiresRoles(t *testing.T) {
	svc := NewService(newMockRepo(), zerolog.Nop())

	if _, err := svc.RankedAvailable(context.Background(), nil, 5); err == nil {
		t.Fatal("expected error for empty role list")
	}
}

func TestRolesForLevel(t *testing.T) {
	cases := []struct {
		level int
		want  []string
	}{
		{2, []string{RoleNurse}},
		{3, []string{RoleOnCallDoctor}},
		{4, []string{RoleEmergencyTeam}},
		{5, []string{RoleEmergencyTeam, RoleSupervisor}},
	}
	for _, tc := range cases {
		got := RolesForLevel(tc.level)
		if len(got) != len(tc.want) {
			t.Errorf("level %d: got %v want %v", tc.level, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("level %d: got %v want %v", tc.level, got, tc.want)
			}
		}
	}
}
