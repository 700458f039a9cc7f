package core

import (
	"context"
	"testing"
	"time"
	"unicode"

	"voltschool/pkg/domain"
)

func TestStudentAddAssignsIDAndCode(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	students := NewStudentStore(deps)
	students.Load(ctx)

	ana, err := students.Add(ctx, sampleStudent("Ana"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ana.ID != "S1001" {
		t.Fatalf("expected S1001, got %s", ana.ID)
	}
	if len(ana.StudentCode) != 6 {
		t.Fatalf("expected 6 char code, got %q", ana.StudentCode)
	}
	for _, r := range ana.StudentCode {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			t.Fatalf("code %q is not alphanumeric", ana.StudentCode)
		}
	}
	if len(ana.Guardian.Code) != 6 {
		t.Fatalf("expected generated guardian code, got %q", ana.Guardian.Code)
	}
	if students.Len() != 1 {
		t.Fatalf("expected one student, got %d", students.Len())
	}
}

func TestStudentAddKeepsGuardianCode(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	students := NewStudentStore(deps)
	students.Load(ctx)

	in := sampleStudent("Ana")
	in.Guardian.Code = "GUARD1"
	st, err := students.Add(ctx, in)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if st.Guardian.Code != "GUARD1" {
		t.Fatalf("guardian code replaced: %q", st.Guardian.Code)
	}
	patched, err := students.Update(ctx, st.ID, domain.StudentPatch{Guardian: &domain.Guardian{Name: "New Name"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if patched.Guardian.Code != "GUARD1" || patched.Guardian.Name != "New Name" {
		t.Fatalf("unexpected guardian %+v", patched.Guardian)
	}
}

func TestStudentIDsAreNotReusedAfterRemoval(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	students := NewStudentStore(deps)
	students.Load(ctx)

	first, _ := students.Add(ctx, sampleStudent("Ana"))
	second, _ := students.Add(ctx, sampleStudent("Ben"))
	if _, err := students.Remove(ctx, first.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	third, err := students.Add(ctx, sampleStudent("Cy"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if third.ID == first.ID || third.ID == second.ID {
		t.Fatalf("id reused: %s", third.ID)
	}
	if third.ID != "S1003" {
		t.Fatalf("expected S1003, got %s", third.ID)
	}
}

func TestStudentRejectsUnknownSchool(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	students := NewStudentStore(deps)
	students.Load(ctx)

	in := sampleStudent("Ana")
	in.School = "Springfield Elementary"
	if _, err := students.Add(ctx, in); err == nil {
		t.Fatalf("expected validation error")
	}
	st, _ := students.Add(ctx, sampleStudent("Ana"))
	bad := domain.School("nowhere")
	if _, err := students.Update(ctx, st.ID, domain.StudentPatch{School: &bad}); err == nil {
		t.Fatalf("expected validation error on update")
	}
	got, _ := students.Get(st.ID)
	if got.School != domain.SchoolHamilton {
		t.Fatalf("rejected update leaked: %s", got.School)
	}
}

func TestStudentFilters(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	students := NewStudentStore(deps)
	students.Load(ctx)

	a := sampleStudent("Ana")
	a.BusID = strPtr("B-101")
	b := sampleStudent("Ben")
	b.School = domain.SchoolVanHolten
	b.BusID = strPtr("B-102")
	for _, st := range []domain.Student{a, b, sampleStudent("Cy")} {
		if _, err := students.Add(ctx, st); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if got := students.ByBus("B-101"); len(got) != 1 || got[0].FirstName != "Ana" {
		t.Fatalf("by bus: %+v", got)
	}
	if got := students.BySchool(domain.SchoolHamilton); len(got) != 2 {
		t.Fatalf("by school: %d", len(got))
	}
	cleared, err := students.Update(ctx, "S1001", domain.StudentPatch{ClearBus: true})
	if err != nil || cleared.BusID != nil {
		t.Fatalf("clear bus: %+v %v", cleared, err)
	}
}

func TestBusAddSequentialIDs(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	buses := NewBusStore(deps)
	buses.Load(ctx)

	first, err := buses.Add(ctx, sampleBus("Sam"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := buses.Add(ctx, sampleBus("Kim"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID != "B-101" || second.ID != "B-102" {
		t.Fatalf("expected B-101, B-102 got %s, %s", first.ID, second.ID)
	}
	if first.Number != "101" || second.Number != "102" {
		t.Fatalf("unexpected numbers %s %s", first.Number, second.Number)
	}
	if first.Status != domain.BusStatusActive {
		t.Fatalf("expected default active status, got %s", first.Status)
	}
}

func TestBusSetStatusWritesOnce(t *testing.T) {
	ctx := context.Background()
	deps, backend := newMemoryDeps(t)
	buses := NewBusStore(deps)
	buses.Load(ctx)
	for _, d := range []string{"Sam", "Kim", "Lee"} {
		if _, err := buses.Add(ctx, sampleBus(d)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	before := countOps(backend.Ops(), "upsert buses")

	updated, err := buses.SetStatus(ctx, []string{"B-101", "B-103", "B-999"}, domain.BusStatusDelayed)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated, got %v", updated)
	}
	if got := countOps(backend.Ops(), "upsert buses") - before; got != 1 {
		t.Fatalf("expected a single write, got %d", got)
	}
	if got := buses.ByStatus(domain.BusStatusDelayed); len(got) != 2 {
		t.Fatalf("expected 2 delayed buses, got %d", len(got))
	}
	if b, _ := buses.Get("B-102"); b.Status != domain.BusStatusActive {
		t.Fatalf("B-102 should be untouched, got %s", b.Status)
	}

	if _, err := buses.SetStatus(ctx, []string{"B-999"}, domain.BusStatusActive); err != nil {
		t.Fatalf("unknown ids: %v", err)
	}
	if got := countOps(backend.Ops(), "upsert buses") - before; got != 1 {
		t.Fatalf("no-op batch wrote remotely")
	}
	if _, err := buses.SetStatus(ctx, []string{"B-101"}, "parked"); err == nil {
		t.Fatalf("expected invalid status error")
	}
}

func TestBusUpdateAndFilters(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	buses := NewBusStore(deps)
	buses.Load(ctx)
	bus, _ := buses.Add(ctx, sampleBus("Sam"))

	capacity := 52
	route := domain.Route{Name: "South", Schools: []domain.School{domain.SchoolVanHolten}}
	updated, err := buses.Update(ctx, bus.ID, domain.BusPatch{Capacity: &capacity, Route: &route})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Capacity != 52 || updated.Driver.Name != "Sam" {
		t.Fatalf("unexpected bus %+v", updated)
	}
	if len(buses.BySchool(domain.SchoolVanHolten)) != 1 || len(buses.BySchool(domain.SchoolHamilton)) != 0 {
		t.Fatalf("school filter mismatch")
	}
	negative := -1
	if _, err := buses.Update(ctx, bus.ID, domain.BusPatch{Capacity: &negative}); err == nil {
		t.Fatalf("expected negative capacity rejection")
	}
	if _, err := buses.UpdateStatus(ctx, bus.ID, domain.BusStatusOutOfService); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if _, err := buses.UpdateStatus(ctx, "B-999", domain.BusStatusActive); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIncidentAddDefaultsAndResolve(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	clock := deps.Clock.(*fakeClock)
	incidents := NewIncidentStore(deps)
	incidents.Load(ctx)

	in, err := incidents.Add(ctx, domain.Incident{Type: domain.IncidentRoadClosure, Description: "Main St closed"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if in.ID != "I-1001" || in.Status != domain.IncidentStatusActive || !in.ReportedAt.Equal(fixedNow) {
		t.Fatalf("unexpected defaults %+v", in)
	}
	if in.AffectedBuses == nil {
		t.Fatalf("affected buses should encode as an empty list")
	}

	clock.advance(90 * time.Minute)
	resolved, err := incidents.Resolve(ctx, in.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.IncidentStatusResolved || resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected resolution %+v", resolved)
	}
	if _, err := incidents.Resolve(ctx, in.ID); err != ErrAlreadyResolved {
		t.Fatalf("expected already resolved, got %v", err)
	}
	if _, err := incidents.Add(ctx, domain.Incident{Type: "meteor"}); err == nil {
		t.Fatalf("expected invalid type rejection")
	}
}

func TestIncidentFilters(t *testing.T) {
	ctx := context.Background()
	deps, _ := newMemoryDeps(t)
	incidents := NewIncidentStore(deps)
	incidents.Load(ctx)

	a, _ := incidents.Add(ctx, domain.Incident{Type: domain.IncidentTraffic, AffectedBuses: []string{"B-101"}})
	if _, err := incidents.Add(ctx, domain.Incident{Type: domain.IncidentTraffic, AffectedBuses: []string{"B-102"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := incidents.Add(ctx, domain.Incident{Type: domain.IncidentWeather, AffectedBuses: []string{"B-101"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := incidents.Resolve(ctx, a.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got := incidents.Active(); len(got) != 2 {
		t.Fatalf("active: %d", len(got))
	}
	if got := incidents.ByBus("B-101"); len(got) != 1 || got[0].Type != domain.IncidentWeather {
		t.Fatalf("by bus should skip resolved: %+v", got)
	}
	if got := incidents.ByType(domain.IncidentTraffic); len(got) != 2 {
		t.Fatalf("by type includes resolved: %d", len(got))
	}
	location := "Main & 3rd"
	delay := 25
	updated, err := incidents.Update(ctx, a.ID, domain.IncidentPatch{Location: &location, EstimatedDelay: &delay})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Location == nil || *updated.Location != location || updated.EstimatedDelay != 25 {
		t.Fatalf("patch not applied %+v", updated)
	}
}
