package domain

import "testing"

func TestStudentPatchApply(t *testing.T) {
	bus := "B-101"
	s := Student{FirstName: "Ana", LastName: "Lopez", BusID: &bus, Guardian: Guardian{Name: "Maria", Code: "KEEP"}}

	first := "Anna"
	StudentPatch{FirstName: &first, Guardian: &Guardian{Name: "Jose"}}.Apply(&s)
	if s.FirstName != "Anna" || s.LastName != "Lopez" {
		t.Fatalf("unexpected names %q %q", s.FirstName, s.LastName)
	}
	if s.Guardian.Name != "Jose" || s.Guardian.Code != "KEEP" {
		t.Fatalf("guardian code should survive patch: %+v", s.Guardian)
	}

	other := "B-102"
	StudentPatch{BusID: &other, ClearBus: true}.Apply(&s)
	if s.BusID != nil {
		t.Fatalf("ClearBus should win over BusID")
	}
	StudentPatch{BusID: &other}.Apply(&s)
	other = "B-999"
	if s.BusID == nil || *s.BusID != "B-102" {
		t.Fatalf("bus id should be copied, got %v", s.BusID)
	}
}

func TestBusPatchApply(t *testing.T) {
	b := Bus{Capacity: 40, Status: BusStatusActive}
	schools := []School{SchoolHamilton}
	status := BusStatusInactive
	BusPatch{Route: &Route{Name: "North", Schools: schools}, Status: &status}.Apply(&b)
	schools[0] = SchoolVanHolten
	if b.Route.Schools[0] != SchoolHamilton {
		t.Fatalf("route schools should be copied")
	}
	if b.Capacity != 40 || b.Status != BusStatusInactive {
		t.Fatalf("unexpected bus %+v", b)
	}
}

func TestIncidentPatchApply(t *testing.T) {
	i := Incident{Type: IncidentTraffic, Description: "jam", EstimatedDelay: 10, Status: IncidentStatusActive}
	delay := 25
	loc := "Bridge"
	IncidentPatch{EstimatedDelay: &delay, Location: &loc, AffectedBuses: []string{"B-101"}}.Apply(&i)
	if i.EstimatedDelay != 25 || i.Description != "jam" || *i.Location != "Bridge" {
		t.Fatalf("unexpected incident %+v", i)
	}
	if len(i.AffectedBuses) != 1 || i.Status != IncidentStatusActive {
		t.Fatalf("unexpected incident %+v", i)
	}
}
