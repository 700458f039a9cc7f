// Package domain defines the persisted records, value types, and domain
// events used by voltschool.
package domain

import (
	"fmt"
	"time"
)

// CollectionName identifies one of the remote collections. Each collection is
// stored remotely as a single row holding the whole serialized slice.
type CollectionName string

// Supported collections.
const (
	CollectionStudents  CollectionName = "students"
	CollectionBuses     CollectionName = "buses"
	CollectionIncidents CollectionName = "incidents"
)

// Collections lists every known collection in a stable order.
func Collections() []CollectionName {
	return []CollectionName{CollectionStudents, CollectionBuses, CollectionIncidents}
}

// Valid reports whether the collection name is known.
func (c CollectionName) Valid() bool {
	switch c {
	case CollectionStudents, CollectionBuses, CollectionIncidents:
		return true
	}
	return false
}

// School enumerates the schools served by the district.
type School string

// Known schools.
const (
	SchoolHamilton  School = "Hamilton Primary School"
	SchoolVanHolten School = "Van Holten Primary School"
)

// Valid reports whether the school is one of the known literals.
func (s School) Valid() bool {
	return s == SchoolHamilton || s == SchoolVanHolten
}

// BusStatus enumerates bus operating states.
type BusStatus string

// Canonical bus statuses.
const (
	BusStatusActive       BusStatus = "active"
	BusStatusInactive     BusStatus = "inactive"
	BusStatusDelayed      BusStatus = "delayed"
	BusStatusOutOfService BusStatus = "out-of-service"
)

// Valid reports whether the status is recognised.
func (s BusStatus) Valid() bool {
	switch s {
	case BusStatusActive, BusStatusInactive, BusStatusDelayed, BusStatusOutOfService:
		return true
	}
	return false
}

// IncidentType is the closed set of incident kinds.
type IncidentType string

// Incident kinds.
const (
	IncidentRoadCrash    IncidentType = "road-crash"
	IncidentRoadClosure  IncidentType = "road-closure"
	IncidentBusBreakdown IncidentType = "bus-breakdown"
	IncidentTraffic      IncidentType = "traffic"
	IncidentWeather      IncidentType = "weather"
)

// Valid reports whether the type is one of the five incident kinds.
func (t IncidentType) Valid() bool {
	switch t {
	case IncidentRoadCrash, IncidentRoadClosure, IncidentBusBreakdown, IncidentTraffic, IncidentWeather:
		return true
	}
	return false
}

// IncidentStatus tracks whether an incident still affects service.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusActive   IncidentStatus = "active"
	IncidentStatusResolved IncidentStatus = "resolved"
)

// Guardian is the contact record attached to a student.
type Guardian struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

// Student is a rider enrolled at one of the district schools.
type Student struct {
	ID          string   `json:"id"`
	StudentCode string   `json:"studentCode"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Grade       string   `json:"grade"`
	School      School   `json:"school"`
	BusID       *string  `json:"busId"`
	Address     string   `json:"address"`
	Guardian    Guardian `json:"guardian"`
}

// RecordID returns the student id.
func (s Student) RecordID() string { return s.ID }

// Clone returns a deep copy.
func (s Student) Clone() Student {
	cp := s
	if s.BusID != nil {
		busID := *s.BusID
		cp.BusID = &busID
	}
	return cp
}

// Validate checks enumerated fields.
func (s Student) Validate() error {
	if !s.School.Valid() {
		return fmt.Errorf("student %s: unknown school %q", s.ID, s.School)
	}
	return nil
}

// Driver is the person operating a bus.
type Driver struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Route describes where a bus runs and which schools it serves.
type Route struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Schools     []School `json:"schools"`
}

// Serves reports whether the route stops at the school.
func (r Route) Serves(school School) bool {
	for _, s := range r.Schools {
		if s == school {
			return true
		}
	}
	return false
}

// Bus is a vehicle in the fleet.
type Bus struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Capacity int       `json:"capacity"`
	Driver   Driver    `json:"driver"`
	Route    Route     `json:"route"`
	Status   BusStatus `json:"status"`
}

// RecordID returns the bus id.
func (b Bus) RecordID() string { return b.ID }

// Clone returns a deep copy.
func (b Bus) Clone() Bus {
	cp := b
	if b.Route.Schools != nil {
		cp.Route.Schools = append([]School(nil), b.Route.Schools...)
	}
	return cp
}

// Validate checks enumerated and numeric fields.
func (b Bus) Validate() error {
	if !b.Status.Valid() {
		return fmt.Errorf("bus %s: unknown status %q", b.ID, b.Status)
	}
	if b.Capacity < 0 {
		return fmt.Errorf("bus %s: negative capacity %d", b.ID, b.Capacity)
	}
	for _, s := range b.Route.Schools {
		if !s.Valid() {
			return fmt.Errorf("bus %s: unknown school %q", b.ID, s)
		}
	}
	return nil
}

// Incident is a transit disruption affecting one or more buses.
type Incident struct {
	ID             string         `json:"id"`
	Type           IncidentType   `json:"type"`
	Description    string         `json:"description"`
	ReportedAt     time.Time      `json:"reportedAt"`
	EstimatedDelay int            `json:"estimatedDelay"`
	AffectedBuses  []string       `json:"affectedBuses"`
	Status         IncidentStatus `json:"status"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
	Location       *string        `json:"location,omitempty"`
}

// RecordID returns the incident id.
func (i Incident) RecordID() string { return i.ID }

// Clone returns a deep copy.
func (i Incident) Clone() Incident {
	cp := i
	if i.AffectedBuses != nil {
		cp.AffectedBuses = append([]string(nil), i.AffectedBuses...)
	}
	if i.ResolvedAt != nil {
		at := *i.ResolvedAt
		cp.ResolvedAt = &at
	}
	if i.Location != nil {
		loc := *i.Location
		cp.Location = &loc
	}
	return cp
}

// Affects reports whether the incident lists the bus.
func (i Incident) Affects(busID string) bool {
	for _, id := range i.AffectedBuses {
		if id == busID {
			return true
		}
	}
	return false
}

// Validate checks enumerated and numeric fields.
func (i Incident) Validate() error {
	if !i.Type.Valid() {
		return fmt.Errorf("incident %s: unknown type %q", i.ID, i.Type)
	}
	if i.Status != IncidentStatusActive && i.Status != IncidentStatusResolved {
		return fmt.Errorf("incident %s: unknown status %q", i.ID, i.Status)
	}
	if i.EstimatedDelay < 0 {
		return fmt.Errorf("incident %s: negative estimated delay %d", i.ID, i.EstimatedDelay)
	}
	return nil
}

// reportedAtLayout mirrors the en-US long date and short time rendering used on
// incident boards.
const reportedAtLayout = "January 2, 2006 at 3:04 PM"

// FormatReportedAt renders a timestamp for display in the given location.
// A nil location renders in UTC.
func FormatReportedAt(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(reportedAtLayout)
}
