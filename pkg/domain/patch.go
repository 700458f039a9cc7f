package domain

import "time"

// StudentPatch carries a partial student update. Nil fields are left untouched.
// ClearBus unassigns the student's bus and takes precedence over BusID.
type StudentPatch struct {
	FirstName *string   `json:"firstName,omitempty"`
	LastName  *string   `json:"lastName,omitempty"`
	Grade     *string   `json:"grade,omitempty"`
	School    *School   `json:"school,omitempty"`
	BusID     *string   `json:"busId,omitempty"`
	ClearBus  bool      `json:"clearBus,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Guardian  *Guardian `json:"guardian,omitempty"`
}

// Apply merges the set fields into s.
func (p StudentPatch) Apply(s *Student) {
	setString(&s.FirstName, p.FirstName)
	setString(&s.LastName, p.LastName)
	setString(&s.Grade, p.Grade)
	setString(&s.Address, p.Address)
	if p.School != nil {
		s.School = *p.School
	}
	switch {
	case p.ClearBus:
		s.BusID = nil
	case p.BusID != nil:
		busID := *p.BusID
		s.BusID = &busID
	}
	if p.Guardian != nil {
		code := s.Guardian.Code
		s.Guardian = *p.Guardian
		if s.Guardian.Code == "" {
			s.Guardian.Code = code
		}
	}
}

// BusPatch carries a partial bus update.
type BusPatch struct {
	Capacity *int       `json:"capacity,omitempty"`
	Driver   *Driver    `json:"driver,omitempty"`
	Route    *Route     `json:"route,omitempty"`
	Status   *BusStatus `json:"status,omitempty"`
}

// Apply merges the set fields into b.
func (p BusPatch) Apply(b *Bus) {
	if p.Capacity != nil {
		b.Capacity = *p.Capacity
	}
	if p.Driver != nil {
		b.Driver = *p.Driver
	}
	if p.Route != nil {
		b.Route = Route{
			Name:        p.Route.Name,
			Description: p.Route.Description,
			Schools:     append([]School(nil), p.Route.Schools...),
		}
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
}

// IncidentPatch carries a partial incident update. Status transitions go
// through resolution, not through patches.
type IncidentPatch struct {
	Type           *IncidentType `json:"type,omitempty"`
	Description    *string       `json:"description,omitempty"`
	ReportedAt     *time.Time    `json:"reportedAt,omitempty"`
	EstimatedDelay *int          `json:"estimatedDelay,omitempty"`
	AffectedBuses  []string      `json:"affectedBuses,omitempty"`
	Location       *string       `json:"location,omitempty"`
}

// Apply merges the set fields into i.
func (p IncidentPatch) Apply(i *Incident) {
	if p.Type != nil {
		i.Type = *p.Type
	}
	setString(&i.Description, p.Description)
	if p.ReportedAt != nil {
		i.ReportedAt = *p.ReportedAt
	}
	if p.EstimatedDelay != nil {
		i.EstimatedDelay = *p.EstimatedDelay
	}
	if p.AffectedBuses != nil {
		i.AffectedBuses = append([]string(nil), p.AffectedBuses...)
	}
	if p.Location != nil {
		loc := *p.Location
		i.Location = &loc
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
