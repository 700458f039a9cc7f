package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a domain event.
type EventKind string

// Domain events raised by incident workflows.
const (
	EventIncidentOpened   EventKind = "incident_opened"
	EventIncidentResolved EventKind = "incident_resolved"
)

// Event records an incident lifecycle transition together with the buses it
// touches. Consumers apply cross-collection effects from it.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	IncidentID string    `json:"incidentId"`
	BusIDs     []string  `json:"busIds"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewIncidentOpened builds an opened event for the incident.
func NewIncidentOpened(incident Incident, at time.Time) Event {
	return newIncidentEvent(EventIncidentOpened, incident, at)
}

// NewIncidentResolved builds a resolved event for the incident.
func NewIncidentResolved(incident Incident, at time.Time) Event {
	return newIncidentEvent(EventIncidentResolved, incident, at)
}

func newIncidentEvent(kind EventKind, incident Incident, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		IncidentID: incident.ID,
		BusIDs:     append([]string(nil), incident.AffectedBuses...),
		OccurredAt: at.UTC(),
	}
}
