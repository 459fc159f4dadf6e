// Package model defines the core domain types for the campus events system.
package model

import (
	"strings"
	"time"
)

// EventKind tags the source family an event was normalized from.
type EventKind string

const (
	KindWorkshop EventKind = "Workshop"
	KindTrip     EventKind = "Trip"
	KindBazaar   EventKind = "Bazaar"
	KindEvent    EventKind = "Event"
)

// Vendor carries the vendor metadata attached to a bazaar event.
// It is used for display and free-text search only.
type Vendor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Booth carries the booth metadata attached to a bazaar event.
type Booth struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Vendor string `json:"vendor,omitempty"`
}

// NormalizedEvent is the unified representation of any bookable campus
// activity, regardless of which backend collection it came from. It is
// produced fresh on every aggregation pass and never persisted.
type NormalizedEvent struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"displayName"`
	Description          string    `json:"description,omitempty"`
	Kind                 EventKind `json:"kind"`
	Category             string    `json:"category"`
	Date                 time.Time `json:"date"`
	EndDate              time.Time `json:"endDate,omitzero"`
	RegistrationDeadline time.Time `json:"registrationDeadline,omitzero"`
	Location             string    `json:"location,omitempty"`
	Fee                  float64   `json:"fee"`
	CapacityMax          int       `json:"capacityMax"`
	CapacityCurrent      int       `json:"capacityCurrent"`
	ProfessorNames       []string  `json:"professorNames,omitempty"`
	AllowedRoles         []string  `json:"allowedRoles,omitempty"`
	Vendors              []Vendor  `json:"vendors,omitempty"`
	Booths               []Booth   `json:"booths,omitempty"`
}

// Horizon returns the timestamp used to classify the event as upcoming or
// past: the end date when the source supplied one, otherwise the start date.
func (e *NormalizedEvent) Horizon() time.Time {
	if !e.EndDate.IsZero() {
		return e.EndDate
	}
	return e.Date
}

// Remaining returns the number of available seats.
func (e *NormalizedEvent) Remaining() int {
	return e.CapacityMax - e.CapacityCurrent
}

// IsFull returns true when no seats remain. Events without a capacity limit
// are never full.
func (e *NormalizedEvent) IsFull() bool {
	return e.CapacityMax > 0 && e.CapacityCurrent >= e.CapacityMax
}

// RoleAllowed reports whether a user with the given role may see this event.
// An empty AllowedRoles set means unrestricted. Comparison is trimmed and
// case-insensitive; an unknown role never passes a restricted event.
func (e *NormalizedEvent) RoleAllowed(role string) bool {
	if len(e.AllowedRoles) == 0 {
		return true
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, allowed := range e.AllowedRoles {
		if strings.ToLower(strings.TrimSpace(allowed)) == role {
			return true
		}
	}
	return false
}

// User identifies the authenticated user on whose behalf the cart and
// checkout operate. Session issuance is external; this is just the identity
// it hands us.
type User struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   string  `json:"role"`
	Wallet float64 `json:"wallet"`
}

// UserType is the fixed role vocabulary the registrations backend accepts.
const (
	UserTypeStudent   = "Student"
	UserTypeStaff     = "Staff"
	UserTypeTA        = "TA"
	UserTypeProfessor = "Professor"
)

// NormalizeUserType maps a free-form role string onto the fixed vocabulary
// the batch registration endpoint requires. Unrecognized roles fall back to
// Student, matching how the backend treats unknown registrants.
func NormalizeUserType(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "ta", "teaching assistant", "teaching_assistant":
		return UserTypeTA
	case "professor", "prof":
		return UserTypeProfessor
	case "staff", "admin", "events office", "events_office", "vendor":
		return UserTypeStaff
	default:
		return UserTypeStudent
	}
}

// ErrorResponse is the standard JSON error envelope returned by the façade
// and expected from the campus backend.
type ErrorResponse struct {
	Error string `json:"error"`
}
