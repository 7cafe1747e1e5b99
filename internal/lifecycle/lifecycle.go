// Package lifecycle computes appointment status transitions. It performs no
// I/O: callers persist the returned changes themselves.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"carepulse-server/internal/apperr"
	"carepulse-server/internal/models"
)

// Action is the kind of change a form submits.
type Action string

const (
	ActionCreate   Action = "create"
	ActionSchedule Action = "schedule"
	ActionCancel   Action = "cancel"
	ActionUpdate   Action = "update"
)

// ParseAction maps a raw mode string to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionCreate, ActionSchedule, ActionCancel, ActionUpdate:
		return a, nil
	}
	return "", apperr.Validation("type", fmt.Sprintf("unknown appointment action %q", s))
}

// Values are the user supplied inputs already mapped to typed shapes.
// A nil pointer means the field was not supplied.
type Values struct {
	UserID             string
	PatientID          string
	PrimaryPhysician   *string
	Schedule           *time.Time
	Reason             *string
	Note               *string
	CancellationReason *string
	// Status is accepted so callers can pass raw form data through, but it is
	// never trusted: every action decides the status itself.
	Status models.AppointmentStatus
}

// Policy holds the product decisions that are configurable.
type Policy struct {
	// UpdateConfirms makes a generic update move the appointment to
	// scheduled. When false the current status is kept.
	UpdateConfirms bool
}

// DefaultPolicy is the documented contract: an edit confirms the appointment.
var DefaultPolicy = Policy{UpdateConfirms: true}

// Result is the intended next state.
type Result struct {
	Status  models.AppointmentStatus
	Changes models.AppointmentChanges
}

// Machine applies a Policy to transitions.
type Machine struct {
	policy Policy
}

// New returns a Machine using policy.
func New(policy Policy) *Machine {
	return &Machine{policy: policy}
}

// Transition validates values for action against current and returns the
// next status with the sanitized changes. current is nil for create and is
// never modified.
func (m *Machine) Transition(current *models.Appointment, action Action, values Values) (Result, error) {
	switch action {
	case ActionCreate:
		return m.create(values)
	case ActionSchedule:
		return m.schedule(current, values)
	case ActionCancel:
		return m.cancel(current, values)
	case ActionUpdate:
		return m.update(current, values)
	}
	return Result{}, apperr.Validation("type", fmt.Sprintf("unknown appointment action %q", action))
}

// Transition runs action under DefaultPolicy.
func Transition(current *models.Appointment, action Action, values Values) (Result, error) {
	return New(DefaultPolicy).Transition(current, action, values)
}

func (m *Machine) create(v Values) (Result, error) {
	if strings.TrimSpace(v.UserID) == "" {
		return Result{}, apperr.Validation("userId", "User is required")
	}
	physician, err := requirePhysician(v.PrimaryPhysician)
	if err != nil {
		return Result{}, err
	}
	schedule, err := requireSchedule(v.Schedule)
	if err != nil {
		return Result{}, err
	}

	userID := strings.TrimSpace(v.UserID)
	patientID := strings.TrimSpace(v.PatientID)
	reason := trimmedOrEmpty(v.Reason)
	note := trimmedOrEmpty(v.Note)
	return Result{
		Status: models.StatusPending,
		Changes: models.AppointmentChanges{
			Status:           models.StatusPending,
			UserID:           &userID,
			PatientID:        &patientID,
			PrimaryPhysician: &physician,
			Schedule:         &schedule,
			Reason:           &reason,
			Note:             &note,
		},
	}, nil
}

func (m *Machine) schedule(current *models.Appointment, v Values) (Result, error) {
	if err := requireExisting(current); err != nil {
		return Result{}, err
	}

	physicianIn := v.PrimaryPhysician
	if physicianIn == nil {
		physicianIn = &current.PrimaryPhysician
	}
	physician, err := requirePhysician(physicianIn)
	if err != nil {
		return Result{}, err
	}

	scheduleIn := v.Schedule
	if scheduleIn == nil {
		scheduleIn = &current.Schedule
	}
	schedule, err := requireSchedule(scheduleIn)
	if err != nil {
		return Result{}, err
	}

	cleared := ""
	return Result{
		Status: models.StatusScheduled,
		Changes: models.AppointmentChanges{
			Status:             models.StatusScheduled,
			PrimaryPhysician:   &physician,
			Schedule:           &schedule,
			CancellationReason: &cleared,
		},
	}, nil
}

func (m *Machine) cancel(current *models.Appointment, v Values) (Result, error) {
	if err := requireExisting(current); err != nil {
		return Result{}, err
	}
	reason := trimmedOrEmpty(v.CancellationReason)
	if reason == "" {
		return Result{}, apperr.Validation("cancellationReason", "Cancellation reason is required")
	}
	return Result{
		Status: models.StatusCancelled,
		Changes: models.AppointmentChanges{
			Status:             models.StatusCancelled,
			CancellationReason: &reason,
		},
	}, nil
}

func (m *Machine) update(current *models.Appointment, v Values) (Result, error) {
	if err := requireExisting(current); err != nil {
		return Result{}, err
	}
	schedule, err := requireSchedule(v.Schedule)
	if err != nil {
		return Result{}, err
	}

	status := current.Status
	if m.policy.UpdateConfirms {
		status = models.StatusScheduled
	}
	changes := models.AppointmentChanges{
		Status:   status,
		Schedule: &schedule,
	}
	if v.PrimaryPhysician != nil {
		physician, err := requirePhysician(v.PrimaryPhysician)
		if err != nil {
			return Result{}, err
		}
		changes.PrimaryPhysician = &physician
	}
	if v.Reason != nil {
		reason := strings.TrimSpace(*v.Reason)
		changes.Reason = &reason
	}
	if v.Note != nil {
		note := strings.TrimSpace(*v.Note)
		changes.Note = &note
	}
	// Leaving cancelled clears the reason; staying cancelled keeps it.
	if current.Status == models.StatusCancelled && status != models.StatusCancelled {
		cleared := ""
		changes.CancellationReason = &cleared
	}
	return Result{Status: status, Changes: changes}, nil
}

func requireExisting(current *models.Appointment) error {
	if current == nil || strings.TrimSpace(current.ID) == "" {
		return apperr.Validation("appointmentId", "An existing appointment is required")
	}
	return nil
}

func requirePhysician(p *string) (string, error) {
	name := trimmedOrEmpty(p)
	if name == "" {
		return "", apperr.Validation("primaryPhysician", "Doctor is required")
	}
	return name, nil
}

func requireSchedule(t *time.Time) (time.Time, error) {
	if t == nil || t.IsZero() {
		return time.Time{}, apperr.Validation("schedule", "Invalid date format")
	}
	return t.UTC(), nil
}

func trimmedOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
