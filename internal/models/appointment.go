package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCancelled:
		return true
	}
	return false
}

// Appointment links a patient, a doctor and a time, tracked through
// pending, scheduled and cancelled.
type Appointment struct {
	BaseModel
	UserID             string            `gorm:"size:36;index;not null" json:"userId"`
	PatientID          string            `gorm:"size:36;index" json:"patient"`
	PrimaryPhysician   string            `gorm:"size:100" json:"primaryPhysician"`
	Schedule           time.Time         `gorm:"index" json:"schedule"`
	Status             AppointmentStatus `gorm:"size:20;default:'pending';index" json:"status"`
	Reason             string            `gorm:"type:text" json:"reason"`
	Note               string            `gorm:"type:text" json:"note"`
	CancellationReason string            `gorm:"type:text" json:"cancellationReason,omitempty"`
}

// AppointmentChanges is the sanitized set of fields a write may touch.
// A nil field is left unchanged.
type AppointmentChanges struct {
	Status             AppointmentStatus
	UserID             *string
	PatientID          *string
	PrimaryPhysician   *string
	Schedule           *time.Time
	Reason             *string
	Note               *string
	CancellationReason *string
}

// Columns returns the changes keyed by column name, for gorm's Updates.
func (c AppointmentChanges) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if c.Status != "" {
		cols["status"] = string(c.Status)
	}
	if c.UserID != nil {
		cols["user_id"] = *c.UserID
	}
	if c.PatientID != nil {
		cols["patient_id"] = *c.PatientID
	}
	if c.PrimaryPhysician != nil {
		cols["primary_physician"] = *c.PrimaryPhysician
	}
	if c.Schedule != nil {
		cols["schedule"] = c.Schedule.UTC()
	}
	if c.Reason != nil {
		cols["reason"] = *c.Reason
	}
	if c.Note != nil {
		cols["note"] = *c.Note
	}
	if c.CancellationReason != nil {
		cols["cancellation_reason"] = *c.CancellationReason
	}
	return cols
}

// ApplyTo returns a copy of a with the changes applied. a is not modified.
func (c AppointmentChanges) ApplyTo(a Appointment) Appointment {
	if c.Status != "" {
		a.Status = c.Status
	}
	if c.UserID != nil {
		a.UserID = *c.UserID
	}
	if c.PatientID != nil {
		a.PatientID = *c.PatientID
	}
	if c.PrimaryPhysician != nil {
		a.PrimaryPhysician = *c.PrimaryPhysician
	}
	if c.Schedule != nil {
		a.Schedule = c.Schedule.UTC()
	}
	if c.Reason != nil {
		a.Reason = *c.Reason
	}
	if c.Note != nil {
		a.Note = *c.Note
	}
	if c.CancellationReason != nil {
		a.CancellationReason = *c.CancellationReason
	}
	return a
}
