// Package store defines the persistence boundary of the scheduling core and
// its gorm implementation.
package store

import (
	"context"

	"carepulse-server/internal/models"
)

type AppointmentStore interface {
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	// ListAppointments returns every appointment, newest first.
	ListAppointments(ctx context.Context) ([]models.Appointment, error)
	// CreateAppointment assigns the id and stores the appointment as pending.
	CreateAppointment(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	// UpdateAppointment applies changes and returns the row as stored.
	UpdateAppointment(ctx context.Context, id string, changes models.AppointmentChanges) (*models.Appointment, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
}

type PatientStore interface {
	// GetPatientByUserID returns nil, nil when the user has not registered.
	GetPatientByUserID(ctx context.Context, userID string) (*models.Patient, error)
	CreatePatient(ctx context.Context, p *models.Patient) (*models.Patient, error)
}
