package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"carepulse-server/internal/apperr"
	"carepulse-server/internal/models"
)

// GormStore implements every store interface on one gorm connection.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

var (
	_ AppointmentStore = (*GormStore)(nil)
	_ UserStore        = (*GormStore)(nil)
	_ PatientStore     = (*GormStore)(nil)
)

func (s *GormStore) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := s.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("appointment", id)
		}
		return nil, apperr.Persistence("get appointment", err)
	}
	if err := checkAppointment(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	var appointments []models.Appointment
	if err := s.DB.WithContext(ctx).Order("created_at desc").Find(&appointments).Error; err != nil {
		return nil, apperr.Persistence("list appointments", err)
	}
	for i := range appointments {
		if err := checkAppointment(&appointments[i]); err != nil {
			return nil, err
		}
	}
	return appointments, nil
}

func (s *GormStore) CreateAppointment(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	record := *a
	record.ID = ""
	record.Status = models.StatusPending
	record.CancellationReason = ""
	record.Schedule = record.Schedule.UTC()
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, apperr.Persistence("create appointment", err)
	}
	if err := checkAppointment(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateAppointment writes the changes and re-reads the row in the same
// transaction, so the caller sees the status actually stored.
func (s *GormStore) UpdateAppointment(ctx context.Context, id string, changes models.AppointmentChanges) (*models.Appointment, error) {
	var stored models.Appointment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&stored, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&stored).Updates(changes.Columns()).Error; err != nil {
			return err
		}
		stored = models.Appointment{}
		return tx.First(&stored, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("appointment", id)
		}
		return nil, apperr.Persistence("update appointment", err)
	}
	if err := checkAppointment(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, apperr.Persistence("get user", err)
	}
	if err := checkUser(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", email)
		}
		return nil, apperr.Persistence("find user", err)
	}
	if err := checkUser(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	record := *u
	record.Email = strings.ToLower(record.Email)
	if record.Gender == "" {
		record.Gender = models.GenderOther
	}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, apperr.Persistence("create user", err)
	}
	return &record, nil
}

func (s *GormStore) GetPatientByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	var patients []models.Patient
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&patients).Error; err != nil {
		return nil, apperr.Persistence("get patient", err)
	}
	if len(patients) == 0 {
		return nil, nil
	}
	p := patients[0]
	if err := checkPatient(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) CreatePatient(ctx context.Context, p *models.Patient) (*models.Patient, error) {
	record := *p
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, apperr.Persistence("create patient", err)
	}
	return &record, nil
}

// Rows are checked before they reach the core so partially shaped data
// never flows into the lifecycle.

func checkAppointment(a *models.Appointment) error {
	switch {
	case a.ID == "":
		return apperr.Persistence("read appointment", errors.New("row has no id"))
	case !a.Status.Valid():
		return apperr.Persistence("read appointment", fmt.Errorf("appointment %s has unknown status %q", a.ID, a.Status))
	case a.Schedule.IsZero():
		return apperr.Persistence("read appointment", fmt.Errorf("appointment %s has no schedule", a.ID))
	}
	return nil
}

func checkUser(u *models.User) error {
	if u.ID == "" || u.Email == "" {
		return apperr.Persistence("read user", errors.New("user row is missing id or email"))
	}
	if u.Gender == "" {
		u.Gender = models.GenderOther
	}
	return nil
}

func checkPatient(p *models.Patient) error {
	if p.ID == "" || p.UserID == "" {
		return apperr.Persistence("read patient", errors.New("patient row is missing id or userId"))
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "Unknown"
	}
	return nil
}
