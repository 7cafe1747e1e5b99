package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"carepulse-server/internal/apperr"
	"carepulse-server/internal/models"
	"carepulse-server/internal/storage"
	"carepulse-server/internal/store"
)

// NewUser is the onboarding form.
type NewUser struct {
	Name   string
	Email  string
	Phone  string
	Gender models.Gender
}

// Upload is a file received from a form.
type Upload struct {
	Filename string
	Data     []byte
}

// Registration is the patient registration form.
type Registration struct {
	UserID   string
	Name     string
	Age      *int
	Email    string
	Phone    string
	Document *Upload
}

// RegistrationResult carries the stored patient. AlreadyRegistered is set
// when the user had registered before and nothing was written.
type RegistrationResult struct {
	Patient           *models.Patient `json:"patient"`
	AlreadyRegistered bool            `json:"alreadyRegistered"`
}

// PatientService handles onboarding and patient registration.
type PatientService struct {
	users     store.UserStore
	patients  store.PatientStore
	documents storage.DocumentStore
	logger    zerolog.Logger
}

// NewPatientService creates a new PatientService. documents may be nil when
// identification document storage is disabled.
func NewPatientService(users store.UserStore, patients store.PatientStore, documents storage.DocumentStore, logger zerolog.Logger) *PatientService {
	return &PatientService{users: users, patients: patients, documents: documents, logger: logger}
}

// CreateUser returns the user with the given email, creating it if needed.
// The bool reports whether a new user was created.
func (s *PatientService) CreateUser(ctx context.Context, in NewUser) (*models.User, bool, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, false, apperr.Validation("name", "Name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, false, apperr.Validation("email", "Invalid email address")
	}
	email := strings.ToLower(addr.Address)

	if existing, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return existing, false, nil
	} else if !apperr.IsNotFound(err) {
		return nil, false, err
	}

	gender := in.Gender
	switch gender {
	case models.GenderMale, models.GenderFemale, models.GenderOther:
	default:
		gender = models.GenderOther
	}

	created, err := s.users.CreateUser(ctx, &models.User{
		Name:   name,
		Email:  email,
		Phone:  strings.TrimSpace(in.Phone),
		Gender: gender,
	})
	if err != nil {
		// A concurrent onboarding with the same email may have won the insert.
		if existing, findErr := s.users.FindUserByEmail(ctx, email); findErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	s.logger.Info().Str("user_id", created.ID).Msg("user created")
	return created, true, nil
}

func (s *PatientService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetPatient returns the patient registered for userID, or nil when the
// user has not registered yet.
func (s *PatientService) GetPatient(ctx context.Context, userID string) (*models.Patient, error) {
	return s.patients.GetPatientByUserID(ctx, userID)
}

// DocumentURL returns a fresh retrievable URL for the identification
// document of the patient registered for userID.
func (s *PatientService) DocumentURL(ctx context.Context, userID string) (string, error) {
	if s.documents == nil {
		return "", apperr.Configuration("STORAGE_DRIVER", "identification document storage is disabled")
	}
	p, err := s.patients.GetPatientByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if p == nil || p.IdentificationDocumentID == nil || *p.IdentificationDocumentID == "" {
		return "", apperr.NotFound("identification document", userID)
	}
	return s.documents.DocumentURL(ctx, *p.IdentificationDocumentID)
}

// RegisterPatient creates the patient profile for a user. Registering twice
// returns the existing profile and stores no new document.
func (s *PatientService) RegisterPatient(ctx context.Context, in Registration) (*RegistrationResult, error) {
	user, err := s.users.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.patients.GetPatientByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &RegistrationResult{Patient: existing, AlreadyRegistered: true}, nil
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = user.Name
	}
	if name == "" {
		return nil, apperr.Validation("name", "Name is required")
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > 150) {
		return nil, apperr.Validation("age", "Age must be between 0 and 150")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		email = user.Email
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		phone = user.Phone
	}

	patient := &models.Patient{
		UserID: user.ID,
		Name:   name,
		Age:    in.Age,
		Email:  email,
		Phone:  phone,
	}

	if in.Document != nil {
		if s.documents == nil {
			return nil, apperr.Configuration("STORAGE_DRIVER", "identification document storage is disabled")
		}
		file, err := s.documents.StoreIdentificationDocument(ctx, in.Document.Data, in.Document.Filename)
		if err != nil {
			return nil, err
		}
		patient.IdentificationDocumentID = &file.ID
		patient.IdentificationDocumentURL = &file.URL
	}

	created, err := s.patients.CreatePatient(ctx, patient)
	if err != nil {
		if again, findErr := s.patients.GetPatientByUserID(ctx, user.ID); findErr == nil && again != nil {
			return &RegistrationResult{Patient: again, AlreadyRegistered: true}, nil
		}
		if patient.IdentificationDocumentID != nil {
			s.logger.Warn().Str("document_id", *patient.IdentificationDocumentID).Msg("identification document orphaned by failed registration")
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("patient_id", created.ID).Msg("patient registered")
	return &RegistrationResult{Patient: created}, nil
}
