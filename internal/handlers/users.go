package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carepulse-server/internal/apperr"
	"carepulse-server/internal/models"
	"carepulse-server/internal/services"
	"carepulse-server/internal/storage"
	"carepulse-server/internal/utils"
)

// PatientService is what the user and patient handlers need.
type PatientService interface {
	CreateUser(ctx context.Context, in services.NewUser) (*models.User, bool, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetPatient(ctx context.Context, userID string) (*models.Patient, error)
	RegisterPatient(ctx context.Context, in services.Registration) (*services.RegistrationResult, error)
	DocumentURL(ctx context.Context, userID string) (string, error)
}

// UserHandler handles onboarding, identity reads and patient registration.
type UserHandler struct {
	Patients PatientService
	Tokens   utils.TokenConfig
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(patients PatientService, tokens utils.TokenConfig) *UserHandler {
	return &UserHandler{Patients: patients, Tokens: tokens}
}

// CreateUserRequest represents the onboarding form.
type CreateUserRequest struct {
	Name   string `json:"name" binding:"required,min=2,max=50"`
	Email  string `json:"email" binding:"required,email"`
	Phone  string `json:"phone" binding:"required,max=32"`
	Gender string `json:"gender" binding:"omitempty,oneof=male female other"`
}

// SessionResponse is returned when a token is issued.
type SessionResponse struct {
	User      *models.User `json:"user,omitempty"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// CreateUser onboards a user, or returns the existing user for the email.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, created, err := h.Patients.CreateUser(c.Request.Context(), services.NewUser{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Gender: models.Gender(req.Gender),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	token, expiresAt, err := utils.GenerateAccessToken(user.ID, models.RolePatient, h.Tokens)
	if err != nil {
		utils.InternalServerError(c, "Failed to issue token")
		return
	}
	resp := SessionResponse{User: user, Token: token, ExpiresAt: expiresAt}
	if created {
		utils.Created(c, "User created successfully", resp)
		return
	}
	utils.Success(c, "User already exists", resp)
}

// GetUserByID returns the identity record of a user.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.Patients.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user)
}

// GetPatient returns the patient profile of a user.
func (h *UserHandler) GetPatient(c *gin.Context) {
	patient, err := h.Patients.GetPatient(c.Request.Context(), c.Param("userId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if patient == nil {
		utils.NotFound(c, "Patient not registered")
		return
	}
	utils.Success(c, "Patient fetched successfully", patient)
}

// GetPatientDocument redirects to a freshly signed URL of the patient's
// identification document.
func (h *UserHandler) GetPatientDocument(c *gin.Context) {
	url, err := h.Patients.DocumentURL(c.Request.Context(), c.Param("userId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// RegisterPatientRequest is the multipart registration form.
type RegisterPatientRequest struct {
	Name  string `form:"name" binding:"omitempty,min=2,max=50"`
	Age   *int   `form:"age" binding:"omitempty,min=0,max=150"`
	Email string `form:"email" binding:"omitempty,email"`
	Phone string `form:"phone" binding:"omitempty,max=32"`
}

// RegisterPatient creates the patient profile, storing an optional
// identification document sent as the identificationDocument file part.
func (h *UserHandler) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if !utils.BindFormAndValidate(c, &req) {
		return
	}

	upload, err := readUpload(c, "identificationDocument")
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	result, err := h.Patients.RegisterPatient(c.Request.Context(), services.Registration{
		UserID:   c.Param("userId"),
		Name:     req.Name,
		Age:      req.Age,
		Email:    req.Email,
		Phone:    req.Phone,
		Document: upload,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if result.AlreadyRegistered {
		utils.Success(c, "Patient already registered", result)
		return
	}
	utils.Created(c, "Patient registered successfully", result)
}

func readUpload(c *gin.Context, field string) (*services.Upload, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation("identificationDocument", "Invalid identification document upload")
	}
	if header.Size > storage.MaxDocumentSize {
		return nil, apperr.Validation("identificationDocument", "File exceeds the 10 MB limit")
	}

	f, err := header.Open()
	if err != nil {
		return nil, apperr.Validation("identificationDocument", "Unable to read identification document")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxDocumentSize+1))
	if err != nil {
		return nil, apperr.Validation("identificationDocument", "Unable to read identification document")
	}
	return &services.Upload{Filename: header.Filename, Data: data}, nil
}
