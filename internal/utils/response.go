package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carepulse-server/internal/apperr"
)

// PersistenceMessage is shown to users when a write could not be completed.
const PersistenceMessage = "Unable to update the appointment. Please try again later."

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Status:  http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Status:  http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	c.JSON(statusCode, ResponseData{
		Status:  statusCode,
		Message: "An error occurred",
		Error:   errorMessage,
	})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

// Forbidden sends a 403 Forbidden error response.
func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

// NotFound sends a 404 Not Found error response.
func NotFound(c *gin.Context, errorMessage string) {
	Error(c, http.StatusNotFound, errorMessage)
}

// InternalServerError sends a 500 Internal Server Error response.
func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}

// RespondError maps an application error onto the response envelope.
// Persistence details stay in the logs; the user sees a retry message.
func RespondError(c *gin.Context, err error) {
	var validation *apperr.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ResponseData{
			Status:  http.StatusBadRequest,
			Message: "An error occurred",
			Error:   validation.Message,
			Field:   validation.Field,
		})
	case apperr.IsNotFound(err):
		NotFound(c, err.Error())
	case errors.Is(err, apperr.ErrSubmissionInProgress):
		Error(c, http.StatusConflict, err.Error())
	case apperr.IsPersistence(err):
		Error(c, http.StatusBadGateway, PersistenceMessage)
	case apperr.IsConfiguration(err):
		InternalServerError(c, "Service is not configured for this operation")
	default:
		InternalServerError(c, "Internal server error")
	}
}
