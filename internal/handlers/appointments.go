package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"carepulse-server/internal/lifecycle"
	"carepulse-server/internal/middleware"
	"carepulse-server/internal/models"
	"carepulse-server/internal/services"
	"carepulse-server/internal/utils"
)

// AppointmentService is what the appointment handlers need from the form controller.
type AppointmentService interface {
	Submit(ctx context.Context, sub services.Submission) (*services.Outcome, error)
	Get(ctx context.Context, id string) (*models.Appointment, error)
	SuccessView(ctx context.Context, id, timeZone string) (*services.SuccessView, error)
	RecentList(ctx context.Context) (*services.AppointmentList, error)
}

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Appointments AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{Appointments: appointments}
}

// AppointmentFormRequest is the body of every appointment form. Which
// fields are read depends on the action.
type AppointmentFormRequest struct {
	PrimaryPhysician   *string `json:"primaryPhysician" binding:"omitempty,max=100"`
	Schedule           *string `json:"schedule"`
	Reason             *string `json:"reason" binding:"omitempty,max=2000"`
	Note               *string `json:"note" binding:"omitempty,max=2000"`
	CancellationReason *string `json:"cancellationReason" binding:"omitempty,max=2000"`
	Status             string  `json:"status"`
	TimeZone           string  `json:"timeZone" binding:"omitempty,max=64"`
}

func (r AppointmentFormRequest) formValues() services.FormValues {
	return services.FormValues{
		PrimaryPhysician:   r.PrimaryPhysician,
		Schedule:           r.Schedule,
		TimeZone:           r.TimeZone,
		Reason:             r.Reason,
		Note:               r.Note,
		CancellationReason: r.CancellationReason,
		Status:             r.Status,
	}
}

// CreateAppointment handles the new appointment form of a patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req AppointmentFormRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	outcome, err := h.Appointments.Submit(c.Request.Context(), services.Submission{
		Mode:   lifecycle.ActionCreate,
		UserID: c.Param("userId"),
		Form:   req.formValues(),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment requested successfully", outcome)
}

// ScheduleAppointment handles the admin schedule modal.
func (h *AppointmentHandler) ScheduleAppointment(c *gin.Context) {
	h.submitExisting(c, lifecycle.ActionSchedule, "Appointment scheduled successfully")
}

// CancelAppointment handles the cancellation modal.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	h.submitExisting(c, lifecycle.ActionCancel, "Appointment cancelled successfully")
}

// UpdateAppointment handles a generic edit of an appointment.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	h.submitExisting(c, lifecycle.ActionUpdate, "Appointment updated successfully")
}

func (h *AppointmentHandler) submitExisting(c *gin.Context, action lifecycle.Action, message string) {
	var req AppointmentFormRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	id := c.Param("id")
	appointment, ok := h.authorizedAppointment(c, id)
	if !ok {
		return
	}

	actorID, _ := middleware.GetUserIDFromContext(c)
	outcome, err := h.Appointments.Submit(c.Request.Context(), services.Submission{
		Mode:          action,
		UserID:        actorID,
		AppointmentID: id,
		Current:       appointment,
		Form:          req.formValues(),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, message, outcome)
}

// GetAppointmentByID returns one appointment to its owner or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointment, ok := h.authorizedAppointment(c, c.Param("id"))
	if !ok {
		return
	}
	utils.Success(c, "Appointment retrieved successfully", appointment)
}

// GetAppointmentSuccess returns the confirmation view rendered in ?tz=.
func (h *AppointmentHandler) GetAppointmentSuccess(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.authorizedAppointment(c, id); !ok {
		return
	}
	view, err := h.Appointments.SuccessView(c.Request.Context(), id, c.Query("tz"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment retrieved successfully", view)
}

// GetRecentAppointments returns the admin list with status counts.
func (h *AppointmentHandler) GetRecentAppointments(c *gin.Context) {
	list, err := h.Appointments.RecentList(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments retrieved successfully", list)
}

// authorizedAppointment loads the appointment and checks that the caller may
// act on it. It writes the error response itself when it returns false.
func (h *AppointmentHandler) authorizedAppointment(c *gin.Context, id string) (*models.Appointment, bool) {
	appointment, err := h.Appointments.Get(c.Request.Context(), id)
	if err != nil {
		utils.RespondError(c, err)
		return nil, false
	}
	if !middleware.CanActFor(c, appointment.UserID) {
		utils.Forbidden(c, "You do not have permission to access this appointment.")
		return nil, false
	}
	return appointment, true
}
