package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"carepulse-server/internal/apperr"
	"carepulse-server/internal/lifecycle"
	"carepulse-server/internal/middleware"
	"carepulse-server/internal/models"
	"carepulse-server/internal/services"
	"carepulse-server/internal/utils"
)

const testSecret = "test-secret"

var testTokens = utils.TokenConfig{Secret: testSecret, ExpirationMinutes: 5}

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAppointmentService struct {
	appointments map[string]models.Appointment
	submitted    []services.Submission
	submitErr    error
}

func (m *mockAppointmentService) Submit(_ context.Context, sub services.Submission) (*services.Outcome, error) {
	m.submitted = append(m.submitted, sub)
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	a := &models.Appointment{BaseModel: models.BaseModel{ID: sub.AppointmentID}, UserID: sub.UserID}
	if sub.Mode == lifecycle.ActionCreate {
		a.ID = "new-appt"
		a.Status = models.StatusPending
		return &services.Outcome{Appointment: a, RedirectTo: "/patients/" + sub.UserID + "/new-appointment/success?appointmentId=new-appt"}, nil
	}
	return &services.Outcome{Appointment: a, CloseModal: true, Refresh: true}, nil
}

func (m *mockAppointmentService) Get(_ context.Context, id string) (*models.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment", id)
	}
	return &a, nil
}

func (m *mockAppointmentService) SuccessView(ctx context.Context, id, timeZone string) (*services.SuccessView, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &services.SuccessView{Appointment: a, Schedule: utils.FormatDateTime(a.Schedule, timeZone)}, nil
}

func (m *mockAppointmentService) RecentList(_ context.Context) (*services.AppointmentList, error) {
	return &services.AppointmentList{TotalCount: len(m.appointments)}, nil
}

func newAppointmentRouter(svc AppointmentService) *gin.Engine {
	h := NewAppointmentHandler(svc)
	r := gin.New()
	auth := r.Group("/", middleware.AuthMiddleware(testSecret))
	auth.POST("/patients/:userId/appointments", middleware.SelfOrAdmin("userId"), h.CreateAppointment)
	auth.GET("/appointments", middleware.RoleAuthMiddleware(models.RoleAdmin), h.GetRecentAppointments)
	auth.GET("/appointments/:id", h.GetAppointmentByID)
	auth.GET("/appointments/:id/success", h.GetAppointmentSuccess)
	auth.PATCH("/appointments/:id", h.UpdateAppointment)
	auth.PATCH("/appointments/:id/cancel", h.CancelAppointment)
	auth.PATCH("/appointments/:id/schedule", middleware.RoleAuthMiddleware(models.RoleAdmin), h.ScheduleAppointment)
	return r
}

func bearer(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	token, _, err := utils.GenerateAccessToken(userID, role, testTokens)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(r http.Handler, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.ResponseData {
	t.Helper()
	var body utils.ResponseData
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
	return body
}

func seededAppointments() *mockAppointmentService {
	return &mockAppointmentService{appointments: map[string]models.Appointment{
		"appt-1": {BaseModel: models.BaseModel{ID: "appt-1"}, UserID: "user-1", Status: models.StatusPending},
	}}
}

func TestCreateAppointment(t *testing.T) {
	svc := seededAppointments()
	r := newAppointmentRouter(svc)

	w := doJSON(r, http.MethodPost, "/patients/user-1/appointments", bearer(t, "user-1", models.RolePatient), map[string]string{
		"primaryPhysician": "Dr. Green",
		"schedule":         "2030-01-01T10:00:00Z",
		"timeZone":         "Asia/Kolkata",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.submitted))
	}
	sub := svc.submitted[0]
	if sub.Mode != lifecycle.ActionCreate || sub.UserID != "user-1" || *sub.Form.PrimaryPhysician != "Dr. Green" || sub.Form.TimeZone != "Asia/Kolkata" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if !strings.Contains(w.Body.String(), `"redirectTo":"/patients/user-1/new-appointment/success?appointmentId=new-appt"`) {
		t.Errorf("expected redirect in body, got %s", w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/patients/user-2/appointments", bearer(t, "user-1", models.RolePatient), map[string]string{})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another user's form, got %d", w.Code)
	}
}

func TestCancelAppointment_ValidationError(t *testing.T) {
	svc := seededAppointments()
	svc.submitErr = apperr.Validation("cancellationReason", "Cancellation reason is required")
	r := newAppointmentRouter(svc)

	w := doJSON(r, http.MethodPatch, "/appointments/appt-1/cancel", bearer(t, "admin", models.RoleAdmin), map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decode(t, w)
	if body.Field != "cancellationReason" || body.Error != "Cancellation reason is required" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestCancelAppointment_Owner(t *testing.T) {
	svc := seededAppointments()
	r := newAppointmentRouter(svc)

	w := doJSON(r, http.MethodPatch, "/appointments/appt-1/cancel", bearer(t, "user-1", models.RolePatient), map[string]string{
		"cancellationReason": "Patient unavailable",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	sub := svc.submitted[0]
	if sub.Mode != lifecycle.ActionCancel || sub.AppointmentID != "appt-1" || *sub.Form.CancellationReason != "Patient unavailable" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if sub.Current == nil || sub.Current.ID != "appt-1" {
		t.Errorf("expected the authorized appointment to be handed to Submit, got %+v", sub.Current)
	}
	if !strings.Contains(w.Body.String(), `"closeModal":true`) {
		t.Errorf("expected closeModal in body, got %s", w.Body.String())
	}

	w = doJSON(r, http.MethodPatch, "/appointments/appt-1/cancel", bearer(t, "user-2", models.RolePatient), map[string]string{
		"cancellationReason": "x",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner, got %d", w.Code)
	}
	if len(svc.submitted) != 1 {
		t.Error("forbidden request must not reach the form controller")
	}
}

func TestScheduleAppointment_AdminOnly(t *testing.T) {
	svc := seededAppointments()
	r := newAppointmentRouter(svc)

	w := doJSON(r, http.MethodPatch, "/appointments/appt-1/schedule", bearer(t, "user-1", models.RolePatient), map[string]string{})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient, got %d", w.Code)
	}
	w = doJSON(r, http.MethodPatch, "/appointments/appt-1/schedule", bearer(t, "admin", models.RoleAdmin), map[string]string{
		"primaryPhysician": "Dr. Green",
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", w.Code)
	}
}

func TestSubmitErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"persistence": {apperr.Persistence("update appointment", errors.New("timeout")), http.StatusBadGateway},
		"in progress": {apperr.ErrSubmissionInProgress, http.StatusConflict},
	}
	for name, tc := range cases {
		svc := seededAppointments()
		svc.submitErr = tc.err
		r := newAppointmentRouter(svc)
		w := doJSON(r, http.MethodPatch, "/appointments/appt-1", bearer(t, "admin", models.RoleAdmin), map[string]string{
			"schedule": "2030-01-01T10:00:00Z",
		})
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", name, tc.want, w.Code)
		}
	}
}

func TestGetAppointment(t *testing.T) {
	r := newAppointmentRouter(seededAppointments())

	if w := doJSON(r, http.MethodGet, "/appointments/missing", bearer(t, "admin", models.RoleAdmin), nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/appointments/appt-1", bearer(t, "user-1", models.RolePatient), nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 for owner, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/appointments/appt-1/success?tz=UTC", bearer(t, "user-2", models.RolePatient), nil); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-owner, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/appointments", bearer(t, "user-1", models.RolePatient), nil); w.Code != http.StatusForbidden {
		t.Errorf("expected list to be admin only, got %d", w.Code)
	}
}

type mockPatientService struct {
	users        map[string]models.User
	patients     map[string]models.Patient
	registration *services.Registration
}

func (m *mockPatientService) CreateUser(_ context.Context, in services.NewUser) (*models.User, bool, error) {
	for _, u := range m.users {
		if u.Email == in.Email {
			return &u, false, nil
		}
	}
	u := models.User{BaseModel: models.BaseModel{ID: "user-new"}, Name: in.Name, Email: in.Email}
	m.users[u.ID] = u
	return &u, true, nil
}

func (m *mockPatientService) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	return &u, nil
}

func (m *mockPatientService) GetPatient(_ context.Context, userID string) (*models.Patient, error) {
	p, ok := m.patients[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockPatientService) RegisterPatient(_ context.Context, in services.Registration) (*services.RegistrationResult, error) {
	m.registration = &in
	p := models.Patient{BaseModel: models.BaseModel{ID: "p1"}, UserID: in.UserID, Name: in.Name}
	return &services.RegistrationResult{Patient: &p}, nil
}

func (m *mockPatientService) DocumentURL(_ context.Context, userID string) (string, error) {
	p, ok := m.patients[userID]
	if !ok || p.IdentificationDocumentID == nil {
		return "", apperr.NotFound("identification document", userID)
	}
	return "https://files.test/" + *p.IdentificationDocumentID + "?X-Amz-Signature=abc", nil
}

func newUserRouter(svc PatientService) *gin.Engine {
	h := NewUserHandler(svc, testTokens)
	r := gin.New()
	r.POST("/users", h.CreateUser)
	auth := r.Group("/", middleware.AuthMiddleware(testSecret))
	auth.GET("/users/:userId", middleware.SelfOrAdmin("userId"), h.GetUserByID)
	auth.GET("/patients/:userId", middleware.SelfOrAdmin("userId"), h.GetPatient)
	auth.POST("/patients/:userId/register", middleware.SelfOrAdmin("userId"), h.RegisterPatient)
	auth.GET("/patients/:userId/document", middleware.SelfOrAdmin("userId"), h.GetPatientDocument)
	return r
}

func TestCreateUser_IssuesPatientToken(t *testing.T) {
	svc := &mockPatientService{users: map[string]models.User{}}
	r := newUserRouter(svc)

	w := doJSON(r, http.MethodPost, "/users", "", map[string]string{"name": "Jane Roe", "email": "jane@example.com", "phone": "+15550100"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data SessionResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	claims, err := utils.ValidateToken(resp.Data.Token, testSecret)
	if err != nil || claims.UserID != "user-new" || claims.Role != models.RolePatient {
		t.Errorf("unexpected token claims %+v, %v", claims, err)
	}

	w = doJSON(r, http.MethodPost, "/users", "", map[string]string{"name": "Jane Roe", "email": "jane@example.com", "phone": "+15550100"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for returning user, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/users", "", map[string]string{"name": "J", "email": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid form, got %d", w.Code)
	}
}

func TestGetPatient_NotRegistered(t *testing.T) {
	r := newUserRouter(&mockPatientService{users: map[string]models.User{}, patients: map[string]models.Patient{}})
	w := doJSON(r, http.MethodGet, "/patients/user-1", bearer(t, "user-1", models.RolePatient), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetPatientDocument(t *testing.T) {
	docID := "doc-1"
	r := newUserRouter(&mockPatientService{
		users:    map[string]models.User{},
		patients: map[string]models.Patient{"user-1": {UserID: "user-1", IdentificationDocumentID: &docID}},
	})

	w := doJSON(r, http.MethodGet, "/patients/user-1/document", bearer(t, "user-1", models.RolePatient), nil)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "https://files.test/doc-1?X-Amz-Signature=abc" {
		t.Errorf("unexpected redirect %q", loc)
	}

	if w := doJSON(r, http.MethodGet, "/patients/user-2/document", bearer(t, "user-2", models.RolePatient), nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a document, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/patients/user-1/document", bearer(t, "user-2", models.RolePatient), nil); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient, got %d", w.Code)
	}
}

func TestRegisterPatient_Multipart(t *testing.T) {
	svc := &mockPatientService{users: map[string]models.User{}}
	r := newUserRouter(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Jane Roe")
	_ = mw.WriteField("age", "34")
	part, _ := mw.CreateFormFile("identificationDocument", "passport.png")
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/patients/user-1/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, "user-1", models.RolePatient))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	in := svc.registration
	if in == nil || in.UserID != "user-1" || in.Name != "Jane Roe" || in.Age == nil || *in.Age != 34 {
		t.Fatalf("unexpected registration %+v", in)
	}
	if in.Document == nil || in.Document.Filename != "passport.png" || !bytes.HasPrefix(in.Document.Data, []byte("\x89PNG")) {
		t.Errorf("document not forwarded: %+v", in.Document)
	}
}

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash passkey: %v", err)
	}
	h := NewAuthHandler(string(hash), testTokens)
	r := gin.New()
	r.POST("/admin/login", h.AdminLogin)

	if w := doJSON(r, http.MethodPost, "/admin/login", "", map[string]string{"passkey": "654321"}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong passkey, got %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/admin/login", "", map[string]string{"passkey": "12"}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed passkey, got %d", w.Code)
	}

	w := doJSON(r, http.MethodPost, "/admin/login", "", map[string]string{"passkey": "123456"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data SessionResponse `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	claims, err := utils.ValidateToken(resp.Data.Token, testSecret)
	if err != nil || claims.Role != models.RoleAdmin {
		t.Errorf("expected admin token, got %+v, %v", claims, err)
	}
}

func TestGetDoctors(t *testing.T) {
	r := gin.New()
	r.GET("/doctors", GetDoctors)
	w := doJSON(r, http.MethodGet, "/doctors", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Dr. Green") {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
}
