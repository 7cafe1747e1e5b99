// Package services turns submitted forms into lifecycle transitions and
// coordinates the external stores around them.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carepulse-server/internal/apperr"
	"carepulse-server/internal/cache"
	"carepulse-server/internal/doctors"
	"carepulse-server/internal/lifecycle"
	"carepulse-server/internal/models"
	"carepulse-server/internal/notify"
	"carepulse-server/internal/store"
	"carepulse-server/internal/utils"
)

const notifyTimeout = 5 * time.Second

// FormValues are the raw values of an appointment form.
// A nil pointer means the field was not on the submitted form.
type FormValues struct {
	PrimaryPhysician   *string
	Schedule           *string // date-picker value
	TimeZone           string  // zone of the submitting browser
	Reason             *string
	Note               *string
	CancellationReason *string
	Status             string
}

// Submission is one press of a form's submit button. Current may carry the
// appointment the caller already loaded for AppointmentID.
type Submission struct {
	Mode          lifecycle.Action
	UserID        string
	PatientID     string
	AppointmentID string
	Current       *models.Appointment
	Form          FormValues
}

// Outcome tells the caller what the user should see next.
type Outcome struct {
	Appointment *models.Appointment `json:"appointment"`
	RedirectTo  string              `json:"redirectTo,omitempty"`
	CloseModal  bool                `json:"closeModal"`
	Refresh     bool                `json:"refresh"`
}

// AppointmentRow is one line of the admin appointment table.
type AppointmentRow struct {
	models.Appointment
	PatientName     string          `json:"patientName"`
	Doctor          *doctors.Doctor `json:"doctor,omitempty"`
	ScheduleDisplay string          `json:"scheduleDisplay"`
}

// AppointmentList is the admin list view with per-status counts.
type AppointmentList struct {
	TotalCount     int              `json:"totalCount"`
	ScheduledCount int              `json:"scheduledCount"`
	PendingCount   int              `json:"pendingCount"`
	CancelledCount int              `json:"cancelledCount"`
	Documents      []AppointmentRow `json:"documents"`
}

// SuccessView is what the confirmation page shows after a request.
type SuccessView struct {
	Appointment *models.Appointment     `json:"appointment"`
	Doctor      *doctors.Doctor         `json:"doctor,omitempty"`
	Schedule    utils.FormattedDateTime `json:"schedule"`
}

// AppointmentOptions configures an AppointmentService.
type AppointmentOptions struct {
	Policy          lifecycle.Policy
	WriteTimeout    time.Duration
	ListTTL         time.Duration
	DisplayTimeZone string
	Logger          zerolog.Logger
}

// AppointmentService is the appointment form controller.
type AppointmentService struct {
	appointments store.AppointmentStore
	patients     store.PatientStore
	listCache    cache.ListCache
	notifier     notify.Sender
	machine      *lifecycle.Machine
	opts         AppointmentOptions
	inflight     *inflightGuard
}

// NewAppointmentService creates a new AppointmentService.
func NewAppointmentService(appointments store.AppointmentStore, patients store.PatientStore, listCache cache.ListCache, notifier notify.Sender, opts AppointmentOptions) *AppointmentService {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &AppointmentService{
		appointments: appointments,
		patients:     patients,
		listCache:    listCache,
		notifier:     notifier,
		machine:      lifecycle.New(opts.Policy),
		opts:         opts,
		inflight:     newInflightGuard(),
	}
}

// Submit validates the form, issues exactly one write and then exactly one
// list invalidation, in that order. On any error nothing is invalidated and
// no previously fetched appointment is modified.
func (s *AppointmentService) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	key := submissionKey(sub)
	if !s.inflight.acquire(key) {
		return nil, apperr.ErrSubmissionInProgress
	}
	defer s.inflight.release(key)

	log := s.opts.Logger.With().
		Str("action", string(sub.Mode)).
		Str("appointment_id", sub.AppointmentID).
		Str("user_id", sub.UserID).
		Logger()

	values, err := s.mapFormValues(sub)
	if err != nil {
		log.Warn().Err(err).Msg("appointment form rejected")
		return nil, err
	}

	var current *models.Appointment
	if sub.Mode != lifecycle.ActionCreate {
		current, err = s.loadCurrent(ctx, sub)
		if err != nil {
			log.Warn().Err(err).Msg("appointment lookup failed")
			return nil, err
		}
	}

	result, err := s.machine.Transition(current, sub.Mode, values)
	if err != nil {
		log.Warn().Err(err).Msg("appointment transition rejected")
		return nil, err
	}

	if sub.Mode == lifecycle.ActionCreate {
		patientID, err := s.resolvePatientID(ctx, sub)
		if err != nil {
			log.Warn().Err(err).Msg("appointment patient not resolved")
			return nil, err
		}
		result.Changes.PatientID = &patientID
	}

	written, err := s.write(ctx, sub.Mode, current, result)
	if err != nil {
		log.Error().Err(err).Msg("appointment write failed")
		return nil, err
	}

	s.invalidateList(ctx, log)
	s.notify(ctx, log, sub, written)

	log.Info().Str("appointment_id", written.ID).Str("status", string(written.Status)).Msg("appointment saved")

	if sub.Mode == lifecycle.ActionCreate {
		return &Outcome{Appointment: written, RedirectTo: successPath(written)}, nil
	}
	return &Outcome{Appointment: written, CloseModal: true, Refresh: true}, nil
}

// Get returns one appointment.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	return s.appointments.GetAppointment(ctx, id)
}

// SuccessView renders the confirmation page data in timeZone.
func (s *AppointmentService) SuccessView(ctx context.Context, id, timeZone string) (*SuccessView, error) {
	a, err := s.appointments.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if timeZone == "" {
		timeZone = s.opts.DisplayTimeZone
	}
	view := &SuccessView{Appointment: a, Schedule: utils.FormatDateTime(a.Schedule, timeZone)}
	if d, ok := doctors.Lookup(a.PrimaryPhysician); ok {
		view.Doctor = &d
	}
	return view, nil
}

// RecentList returns the admin list view, served from the cache when fresh.
// A view read across an invalidation is returned but not cached.
func (s *AppointmentService) RecentList(ctx context.Context) (*AppointmentList, error) {
	log := s.opts.Logger
	if raw, ok, err := s.listCache.Get(ctx, cache.AppointmentListKey); err != nil {
		log.Warn().Err(err).Msg("appointment list cache read failed")
	} else if ok {
		var list AppointmentList
		if err := json.Unmarshal(raw, &list); err == nil {
			return &list, nil
		}
		log.Warn().Msg("discarding undecodable appointment list cache entry")
	}

	version, err := s.listCache.Version(ctx, cache.AppointmentListKey)
	cacheable := err == nil
	if err != nil {
		log.Warn().Err(err).Msg("appointment list cache version read failed")
	}

	appointments, err := s.appointments.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	list := s.buildList(ctx, appointments)

	if !cacheable {
		return list, nil
	}
	if raw, err := json.Marshal(list); err == nil {
		stored, err := s.listCache.SetIfVersion(ctx, cache.AppointmentListKey, raw, s.opts.ListTTL, version)
		if err != nil {
			log.Warn().Err(err).Msg("appointment list cache write failed")
		} else if !stored {
			log.Debug().Msg("appointment list changed while reading, not cached")
		}
	}
	return list, nil
}

func (s *AppointmentService) buildList(ctx context.Context, appointments []models.Appointment) *AppointmentList {
	list := &AppointmentList{
		TotalCount: len(appointments),
		Documents:  make([]AppointmentRow, 0, len(appointments)),
	}
	names := map[string]string{}
	for _, a := range appointments {
		switch a.Status {
		case models.StatusScheduled:
			list.ScheduledCount++
		case models.StatusPending:
			list.PendingCount++
		case models.StatusCancelled:
			list.CancelledCount++
		}

		name, ok := names[a.UserID]
		if !ok {
			name = s.patientName(ctx, a.UserID)
			names[a.UserID] = name
		}
		row := AppointmentRow{
			Appointment:     a,
			PatientName:     name,
			ScheduleDisplay: utils.FormatDateTime(a.Schedule, s.opts.DisplayTimeZone).DateTime,
		}
		if d, ok := doctors.Lookup(a.PrimaryPhysician); ok {
			row.Doctor = &d
		}
		list.Documents = append(list.Documents, row)
	}
	return list
}

func (s *AppointmentService) patientName(ctx context.Context, userID string) string {
	if userID == "" {
		return "N/A"
	}
	p, err := s.patients.GetPatientByUserID(ctx, userID)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Str("user_id", userID).Msg("patient lookup for list failed")
		return "N/A"
	}
	if p == nil {
		return "N/A"
	}
	return p.Name
}

func (s *AppointmentService) mapFormValues(sub Submission) (lifecycle.Values, error) {
	v := lifecycle.Values{
		UserID:             sub.UserID,
		PatientID:          sub.PatientID,
		PrimaryPhysician:   sub.Form.PrimaryPhysician,
		Reason:             sub.Form.Reason,
		Note:               sub.Form.Note,
		CancellationReason: sub.Form.CancellationReason,
		Status:             models.AppointmentStatus(sub.Form.Status),
	}
	if sub.Form.Schedule != nil {
		loc := utils.LoadZone(sub.Form.TimeZone)
		t, ok := utils.ParseInstant(*sub.Form.Schedule, loc)
		if !ok {
			return lifecycle.Values{}, apperr.Validation("schedule", "Invalid date format")
		}
		v.Schedule = &t
	}
	return v, nil
}

func (s *AppointmentService) loadCurrent(ctx context.Context, sub Submission) (*models.Appointment, error) {
	if strings.TrimSpace(sub.AppointmentID) == "" {
		return nil, apperr.Validation("appointmentId", "An existing appointment is required")
	}
	if sub.Current != nil && sub.Current.ID == sub.AppointmentID {
		a := *sub.Current
		return &a, nil
	}
	return s.appointments.GetAppointment(ctx, sub.AppointmentID)
}

func (s *AppointmentService) resolvePatientID(ctx context.Context, sub Submission) (string, error) {
	if id := strings.TrimSpace(sub.PatientID); id != "" {
		return id, nil
	}
	p, err := s.patients.GetPatientByUserID(ctx, sub.UserID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", apperr.NotFound("patient", sub.UserID)
	}
	return p.ID, nil
}

func (s *AppointmentService) write(ctx context.Context, mode lifecycle.Action, current *models.Appointment, result lifecycle.Result) (*models.Appointment, error) {
	wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	if mode == lifecycle.ActionCreate {
		draft := result.Changes.ApplyTo(models.Appointment{})
		created, err := s.appointments.CreateAppointment(wctx, &draft)
		if err != nil {
			return nil, asPersistence("create appointment", err)
		}
		if created.Status != models.StatusPending {
			return nil, apperr.Persistence("create appointment",
				fmt.Errorf("store echoed status %q, expected %q", created.Status, models.StatusPending))
		}
		return created, nil
	}

	updated, err := s.appointments.UpdateAppointment(wctx, current.ID, result.Changes)
	if err != nil {
		return nil, asPersistence("update appointment", err)
	}
	if updated.Status != result.Status {
		return nil, apperr.Persistence("update appointment",
			fmt.Errorf("store echoed status %q, expected %q", updated.Status, result.Status))
	}
	return updated, nil
}

func (s *AppointmentService) invalidateList(ctx context.Context, log zerolog.Logger) {
	if err := s.listCache.Invalidate(ctx, cache.AppointmentListKey); err != nil {
		log.Error().Err(err).Msg("appointment list invalidation failed")
	}
}

func (s *AppointmentService) notify(ctx context.Context, log zerolog.Logger, sub Submission, a *models.Appointment) {
	if s.notifier == nil {
		return
	}
	timeZone := sub.Form.TimeZone
	if timeZone == "" {
		timeZone = s.opts.DisplayTimeZone
	}
	when := utils.FormatDateTime(a.Schedule, timeZone).DateTime

	var text string
	switch sub.Mode {
	case lifecycle.ActionSchedule:
		text = fmt.Sprintf("Greetings from CarePulse. Your appointment is confirmed for %s with %s", when, a.PrimaryPhysician)
	case lifecycle.ActionCancel:
		text = fmt.Sprintf("We regret to inform that your appointment for %s is cancelled. Reason: %s", when, a.CancellationReason)
	default:
		return
	}

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	receipt, err := s.notifier.SendSMS(nctx, a.UserID, text)
	if err != nil {
		log.Error().Err(err).Msg("appointment sms failed")
		return
	}
	log.Debug().Str("sms_id", receipt.ID).Str("transport", receipt.Transport).Msg("appointment sms queued")
}

// asPersistence keeps classified store errors and wraps anything else,
// including a bare context deadline, as a PersistenceError.
func asPersistence(op string, err error) error {
	if apperr.IsNotFound(err) || apperr.IsValidation(err) || apperr.IsPersistence(err) {
		return err
	}
	return apperr.Persistence(op, err)
}

func successPath(a *models.Appointment) string {
	q := url.Values{}
	q.Set("appointmentId", a.ID)
	q.Set("doctor", a.PrimaryPhysician)
	q.Set("date", a.Schedule.UTC().Format(time.RFC3339))
	return fmt.Sprintf("/patients/%s/new-appointment/success?%s", url.PathEscape(a.UserID), q.Encode())
}

func submissionKey(sub Submission) string {
	if sub.Mode == lifecycle.ActionCreate {
		return "create:" + sub.UserID
	}
	return string(sub.Mode) + ":" + sub.AppointmentID
}

// inflightGuard is the submit-in-progress flag, one per form control.
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{keys: make(map[string]struct{})}
}

func (g *inflightGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.keys[key]; busy {
		return false
	}
	g.keys[key] = struct{}{}
	return true
}

func (g *inflightGuard) release(key string) {
	g.mu.Lock()
	delete(g.keys, key)
	g.mu.Unlock()
}
