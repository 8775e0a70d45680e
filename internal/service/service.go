package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"masterclass/cmd/middleware"
	"masterclass/internal/dto"
	"masterclass/internal/export"
	"masterclass/internal/model"
	"masterclass/internal/repo"
	"masterclass/internal/upload"
	"masterclass/pkg/auth"
	"masterclass/pkg/validator"
)

type Service interface {
	Welcome(ctx *ginext.Context)
	RegisterPage(ctx *ginext.Context)
	SubmitRegistration(ctx *ginext.Context)
	AdminLoginPage(ctx *ginext.Context)
	AdminLogin(ctx *ginext.Context)
	AdminLogout(ctx *ginext.Context)
	AdminDashboard(ctx *ginext.Context)
	GetRegistration(ctx *ginext.Context)
	ListRegistrations(ctx *ginext.Context)
	UpdateRegistration(ctx *ginext.Context)
	DeleteRegistration(ctx *ginext.Context)
	BulkDeleteRegistrations(ctx *ginext.Context)
	SendTicket(ctx *ginext.Context)
	ExportCSV(ctx *ginext.Context)
	DownloadReceipt(ctx *ginext.Context)
}

// Publisher hands ticket delivery messages to the queue.
type Publisher interface {
	Publish(message []byte) error
}

type service struct {
	repo       repo.Repository
	log        *zerolog.Logger
	rbt        Publisher
	uploads    *upload.Store
	secret     string
	sessionTTL time.Duration
}

func NewService(repo repo.Repository, log *zerolog.Logger, rbt Publisher, uploads *upload.Store, secret string, sessionTTL time.Duration) Service {
	return &service{
		repo:       repo,
		log:        log,
		rbt:        rbt,
		uploads:    uploads,
		secret:     secret,
		sessionTTL: sessionTTL,
	}
}

func (s *service) Welcome(ctx *ginext.Context) {
	kind, message := middleware.PopFlash(ctx)
	ctx.HTML(http.StatusOK, "welcome.html", gin.H{
		"FlashKind":    kind,
		"FlashMessage": message,
	})
}

func (s *service) RegisterPage(ctx *ginext.Context) {
	programs, err := s.repo.GetAllPrograms(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load programs for registration page")
		middleware.SetFlash(ctx, "error", "Registration is temporarily unavailable.")
		ctx.Redirect(http.StatusFound, "/")
		return
	}

	selected := 0
	if raw := ctx.Param("program_id"); raw != "" {
		selected, _ = strconv.Atoi(raw)
	}

	kind, message := middleware.PopFlash(ctx)
	ctx.HTML(http.StatusOK, "register.html", gin.H{
		"Programs":     programs,
		"Selected":     selected,
		"FlashKind":    kind,
		"FlashMessage": message,
	})
}

// SubmitRegistration is the public intake. The database insert is the
// only transactional step: receipt storage precedes it and ticket
// delivery is handed to the queue after it.
func (s *service) SubmitRegistration(ctx *ginext.Context) {
	var form dto.RegistrationForm
	if err := ctx.ShouldBind(&form); err != nil {
		s.log.Error().Err(err).Msg("failed to parse registration form")
		s.failSubmission(ctx, "Registration failed. Please check the form and try again.")
		return
	}

	if verr := validator.Validate(ctx, form); verr != nil {
		s.log.Error().Msgf("registration validation failed: %v", verr)
		s.failSubmission(ctx, "Registration failed. Please check the form and try again.")
		return
	}

	eventDate, err := time.Parse(dto.EventDateLayout, form.EventDate)
	if err != nil {
		s.log.Error().Err(err).Str("event_date", form.EventDate).Msg("invalid event date")
		s.failSubmission(ctx, "Registration failed. Please check the form and try again.")
		return
	}

	registration := &model.Registration{
		ProgramID:        form.ProgramID,
		Name:             form.Name,
		Email:            form.Email,
		Phone:            form.Phone,
		Organization:     form.Organization,
		Designation:      form.Designation,
		Expectations:     form.Expectations,
		EventDate:        eventDate,
		PaymentReference: form.PaymentReference,
	}

	if file, err := ctx.FormFile("payment_receipt"); err == nil && file != nil && file.Filename != "" {
		stored, err := s.uploads.Save(file)
		if err != nil {
			if errors.Is(err, upload.ErrFileTooLarge) {
				s.failSubmission(ctx, "Payment receipt is too large.")
				return
			}
			s.log.Error().Err(err).Msg("failed to store payment receipt")
			s.failSubmission(ctx, "Registration failed. Please try again.")
			return
		}
		registration.PaymentReceipt.String = stored
		registration.PaymentReceipt.Valid = true
	}

	id, err := s.repo.CreateRegistrationTx(ctx.Request.Context(), registration)
	if err != nil {
		if errors.Is(err, repo.ErrProgramNotFound) {
			s.failSubmission(ctx, "Unknown program selected.")
			return
		}
		s.log.Error().Err(err).Msg("failed to create registration")
		s.failSubmission(ctx, "Registration failed. Please try again.")
		return
	}

	s.log.Info().Int("registration_id", id).Msg("registration created successfully")
	s.publishTicket(id)

	middleware.SetFlash(ctx, "success", "Registration successful! Check your email for the confirmation.")
	ctx.Redirect(http.StatusFound, "/")
}

func (s *service) failSubmission(ctx *ginext.Context, message string) {
	middleware.SetFlash(ctx, "error", message)
	ctx.Redirect(http.StatusFound, "/register")
}

// publishTicket enqueues ticket delivery. Publish failure is logged
// only: the registration stands and delivery can be re-triggered.
func (s *service) publishTicket(registrationID int) {
	msg := dto.TicketMessage{
		RegistrationID: registrationID,
		EnqueuedAt:     time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal ticket message")
		return
	}
	if err := s.rbt.Publish(payload); err != nil {
		s.log.Warn().
			Err(err).
			Int("registration_id", registrationID).
			Msg("failed to publish ticket delivery message")
	}
}

func (s *service) AdminLoginPage(ctx *ginext.Context) {
	kind, message := middleware.PopFlash(ctx)
	ctx.HTML(http.StatusOK, "admin_login.html", gin.H{
		"FlashKind":    kind,
		"FlashMessage": message,
	})
}

func (s *service) AdminLogin(ctx *ginext.Context) {
	var form dto.LoginForm
	if err := ctx.ShouldBind(&form); err != nil {
		middleware.SetFlash(ctx, "error", "Invalid username or password")
		ctx.Redirect(http.StatusFound, "/admin/login")
		return
	}
	if verr := validator.Validate(ctx, form); verr != nil {
		middleware.SetFlash(ctx, "error", "Invalid username or password")
		ctx.Redirect(http.StatusFound, "/admin/login")
		return
	}

	admin, err := s.repo.GetAdminByUsername(ctx.Request.Context(), form.Username)
	if err != nil || !auth.ComparePasswords(admin.PasswordHash, form.Password) {
		s.log.Warn().Str("username", form.Username).Msg("failed admin login attempt")
		middleware.SetFlash(ctx, "error", "Invalid username or password")
		ctx.Redirect(http.StatusFound, "/admin/login")
		return
	}

	token, err := auth.GenerateSessionToken(s.secret, admin.Username, s.sessionTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to sign session token")
		middleware.SetFlash(ctx, "error", "Login failed. Please try again.")
		ctx.Redirect(http.StatusFound, "/admin/login")
		return
	}

	ctx.SetCookie(auth.SessionCookie, token, int(s.sessionTTL.Seconds()), "/", "", false, true)
	middleware.SetFlash(ctx, "success", "Successfully logged in!")
	ctx.Redirect(http.StatusFound, "/admin")
}

func (s *service) AdminLogout(ctx *ginext.Context) {
	ctx.SetCookie(auth.SessionCookie, "", -1, "/", "", false, true)
	middleware.SetFlash(ctx, "success", "Successfully logged out!")
	ctx.Redirect(http.StatusFound, "/admin/login")
}

func (s *service) AdminDashboard(ctx *ginext.Context) {
	registrations, err := s.repo.ListRegistrations(ctx.Request.Context(), repo.ListFilter{})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations for dashboard")
		middleware.SetFlash(ctx, "error", "Error loading registrations.")
		ctx.Redirect(http.StatusFound, "/admin/login")
		return
	}

	rows := make([]dto.RegistrationResponse, 0, len(registrations))
	for i := range registrations {
		rows = append(rows, dto.NewRegistrationResponse(&registrations[i]))
	}

	kind, message := middleware.PopFlash(ctx)
	ctx.HTML(http.StatusOK, "admin.html", gin.H{
		"Registrations": rows,
		"FlashKind":     kind,
		"FlashMessage":  message,
		"AdminUser":     ctx.GetString(middleware.AdminUserKey),
	})
}

func (s *service) GetRegistration(ctx *ginext.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), id)
	if err != nil {
		dto.RegistrationNotFoundError(ctx)
		return
	}

	dto.SuccessResponse(ctx, dto.NewRegistrationResponse(reg))
}

func (s *service) ListRegistrations(ctx *ginext.Context) {
	var filter repo.ListFilter

	if raw := ctx.Query("start_date"); raw != "" {
		t, err := time.Parse(dto.EventDateLayout, raw)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldBadFormat, "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartDate = &t
	}
	if raw := ctx.Query("end_date"); raw != "" {
		t, err := time.Parse(dto.EventDateLayout, raw)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldBadFormat, "end_date must be YYYY-MM-DD")
			return
		}
		filter.EndDate = &t
	}
	filter.Status = ctx.Query("status")

	registrations, err := s.repo.ListRegistrations(ctx.Request.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list registrations")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.RegistrationResponse, 0, len(registrations))
	for i := range registrations {
		resp = append(resp, dto.NewRegistrationResponse(&registrations[i]))
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) UpdateRegistration(ctx *ginext.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}

	var req dto.UpdateRegistrationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	upd := repo.RegistrationUpdate{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Organization:     req.Organization,
		Designation:      req.Designation,
		Expectations:     req.Expectations,
		Status:           req.Status,
		PaymentReference: req.PaymentReference,
		Notes:            req.Notes,
	}
	if req.EventDate != nil {
		t, err := time.Parse(dto.EventDateLayout, *req.EventDate)
		if err != nil {
			dto.BadResponseError(ctx, dto.FieldBadFormat, "event_date must be YYYY-MM-DD")
			return
		}
		upd.EventDate = &t
	}

	if err := s.repo.UpdateRegistration(ctx.Request.Context(), id, &upd); err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			dto.RegistrationNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int("registration_id", id).Msg("failed to update registration")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, map[string]string{"message": "Registration updated successfully"})
}

func (s *service) DeleteRegistration(ctx *ginext.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}

	if err := s.repo.DeleteRegistration(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			dto.RegistrationNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Int("registration_id", id).Msg("failed to delete registration")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, map[string]string{"message": "Registration deleted"})
}

func (s *service) BulkDeleteRegistrations(ctx *ginext.Context) {
	var req dto.BulkDeleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	deleted, err := s.repo.DeleteRegistrations(ctx.Request.Context(), req.IDs)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to bulk delete registrations")
		dto.InternalServerError(ctx)
		return
	}

	dto.SuccessResponse(ctx, map[string]int64{"deleted": deleted})
}

// SendTicket re-enqueues ticket delivery for one registration.
func (s *service) SendTicket(ctx *ginext.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}

	if _, err := s.repo.GetRegistrationByID(ctx.Request.Context(), id); err != nil {
		dto.RegistrationNotFoundError(ctx)
		return
	}

	s.publishTicket(id)
	dto.SuccessResponse(ctx, map[string]string{"message": "Ticket delivery scheduled"})
}

func (s *service) ExportCSV(ctx *ginext.Context) {
	registrations, err := s.repo.ListRegistrations(ctx.Request.Context(), repo.ListFilter{})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load registrations for export")
		middleware.SetFlash(ctx, "error", "Error exporting data")
		ctx.Redirect(http.StatusFound, "/admin")
		return
	}

	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", "attachment; filename=registrations.csv")
	ctx.Status(http.StatusOK)
	if err := export.WriteCSV(ctx.Writer, registrations); err != nil {
		s.log.Error().Err(err).Msg("failed to stream registrations CSV")
	}
}

func (s *service) DownloadReceipt(ctx *ginext.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid registration ID")
		return
	}

	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), id)
	if err != nil {
		dto.RegistrationNotFoundError(ctx)
		return
	}
	if !reg.PaymentReceipt.Valid || reg.PaymentReceipt.String == "" {
		dto.NotFoundError(ctx, dto.ReceiptNotFound, "No receipt on file for this registration")
		return
	}

	path, err := s.uploads.Path(reg.PaymentReceipt.String)
	if err != nil {
		s.log.Warn().
			Err(err).
			Int("registration_id", id).
			Str("receipt", reg.PaymentReceipt.String).
			Msg("stored receipt file missing")
		dto.NotFoundError(ctx, dto.ReceiptNotFound, "Receipt file not found")
		return
	}

	ctx.FileAttachment(path, reg.PaymentReceipt.String)
}
