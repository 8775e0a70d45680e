package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"masterclass/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthorized         = "UNAUTHORIZED"
	ProgramNotFound      = "PROGRAM_NOT_FOUND"
	RegistrationNotFound = "REGISTRATION_NOT_FOUND"
	ReceiptNotFound      = "RECEIPT_NOT_FOUND"
)

const EventDateLayout = "2006-01-02"

// RegistrationForm is the public multipart submission. The receipt file
// is read separately from the multipart payload.
type RegistrationForm struct {
	ProgramID        int    `form:"program_id" validate:"required,gt=0"`
	Name             string `form:"name" validate:"required,min=2,max=100"`
	Email            string `form:"email" validate:"required,email"`
	Phone            string `form:"phone" validate:"max=20"`
	Organization     string `form:"organization" validate:"max=200"`
	Designation      string `form:"designation" validate:"max=100"`
	Expectations     string `form:"expectations"`
	EventDate        string `form:"event_date" validate:"required,eventdate"`
	PaymentReference string `form:"payment_reference" validate:"max=100"`
}

type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// UpdateRegistrationRequest carries a partial update: nil means the
// field was absent from the payload and keeps its stored value.
type UpdateRegistrationRequest struct {
	Name             *string `json:"name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	Organization     *string `json:"organization"`
	Designation      *string `json:"designation"`
	Expectations     *string `json:"expectations"`
	EventDate        *string `json:"event_date"`
	Status           *string `json:"status"`
	PaymentReference *string `json:"payment_reference"`
	Notes            *string `json:"notes"`
}

type BulkDeleteRequest struct {
	IDs []int `json:"ids" validate:"required,min=1"`
}

type RegistrationResponse struct {
	ID               int    `json:"id"`
	ProgramID        int    `json:"program_id"`
	ProgramName      string `json:"program_name,omitempty"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Organization     string `json:"organization"`
	Designation      string `json:"designation"`
	Expectations     string `json:"expectations"`
	EventDate        string `json:"event_date"`
	CreatedAt        string `json:"created_at"`
	Status           string `json:"status"`
	PaymentReference string `json:"payment_reference"`
	PaymentReceipt   string `json:"payment_receipt"`
	Notes            string `json:"notes"`
	TicketSent       bool   `json:"ticket_sent"`
}

func NewRegistrationResponse(r *model.Registration) RegistrationResponse {
	return RegistrationResponse{
		ID:               r.ID,
		ProgramID:        r.ProgramID,
		ProgramName:      r.ProgramName,
		Name:             r.Name,
		Email:            r.Email,
		Phone:            r.Phone,
		Organization:     r.Organization,
		Designation:      r.Designation,
		Expectations:     r.Expectations,
		EventDate:        r.EventDate.Format(EventDateLayout),
		CreatedAt:        r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		Status:           r.Status,
		PaymentReference: r.PaymentReference,
		PaymentReceipt:   r.PaymentReceipt.String,
		Notes:            r.Notes,
		TicketSent:       r.TicketSent,
	}
}

// TicketMessage is the queue payload that asks the delivery worker to
// send (or re-send) the QR ticket for one registration.
type TicketMessage struct {
	RegistrationID int       `json:"registration_id"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.JSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: Unauthorized,
			Desc: "Admin authentication required",
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func RegistrationNotFoundError(c *ginext.Context) {
	NotFoundError(c, RegistrationNotFound, "Registration not found")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
