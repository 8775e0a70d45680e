package model

import (
	"database/sql"
	"time"
)

type Program struct {
	ID          int     `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description,omitempty" json:"description,omitempty"`
	Location    string  `db:"location,omitempty" json:"location,omitempty"`
	Fee         float64 `db:"fee" json:"fee"`
}

type Registration struct {
	ID               int            `db:"id" json:"id"`
	ProgramID        int            `db:"program_id" json:"program_id"`
	ProgramName      string         `db:"program_name" json:"program_name,omitempty"`
	Name             string         `db:"name" json:"name"`
	Email            string         `db:"email" json:"email"`
	Phone            string         `db:"phone,omitempty" json:"phone,omitempty"`
	Organization     string         `db:"organization,omitempty" json:"organization,omitempty"`
	Designation      string         `db:"designation,omitempty" json:"designation,omitempty"`
	Expectations     string         `db:"expectations,omitempty" json:"expectations,omitempty"`
	EventDate        time.Time      `db:"event_date" json:"event_date"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	Status           string         `db:"status" json:"status"`
	PaymentReference string         `db:"payment_reference,omitempty" json:"payment_reference,omitempty"`
	PaymentReceipt   sql.NullString `db:"payment_receipt" json:"-"`
	Notes            string         `db:"notes,omitempty" json:"notes,omitempty"`
	TicketSent       bool           `db:"ticket_sent" json:"ticket_sent"`
}

type Admin struct {
	ID           int    `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}
