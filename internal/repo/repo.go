package repo

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"masterclass/internal/model"
)

var (
	ErrProgramNotFound      = errors.New("program not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrAdminNotFound        = errors.New("admin not found")
)

// ListFilter narrows the registration list. Nil dates and an empty
// status mean "no constraint".
type ListFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    string
}

// RegistrationUpdate is a partial update: nil fields keep their stored
// value.
type RegistrationUpdate struct {
	Name             *string
	Email            *string
	Phone            *string
	Organization     *string
	Designation      *string
	Expectations     *string
	EventDate        *time.Time
	Status           *string
	PaymentReference *string
	Notes            *string
}

// Empty reports whether the update would touch no columns.
func (u *RegistrationUpdate) Empty() bool {
	cols, _ := u.assignments(1)
	return len(cols) == 0
}

// assignments renders "col = $n" pairs starting at placeholder argIdx,
// in a fixed column order.
func (u *RegistrationUpdate) assignments(argIdx int) ([]string, []any) {
	var cols []string
	var args []any
	add := func(col string, val any) {
		cols = append(cols, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.Phone != nil {
		add("phone", *u.Phone)
	}
	if u.Organization != nil {
		add("organization", *u.Organization)
	}
	if u.Designation != nil {
		add("designation", *u.Designation)
	}
	if u.Expectations != nil {
		add("expectations", *u.Expectations)
	}
	if u.EventDate != nil {
		add("event_date", *u.EventDate)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.PaymentReference != nil {
		add("payment_reference", *u.PaymentReference)
	}
	if u.Notes != nil {
		add("notes", *u.Notes)
	}
	return cols, args
}

type Repository interface {
	GetAllPrograms(ctx context.Context) ([]model.Program, error)
	GetProgramByID(ctx context.Context, id int) (*model.Program, error)
	CreateRegistrationTx(ctx context.Context, reg *model.Registration) (int, error)
	GetRegistrationByID(ctx context.Context, id int) (*model.Registration, error)
	ListRegistrations(ctx context.Context, filter ListFilter) ([]model.Registration, error)
	UpdateRegistration(ctx context.Context, id int, upd *RegistrationUpdate) error
	DeleteRegistration(ctx context.Context, id int) error
	DeleteRegistrations(ctx context.Context, ids []int) (int64, error)
	MarkTicketSentTx(ctx context.Context, id int) (bool, error)
	GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error)
	EnsureAdmin(ctx context.Context, username, passwordHash string) error
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) GetAllPrograms(ctx context.Context) ([]model.Program, error) {
	query := `
		SELECT id, name, description, location, fee
		FROM programs
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get programs: %w", err)
	}
	defer rows.Close()

	var programs []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Location, &p.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}

	return programs, rows.Err()
}

func (r *repository) GetProgramByID(ctx context.Context, id int) (*model.Program, error) {
	query := `
		SELECT id, name, description, location, fee
		FROM programs WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)

	var p model.Program
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Location, &p.Fee); err != nil {
		return nil, ErrProgramNotFound
	}
	return &p, nil
}

// CreateRegistrationTx verifies the program exists and inserts the
// registration in one transaction. This is the only transactional
// boundary of the intake flow: receipt storage and ticket delivery
// happen outside it.
func (r *repository) CreateRegistrationTx(ctx context.Context, reg *model.Registration) (int, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var programID int
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM programs WHERE id = $1
	`, reg.ProgramID).Scan(&programID)
	if err != nil {
		_ = tx.Rollback()
		return 0, ErrProgramNotFound
	}

	reg.Status = "pending"
	var id int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO registrations (
			program_id, name, email, phone, organization, designation,
			expectations, event_date, status, payment_reference,
			payment_receipt, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id, created_at
	`, reg.ProgramID, reg.Name, reg.Email, reg.Phone, reg.Organization,
		reg.Designation, reg.Expectations, reg.EventDate, reg.Status,
		reg.PaymentReference, reg.PaymentReceipt, reg.Notes,
	).Scan(&id, &reg.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to create registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	reg.ID = id
	return id, nil
}

const registrationColumns = `
	r.id, r.program_id, p.name, r.name, r.email, r.phone, r.organization,
	r.designation, r.expectations, r.event_date, r.created_at, r.status,
	r.payment_reference, r.payment_receipt, r.notes, r.ticket_sent
`

func scanRegistration(row interface{ Scan(...any) error }) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID,
		&reg.ProgramID,
		&reg.ProgramName,
		&reg.Name,
		&reg.Email,
		&reg.Phone,
		&reg.Organization,
		&reg.Designation,
		&reg.Expectations,
		&reg.EventDate,
		&reg.CreatedAt,
		&reg.Status,
		&reg.PaymentReference,
		&reg.PaymentReceipt,
		&reg.Notes,
		&reg.TicketSent,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *repository) GetRegistrationByID(ctx context.Context, id int) (*model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations r
		JOIN programs p ON p.id = r.program_id
		WHERE r.id = $1
	`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, ErrRegistrationNotFound
	}
	return reg, nil
}

func (r *repository) ListRegistrations(ctx context.Context, filter ListFilter) ([]model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations r
		JOIN programs p ON p.id = r.program_id
	`

	var conds []string
	var args []any
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conds = append(conds, fmt.Sprintf("r.event_date >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conds = append(conds, fmt.Sprintf("r.event_date <= $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}

	return regs, rows.Err()
}

func (r *repository) UpdateRegistration(ctx context.Context, id int, upd *RegistrationUpdate) error {
	cols, args := upd.assignments(1)
	if len(cols) == 0 {
		// Nothing to apply; still report not-found for unknown ids.
		_, err := r.GetRegistrationByID(ctx, id)
		return err
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE registrations
		SET %s
		WHERE id = $%d
		RETURNING id
	`, strings.Join(cols, ", "), len(args))

	var updated int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&updated); err != nil {
		return ErrRegistrationNotFound
	}
	return nil
}

func (r *repository) DeleteRegistration(ctx context.Context, id int) error {
	var deleted int
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM registrations WHERE id = $1 RETURNING id
	`, id).Scan(&deleted)
	if err != nil {
		return ErrRegistrationNotFound
	}
	return nil
}

// DeleteRegistrations removes the given ids in a single statement and
// returns how many rows went away. Unknown ids are skipped, not errors.
func (r *repository) DeleteRegistrations(ctx context.Context, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM registrations WHERE id IN (%s)`,
		strings.Join(placeholders, ", "))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete registrations: %w", err)
	}
	return res.RowsAffected()
}

// MarkTicketSentTx flips ticket_sent under a row lock. Returns false
// when the ticket was already sent, so the caller can skip delivery.
func (r *repository) MarkTicketSentTx(ctx context.Context, id int) (bool, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var sent bool
	err = tx.QueryRowContext(ctx, `
		SELECT ticket_sent FROM registrations WHERE id = $1 FOR UPDATE
	`, id).Scan(&sent)
	if err != nil {
		_ = tx.Rollback()
		return false, ErrRegistrationNotFound
	}

	if sent {
		_ = tx.Rollback()
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE registrations SET ticket_sent = TRUE WHERE id = $1
	`, id); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("failed to mark ticket sent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

func (r *repository) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	query := `
		SELECT id, username, password_hash
		FROM admins WHERE username = $1
	`
	row := r.db.QueryRowContext(ctx, query, username)

	var a model.Admin
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash); err != nil {
		return nil, ErrAdminNotFound
	}
	return &a, nil
}

func (r *repository) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admins (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to ensure admin account: %w", err)
	}
	return nil
}
