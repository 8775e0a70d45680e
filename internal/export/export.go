package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"masterclass/internal/model"
)

// Header is the fixed CSV column order of the registrations export.
var Header = []string{
	"ID", "Program", "Name", "Email", "Phone", "Organization",
	"Designation", "Expectations", "Event Date", "Registration Date",
	"Status", "Payment Reference", "Payment Receipt", "Notes",
}

// WriteCSV streams one row per registration in Header order.
func WriteCSV(w io.Writer, regs []model.Registration) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range regs {
		row := []string{
			strconv.Itoa(r.ID),
			r.ProgramName,
			r.Name,
			r.Email,
			r.Phone,
			r.Organization,
			r.Designation,
			r.Expectations,
			r.EventDate.Format("2006-01-02"),
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Status,
			r.PaymentReference,
			r.PaymentReceipt.String,
			r.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
