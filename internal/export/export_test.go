package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"masterclass/internal/model"
)

func sampleRegistrations() []model.Registration {
	created := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return []model.Registration{
		{
			ID:               2,
			ProgramID:        1,
			ProgramName:      "London Masterclass",
			Name:             "Ada Obi",
			Email:            "ada@example.com",
			Phone:            "08030000000",
			Organization:     "Acme Ltd",
			Designation:      "Engineer",
			Expectations:     "Hands-on sessions",
			EventDate:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:        created.Add(time.Hour),
			Status:           "confirmed",
			PaymentReference: "PAY-123",
			PaymentReceipt:   sql.NullString{String: "ab12cd34_receipt.pdf", Valid: true},
			Notes:            "VIP",
		},
		{
			ID:          1,
			ProgramID:   2,
			ProgramName: "Lagos Masterclass",
			Name:        "John Doe",
			Email:       "john@example.com",
			EventDate:   time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
			CreatedAt:   created,
			Status:      "pending",
		},
	}
}

func TestWriteCSVHeaderOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []string{
		"ID", "Program", "Name", "Email", "Phone", "Organization",
		"Designation", "Expectations", "Event Date", "Registration Date",
		"Status", "Payment Reference", "Payment Receipt", "Notes",
	}, records[0])
}

func TestWriteCSVOneRowPerRegistration(t *testing.T) {
	regs := sampleRegistrations()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, regs))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(regs)+1)

	first := records[1]
	require.Equal(t, "2", first[0])
	require.Equal(t, "London Masterclass", first[1])
	require.Equal(t, "Ada Obi", first[2])
	require.Equal(t, "2025-06-01", first[8])
	require.Equal(t, "2025-03-10 10:30:00", first[9])
	require.Equal(t, "confirmed", first[10])
	require.Equal(t, "ab12cd34_receipt.pdf", first[12])

	second := records[2]
	require.Equal(t, "1", second[0])
	require.Equal(t, "pending", second[10])
	require.Equal(t, "", second[12])
}
