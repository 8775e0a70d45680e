package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"masterclass/internal/model"
)

func TestComposeTicketBody(t *testing.T) {
	reg := &model.Registration{
		ID:          42,
		Name:        "Ada Obi",
		ProgramName: "London Masterclass",
		EventDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	body, err := ComposeTicketBody(reg)
	require.NoError(t, err)
	require.Contains(t, body, "Ada Obi")
	require.Contains(t, body, "London Masterclass")
	require.Contains(t, body, "#42")
	require.Contains(t, body, "2025-06-01")
}

func TestComposeTicketBodyEscapesHTML(t *testing.T) {
	reg := &model.Registration{
		ID:        1,
		Name:      `<script>alert("x")</script>`,
		EventDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	body, err := ComposeTicketBody(reg)
	require.NoError(t, err)
	require.NotContains(t, body, "<script>")
}
