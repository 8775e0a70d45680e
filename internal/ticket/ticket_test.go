package ticket

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadFormat(t *testing.T) {
	got := Payload(42, "Ada Obi", "ada@example.com")
	require.Equal(t, "Registration ID: 42\nName: Ada Obi\nEmail: ada@example.com", got)
}

func TestGeneratePNG(t *testing.T) {
	data, err := GeneratePNG(7, "John Doe", "john@example.com")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, PNGSize, img.Bounds().Dx())
	require.Equal(t, PNGSize, img.Bounds().Dy())
}
