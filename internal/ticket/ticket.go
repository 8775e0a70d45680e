package ticket

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PNGSize is the rendered QR image edge in pixels.
const PNGSize = 256

// Payload builds the text encoded into the QR ticket. Scanning it at
// the venue identifies the registration without a database lookup.
func Payload(registrationID int, name, email string) string {
	return fmt.Sprintf("Registration ID: %d\nName: %s\nEmail: %s", registrationID, name, email)
}

// GeneratePNG renders the registration QR code. Low error correction
// keeps the module grid small for email-sized images.
func GeneratePNG(registrationID int, name, email string) ([]byte, error) {
	png, err := qrcode.Encode(Payload(registrationID, name, email), qrcode.Low, PNGSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket QR: %w", err)
	}
	return png, nil
}
