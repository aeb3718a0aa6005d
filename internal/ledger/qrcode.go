// AngelaMos | 2026
// qrcode.go

package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/honeydae/giftcards/internal/config"
)

const qrPayloadType = "giftcard"

// QRPayload is what a card's QR code encodes. The salon scans it at the
// counter instead of typing the code.
type QRPayload struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type QRCodeRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewQRCodeRenderer(cfg config.QRCodeConfig) *QRCodeRenderer {
	var level qrcode.RecoveryLevel
	switch cfg.ErrorCorrection {
	case "L":
		level = qrcode.Low
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	size := cfg.Size
	if size <= 0 {
		size = 256
	}

	return &QRCodeRenderer{size: size, level: level}
}

// PNG renders the card's code as a QR image.
func (q *QRCodeRenderer) PNG(card *Card) ([]byte, error) {
	data, err := json.Marshal(QRPayload{Type: qrPayloadType, Code: card.Code})
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}

	code, err := qrcode.New(string(data), q.level)
	if err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}

	png, err := code.PNG(q.size)
	if err != nil {
		return nil, fmt.Errorf("render qr png: %w", err)
	}

	return png, nil
}

// ParsePayload extracts the card code from scanned QR data. A bare code
// (what a customer might read out) is accepted as well.
func ParsePayload(raw string) (string, error) {
	var payload QRPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		if raw == "" {
			return "", fmt.Errorf("empty qr payload")
		}
		return raw, nil
	}

	if payload.Type != qrPayloadType {
		return "", fmt.Errorf("invalid qr payload type: %q", payload.Type)
	}

	if payload.Code == "" {
		return "", fmt.Errorf("qr payload has no code")
	}

	return payload.Code, nil
}
