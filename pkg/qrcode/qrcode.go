package qrcode

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// QRService renders share links for events as PNG QR codes.
type QRService struct {
	baseURL string // gallery page, e.g. "https://photos.example.com"
}

func NewQRService(baseURL string) *QRService {
	return &QRService{
		baseURL: baseURL,
	}
}

// EventURL is the gallery link opening eventID.
func (s *QRService) EventURL(eventID string) string {
	return fmt.Sprintf("%s/?eventId=%s", s.baseURL, url.QueryEscape(eventID))
}

// GenerateQRCode returns a size x size PNG encoding the event link.
// Sizes outside [MinSize, MaxSize] are clamped.
func (s *QRService) GenerateQRCode(eventID string, size int) ([]byte, error) {
	png, err := qrcode.Encode(s.EventURL(eventID), qrcode.Medium, ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code PNG: %w", err)
	}

	return png, nil
}

func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}
