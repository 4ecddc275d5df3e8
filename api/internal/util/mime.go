package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// SniffMimeHTTP угадывает MIME по первым байтам: сначала частые форматы,
// потом http.DetectContentType.
func SniffMimeHTTP(b []byte) string {
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	// PNG
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(b)
}

// SHA256Hex: ключ картинки для аудита.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Truncate режет строку по рунам и добавляет многоточие.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
