package util

import (
	"net/http"
	"strings"
)

func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	return "application/octet-stream"
}

// ImageMIME: сигнатура JPEG/PNG, затем http.DetectContentType (webp, gif),
// иначе image/jpeg: Telegram отдаёт фото в JPEG.
func ImageMIME(b []byte) string {
	if m := SniffMimeHTTP(b); m != "application/octet-stream" {
		return m
	}
	if len(b) > 0 {
		if m := http.DetectContentType(b); strings.HasPrefix(m, "image/") {
			return m
		}
	}
	return "image/jpeg"
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}
