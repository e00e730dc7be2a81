package storage

import (
	"fmt"
	"strings"
)

const (
	MB = 1 << 20

	maxVideoSize = 100 * MB
	maxImageSize = 10 * MB
	maxOtherSize = 5 * MB
)

var allowedTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
}

// AllowedType reports whether files of the MIME type may be uploaded. Any
// image or video type is accepted.
func AllowedType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return allowedTypes[ct] || strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
}

// SizeLimit returns the largest accepted upload for the MIME type.
func SizeLimit(contentType string) int64 {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "video/"):
		return maxVideoSize
	case strings.HasPrefix(ct, "image/"):
		return maxImageSize
	}
	return maxOtherSize
}

// CheckUpload applies the type allow-list and size limit.
func CheckUpload(contentType string, size int64) error {
	if !AllowedType(contentType) {
		return fmt.Errorf("%w: %s", ErrTypeNotAllowed, contentType)
	}
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive", ErrTooLarge)
	}
	if limit := SizeLimit(contentType); size > limit {
		return fmt.Errorf("%w: limit is %dMB", ErrTooLarge, limit/MB)
	}
	return nil
}
