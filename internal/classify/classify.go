// Package classify derives a document input type from the uploaded object key.
package classify

import "strings"

// Input types recognized by the pipeline. Anything that is not an image keeps
// its literal extension (commonly "pdf"); keys without an extension are "other".
const (
	TypeImage = "image"
	TypePDF   = "pdf"
	TypeOther = "other"
)

// FromObjectKey returns (inputType, extension) for an object key. Pure, no
// error conditions.
func FromObjectKey(objectKey string) (string, string) {
	ext := Extension(objectKey)
	switch ext {
	case "jpg", "jpeg", "png":
		return TypeImage, ext
	default:
		return ext, ext
	}
}

// Extension returns the lowercased extension of an object key, or "other"
// when the key carries none.
func Extension(objectKey string) string {
	idx := strings.LastIndex(objectKey, ".")
	if idx < 0 || idx == len(objectKey)-1 {
		return TypeOther
	}
	return strings.ToLower(objectKey[idx+1:])
}
