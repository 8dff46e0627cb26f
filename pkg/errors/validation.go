package errors

import (
	"strings"
	"unicode"
)

// ValidatePatchSize checks that p is an odd integer of at least 3.
func ValidatePatchSize(p int) error {
	if p < 3 {
		return New(ErrCodeInvalidPatchSize, "patch size must be at least 3, got %d", p)
	}
	if p%2 == 0 {
		return New(ErrCodeInvalidPatchSize, "patch size must be odd, got %d", p)
	}
	return nil
}

// ValidateDimensions checks that a mask of size mw×mh can be used with an
// image of size iw×ih.
func ValidateDimensions(iw, ih, mw, mh int) error {
	if iw != mw || ih != mh {
		return New(ErrCodeInvalidMask, "mask is %dx%d but image is %dx%d", mw, mh, iw, ih)
	}
	return nil
}

// ValidatePath validates a user-supplied file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateUploadName validates a filename received from a remote client.
// It ensures the name is a simple basename without path components.
func ValidateUploadName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "filename cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "filename too long (max 256 characters)")
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return New(ErrCodeInvalidInput, "filename cannot contain path components")
	}
	return nil
}
