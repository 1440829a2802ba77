package middleware

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Input validation and sanitization utilities for uploads

var (
	ErrNoFile      = errors.New("no file uploaded")
	ErrNotCSV      = errors.New("only csv files are allowed")
	ErrFileTooBig  = errors.New("file too large")
	ErrEmptyUpload = errors.New("uploaded file is empty")
)

// ValidateUploadName checks the uploaded file name carries a .csv extension.
func ValidateUploadName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return ErrNotCSV
	}
	return nil
}

// ValidateUploadSize enforces 0 < size <= max. max <= 0 means unlimited.
func ValidateUploadSize(size, max int64) error {
	if size == 0 {
		return ErrEmptyUpload
	}
	if max > 0 && size > max {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooBig, size, max)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeFilename keeps only the base name, cleaned for logs and headers.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = SanitizeString(name)
	name = strings.NewReplacer("\"", "", "\n", "", "\t", "").Replace(name)
	if name == "" || name == "." || name == "/" {
		return "upload.csv"
	}
	return name
}
