package util

import (
	"errors"
	"strings"
)

var ErrInvalidSegment = errors.New("invalid path segment")

// CleanSegment trims name and rejects anything that is not a single path segment.
func CleanSegment(name string) (string, error) {
	s := strings.TrimSpace(name)
	if s == "" || s == "." || s == ".." {
		return "", ErrInvalidSegment
	}
	if strings.ContainsAny(s, "/\\\x00") {
		return "", ErrInvalidSegment
	}
	return s, nil
}
