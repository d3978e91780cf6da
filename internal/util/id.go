package util

import "github.com/google/uuid"

// NewID returns a new row/object identifier.
func NewID() string {
	return uuid.NewString()
}
