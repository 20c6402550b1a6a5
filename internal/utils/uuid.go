package utils

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique identifier for one connector invocation, used
// to correlate log lines across a run.
func NewRunID() string {
	return uuid.New().String()
}
