package core

import "github.com/google/uuid"

// NewID mints an identifier for request IDs, call IDs, and message IDs. The
// teacher uses uuid.New().String() throughout hitl/manager.go for exactly
// this purpose.
func NewID() string {
	return uuid.New().String()
}
