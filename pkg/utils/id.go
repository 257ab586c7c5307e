package utils

import (
	"github.com/google/uuid"
)

// GenerateSessionID generates the opaque session id bound to one broadcast
// context. Stable for the lifetime of the Stream row.
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateStreamID generates a unique stream id.
func GenerateStreamID() string {
	return uuid.NewString()
}

// GeneratePeekInID generates a unique peek-in request id.
func GeneratePeekInID() string {
	return uuid.NewString()
}

// GenerateConnectionID generates a unique gateway connection id.
func GenerateConnectionID() string {
	return uuid.NewString()
}

// GenerateRequestID generates a correlation id for one HTTP request.
func GenerateRequestID() string {
	return uuid.NewString()
}
