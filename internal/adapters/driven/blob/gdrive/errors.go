package gdrive

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

func hasCode(err error, code int) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == code
	}
	return false
}

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	return hasCode(err, http.StatusUnauthorized)
}

// IsForbidden returns true if the error indicates insufficient permissions.
func IsForbidden(err error) bool {
	return hasCode(err, http.StatusForbidden)
}

// IsNotFound returns true if the error indicates a missing file.
func IsNotFound(err error) bool {
	return hasCode(err, http.StatusNotFound)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return hasCode(err, http.StatusTooManyRequests)
}
