package upstream

import (
	"errors"
	"fmt"
)

// Error is a non-2xx response from an external API. The provider's
// response body is kept verbatim for diagnostics.
type Error struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsStatus reports whether err is an upstream error with the given status code.
func IsStatus(err error, status int) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode == status
	}
	return false
}
