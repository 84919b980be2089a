package httpserver

import (
	"errors"
	"net/http"

	"eventpush/internal/domain"
)

const (
	ErrInvalidJSON      = "invalid json"
	ErrMissingID        = "missing id"
	ErrDependency       = "dependency error"
	ErrNotFound         = "not found"
	ErrInvalidWait      = "invalid wait"
	ErrInvalidEvent     = "invalid event"
	ErrInvalidSignature = "invalid signature"
)

// statusFor maps domain errors to a status code. Anything unknown is a dependency failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrInvalidDestination),
		errors.Is(err, domain.ErrInvalidPhone):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusBadGateway {
		msg = ErrDependency
	}
	http.Error(w, msg, status)
}
