// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"reqdash/internal/service"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, ref not found).
	UserError = 1

	// AuthError indicates an auth error (not logged in, bad credentials).
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)

// For returns the exit code for err.
// Data errors raised before any call, or rejected by the backend with a
// 4xx status, are user errors.
func For(err error) int {
	if err == nil {
		return Success
	}
	if errors.Is(err, service.ErrNoSession) || service.IsAuth(err) {
		return AuthError
	}
	var se *service.Error
	if errors.As(err, &se) {
		switch {
		case se.Status == 0 && se.Err == nil:
			return UserError
		case se.Status >= 400 && se.Status < 500:
			return UserError
		}
	}
	return BackendError
}
