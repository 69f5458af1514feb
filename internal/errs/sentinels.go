// Package errs contains sentinel errors and error types shared across the client core.
package errs

import "errors"

// Common sentinels across auth, api and store layers.
var (
	// ErrAuthRequired indicates there is no usable credential: either none is stored
	// or the refresh token was rejected. The user has to log in again.
	ErrAuthRequired = errors.New("authentication required")

	// ErrSessionExpired is returned when a request still receives 401 after the
	// refresh-and-retry cycle.
	ErrSessionExpired = &wrapped{msg: "session expired", err: ErrAuthRequired}

	// ErrNotDiningTime is reported by the canteen queue service outside of meal hours.
	ErrNotDiningTime = errors.New("not dining time")

	// ErrTermsNotAgreed is reported by the e-card service until the user accepts its terms.
	ErrTermsNotAgreed = errors.New("terms not agreed")

	// ErrBadResponse indicates a response that could not be decoded.
	ErrBadResponse = errors.New("bad server response")
)

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.err }
