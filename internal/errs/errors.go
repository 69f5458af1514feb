package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError wraps network-level failures (dial, TLS, timeouts, broken connections).
// It is never retried by the core and never mapped to ErrAuthRequired.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Transport wraps err into a *TransportError unless it already is one.
func Transport(op, url string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, URL: url, Err: err}
}

// IsTimeout reports whether err carries a transport timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}

// ServerError is a non-auth failure reported by a server, either through a non-2xx
// status or an in-band error envelope.
type ServerError struct {
	Status  int
	Code    int
	Message string
	// Err optionally links a domain sentinel such as ErrNotDiningTime.
	Err error
}

func (e *ServerError) Error() string {
	text := http.StatusText(e.Status)
	if e.Status == 0 {
		text = "server error"
	}
	if e.Message != "" {
		return text + " " + e.Message
	}
	return text
}

func (e *ServerError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from a *ServerError, 0 otherwise.
func StatusCode(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
