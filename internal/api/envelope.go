package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/campus-kit/internal/errs"
)

// envelope is the campus services wrapper: {"e": code, "m": message, "d": data}.
type envelope struct {
	E int             `json:"e"`
	M string          `json:"m"`
	D json.RawMessage `json:"d"`
}

// Unwrap validates an envelope and returns its data. A non-zero code becomes a
// *errs.ServerError carrying the message.
func Unwrap(b []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", errs.ErrBadResponse, err)
	}
	if env.E != 0 {
		return nil, &errs.ServerError{Code: env.E, Message: env.M}
	}
	return env.D, nil
}

// Envelope sends r, unwraps the envelope and decodes its data into T.
func Envelope[T any](ctx context.Context, c *Client, r Request) (T, error) {
	var v T
	b, err := c.Data(ctx, r)
	if err != nil {
		return v, err
	}
	d, err := Unwrap(b)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(d, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", errs.ErrBadResponse, r.Path, err)
	}
	return v, nil
}
