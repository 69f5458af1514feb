// Package api builds requests against JSON services and maps failures to internal/errs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/and161185/campus-kit/internal/auth"
	"github.com/and161185/campus-kit/internal/errs"
)

const maxBody = 32 << 20

// Request describes one call. At most one of JSON, Form and Body is used as payload.
type Request struct {
	// Method defaults to GET without payload and POST with one.
	Method string
	Path   string
	Query  url.Values

	JSON        any
	Form        url.Values
	Body        []byte
	ContentType string

	// Public requests skip the Authenticator; a 401 then means bad input, not expiry.
	Public bool
}

// Client sends requests relative to Base.
type Client struct {
	Base *url.URL
	// Doer sends protected requests, normally an *auth.Authenticator.
	Doer auth.Doer
	// Plain sends public requests; http.DefaultClient when nil.
	Plain     auth.Doer
	UserAgent string
}

// New parses base and returns a Client.
func New(base string, doer auth.Doer, plain auth.Doer) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("api base %q: %w", base, err)
	}
	return &Client{Base: u, Doer: doer, Plain: plain}, nil
}

// URL resolves path and query against Base. Spaces are encoded as %20 and '+' as %2B
// so servers that decode '+' as a space see the literal character.
func (c *Client) URL(path string, q url.Values) *url.URL {
	u := *c.Base
	if path != "" {
		u = *u.JoinPath(path)
	}
	if len(q) > 0 {
		u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	}
	return &u
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	var (
		body        io.Reader
		contentType = r.ContentType
	)
	switch {
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	case r.Form != nil:
		body, contentType = strings.NewReader(r.Form.Encode()), "application/x-www-form-urlencoded"
	case r.Body != nil:
		body = bytes.NewReader(r.Body)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
		if body != nil {
			method = http.MethodPost
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(r.Path, r.Query).String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

// Data sends r and returns the raw response body of a 2xx/1xx response.
func (c *Client) Data(ctx context.Context, r Request) ([]byte, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	doer := c.Doer
	if r.Public || doer == nil {
		doer = c.Plain
		if doer == nil {
			doer = http.DefaultClient
		}
	}
	resp, err := doer.Do(req)
	var te *errs.TransportError
	if errors.Is(err, errs.ErrAuthRequired) || errors.As(err, &te) {
		return nil, err
	}
	if err != nil {
		return nil, errs.Transport(req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errs.Transport(req.Method, req.URL.Redacted(), err)
	}
	if resp.StatusCode >= 300 {
		se := &errs.ServerError{Status: resp.StatusCode, Message: messageOf(b)}
		if resp.StatusCode == http.StatusUnauthorized && !r.Public {
			return nil, fmt.Errorf("%w: %w", errs.ErrSessionExpired, se)
		}
		return nil, se
	}
	return b, nil
}

// Exec sends r and discards the response body.
func (c *Client) Exec(ctx context.Context, r Request) error {
	_, err := c.Data(ctx, r)
	return err
}

// JSON sends r and decodes the response into T.
func JSON[T any](ctx context.Context, c *Client, r Request) (T, error) {
	var v T
	b, err := c.Data(ctx, r)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", errs.ErrBadResponse, r.Path, err)
	}
	return v, nil
}

func messageOf(b []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &m) == nil {
		return m.Message
	}
	return ""
}
