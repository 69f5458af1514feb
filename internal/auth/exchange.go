package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

// BearerExchanger refreshes against the forum auth service:
// POST <URL> with "Authorization: Bearer <refresh>", answered by {"access","refresh"}.
type BearerExchanger struct {
	URL    string
	Client Doer
}

var _ TokenExchanger = (*BearerExchanger)(nil)

func (e *BearerExchanger) Exchange(ctx context.Context, refreshToken string) (model.Credential, error) {
	if refreshToken == "" {
		return model.Credential{}, errs.ErrAuthRequired
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, http.NoBody)
	if err != nil {
		return model.Credential{}, err
	}
	req.Header.Set("Authorization", "Bearer "+refreshToken)
	req.Header.Set("Accept", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.Credential{}, errs.Transport("refresh", e.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Credential{}, errs.ErrAuthRequired
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		se := &errs.ServerError{Status: resp.StatusCode, Message: string(b)}
		return model.Credential{}, fmt.Errorf("%w: %w", errs.ErrAuthRequired, se)
	}

	var c model.Credential
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return model.Credential{}, fmt.Errorf("refresh response: %w", errs.ErrBadResponse)
	}
	if c.IsZero() {
		return model.Credential{}, fmt.Errorf("refresh response without access token: %w", errs.ErrBadResponse)
	}
	return c, nil
}

// OAuth2Exchanger performs an RFC 6749 refresh_token grant.
type OAuth2Exchanger struct {
	Config *oauth2.Config
	// HTTPClient overrides the client used to reach the token endpoint.
	HTTPClient *http.Client
}

var _ TokenExchanger = (*OAuth2Exchanger)(nil)

func (e *OAuth2Exchanger) Exchange(ctx context.Context, refreshToken string) (model.Credential, error) {
	if refreshToken == "" {
		return model.Credential{}, errs.ErrAuthRequired
	}
	if e.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.HTTPClient)
	}
	tok, err := e.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			if re.Response != nil && re.Response.StatusCode >= 500 {
				return model.Credential{}, fmt.Errorf("%w: %w", errs.ErrAuthRequired,
					&errs.ServerError{Status: re.Response.StatusCode, Message: re.ErrorCode, Err: re})
			}
			return model.Credential{}, fmt.Errorf("%w: %s", errs.ErrAuthRequired, re.ErrorCode)
		}
		return model.Credential{}, errs.Transport("refresh", e.Config.Endpoint.TokenURL, err)
	}
	return model.Credential{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}
