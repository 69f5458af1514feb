// Package danxi talks to the DanXi community services: authentication, the forum and
// the curriculum catalog.
package danxi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/and161185/campus-kit/internal/api"
	"github.com/and161185/campus-kit/internal/auth"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

// Default service roots.
const (
	DefaultAuthURL       = "https://auth.fduhole.com/api"
	DefaultForumURL      = "https://www.fduhole.com/api"
	DefaultCurriculumURL = "https://danke.fduhole.com/api"
)

// Endpoints are the service roots.
type Endpoints struct {
	Auth       string `mapstructure:"auth" validate:"required,url"`
	Forum      string `mapstructure:"forum" validate:"required,url"`
	Curriculum string `mapstructure:"curriculum" validate:"required,url"`
}

// DefaultEndpoints returns the production roots.
func DefaultEndpoints() Endpoints {
	return Endpoints{Auth: DefaultAuthURL, Forum: DefaultForumURL, Curriculum: DefaultCurriculumURL}
}

// RefreshURL is where the BearerExchanger rotates tokens.
func (e Endpoints) RefreshURL() string { return e.Auth + "/refresh" }

// Client calls the DanXi services. Protected calls go through doer, login through plain.
type Client struct {
	auth, forum, curriculum *api.Client
}

// New builds a client. plain may be nil.
func New(e Endpoints, doer, plain auth.Doer) (*Client, error) {
	a, err := api.New(e.Auth, doer, plain)
	if err != nil {
		return nil, err
	}
	f, err := api.New(e.Forum, doer, plain)
	if err != nil {
		return nil, err
	}
	c, err := api.New(e.Curriculum, doer, plain)
	if err != nil {
		return nil, err
	}
	return &Client{auth: a, forum: f, curriculum: c}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a token pair. A 401 here means wrong
// credentials and is returned as a plain *errs.ServerError.
func (c *Client) Login(ctx context.Context, email, password string) (model.Credential, error) {
	cred, err := api.JSON[model.Credential](ctx, c.auth, api.Request{
		Path:   "/login",
		JSON:   loginRequest{Email: email, Password: password},
		Public: true,
	})
	if err != nil {
		return model.Credential{}, fmt.Errorf("login: %w", err)
	}
	if cred.IsZero() {
		return model.Credential{}, fmt.Errorf("login: %w: empty access token", errs.ErrBadResponse)
	}
	return cred, nil
}

// Logout revokes the current tokens on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.auth.Exec(ctx, api.Request{Path: "/logout"})
}

// Profile returns the forum profile of the current user.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	return api.JSON[model.Profile](ctx, c.forum, api.Request{Path: "/users/me"})
}

// CourseGroups returns the whole curriculum catalog. It is large; callers cache it
// behind CourseGroupsHash.
func (c *Client) CourseGroups(ctx context.Context) ([]model.CourseGroup, error) {
	return api.JSON[[]model.CourseGroup](ctx, c.curriculum, api.Request{Path: "/courses"})
}

// CourseGroupsHash returns a digest that changes whenever the catalog does.
func (c *Client) CourseGroupsHash(ctx context.Context) (string, error) {
	h, err := api.JSON[struct {
		Hash string `json:"hash"`
	}](ctx, c.curriculum, api.Request{Path: "/courses/hash"})
	if err != nil {
		return "", err
	}
	return h.Hash, nil
}

// Divisions lists the forum boards.
func (c *Client) Divisions(ctx context.Context) ([]model.Division, error) {
	return api.JSON[[]model.Division](ctx, c.forum, api.Request{Path: "/divisions"})
}

// Tags lists every forum tag. The list changes slowly; callers cache it for a day.
func (c *Client) Tags(ctx context.Context) ([]model.Tag, error) {
	return api.JSON[[]model.Tag](ctx, c.forum, api.Request{Path: "/tags"})
}

// FavoriteIDs returns the ids of the holes the user marked as favorite.
func (c *Client) FavoriteIDs(ctx context.Context) ([]int, error) {
	r, err := api.JSON[struct {
		Data []int `json:"data"`
	}](ctx, c.forum, api.Request{Path: "/user/favorites", Query: url.Values{"plain": {"true"}}})
	if err != nil {
		return nil, err
	}
	if r.Data == nil {
		return []int{}, nil
	}
	return r.Data, nil
}
