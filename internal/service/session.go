// Package service wires credentials, API clients and caches into a user session.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/and161185/campus-kit/internal/auth"
	"github.com/and161185/campus-kit/internal/campus"
	"github.com/and161185/campus-kit/internal/config"
	"github.com/and161185/campus-kit/internal/credential"
	"github.com/and161185/campus-kit/internal/danxi"
	"github.com/and161185/campus-kit/internal/model"
	"github.com/and161185/campus-kit/internal/persist"
	"github.com/and161185/campus-kit/internal/store"
)

// Persistence keys of the disk-backed stores.
const (
	KeyBusRoutes     = "fdutools/bus.json"
	KeySemesters     = "fdutools/undergrad-semesters.json"
	KeyCourses       = "fdutools/undergrad-course-map.json"
	KeyGradSemesters = "fdutools/grad-semesters.json"
	KeyGradCourses   = "fdutools/grad-course-map.json"
	KeyCourseCatalog = "danke/course-groups.json"
	KeyForumTags     = "danxi/tags.json"
)

// ErrUnknownSemester is returned for a graduate term the service does not list.
var ErrUnknownSemester = errors.New("unknown semester")

// Stores are the cached resources of one session.
type Stores struct {
	UndergradAnnouncements *store.Paged[model.Announcement]
	PostgradAnnouncements  *store.Paged[model.Announcement]
	ElectricityLogs        *store.Value[[]model.ElectricityLog]
	WalletLogs             *store.Value[[]model.WalletLog]
	CardInfo               *store.Value[model.CardInfo]
	BusRoutes              *store.Value[model.BusRoutes]
	Classrooms             *store.Keyed[string, []model.Classroom]
	Semesters              *store.Value[[]model.Semester]
	Courses                *store.Keyed[int, []model.Course]
	GradSemesters          *store.Value[model.SemesterList]
	GradCourses            *store.Keyed[string, []model.Course] // by Semester.Key
	CourseCatalog          *store.Hashed[[]model.CourseGroup]
	Profile                *store.Value[model.Profile]
	Divisions              *store.Value[[]model.Division]
	ForumTags              *store.Value[[]model.Tag]
	FavoriteIDs            *store.Value[[]int]
}

// Deps are the collaborators New does not build itself.
type Deps struct {
	Creds credential.Store
	Blobs persist.BlobStore
	// HTTP reaches the network; http.DefaultClient when nil.
	HTTP       *http.Client
	Extractors campus.Extractors
	Log        *zap.Logger
	// Metrics is shared by every store.
	Metrics store.Metrics
}

// Session owns the credential store, the authenticated transport, the API clients and
// every cache built on them.
type Session struct {
	Creds     credential.Store
	Auth      *auth.Authenticator
	Refresher *auth.Refresher
	DanXi     *danxi.Client
	Campus    *campus.Client
	Stores    Stores

	blobs   persist.BlobStore
	group   *store.Group
	log     *zap.Logger
	closers []func()
}

func exchanger(cfg *config.Config, hc *http.Client) auth.TokenExchanger {
	if cfg.OAuth2.TokenURL != "" {
		return &auth.OAuth2Exchanger{
			Config: &oauth2.Config{
				ClientID:     cfg.OAuth2.ClientID,
				ClientSecret: cfg.OAuth2.ClientSecret,
				Endpoint:     oauth2.Endpoint{TokenURL: cfg.OAuth2.TokenURL},
			},
			HTTPClient: hc,
		}
	}
	return &auth.BearerExchanger{URL: cfg.DanXi.RefreshURL(), Client: hc}
}

// New builds a session from cfg and deps.
func New(cfg *config.Config, d Deps) (*Session, error) {
	if d.Creds == nil || d.Blobs == nil {
		return nil, errors.New("service: credential store and blob store are required")
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	hc := d.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}

	refresher := auth.NewRefresher(d.Creds, exchanger(cfg, hc), log.Named("refresh"))
	authn := auth.NewAuthenticator(d.Creds, refresher, hc, log.Named("http"))

	dx, err := danxi.New(cfg.DanXi, authn, hc)
	if err != nil {
		return nil, fmt.Errorf("danxi client: %w", err)
	}
	opts := []campus.Option{campus.WithExtractors(d.Extractors)}
	if cfg.UserAgent != "" {
		opts = append(opts, campus.WithUserAgent(cfg.UserAgent))
	}
	cc, err := campus.New(cfg.Campus, authn, opts...)
	if err != nil {
		return nil, fmt.Errorf("campus client: %w", err)
	}

	s := &Session{
		Creds:     d.Creds,
		Auth:      authn,
		Refresher: refresher,
		DanXi:     dx,
		Campus:    cc,
		blobs:     d.Blobs,
		group:     store.NewGroup(log),
		log:       log,
	}
	s.buildStores(d)
	return s, nil
}

func (s *Session) buildStores(d Deps) {
	g, c, dx := s.group, s.Campus, s.DanXi
	base := []store.Option{store.WithLogger(s.log)}
	if d.Metrics != nil {
		base = append(base, store.WithMetrics(d.Metrics))
	}
	with := func(extra ...store.Option) []store.Option {
		return append(append([]store.Option{}, base...), extra...)
	}
	hourly := store.WithTTL(time.Hour)
	daily := store.WithTTL(24 * time.Hour)

	s.Stores = Stores{
		UndergradAnnouncements: store.Add(g, store.NewPaged[model.Announcement]("undergrad-announcements",
			c.UndergradAnnouncements, with()...)),
		PostgradAnnouncements: store.Add(g, store.NewPaged[model.Announcement]("postgrad-announcements",
			c.PostgradAnnouncements, with()...)),
		ElectricityLogs: store.Add(g, store.NewValue[[]model.ElectricityLog]("electricity-logs",
			c.ElectricityLogs, with(hourly)...)),
		WalletLogs: store.Add(g, store.NewValue[[]model.WalletLog]("wallet-logs",
			c.WalletLogs, with(hourly)...)),
		CardInfo: store.Add(g, store.NewValue[model.CardInfo]("card-info",
			c.CardInfo, with()...)),
		BusRoutes: store.Add(g, store.NewValue[model.BusRoutes]("bus-routes",
			c.BusRoutes, with(store.WithPersistence(s.blobs, KeyBusRoutes))...)),
		Classrooms: store.Add(g, store.NewKeyed[string, []model.Classroom]("classrooms",
			c.Classrooms, with()...)),
		Semesters: store.Add(g, store.NewValue[[]model.Semester]("semesters",
			c.Semesters, with(store.WithPersistence(s.blobs, KeySemesters))...)),
		Courses: store.Add(g, store.NewKeyed[int, []model.Course]("courses",
			c.Courses, with(store.WithPersistence(s.blobs, KeyCourses))...)),
		GradSemesters: store.Add(g, store.NewValue[model.SemesterList]("grad-semesters",
			c.GradSemesters, with(store.WithPersistence(s.blobs, KeyGradSemesters))...)),
		GradCourses: store.Add(g, store.NewKeyed[string, []model.Course]("grad-courses",
			s.gradCourses, with(store.WithPersistence(s.blobs, KeyGradCourses))...)),
		CourseCatalog: store.Add(g, store.NewHashed[[]model.CourseGroup]("course-catalog",
			dx.CourseGroupsHash, dx.CourseGroups, with(store.WithPersistence(s.blobs, KeyCourseCatalog))...)),
		Profile: store.Add(g, store.NewValue[model.Profile]("profile",
			dx.Profile, with()...)),
		Divisions: store.Add(g, store.NewValue[[]model.Division]("divisions",
			dx.Divisions, with()...)),
		ForumTags: store.Add(g, store.NewValue[[]model.Tag]("forum-tags",
			dx.Tags, with(daily, store.WithPersistence(s.blobs, KeyForumTags))...)),
		FavoriteIDs: store.Add(g, store.NewValue[[]int]("favorite-ids",
			dx.FavoriteIDs, with()...)),
	}
}

// gradCourses resolves a term key through the cached graduate term list. An unknown
// key refreshes the list once, since a new term may have opened since it was cached.
func (s *Session) gradCourses(ctx context.Context, key string) ([]model.Course, error) {
	terms, err := s.Stores.GradSemesters.GetCached(ctx)
	if err != nil {
		return nil, err
	}
	sem, ok := terms.Find(key)
	if !ok {
		if terms, err = s.Stores.GradSemesters.GetRefreshed(ctx); err != nil {
			return nil, err
		}
		if sem, ok = terms.Find(key); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSemester, key)
		}
	}
	return s.Campus.GradCourses(ctx, sem)
}

// StoreNames lists every registered store.
func (s *Session) StoreNames() []string { return s.group.Names() }

// Login exchanges email and password for a credential and stores it.
func (s *Session) Login(ctx context.Context, email, password string) error {
	cred, err := s.DanXi.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := s.Creds.Set(cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.log.Info("logged in", zap.String("email", email))
	return nil
}

// Logout revokes the tokens remotely when possible, then wipes every store and the
// credential. A failed remote logout does not stop the local wipe.
func (s *Session) Logout(ctx context.Context) error {
	if _, ok := s.Creds.Get(); ok {
		if err := s.DanXi.Logout(ctx); err != nil {
			s.log.Warn("remote logout failed", zap.Error(err))
		}
	}
	s.Campus.ResetSession()
	clearErr := s.group.ClearAll(ctx)
	credErr := s.Creds.Clear()
	if credErr != nil {
		credErr = fmt.Errorf("clear credential: %w", credErr)
	}
	return errors.Join(clearErr, credErr)
}

// Status summarizes the session without touching the network.
type Status struct {
	LoggedIn     bool       `json:"logged_in"`
	AccessExpiry *time.Time `json:"access_expiry,omitempty"`
	Stores       []string   `json:"stores"`
}

func (s *Session) Status() Status {
	st := Status{Stores: s.StoreNames()}
	cred, ok := s.Creds.Get()
	if !ok {
		return st
	}
	st.LoggedIn = true
	if exp, ok := cred.AccessExpiry(); ok {
		st.AccessExpiry = &exp
	}
	return st
}

// expirer is implemented by shared backends that can age out blobs.
type expirer interface {
	Expire(ctx context.Context, before time.Time) (int64, error)
}

// Prune drops blobs not written for longer than age. Backends without expiry
// support report zero.
func (s *Session) Prune(ctx context.Context, age time.Duration) (int64, error) {
	e, ok := s.blobs.(expirer)
	if !ok {
		return 0, nil
	}
	return e.Expire(ctx, time.Now().Add(-age))
}

// Close releases backend connections.
func (s *Session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
