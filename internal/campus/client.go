// Package campus fetches Fudan campus services: announcements, e-card, bus, classrooms,
// timetables and canteens.
//
// Several services answer with HTML. Turning such pages into values is the job of an
// Extractor supplied by the caller; the defaults decode JSON so tests and JSON-speaking
// proxies work out of the box.
package campus

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/and161185/campus-kit/internal/api"
	"github.com/and161185/campus-kit/internal/auth"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

// Extractor turns a response body into a value.
type Extractor[T any] func(body []byte) (T, error)

// CourseParams are the per-user parameters the timetable service needs.
type CourseParams struct {
	SemesterID int    `json:"semester_id"`
	IDs        string `json:"ids"`
}

// Extractors holds the page parsers for HTML-backed endpoints.
type Extractors struct {
	Announcements Extractor[[]model.Announcement]
	Classrooms    Extractor[[]model.Classroom]
	Semesters     Extractor[[]model.Semester]
	CourseParams  Extractor[CourseParams]
	Courses       Extractor[[]model.Course]
	Canteen       Extractor[[]model.Canteen]
	QRCode        Extractor[string]
}

// JSONExtractor decodes the body as JSON.
func JSONExtractor[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: %v", errs.ErrBadResponse, err)
	}
	return v, nil
}

// DefaultExtractors decode every page as JSON.
func DefaultExtractors() Extractors {
	return Extractors{
		Announcements: JSONExtractor[[]model.Announcement],
		Classrooms:    JSONExtractor[[]model.Classroom],
		Semesters:     JSONExtractor[[]model.Semester],
		CourseParams:  JSONExtractor[CourseParams],
		Courses:       JSONExtractor[[]model.Course],
		Canteen:       JSONExtractor[[]model.Canteen],
		QRCode:        JSONExtractor[string],
	}
}

func (e *Extractors) fill() {
	d := DefaultExtractors()
	if e.Announcements == nil {
		e.Announcements = d.Announcements
	}
	if e.Classrooms == nil {
		e.Classrooms = d.Classrooms
	}
	if e.Semesters == nil {
		e.Semesters = d.Semesters
	}
	if e.CourseParams == nil {
		e.CourseParams = d.CourseParams
	}
	if e.Courses == nil {
		e.Courses = d.Courses
	}
	if e.Canteen == nil {
		e.Canteen = d.Canteen
	}
	if e.QRCode == nil {
		e.QRCode = d.QRCode
	}
}

// Hosts are the base URLs of the individual services.
type Hosts struct {
	My        string `mapstructure:"my" validate:"required,url"`
	Zlapp     string `mapstructure:"zlapp" validate:"required,url"`
	Undergrad string `mapstructure:"undergrad" validate:"required,url"`
	Postgrad  string `mapstructure:"postgrad" validate:"required,url"`
	Academic  string `mapstructure:"academic" validate:"required,url"`
	Classroom string `mapstructure:"classroom" validate:"required,url"`
	ECard     string `mapstructure:"ecard" validate:"required,url"`
	Graduate  string `mapstructure:"graduate" validate:"required,url"`
}

// DefaultHosts returns the production endpoints.
func DefaultHosts() Hosts {
	return Hosts{
		My:        "https://my.fudan.edu.cn",
		Zlapp:     "https://zlapp.fudan.edu.cn",
		Undergrad: "https://jwc.fudan.edu.cn",
		Postgrad:  "https://gs.fudan.edu.cn",
		Academic:  "https://jwfw.fudan.edu.cn",
		Classroom: "https://webvpn.fudan.edu.cn/http/77726476706e69737468656265737421a1a70fca737e39032e46df",
		ECard:     "https://ecard.fudan.edu.cn",
		Graduate:  "https://yzsfwapp.fudan.edu.cn",
	}
}

// Client talks to the campus services through an authenticated Doer.
type Client struct {
	my, zlapp, undergrad, postgrad, academic, classroom, ecard, graduate *api.Client
	extract                                                              Extractors

	mu        sync.Mutex
	params    *CourseParams
	paramsGen uint64
}

// Option configures a Client.
type Option func(*Client)

// WithExtractors overrides page parsers; nil fields keep the JSON defaults.
func WithExtractors(e Extractors) Option {
	return func(c *Client) { c.extract = e }
}

// WithUserAgent sets the User-Agent of every request. Some campus servers reject
// requests without a browser-like one.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		for _, a := range c.apis() {
			a.UserAgent = ua
		}
	}
}

// New builds a client for hosts. doer is normally an *auth.Authenticator.
func New(h Hosts, doer auth.Doer, opts ...Option) (*Client, error) {
	c := &Client{}
	targets := []struct {
		dst  **api.Client
		base string
	}{
		{&c.my, h.My}, {&c.zlapp, h.Zlapp}, {&c.undergrad, h.Undergrad}, {&c.postgrad, h.Postgrad},
		{&c.academic, h.Academic}, {&c.classroom, h.Classroom}, {&c.ecard, h.ECard},
		{&c.graduate, h.Graduate},
	}
	for _, t := range targets {
		a, err := api.New(t.base, doer, nil)
		if err != nil {
			return nil, err
		}
		*t.dst = a
	}
	for _, o := range opts {
		o(c)
	}
	c.extract.fill()
	return c, nil
}

func (c *Client) apis() []*api.Client {
	return []*api.Client{c.my, c.zlapp, c.undergrad, c.postgrad, c.academic, c.classroom, c.ecard, c.graduate}
}
