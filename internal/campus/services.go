package campus

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/and161185/campus-kit/internal/api"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

// Markers the campus pages use instead of status codes.
var (
	notDiningTimeMarker = []byte("仅在用餐时段开放")
	termsMarker         = []byte("btn-agree-ok")
)

// UndergradAnnouncements returns one page (1-based) of academic office notices.
func (c *Client) UndergradAnnouncements(ctx context.Context, page int) ([]model.Announcement, error) {
	b, err := c.undergrad.Data(ctx, api.Request{Path: fmt.Sprintf("/9397/list%d.htm", page)})
	if err != nil {
		return nil, err
	}
	return c.extract.Announcements(b)
}

// PostgradAnnouncements returns one page of graduate school notices.
func (c *Client) PostgradAnnouncements(ctx context.Context, page int) ([]model.Announcement, error) {
	b, err := c.postgrad.Data(ctx, api.Request{Path: fmt.Sprintf("/tzgg/list%d.htm", page)})
	if err != nil {
		return nil, err
	}
	return c.extract.Announcements(b)
}

// Classrooms returns the occupation table of a teaching building.
func (c *Client) Classrooms(ctx context.Context, building string) ([]model.Classroom, error) {
	b, err := c.classroom.Data(ctx, api.Request{Path: "/", Query: url.Values{"b": {building}}})
	if err != nil {
		return nil, err
	}
	return c.extract.Classrooms(b)
}

// Canteens returns live dining room occupancy. Outside meal hours the service
// answers with a notice, reported as errs.ErrNotDiningTime.
func (c *Client) Canteens(ctx context.Context) ([]model.Canteen, error) {
	b, err := c.my.Data(ctx, api.Request{Path: "/simple_list/stqk"})
	if err != nil {
		return nil, err
	}
	if bytes.Contains(b, notDiningTimeMarker) {
		return nil, errs.ErrNotDiningTime
	}
	return c.extract.Canteen(b)
}

// QRCode returns the e-card payment code. Until the user accepts the service terms
// the page shows an agreement form, reported as errs.ErrTermsNotAgreed.
func (c *Client) QRCode(ctx context.Context) (string, error) {
	b, err := c.ecard.Data(ctx, api.Request{Path: "/epay/wxpage/fudan/zfm/qrcode"})
	if err != nil {
		return "", err
	}
	if bytes.Contains(b, termsMarker) {
		return "", errs.ErrTermsNotAgreed
	}
	return c.extract.QRCode(b)
}

// Semesters lists the academic terms known to the timetable service.
func (c *Client) Semesters(ctx context.Context) ([]model.Semester, error) {
	b, err := c.academic.Data(ctx, api.Request{
		Path: "/eams/dataQuery.action",
		Form: url.Values{"dataType": {"semesterCalendar"}},
	})
	if err != nil {
		return nil, err
	}
	return c.extract.Semesters(b)
}

// CourseParams returns the current semester id and the user's timetable ids.
// They are fetched once per session; a fetch that overlaps ResetSession is returned
// to its caller but not remembered.
func (c *Client) CourseParams(ctx context.Context) (CourseParams, error) {
	c.mu.Lock()
	if c.params != nil {
		p := *c.params
		c.mu.Unlock()
		return p, nil
	}
	gen := c.paramsGen
	c.mu.Unlock()

	b, err := c.academic.Data(ctx, api.Request{Path: "/eams/courseTableForStd.action"})
	if err != nil {
		return CourseParams{}, err
	}
	p, err := c.extract.CourseParams(b)
	if err != nil {
		return CourseParams{}, err
	}

	c.mu.Lock()
	if c.paramsGen == gen {
		c.params = &p
	}
	c.mu.Unlock()
	return p, nil
}

// Courses returns the user's timetable for a semester.
func (c *Client) Courses(ctx context.Context, semesterID int) ([]model.Course, error) {
	p, err := c.CourseParams(ctx)
	if err != nil {
		return nil, err
	}
	b, err := c.academic.Data(ctx, api.Request{
		Path: "/eams/courseTableForStd!courseTable.action",
		Form: url.Values{
			"ignoreHead":   {"1"},
			"setting.kind": {"std"},
			"startWeek":    {"1"},
			"semester.id":  {strconv.Itoa(semesterID)},
			"ids":          {p.IDs},
		},
	})
	if err != nil {
		return nil, err
	}
	return c.extract.Courses(b)
}

// ResetSession forgets per-user parameters; called on logout.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.params = nil
	c.paramsGen++
	c.mu.Unlock()
}
