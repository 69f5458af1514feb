package campus

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/campus-kit/internal/api"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

// gradWeekFetches bounds the per-week requests GradCourses runs at once.
const gradWeekFetches = 4

// lessonStarts are the start times of lessons 1..13.
var lessonStarts = []string{
	"08:00", "08:55", "09:55", "10:50", "11:45", "13:30", "14:25",
	"15:25", "16:20", "17:15", "18:30", "19:25", "20:20",
}

var (
	academicYear = regexp.MustCompile(`^(\d+)-\d+`)
	trailingCode = regexp.MustCompile(`[A-Za-z0-9]+$`)
)

type gradTerm struct {
	Year      string `json:"year"`
	Term      string `json:"term"`
	StartDay  string `json:"startday"`
	CountWeek int    `json:"countweek"`
}

type gradIndex struct {
	Params   gradTerm   `json:"params"`
	TermInfo []gradTerm `json:"termInfo"`
}

// GradSemesters lists the graduate terms and marks the one in progress. Start dates
// are moved to the following Monday; older terms sometimes report a mid-week day.
func (c *Client) GradSemesters(ctx context.Context) (model.SemesterList, error) {
	idx, err := api.Envelope[gradIndex](ctx, c.zlapp, api.Request{Path: "/fudanyjskb/wap/default/get-index"})
	if err != nil {
		return model.SemesterList{}, err
	}
	out := model.SemesterList{Semesters: make([]model.Semester, 0, len(idx.TermInfo))}
	for _, t := range idx.TermInfo {
		s, ok := t.semester()
		if !ok {
			continue
		}
		out.Semesters = append(out.Semesters, s)
	}
	if cur, ok := idx.Params.semester(); ok {
		if s, ok := out.Find(cur.Key()); ok {
			out.Current = &s
		}
	}
	return out, nil
}

func (t gradTerm) semester() (model.Semester, bool) {
	m := academicYear.FindStringSubmatch(t.Year)
	if m == nil {
		return model.Semester{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return model.Semester{}, false
	}
	term := "2"
	if t.Term == "1" {
		term = "1"
	}
	s := model.Semester{Year: year, Term: term, WeekCount: t.CountWeek}
	if d, err := time.ParseInLocation(time.DateOnly, t.StartDay, shanghai); err == nil {
		s.StartDate = nextMonday(d)
	}
	return s, true
}

func nextMonday(d time.Time) time.Time {
	return d.AddDate(0, 0, (int(time.Monday)-int(d.Weekday())+7)%7)
}

type gradEvent struct {
	Title    string `json:"TITLE"`
	Start    string `json:"KSSJ"`
	End      string `json:"JSSJ"`
	Location string `json:"DD"`
}

type gradSlot struct {
	name, code, location string
	weekday, start, end  int
}

// GradCourses builds the graduate timetable of s. The service only answers per date
// range, so every week is fetched and lessons recurring on the same slot are merged
// into one course with the weeks they fall on.
func (c *Client) GradCourses(ctx context.Context, s model.Semester) ([]model.Course, error) {
	if s.StartDate.IsZero() || s.WeekCount <= 0 {
		return nil, fmt.Errorf("%w: semester %s has no calendar", errs.ErrBadResponse, s.Key())
	}
	weeks := make([][]gradSlot, s.WeekCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gradWeekFetches)
	for w := range s.WeekCount {
		g.Go(func() error {
			slots, err := c.gradWeek(gctx, s.StartDate.AddDate(0, 0, 7*w), s.StartDate.AddDate(0, 0, 7*(w+1)))
			if err != nil {
				return fmt.Errorf("week %d: %w", w+1, err)
			}
			weeks[w] = slots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	courses := []model.Course{}
	seen := map[gradSlot]int{}
	for w, slots := range weeks {
		for _, sl := range slots {
			i, ok := seen[sl]
			if !ok {
				i = len(courses)
				seen[sl] = i
				courses = append(courses, model.Course{
					Name: sl.name, Code: sl.code, Location: sl.location,
					Weekday: sl.weekday, Start: sl.start, End: sl.end, OnWeeks: []int{},
				})
			}
			courses[i].OnWeeks = append(courses[i].OnWeeks, w+1)
		}
	}
	return courses, nil
}

// gradWeek returns the lessons between from and to, one slot per course and day.
// Consecutive lessons arrive as separate events.
func (c *Client) gradWeek(ctx context.Context, from, to time.Time) ([]gradSlot, error) {
	r, err := api.JSON[struct {
		Datas []gradEvent `json:"datas"`
	}](ctx, c.graduate, api.Request{
		Path: "/gsapp/sys/wdrcappfudan/wdrc/loadRcxx.do",
		Form: url.Values{
			"ksrq": {from.Format(time.DateOnly)},
			"jsrq": {to.Format(time.DateOnly)},
			"ids":  {""},
		},
	})
	if err != nil {
		return nil, err
	}

	type day struct {
		title, date string
	}
	var (
		order []day
		byDay = map[day]*gradSlot{}
	)
	for _, e := range r.Datas {
		at, err := time.ParseInLocation("2006-01-02 15:04", e.Start, shanghai)
		if err != nil {
			return nil, fmt.Errorf("%w: event start %q", errs.ErrBadResponse, e.Start)
		}
		lesson := lessonAt(at)
		if lesson == 0 {
			return nil, fmt.Errorf("%w: no lesson starts at %s", errs.ErrBadResponse, at.Format("15:04"))
		}
		k := day{e.Title, at.Format(time.DateOnly)}
		if sl, ok := byDay[k]; ok {
			sl.start, sl.end = min(sl.start, lesson), max(sl.end, lesson)
			continue
		}
		name, code := splitGradTitle(e.Title)
		byDay[k] = &gradSlot{
			name: name, code: code, location: e.Location,
			weekday: (int(at.Weekday()) + 6) % 7, start: lesson, end: lesson,
		}
		order = append(order, k)
	}
	out := make([]gradSlot, 0, len(order))
	for _, k := range order {
		out = append(out, *byDay[k])
	}
	return out, nil
}

func lessonAt(t time.Time) int {
	hm := t.Format("15:04")
	for i, s := range lessonStarts {
		if s == hm {
			return i + 1
		}
	}
	return 0
}

// splitGradTitle reads titles shaped "<kind>-<name>(<details> <code>.<section>)".
// Titles without that shape are used as the name.
func splitGradTitle(title string) (name, code string) {
	_, rest, ok := strings.Cut(title, "-")
	if !ok {
		return strings.TrimSpace(title), ""
	}
	name, inner, ok := strings.Cut(rest, "(")
	if !ok {
		return strings.TrimSpace(rest), ""
	}
	inner, _, _ = strings.Cut(inner, ")")
	inner, _, _ = strings.Cut(inner, ".")
	return strings.TrimSpace(name), trailingCode.FindString(strings.TrimSpace(inner))
}
