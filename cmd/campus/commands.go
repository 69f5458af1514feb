package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/and161185/campus-kit/internal/model"
	"github.com/and161185/campus-kit/internal/service"
)

type cmdEnv struct {
	env
	s       *service.Session
	refresh bool
}

type handler func(ctx context.Context, c *cmdEnv, args []string) error

var commands = map[string]handler{
	"login":         cmdLogin,
	"logout":        cmdLogout,
	"status":        cmdStatus,
	"announcements": cmdAnnouncements,
	"bus":           cmdBus,
	"electricity":   cmdElectricity,
	"wallet":        cmdWallet,
	"card":          cmdCard,
	"canteen":       cmdCanteen,
	"qrcode":        cmdQRCode,
	"classrooms":    cmdClassrooms,
	"semesters":     cmdSemesters,
	"courses":       cmdCourses,
	"grad-courses":  cmdGradCourses,
	"catalog":       cmdCatalog,
	"profile":       cmdProfile,
	"divisions":     cmdDivisions,
	"tags":          cmdTags,
	"favorites":     cmdFavorites,
	"prune":         cmdPrune,
}

func (c *cmdEnv) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// cached picks GetCached or GetRefreshed depending on -refresh.
func cached[T any](ctx context.Context, c *cmdEnv, get, refresh func(context.Context) (T, error)) (T, error) {
	if c.refresh {
		return refresh(ctx)
	}
	return get(ctx)
}

func cmdLogin(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", `password, or "-" to read stdin`)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(c.stderr, "need -email and -password")
		return errUsage
	}
	pw := *password
	if pw == "-" {
		b, err := readAll("-", c.stdin)
		if err != nil {
			return err
		}
		pw = strings.TrimSpace(string(b))
	}
	if err := c.s.Login(ctx, *email, pw); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}

func cmdLogout(ctx context.Context, c *cmdEnv, _ []string) error {
	if err := c.s.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "ok")
	return nil
}

func cmdStatus(_ context.Context, c *cmdEnv, _ []string) error {
	return printJSON(c.stdout, c.s.Status())
}

func cmdAnnouncements(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("announcements")
	postgrad := fs.Bool("postgrad", false, "graduate school notices")
	more := fs.Bool("more", false, "load one more page")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	st := c.s.Stores.UndergradAnnouncements
	if *postgrad {
		st = c.s.Stores.PostgradAnnouncements
	}
	list, err := st.GetRefreshedPage(ctx)
	if err != nil {
		return err
	}
	if *more {
		if list, err = st.GetCachedPage(ctx); err != nil {
			return err
		}
	}
	return printJSON(c.stdout, list)
}

func cmdBus(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("bus")
	holiday := fs.Bool("holiday", false, "holiday timetable")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	st := c.s.Stores.BusRoutes
	routes, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	if err != nil {
		return err
	}
	if *holiday {
		return printJSON(c.stdout, routes.Holiday)
	}
	return printJSON(c.stdout, routes.Workday)
}

func cmdElectricity(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.ElectricityLogs
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdWallet(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.WalletLogs
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdCard(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.CardInfo
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdCanteen(ctx context.Context, c *cmdEnv, _ []string) error {
	v, err := c.s.Campus.Canteens(ctx)
	return printResult(c.stdout, v, err)
}

func cmdQRCode(ctx context.Context, c *cmdEnv, _ []string) error {
	code, err := c.s.Campus.QRCode(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, code)
	return nil
}

func cmdClassrooms(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("classrooms")
	building := fs.String("building", "", "building code, e.g. HGX")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *building == "" {
		fmt.Fprintln(c.stderr, "need -building")
		return errUsage
	}
	st := c.s.Stores.Classrooms
	if c.refresh {
		v, err := st.GetRefreshed(ctx, *building)
		return printResult(c.stdout, v, err)
	}
	v, err := st.GetCached(ctx, *building)
	return printResult(c.stdout, v, err)
}

func cmdSemesters(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.Semesters
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdCourses(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("courses")
	semester := fs.Int("semester", 0, "semester id (default: current)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	id := *semester
	if id == 0 {
		p, err := c.s.Campus.CourseParams(ctx)
		if err != nil {
			return err
		}
		id = p.SemesterID
	}
	st := c.s.Stores.Courses
	if c.refresh {
		v, err := st.GetRefreshed(ctx, id)
		return printResult(c.stdout, v, err)
	}
	v, err := st.GetCached(ctx, id)
	return printResult(c.stdout, v, err)
}

func cmdGradCourses(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("grad-courses")
	semester := fs.String("semester", "", `term key such as "2024-1" (default: current)`)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	key := *semester
	if key == "" {
		terms, err := c.s.Stores.GradSemesters.GetCached(ctx)
		if err != nil {
			return err
		}
		if terms.Current == nil {
			return errors.New("no graduate term in progress; pass -semester")
		}
		key = terms.Current.Key()
	}
	st := c.s.Stores.GradCourses
	if c.refresh {
		v, err := st.GetRefreshed(ctx, key)
		return printResult(c.stdout, v, err)
	}
	v, err := st.GetCached(ctx, key)
	return printResult(c.stdout, v, err)
}

func cmdCatalog(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.CourseCatalog
	if c.refresh {
		if err := st.Clear(ctx); err != nil {
			return err
		}
	}
	groups, err := st.Load(ctx)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, catalogSummary(groups))
}

type catalogRow struct {
	ID         int    `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Offerings  int    `json:"offerings"`
}

func catalogSummary(groups []model.CourseGroup) []catalogRow {
	rows := make([]catalogRow, len(groups))
	for i, g := range groups {
		rows[i] = catalogRow{ID: g.ID, Code: g.Code, Name: g.Name, Department: g.Department, Offerings: len(g.Courses)}
	}
	return rows
}

func cmdProfile(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.Profile
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdDivisions(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.Divisions
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdTags(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.ForumTags
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdFavorites(ctx context.Context, c *cmdEnv, _ []string) error {
	st := c.s.Stores.FavoriteIDs
	v, err := cached(ctx, c, st.GetCached, st.GetRefreshed)
	return printResult(c.stdout, v, err)
}

func cmdPrune(ctx context.Context, c *cmdEnv, args []string) error {
	fs := c.flags("prune")
	older := fs.Duration("older", 30*24*time.Hour, "drop blobs not written for this long")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *older <= 0 {
		return errors.New("-older must be positive")
	}
	n, err := c.s.Prune(ctx, *older)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "removed %d\n", n)
	return nil
}

// printResult prints v unless err is set.
func printResult[T any](w io.Writer, v T, err error) error {
	if err != nil {
		return err
	}
	return printJSON(w, v)
}
