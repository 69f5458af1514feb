package campus

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/campus-kit/internal/api"
	"github.com/and161185/campus-kit/internal/model"
)

var shanghai = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}()

type routeResponse struct {
	Route string             `json:"route"`
	Lists []scheduleResponse `json:"lists"`
}

// scheduleResponse.Arrow: "3" start->end at Stime, "2" end->start at Etime,
// "1" both directions (Stime from start, Etime from end).
type scheduleResponse struct {
	ID      string `json:"id"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Stime   string `json:"stime"`
	Etime   string `json:"etime"`
	Arrow   string `json:"arrow"`
	Holiday string `json:"holiday"`
}

type busData struct {
	Data []routeResponse `json:"data"`
}

// BusRoutes fetches workday and holiday timetables together.
func (c *Client) BusRoutes(ctx context.Context) (model.BusRoutes, error) {
	var out model.BusRoutes
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := api.Envelope[busData](gctx, c.zlapp, api.Request{Path: "/fudanbus/wap/default/lists"})
		if err != nil {
			return err
		}
		out.Workday = convertRoutes(d.Data)
		return nil
	})
	g.Go(func() error {
		d, err := api.Envelope[busData](gctx, c.zlapp, api.Request{
			Path: "/fudanbus/wap/default/lists",
			Form: map[string][]string{"holiday": {"1"}},
		})
		if err != nil {
			return err
		}
		out.Holiday = convertRoutes(d.Data)
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.BusRoutes{}, err
	}
	return out, nil
}

func convertRoutes(in []routeResponse) []model.Route {
	routes := make([]model.Route, 0, len(in))
	for _, r := range in {
		start, end, ok := strings.Cut(r.Route, "-")
		if !ok {
			continue
		}
		route := model.Route{Start: start, End: end, Schedules: []model.BusSchedule{}}
		for _, s := range r.Lists {
			id, err := strconv.Atoi(s.ID)
			if err != nil {
				continue
			}
			holiday := s.Holiday == "1"
			stime, sok := clock(s.Stime)
			etime, eok := clock(s.Etime)
			switch s.Arrow {
			case "3":
				if sok {
					route.Schedules = append(route.Schedules, model.BusSchedule{
						ID: id, Start: s.Start, End: s.End, Time: stime, Holiday: holiday,
					})
				}
			case "2":
				if eok {
					route.Schedules = append(route.Schedules, model.BusSchedule{
						ID: id, Start: s.End, End: s.Start, Time: etime, Holiday: holiday,
					})
				}
			case "1":
				if sok && eok {
					route.Schedules = append(route.Schedules,
						model.BusSchedule{ID: id, Start: start, End: end, Time: stime, Holiday: holiday, Bidirectional: true},
						model.BusSchedule{ID: id, Start: end, End: start, Time: etime, Holiday: holiday, Bidirectional: true},
					)
				}
			}
		}
		routes = append(routes, route)
	}
	return routes
}

// clock normalizes "6:45" or "14.30" to "HH:MM".
func clock(s string) (string, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", ":")
	if s == "" {
		return "", false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", false
	}
	return t.Format("15:04"), true
}
