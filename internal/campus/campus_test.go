package campus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

func newTestClient(t *testing.T, mux *http.ServeMux, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	h := Hosts{
		My: ts.URL, Zlapp: ts.URL, Undergrad: ts.URL, Postgrad: ts.URL,
		Academic: ts.URL, Classroom: ts.URL, ECard: ts.URL, Graduate: ts.URL,
	}
	c, err := New(h, ts.Client(), opts...)
	require.NoError(t, err)
	return c
}

func TestElectricityLogs_LastTwoColumnsSkipBadRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data_tables/ykt_xszsqyydqk.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "1", r.PostForm.Get("draw"))
		_, _ = w.Write([]byte(`{"data":[
			["10#","302","2024-03-18","33.44"],
			["10#","302","yesterday","1.0"],
			["10#","302","2024-03-17","n/a"],
			["2024-03-16","12.5"],
			["x"]
		]}`))
	})
	c := newTestClient(t, mux)

	logs, err := c.ElectricityLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, 33.44, logs[0].Usage)
	require.True(t, time.Date(2024, 3, 18, 0, 0, 0, 0, shanghai).Equal(logs[0].Date))
	require.Equal(t, 12.5, logs[1].Usage)
}

func TestWalletLogs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data_tables/ykt_mrxf.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[["2024-03-18","21.00"]]}`))
	})
	c := newTestClient(t, mux)

	logs, err := c.WalletLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, 21.0, logs[0].Amount)
	require.Equal(t, "2024-03-18", logs[0].Date.Format(dateLayout))
}

func TestCardInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data_tables/ykt_xx.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"data":[["2030001","Li Hua","normal","allowed","2028-07-01","88.50"]]}`))
	})
	c := newTestClient(t, mux)

	info, err := c.CardInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Li Hua", info.UserName)
	require.Equal(t, "88.50", info.Balance)
	require.Equal(t, "2028-07-01", info.ExpirationDate)
}

func TestCardInfo_ShortRow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data_tables/ykt_xx.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[["2030001","Li Hua"]]}`))
	})
	c := newTestClient(t, mux)

	_, err := c.CardInfo(context.Background())
	require.ErrorIs(t, err, errs.ErrBadResponse)
}

func TestBusRoutes_ExpandsDirections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fudanbus/wap/default/lists", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("holiday") == "1" {
			_, _ = w.Write([]byte(`{"e":0,"m":"","d":{"data":[{"route":"邯郸-江湾","lists":[
				{"id":"7","start":"邯郸","end":"江湾","stime":"9.30","etime":"","arrow":"3","holiday":"1"}
			]}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"e":0,"m":"","d":{"data":[
			{"route":"邯郸-枫林","lists":[
				{"id":"1","start":"邯郸","end":"枫林","stime":"7:30","etime":"8.15","arrow":"1","holiday":"0"},
				{"id":"2","start":"邯郸","end":"枫林","stime":"","etime":"17.00","arrow":"2","holiday":"0"},
				{"id":"x","start":"邯郸","end":"枫林","stime":"9:00","etime":"","arrow":"3","holiday":"0"},
				{"id":"3","start":"邯郸","end":"枫林","stime":"soon","etime":"","arrow":"3","holiday":"0"}
			]},
			{"route":"broken","lists":[]}
		]}}`))
	})
	c := newTestClient(t, mux)

	routes, err := c.BusRoutes(context.Background())
	require.NoError(t, err)

	require.Len(t, routes.Workday, 1)
	require.Equal(t, []model.BusSchedule{
		{ID: 1, Start: "邯郸", End: "枫林", Time: "07:30", Bidirectional: true},
		{ID: 1, Start: "枫林", End: "邯郸", Time: "08:15", Bidirectional: true},
		{ID: 2, Start: "枫林", End: "邯郸", Time: "17:00"},
	}, routes.Workday[0].Schedules)

	require.Len(t, routes.Holiday, 1)
	require.Equal(t, []model.BusSchedule{
		{ID: 7, Start: "邯郸", End: "江湾", Time: "09:30", Holiday: true},
	}, routes.Holiday[0].Schedules)
}

func TestBusRoutes_EnvelopeError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fudanbus/wap/default/lists", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"e":10013,"m":"not logged in","d":{}}`))
	})
	c := newTestClient(t, mux)

	_, err := c.BusRoutes(context.Background())
	var se *errs.ServerError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 10013, se.Code)
}

func TestCanteens_NotDiningTime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/simple_list/stqk", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>仅在用餐时段开放</p></body></html>`))
	})
	c := newTestClient(t, mux)

	_, err := c.Canteens(context.Background())
	require.ErrorIs(t, err, errs.ErrNotDiningTime)
}

func TestCanteens_DefaultExtractor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/simple_list/stqk", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"campus":"邯郸","dining_rooms":[{"name":"北区","current":120,"capacity":400}]}]`))
	})
	c := newTestClient(t, mux)

	got, err := c.Canteens(context.Background())
	require.NoError(t, err)
	require.Equal(t, 120, got[0].DiningRooms[0].Current)
}

func TestQRCode_TermsNotAgreed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/epay/wxpage/fudan/zfm/qrcode", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<button id="btn-agree-ok">同意</button>`))
	})
	c := newTestClient(t, mux)

	_, err := c.QRCode(context.Background())
	require.ErrorIs(t, err, errs.ErrTermsNotAgreed)
}

func TestQRCode_CustomExtractor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/epay/wxpage/fudan/zfm/qrcode", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<input id="myText" value="CODE-123">`))
	})
	c := newTestClient(t, mux, WithExtractors(Extractors{
		QRCode: func([]byte) (string, error) { return "CODE-123", nil },
	}))

	code, err := c.QRCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "CODE-123", code)
}

func TestClassrooms_BuildingQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "HGX", r.URL.Query().Get("b"))
		_, _ = w.Write([]byte(`[{"name":"HGX101","capacity":"120","schedule":["","数学分析"]}]`))
	})
	c := newTestClient(t, mux)

	rooms, err := c.Classrooms(context.Background(), "HGX")
	require.NoError(t, err)
	require.Equal(t, "HGX101", rooms[0].Name)
}

func TestAnnouncements_Pages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/9397/list2.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"选课通知","link":"/a.htm"}]`))
	})
	mux.HandleFunc("/tzgg/list1.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	c := newTestClient(t, mux)

	got, err := c.UndergradAnnouncements(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "选课通知", got[0].Title)

	got, err = c.PostgradAnnouncements(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCourses_ParamsFetchedOnce(t *testing.T) {
	var paramCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/eams/courseTableForStd.action", func(w http.ResponseWriter, r *http.Request) {
		paramCalls.Add(1)
		_, _ = w.Write([]byte(`{"semester_id":441,"ids":"9988"}`))
	})
	mux.HandleFunc("/eams/courseTableForStd!courseTable.action", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "9988", r.PostForm.Get("ids"))
		require.Equal(t, "442", r.PostForm.Get("semester.id"))
		_, _ = w.Write([]byte(`[{"name":"数据结构","weekday":2,"start":3,"end":4}]`))
	})
	c := newTestClient(t, mux)

	for range 2 {
		courses, err := c.Courses(context.Background(), 442)
		require.NoError(t, err)
		require.Equal(t, "数据结构", courses[0].Name)
	}
	require.EqualValues(t, 1, paramCalls.Load())

	c.ResetSession()
	_, err := c.Courses(context.Background(), 442)
	require.NoError(t, err)
	require.EqualValues(t, 2, paramCalls.Load())
}

func TestCourseParams_ResetDuringFetchIsNotCached(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/eams/courseTableForStd.action", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			_, _ = w.Write([]byte(`{"semester_id":441,"ids":"old-user"}`))
			return
		}
		_, _ = w.Write([]byte(`{"semester_id":441,"ids":"new-user"}`))
	})
	c := newTestClient(t, mux)

	type result struct {
		p   CourseParams
		err error
	}
	done := make(chan result)
	go func() {
		p, err := c.CourseParams(context.Background())
		done <- result{p, err}
	}()

	<-entered
	c.ResetSession()
	close(release)
	first := <-done
	require.NoError(t, first.err)
	require.Equal(t, "old-user", first.p.IDs)

	p, err := c.CourseParams(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new-user", p.IDs)
	require.EqualValues(t, 2, calls.Load())
}

func TestGradSemesters_CurrentAndMonday(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fudanyjskb/wap/default/get-index", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"e":0,"m":"操作成功","d":{
			"params":{"year":"2023-2024","term":"2","startday":"2024-02-26","countweek":18,"week":4},
			"termInfo":[
				{"year":"2023-2024","term":"1","startday":"2023-09-11","countweek":18},
				{"year":"2023-2024","term":"2","startday":"2024-02-28","countweek":18},
				{"year":"bad","term":"1","startday":"2024-09-09","countweek":18}
			]}}`))
	})
	c := newTestClient(t, mux)

	got, err := c.GradSemesters(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Semesters, 2)
	require.NotNil(t, got.Current)
	require.Equal(t, "2023-2", got.Current.Key())
	require.Equal(t, "2024-03-04", got.Current.StartDate.Format(time.DateOnly))
	require.Equal(t, time.Monday, got.Semesters[0].StartDate.Weekday())
}

func TestGradCourses_MergesLessonsAndWeeks(t *testing.T) {
	const title = "课程-新时代理论与实践(新时代理论与实践 2023-2024学年 PTSS732001.01)"
	mux := http.NewServeMux()
	mux.HandleFunc("/gsapp/sys/wdrcappfudan/wdrc/loadRcxx.do", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		day := "2024-02-28"
		switch r.PostForm.Get("ksrq") {
		case "2024-02-26":
			require.Equal(t, "2024-03-04", r.PostForm.Get("jsrq"))
		case "2024-03-04":
			day = "2024-03-06"
		default:
			t.Errorf("unexpected range %s", r.PostForm.Get("ksrq"))
		}
		_, _ = fmt.Fprintf(w, `{"datas":[
			{"TITLE":%[1]q,"KSSJ":"%[2]s 13:30","JSSJ":"%[2]s 14:15","DD":"JA205"},
			{"TITLE":%[1]q,"KSSJ":"%[2]s 14:25","JSSJ":"%[2]s 15:10","DD":"JA205"}
		]}`, title, day)
	})
	c := newTestClient(t, mux)

	start := time.Date(2024, 2, 26, 0, 0, 0, 0, shanghai)
	got, err := c.GradCourses(context.Background(), model.Semester{Year: 2023, Term: "2", StartDate: start, WeekCount: 2})
	require.NoError(t, err)
	require.Equal(t, []model.Course{{
		Name: "新时代理论与实践", Code: "PTSS732001", Location: "JA205",
		Weekday: 2, Start: 6, End: 7, OnWeeks: []int{1, 2},
	}}, got)
}

func TestGradCourses_UnknownLessonTime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gsapp/sys/wdrcappfudan/wdrc/loadRcxx.do", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"datas":[{"TITLE":"x","KSSJ":"2024-02-28 13:31","JSSJ":"2024-02-28 14:15","DD":""}]}`))
	})
	c := newTestClient(t, mux)

	start := time.Date(2024, 2, 26, 0, 0, 0, 0, shanghai)
	_, err := c.GradCourses(context.Background(), model.Semester{StartDate: start, WeekCount: 1})
	require.ErrorIs(t, err, errs.ErrBadResponse)

	_, err = c.GradCourses(context.Background(), model.Semester{Year: 2024, Term: "1"})
	require.ErrorIs(t, err, errs.ErrBadResponse)
}

func TestSplitGradTitle(t *testing.T) {
	name, code := splitGradTitle("课程-数值分析(数值分析 2024 MATH620001.02)")
	require.Equal(t, "数值分析", name)
	require.Equal(t, "MATH620001", code)

	name, code = splitGradTitle("讲座")
	require.Equal(t, "讲座", name)
	require.Empty(t, code)
}

func TestSemesters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/eams/dataQuery.action", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "semesterCalendar", r.PostForm.Get("dataType"))
		_, _ = w.Write([]byte(`[{"semester_id":442,"year":2024,"term":"2"}]`))
	})
	c := newTestClient(t, mux)

	got, err := c.Semesters(context.Background())
	require.NoError(t, err)
	require.Equal(t, 442, got[0].SemesterID)
}

func TestClock(t *testing.T) {
	for in, want := range map[string]string{"7:30": "07:30", "14.05": "14:05", " 9.00 ": "09:00"} {
		got, ok := clock(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	_, ok := clock("")
	require.False(t, ok)
}
