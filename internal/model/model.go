// Package model defines domain entities shared by API clients, stores and the CLI.
package model

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the bearer token pair. It is an immutable value: replaced wholesale on
// login or refresh and cleared wholesale on logout.
type Credential struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// IsZero reports whether the credential carries no access token.
func (c Credential) IsZero() bool { return c.AccessToken == "" }

// AccessExpiry reads the `exp` claim of a JWT access token without verifying it.
// It is informational only; expiry is detected from server responses.
func (c Credential) AccessExpiry() (time.Time, bool) {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(c.AccessToken, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Announcement is an academic office notice.
type Announcement struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Link  string    `json:"link"`
}

// ElectricityLog is the dormitory electricity usage of one day.
type ElectricityLog struct {
	Date  time.Time `json:"date"`
	Usage float64   `json:"usage"`
}

// WalletLog is the e-card spending of one day.
type WalletLog struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// CardInfo describes the campus e-card of the logged-in user.
type CardInfo struct {
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name"`
	CardStatus      string `json:"card_status"`
	EntryPermission string `json:"entry_permission"`
	ExpirationDate  string `json:"expiration_date"`
	Balance         string `json:"balance"`
}

// BusSchedule is one departure on a route. Bidirectional runs are expanded into
// one schedule per direction sharing the same ID.
type BusSchedule struct {
	ID            int    `json:"id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Time          string `json:"time"`
	Holiday       bool   `json:"holiday"`
	Bidirectional bool   `json:"bidirectional"`
}

// Route is a campus shuttle line between two campuses.
type Route struct {
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Schedules []BusSchedule `json:"schedules"`
}

// BusRoutes bundles workday and holiday timetables; they are fetched and cached together.
type BusRoutes struct {
	Workday []Route `json:"workday"`
	Holiday []Route `json:"holiday"`
}

// Classroom is the occupation status of one room in a teaching building.
type Classroom struct {
	Name     string   `json:"name"`
	Capacity string   `json:"capacity"`
	Schedule []string `json:"schedule"`
}

// Semester identifies an academic term.
type Semester struct {
	SemesterID int       `json:"semester_id"`
	Year       int       `json:"year"`
	Term       string    `json:"term"`
	StartDate  time.Time `json:"start_date,omitempty"`
	WeekCount  int       `json:"week_count"`
}

// Key names the term independently of the service that listed it, e.g. "2024-2".
// Graduate terms carry no SemesterID, so they are keyed by this instead.
func (s Semester) Key() string { return fmt.Sprintf("%d-%s", s.Year, s.Term) }

// SemesterList is a term listing together with the term in progress, if known.
type SemesterList struct {
	Semesters []Semester `json:"semesters"`
	Current   *Semester  `json:"current,omitempty"`
}

// Find returns the term with the given Key.
func (l SemesterList) Find(key string) (Semester, bool) {
	for _, s := range l.Semesters {
		if s.Key() == key {
			return s, true
		}
	}
	return Semester{}, false
}

// Course is a timetable entry of the current user.
type Course struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Teacher  string `json:"teacher"`
	Location string `json:"location"`
	Weekday  int    `json:"weekday"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	OnWeeks  []int  `json:"on_weeks"`
}

// CourseGroup is a curriculum catalog entry grouping offerings of the same course.
type CourseGroup struct {
	ID         int                `json:"id"`
	Name       string             `json:"name"`
	Code       string             `json:"code"`
	Department string             `json:"department"`
	Campus     string             `json:"campus"`
	Courses    []CurriculumCourse `json:"courses"`
}

// CurriculumCourse is a single offering in the curriculum catalog.
type CurriculumCourse struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Code     string  `json:"code"`
	Credit   float64 `json:"credit"`
	Teachers string  `json:"teachers"`
	Year     int     `json:"year"`
	Semester int     `json:"semester"`
}

// Profile is the forum user profile.
type Profile struct {
	UserID     int       `json:"user_id"`
	Nickname   string    `json:"nickname"`
	IsAdmin    bool      `json:"is_admin"`
	JoinedTime time.Time `json:"joined_time"`
}

// Division is a forum board.
type Division struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tag is a forum topic label; Temperature counts the holes using it.
type Tag struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Temperature int    `json:"temperature"`
}

// Canteen is the live queue status of the dining rooms on one campus.
type Canteen struct {
	Campus      string       `json:"campus"`
	DiningRooms []DiningRoom `json:"dining_rooms"`
}

// DiningRoom is the current occupancy of one dining room.
type DiningRoom struct {
	Name     string `json:"name"`
	Current  int    `json:"current"`
	Capacity int    `json:"capacity"`
}
