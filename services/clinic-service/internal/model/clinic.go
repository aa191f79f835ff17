package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanStarter Plan = "STARTER"
	PlanPro     Plan = "PRO"
)

func ParsePlan(s string) (Plan, error) {
	switch p := Plan(strings.ToUpper(strings.TrimSpace(s))); p {
	case PlanFree, PlanStarter, PlanPro:
		return p, nil
	}
	return "", Invalid("plan", "must be FREE, STARTER or PRO")
}

type ClinicStatus string

const (
	ClinicActive    ClinicStatus = "ACTIVE"
	ClinicSuspended ClinicStatus = "SUSPENDED"
)

func ParseClinicStatus(s string) (ClinicStatus, error) {
	switch st := ClinicStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ClinicActive, ClinicSuspended:
		return st, nil
	}
	return "", Invalid("status", "must be ACTIVE or SUSPENDED")
}

type Clinic struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Address       string        `json:"address"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email"`
	Timezone      string        `json:"timezone"`
	BusinessHours BusinessHours `json:"business_hours"`
	Plan          Plan          `json:"plan"`
	Status        ClinicStatus  `json:"status"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Location resolves the clinic timezone, falling back to UTC.
func (c Clinic) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Bookable reports whether the clinic accepts new appointments.
func (c Clinic) Bookable() bool {
	return c.Active && c.Status == ClinicActive
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slugify lower-cases name and joins alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func ValidateSlug(slug string) error {
	if len(slug) < 3 || len(slug) > 63 || !slugPattern.MatchString(slug) {
		return Invalid("slug", "must be 3-63 lowercase letters, digits or dashes")
	}
	return nil
}

func ValidateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return Invalid("timezone", fmt.Sprintf("unknown timezone %q", tz))
	}
	return nil
}

// DayHours is the opening window for one weekday, as "HH:MM" wall-clock times.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// BusinessHours maps lowercase weekday names ("monday") to opening hours.
type BusinessHours map[string]DayHours

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func WeekdayKey(d time.Weekday) string {
	return weekdayNames[d]
}

// DefaultBusinessHours is Mon-Fri 09:00-17:00, Sat 09:00-13:00, closed Sunday.
func DefaultBusinessHours() BusinessHours {
	bh := BusinessHours{}
	for d := time.Monday; d <= time.Friday; d++ {
		bh[WeekdayKey(d)] = DayHours{Open: "09:00", Close: "17:00"}
	}
	bh[WeekdayKey(time.Saturday)] = DayHours{Open: "09:00", Close: "13:00"}
	bh[WeekdayKey(time.Sunday)] = DayHours{Closed: true}
	return bh
}

func (bh BusinessHours) Validate() error {
	for key, day := range bh {
		if !isWeekdayKey(key) {
			return Invalid("business_hours", fmt.Sprintf("unknown weekday %q", key))
		}
		if day.Closed {
			continue
		}
		open, err := parseClock(day.Open)
		if err != nil {
			return Invalid("business_hours."+key+".open", err.Error())
		}
		closeAt, err := parseClock(day.Close)
		if err != nil {
			return Invalid("business_hours."+key+".close", err.Error())
		}
		if closeAt <= open {
			return Invalid("business_hours."+key, "close must be after open")
		}
	}
	return nil
}

// Window returns the opening interval for the calendar date of day in loc.
// ok is false when the clinic is closed that weekday or no hours are configured.
func (bh BusinessHours) Window(day time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	day = day.In(loc)
	hours, found := bh[WeekdayKey(day.Weekday())]
	if !found || hours.Closed {
		return time.Time{}, time.Time{}, false
	}
	open, err := parseClock(hours.Open)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	closeAt, err := parseClock(hours.Close)
	if err != nil || closeAt <= open {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := day.Date()
	start = time.Date(y, m, d, open/60, open%60, 0, 0, loc)
	end = time.Date(y, m, d, closeAt/60, closeAt%60, 0, 0, loc)
	return start, end, true
}

func isWeekdayKey(key string) bool {
	for _, n := range weekdayNames {
		if n == key {
			return true
		}
	}
	return false
}

// parseClock returns minutes since midnight on the wall clock.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
