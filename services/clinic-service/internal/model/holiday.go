package model

import "time"

type PublicHoliday struct {
	ID       string    `json:"id"`
	ClinicID string    `json:"clinic_id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
}

// SameDay compares calendar dates, ignoring time and location offsets.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
