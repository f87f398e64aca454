package models

import "time"

// DateLayout is the calendar-date format of User.LastResetDate.
const DateLayout = "2006-01-02"

// User is one row of the credential store.
type User struct {
	Username      string    `json:"username" badgerhold:"key"`
	PasswordHash  string    `json:"-"`
	UsageCount    int       `json:"usage_count"`
	LastResetDate string    `json:"last_reset_date"`
	CreatedAt     time.Time `json:"created_at"`
}
