package models

import "time"

// XPPerCompletion is the fixed XP award for the first completion of a
// routine on a given day.
const XPPerCompletion = 10

// Routine limits applied when a routine is created or updated
const (
	MaxRoutineNameLen = 48
	MaxSteps          = 24
	MaxStepTypeLen    = 16
	MaxStepTextLen    = 140
)

// User represents a user in the database
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Salt             string    `json:"-"`
	PassHash         string    `json:"-"`
	XP               int64     `json:"xp"`
	Streak           int64     `json:"streak"`
	ShareToken       *string   `json:"share_token"`
	LastCompletedDay *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Step is a single typed entry of a routine. Order is the position in the
// owning routine's step list.
type Step struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Routine represents a routine in the database
type Routine struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

// Completion records a routine being completed on a given day
type Completion struct {
	ID        string    `json:"id"`
	RoutineID string    `json:"routine_id"`
	UserID    string    `json:"-"`
	Day       string    `json:"day"` // YYYY-MM-DD in the configured day time zone
	XPAwarded int64     `json:"xp_awarded"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletionResult is the outcome of recording a completion
type CompletionResult struct {
	Day              string `json:"day"`
	XPAwarded        int64  `json:"xp_awarded"`
	AlreadyCompleted bool   `json:"already_completed"`
	XP               int64  `json:"xp"`
	Streak           int64  `json:"streak"`
}

// SharedProfile is the public view of a user reached through a share token
type SharedProfile struct {
	Username string          `json:"username"`
	XP       int64           `json:"xp"`
	Streak   int64           `json:"streak"`
	Routines []SharedRoutine `json:"routines"`
}

// SharedRoutine is the public view of a routine
type SharedRoutine struct {
	Name string `json:"name"`
}
