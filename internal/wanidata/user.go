package wanidata

import "time"

// User is the account resource. The API exposes exactly one per token.
type User struct {
	Data UserData
}

// UserData holds the account fields the cache keeps. Subscription stays a
// nested struct because nothing queries inside it.
type UserData struct {
	ID                       string       `json:"id"`
	Username                 string       `json:"username"`
	Level                    int          `json:"level"`
	StartedAt                time.Time    `json:"started_at"`
	CurrentVacationStartedAt *time.Time   `json:"current_vacation_started_at"`
	Subscription             Subscription `json:"subscription"`
}

// Subscription describes what content the account may access.
type Subscription struct {
	Active          bool       `json:"active"`
	Type            string     `json:"type"`
	MaxLevelGranted int        `json:"max_level_granted"`
	PeriodEndsAt    *time.Time `json:"period_ends_at"`
}

func (User) object() string { return ObjectUser }
