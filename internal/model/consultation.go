package model

import "time"

const (
	RolePatient  = "patient"
	RoleDoctor   = "doctor"
	RoleProvider = "provider"
)

type Participant struct {
	Name string `json:"name" db:"name"`
	Role string `json:"role" db:"role"`
}

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ConsultationRecord is owned by the system of record; the engine only reads it.
type ConsultationRecord struct {
	ID                 string        `json:"id"`
	Participants       []Participant `json:"participants"`
	ScheduledAt        time.Time     `json:"scheduled_at"`
	Status             string        `json:"status"`
	Symptoms           string        `json:"symptoms,omitempty"`
	Diagnosis          string        `json:"diagnosis,omitempty"`
	Prescription       string        `json:"prescription,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	Fee                *Money        `json:"fee,omitempty"`
	VideoCallURL       string        `json:"video_call_url,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
