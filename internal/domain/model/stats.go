package model

import "time"

// RelayStats summarises one chronological group of match shots.
type RelayStats struct {
	TotalShots   int     `json:"total_shots"`
	TotalScore   float64 `json:"total_score"`
	BestScore    float64 `json:"best_score"`
	AverageScore float64 `json:"average_score"`
	Shots        []Shot  `json:"list_of_shots"`
}

// DayStats summarises one athlete-day.
type DayStats struct {
	Day           Date         `json:"day"`
	TotalShots    int          `json:"total_shots"`
	TotalSighters int          `json:"total_sighters"`
	BestScore     float64      `json:"best_score"`
	Relays        []RelayStats `json:"list_of_relays"`
	Sighters      []Shot       `json:"list_of_sighters"`
}

// PeriodReport compares a trailing window with the window right before it.
// A positive delta is an improvement.
type PeriodReport struct {
	BestScore         float64 `json:"best_score"`
	AverageScore      float64 `json:"average_score"`
	BestScoreDelta    float64 `json:"best_score_delta"`
	AverageScoreDelta float64 `json:"average_score_delta"`
}

// JobStatus is the lifecycle state of an ImportJob.
type JobStatus string

// Import job states.
const (
	JobQueued    JobStatus = "queued"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobDuplicate JobStatus = "duplicate"
)

// ImportJob is one uploaded file travelling through the import queue.
type ImportJob struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Checksum    string    `json:"checksum"`
	Status      JobStatus `json:"status"`
	Shots       int       `json:"shots"`
	Inserted    int       `json:"inserted"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`

	Content []byte `json:"-"`
}
