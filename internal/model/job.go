package model

import "time"

type JobStatus string

const (
	JobStatusPending  JobStatus = "Pending"
	JobStatusApproved JobStatus = "Approved"
	JobStatusDeclined JobStatus = "Declined"
)

// IsTerminal reports whether no transition leaves s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusApproved || s == JobStatusDeclined
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusApproved, JobStatusDeclined:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the job state
// machine. Pending is the only state with outgoing edges.
func CanTransition(from, to JobStatus) bool {
	return from == JobStatusPending && to.IsTerminal()
}

type ColorOption string

const (
	ColorBW    ColorOption = "BW"
	ColorColor ColorOption = "Color"
)

func (c ColorOption) Valid() bool {
	return c == ColorBW || c == ColorColor
}

type PaperSize string

const (
	PaperShort PaperSize = "Short"
	PaperA4    PaperSize = "A4"
	PaperLong  PaperSize = "Long"

	DefaultPaperSize = PaperA4
)

func (p PaperSize) Valid() bool {
	switch p {
	case PaperShort, PaperA4, PaperLong:
		return true
	}
	return false
}

type PrintJob struct {
	ID          int64       `json:"job_id"`
	UserID      int64       `json:"user_id"`
	FileID      *int64      `json:"file_id"`
	Pages       int         `json:"pages"`
	PaperSize   PaperSize   `json:"paper_size"`
	ColorOption ColorOption `json:"color_option"`
	Copies      int         `json:"copies"`
	Notes       string      `json:"notes"`
	Status      JobStatus   `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type JobFilter struct {
	UserID int64
	Status JobStatus
	Limit  int
	Offset int
}

type JobStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Declined int `json:"declined"`
	Total    int `json:"total"`
}

// HistoryEntry is one row of a user's submission history.
type HistoryEntry struct {
	JobID       int64     `json:"job_id"`
	FileName    string    `json:"file_name"`
	SubmittedAt time.Time `json:"submitted_at"`
	Status      JobStatus `json:"status"`
	Pages       int       `json:"pages"`
	Copies      int       `json:"copies"`
}

// MissingFileName is shown for jobs whose file row no longer exists.
const MissingFileName = "File not found"
