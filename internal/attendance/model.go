package attendance

import (
	"errors"
	"time"
)

// DateLayout is the wire and storage format for record days.
const DateLayout = "2006-01-02"

// Status of a record for a day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
)

// Method records how presence was established.
type Method string

const (
	MethodFace   Method = "Face"
	MethodManual Method = "Manual"
)

// Record is one attendance entry, unique per (student, day). Student
// attributes are copied in at creation time and not live-synced.
type Record struct {
	ID                 string     `json:"id"`
	StudentID          string     `json:"studentId"`
	SnapshotName       string     `json:"name"`
	SnapshotRegisterNo string     `json:"registerNo"`
	Department         string     `json:"department"`
	Year               string     `json:"year"`
	Day                time.Time  `json:"day"`
	Status             Status     `json:"status"`
	VerificationMethod Method     `json:"verificationMethod"`
	TimeIn             *time.Time `json:"timeIn,omitempty"`
	VerifiedBy         *string    `json:"verifiedBy,omitempty"`
	Remarks            string     `json:"remarks,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// DayCounts aggregates one day's records by status.
type DayCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Total   int `json:"total"`
}

// DepartmentCounts is DayCounts grouped per department.
type DepartmentCounts struct {
	Department string `json:"department"`
	DayCounts
}

// AuditEvent is emitted for every intake attempt, successful or not,
// and persisted out of band by the worker.
type AuditEvent struct {
	StudentID string    `json:"studentId"`
	Day       string    `json:"day"`
	Outcome   string    `json:"outcome"`
	Distance  *float64  `json:"distance,omitempty"`
	At        time.Time `json:"at"`
}

// Intake outcomes recorded in the audit trail.
const (
	OutcomeMarked          = "marked"
	OutcomeAlreadyMarked   = "already_marked"
	OutcomeFaceMismatch    = "face_mismatch"
	OutcomeFaceNotDetected = "face_not_detected"
)

// Errors surfaced to handlers.
var (
	ErrAlreadyMarked    = errors.New("attendance already marked for today")
	ErrFaceMismatch     = errors.New("face does not match")
	ErrFaceNotDetected  = errors.New("no face detected")
	ErrRecordNotFound   = errors.New("attendance record not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrReviewerNotFound = errors.New("reviewer not found")
)

// DayOf truncates a timestamp to its UTC calendar day. Records are keyed
// by this day, so the zone of a client-supplied timestamp must never
// change which day the same instant falls on.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
