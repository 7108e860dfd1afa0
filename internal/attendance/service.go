package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campustrack/internal/faceclient"
)

// StudentInfo is the slice of a student the intake path needs: identity,
// the snapshot attributes copied onto new records, and the reference
// image for face comparison.
type StudentInfo struct {
	ID         string
	Name       string
	RegisterNo string
	Department string
	Year       string
	ImageURL   string
}

// StudentDirectory resolves students for intake. Lookup returns nil when
// the id is unknown.
type StudentDirectory interface {
	Lookup(ctx context.Context, id string) (*StudentInfo, error)
}

// Reviewers resolves a reviewer name to a user id. ByName returns
// ErrReviewerNotFound when no user carries the name.
type Reviewers interface {
	ByName(ctx context.Context, name string) (string, error)
}

// FaceMatcher is the opaque comparison capability: reference image
// against probe, yielding a match decision and a distance.
type FaceMatcher interface {
	Compare(ctx context.Context, referenceURL, probeB64 string) (*faceclient.MatchResult, error)
}

// Store is the persistence surface the service drives.
type Store interface {
	ForDay(ctx context.Context, studentID string, day time.Time) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	BackfillAbsent(ctx context.Context, day time.Time) (int64, error)
	SetReview(ctx context.Context, id string, status Status, timeIn *time.Time, reviewerID string) (Record, error)
	ApproveAllUnverified(ctx context.Context, reviewerID string, timeIn time.Time) (int64, error)
	PresenceCounts(ctx context.Context, studentID string, start, end time.Time) (present, total int, err error)
}

// AuditSink receives one event per intake attempt. Failures are logged
// by the sink, never surfaced to the caller.
type AuditSink interface {
	Record(ctx context.Context, evt AuditEvent)
}

// Service coordinates intake, reconciliation and reporting.
type Service struct {
	store     Store
	students  StudentDirectory
	reviewers Reviewers
	faces     FaceMatcher
	audit     AuditSink

	cutoffHour   int
	cutoffMinute int
	now          func() time.Time
}

// NewService wires the attendance service. now may be nil and defaults
// to the wall clock.
func NewService(store Store, students StudentDirectory, reviewers Reviewers, faces FaceMatcher, audit AuditSink, cutoffHour, cutoffMinute int, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        store,
		students:     students,
		reviewers:    reviewers,
		faces:        faces,
		audit:        audit,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
		now:          now,
	}
}

// classify returns Late when the arrival is past the daily cutoff.
func (s *Service) classify(ts time.Time) Status {
	cutoff := time.Date(ts.Year(), ts.Month(), ts.Day(), s.cutoffHour, s.cutoffMinute, 0, 0, ts.Location())
	if ts.After(cutoff) {
		return StatusLate
	}
	return StatusPresent
}

func (s *Service) recordAudit(ctx context.Context, studentID string, day time.Time, outcome string, distance *float64) {
	if s.audit == nil {
		return
	}
	intakeOutcomes.WithLabelValues(outcome).Inc()
	s.audit.Record(ctx, AuditEvent{
		StudentID: studentID,
		Day:       day.Format(DateLayout),
		Outcome:   outcome,
		Distance:  distance,
		At:        s.now().UTC(),
	})
}

// Mark runs the intake workflow for one student. With a probe image the
// student's stored reference image is compared by the face service;
// without one the record is written as a manual mark. At most one record
// is created per call and a student can only ever hold one record per day.
func (s *Service) Mark(ctx context.Context, studentID, probeB64 string, ts time.Time) (Record, error) {
	student, err := s.students.Lookup(ctx, studentID)
	if err != nil {
		return Record{}, err
	}
	if student == nil {
		return Record{}, ErrStudentNotFound
	}

	day := DayOf(ts)
	existing, err := s.store.ForDay(ctx, studentID, day)
	if err != nil {
		return Record{}, err
	}
	if existing != nil {
		s.recordAudit(ctx, studentID, day, OutcomeAlreadyMarked, nil)
		return Record{}, ErrAlreadyMarked
	}

	method := MethodManual
	var distance *float64
	if probeB64 != "" {
		result, err := s.faces.Compare(ctx, student.ImageURL, probeB64)
		if err != nil {
			if errors.Is(err, faceclient.ErrNoFaceDetected) {
				s.recordAudit(ctx, studentID, day, OutcomeFaceNotDetected, nil)
				return Record{}, ErrFaceNotDetected
			}
			return Record{}, fmt.Errorf("face comparison failed: %w", err)
		}
		distance = &result.Distance
		if !result.Matched {
			s.recordAudit(ctx, studentID, day, OutcomeFaceMismatch, distance)
			return Record{}, ErrFaceMismatch
		}
		method = MethodFace
	}

	timeIn := ts
	rec, err := s.store.Insert(ctx, Record{
		StudentID:          student.ID,
		SnapshotName:       student.Name,
		SnapshotRegisterNo: student.RegisterNo,
		Department:         student.Department,
		Year:               student.Year,
		Day:                day,
		Status:             s.classify(ts),
		VerificationMethod: method,
		TimeIn:             &timeIn,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyMarked) {
			// Lost the race to a concurrent mark; the unique index decided.
			s.recordAudit(ctx, studentID, day, OutcomeAlreadyMarked, nil)
		}
		return Record{}, err
	}
	s.recordAudit(ctx, studentID, day, OutcomeMarked, distance)
	return rec, nil
}

// Verify compares a probe image against the student's reference image
// without writing anything.
func (s *Service) Verify(ctx context.Context, studentID, probeB64 string) (*faceclient.MatchResult, error) {
	student, err := s.students.Lookup(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	return s.faces.Compare(ctx, student.ImageURL, probeB64)
}

// Generate backfills an Absent/Manual record for every student missing an
// entry on day. Idempotent: the records already present are untouched.
func (s *Service) Generate(ctx context.Context, day time.Time) (int64, error) {
	return s.store.BackfillAbsent(ctx, DayOf(day))
}

// Approve confirms whatever the record currently proposes. An absent or
// not-yet-arrived record stays Absent with no time-in; anything else is
// confirmed Present with a fresh time-in. One button, two meanings.
func (s *Service) Approve(ctx context.Context, recordID, reviewerName string) (Record, error) {
	reviewerID, err := s.reviewers.ByName(ctx, reviewerName)
	if err != nil {
		return Record{}, err
	}
	rec, err := s.store.Get(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if rec.Status == StatusAbsent || rec.TimeIn == nil {
		return s.store.SetReview(ctx, recordID, StatusAbsent, nil, reviewerID)
	}
	now := s.now()
	return s.store.SetReview(ctx, recordID, StatusPresent, &now, reviewerID)
}

// Decline marks the record Absent with no time-in, whatever its prior state.
func (s *Service) Decline(ctx context.Context, recordID, reviewerName string) (Record, error) {
	reviewerID, err := s.reviewers.ByName(ctx, reviewerName)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.store.Get(ctx, recordID); err != nil {
		return Record{}, err
	}
	return s.store.SetReview(ctx, recordID, StatusAbsent, nil, reviewerID)
}

// ApproveAll bulk-approves every unverified record as Present with a
// fresh time-in. Unlike Approve it does not branch on prior state.
func (s *Service) ApproveAll(ctx context.Context, reviewerName string) (int64, error) {
	reviewerID, err := s.reviewers.ByName(ctx, reviewerName)
	if err != nil {
		return 0, err
	}
	return s.store.ApproveAllUnverified(ctx, reviewerID, s.now())
}

// Percentage returns presentDays/totalDays*100 for the student over
// [start, end]. Late days count toward the total but not the numerator.
// No records in range yields 0.
func (s *Service) Percentage(ctx context.Context, studentID string, start, end time.Time) (float64, error) {
	present, total, err := s.store.PresenceCounts(ctx, studentID, DayOf(start), DayOf(end))
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(present) / float64(total) * 100, nil
}
