package attendance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"campustrack/internal/faceclient"
)

type fakeStore struct {
	records map[string]Record
	roster  []string
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]Record)}
}

func (f *fakeStore) ForDay(_ context.Context, studentID string, day time.Time) (*Record, error) {
	for _, rec := range f.records {
		if rec.StudentID == studentID && rec.Day.Equal(day) {
			copied := rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, rec Record) (Record, error) {
	for _, existing := range f.records {
		if existing.StudentID == rec.StudentID && existing.Day.Equal(rec.Day) {
			return Record{}, ErrAlreadyMarked
		}
	}
	f.seq++
	rec.ID = fmt.Sprintf("rec-%d", f.seq)
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeStore) BackfillAbsent(_ context.Context, day time.Time) (int64, error) {
	// The fake only knows students that already hold records; backfill over
	// a fixed roster is exercised with seedStudents.
	var created int64
	for _, id := range f.roster {
		exists := false
		for _, rec := range f.records {
			if rec.StudentID == id && rec.Day.Equal(day) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		f.seq++
		f.records[fmt.Sprintf("rec-%d", f.seq)] = Record{
			ID:                 fmt.Sprintf("rec-%d", f.seq),
			StudentID:          id,
			Day:                day,
			Status:             StatusAbsent,
			VerificationMethod: MethodManual,
		}
		created++
	}
	return created, nil
}

func (f *fakeStore) SetReview(_ context.Context, id string, status Status, timeIn *time.Time, reviewerID string) (Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	rec.Status = status
	rec.TimeIn = timeIn
	rec.VerifiedBy = &reviewerID
	f.records[id] = rec
	return rec, nil
}

func (f *fakeStore) ApproveAllUnverified(_ context.Context, reviewerID string, timeIn time.Time) (int64, error) {
	var updated int64
	for id, rec := range f.records {
		if rec.VerifiedBy != nil {
			continue
		}
		t := timeIn
		rec.Status = StatusPresent
		rec.TimeIn = &t
		rec.VerifiedBy = &reviewerID
		f.records[id] = rec
		updated++
	}
	return updated, nil
}

func (f *fakeStore) PresenceCounts(_ context.Context, studentID string, start, end time.Time) (int, int, error) {
	var present, total int
	for _, rec := range f.records {
		if rec.StudentID != studentID || rec.Day.Before(start) || rec.Day.After(end) {
			continue
		}
		total++
		if rec.Status == StatusPresent {
			present++
		}
	}
	return present, total, nil
}

type fakeDirectory map[string]StudentInfo

func (d fakeDirectory) Lookup(_ context.Context, id string) (*StudentInfo, error) {
	info, ok := d[id]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

type fakeReviewers map[string]string

func (r fakeReviewers) ByName(_ context.Context, name string) (string, error) {
	id, ok := r[name]
	if !ok {
		return "", ErrReviewerNotFound
	}
	return id, nil
}

type fakeMatcher struct {
	result *faceclient.MatchResult
	err    error
}

func (m fakeMatcher) Compare(_ context.Context, _, _ string) (*faceclient.MatchResult, error) {
	return m.result, m.err
}

type captureAudit struct {
	events []AuditEvent
}

func (a *captureAudit) Record(_ context.Context, evt AuditEvent) {
	a.events = append(a.events, evt)
}

var testClock = func() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
}

func newTestService(store *fakeStore, matcher FaceMatcher, audit AuditSink) *Service {
	dir := fakeDirectory{
		"stu-1": {ID: "stu-1", Name: "Alice", RegisterNo: "R001", Department: "CSE", Year: "3", ImageURL: "https://img/alice.jpg"},
		"stu-2": {ID: "stu-2", Name: "Bob", RegisterNo: "R002", Department: "ECE", Year: "2", ImageURL: "https://img/bob.jpg"},
	}
	reviewers := fakeReviewers{"Carol": "usr-1"}
	return NewService(store, dir, reviewers, matcher, audit, 9, 0, testClock)
}

func TestMarkBeforeCutoffIsPresent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeMatcher{result: &faceclient.MatchResult{Matched: true, Distance: 0.3}}, &captureAudit{})

	ts := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	rec, err := svc.Mark(context.Background(), "stu-1", "probe", ts)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if rec.Status != StatusPresent {
		t.Fatalf("expected Present, got %s", rec.Status)
	}
	if rec.VerificationMethod != MethodFace {
		t.Fatalf("expected Face method, got %s", rec.VerificationMethod)
	}
	if rec.TimeIn == nil || !rec.TimeIn.Equal(ts) {
		t.Fatalf("expected timeIn %v, got %v", ts, rec.TimeIn)
	}
	if rec.VerifiedBy != nil {
		t.Fatal("new record must be unverified")
	}
	if rec.SnapshotName != "Alice" || rec.SnapshotRegisterNo != "R001" || rec.Department != "CSE" {
		t.Fatalf("snapshot fields not copied: %+v", rec)
	}
}

func TestMarkAfterCutoffIsLate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeMatcher{result: &faceclient.MatchResult{Matched: true}}, &captureAudit{})

	ts := time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC)
	rec, err := svc.Mark(context.Background(), "stu-1", "probe", ts)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if rec.Status != StatusLate {
		t.Fatalf("expected Late, got %s", rec.Status)
	}
}

func TestMarkTwiceSameDayRejected(t *testing.T) {
	store := newFakeStore()
	audit := &captureAudit{}
	svc := newTestService(store, fakeMatcher{result: &faceclient.MatchResult{Matched: true}}, audit)

	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if _, err := svc.Mark(context.Background(), "stu-1", "probe", ts); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	_, err := svc.Mark(context.Background(), "stu-1", "probe", ts.Add(time.Hour))
	if !errors.Is(err, ErrAlreadyMarked) {
		t.Fatalf("expected ErrAlreadyMarked, got %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
	last := audit.events[len(audit.events)-1]
	if last.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("expected already_marked audit, got %s", last.Outcome)
	}
}

func TestMarkFaceMismatchWritesNothing(t *testing.T) {
	store := newFakeStore()
	audit := &captureAudit{}
	svc := newTestService(store, fakeMatcher{result: &faceclient.MatchResult{Matched: false, Distance: 0.92}}, audit)

	_, err := svc.Mark(context.Background(), "stu-1", "probe", testClock())
	if !errors.Is(err, ErrFaceMismatch) {
		t.Fatalf("expected ErrFaceMismatch, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatal("mismatch must not create a record")
	}
	if len(audit.events) != 1 || audit.events[0].Outcome != OutcomeFaceMismatch {
		t.Fatalf("expected one face_mismatch audit event, got %+v", audit.events)
	}
	if audit.events[0].Distance == nil || *audit.events[0].Distance != 0.92 {
		t.Fatalf("expected distance in audit event, got %+v", audit.events[0].Distance)
	}
}

func TestMarkNoFaceDetectedWritesNothing(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeMatcher{err: faceclient.ErrNoFaceDetected}, &captureAudit{})

	_, err := svc.Mark(context.Background(), "stu-1", "probe", testClock())
	if !errors.Is(err, ErrFaceNotDetected) {
		t.Fatalf("expected ErrFaceNotDetected, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatal("no-face must not create a record")
	}
}

func TestMarkDayIgnoresTimestampZone(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeMatcher{result: &faceclient.MatchResult{Matched: true}}, &captureAudit{})

	// The same instant rendered in UTC and in UTC+05:30: the wall clocks
	// disagree on the date, the record day must not.
	utc := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("IST", 5*3600+30*60))

	if _, err := svc.Mark(context.Background(), "stu-1", "probe", utc); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if _, err := svc.Mark(context.Background(), "stu-1", "probe", offset); !errors.Is(err, ErrAlreadyMarked) {
		t.Fatalf("expected ErrAlreadyMarked for the same instant, got %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.records))
	}
	for _, rec := range store.records {
		if got := rec.Day.Format(DateLayout); got != "2026-03-01" {
			t.Fatalf("expected day 2026-03-01, got %s", got)
		}
	}
}

func TestDayOfNormalizesToUTC(t *testing.T) {
	utc := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("IST", 5*3600+30*60))
	if !DayOf(offset).Equal(DayOf(utc)) {
		t.Fatalf("same instant maps to different days: %v vs %v", DayOf(offset), DayOf(utc))
	}
	if DayOf(offset).Location() != time.UTC {
		t.Fatal("day must be in UTC")
	}
}

func TestMarkUnknownStudent(t *testing.T) {
	svc := newTestService(newFakeStore(), fakeMatcher{result: &faceclient.MatchResult{Matched: true}}, &captureAudit{})
	_, err := svc.Mark(context.Background(), "stu-missing", "probe", testClock())
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestMarkWithoutProbeIsManual(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, fakeMatcher{err: errors.New("matcher must not be called")}, &captureAudit{})

	rec, err := svc.Mark(context.Background(), "stu-1", "", testClock())
	if err != nil {
		t.Fatalf("manual mark: %v", err)
	}
	if rec.VerificationMethod != MethodManual {
		t.Fatalf("expected Manual method, got %s", rec.VerificationMethod)
	}
}

func TestApproveBranchesOnPriorState(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		timeIn     *time.Time
		wantStatus Status
		wantTimeIn bool
	}{
		{name: "absent stays absent", status: StatusAbsent, wantStatus: StatusAbsent},
		{name: "no time-in confirms absence", status: StatusPresent, wantStatus: StatusAbsent},
		{name: "present confirmed with fresh time-in", status: StatusPresent, timeIn: timePtr(testClock().Add(-2 * time.Hour)), wantStatus: StatusPresent, wantTimeIn: true},
		{name: "late confirmed present", status: StatusLate, timeIn: timePtr(testClock().Add(-time.Hour)), wantStatus: StatusPresent, wantTimeIn: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.records["rec-1"] = Record{ID: "rec-1", StudentID: "stu-1", Day: DayOf(testClock()), Status: tt.status, TimeIn: tt.timeIn}
			svc := newTestService(store, fakeMatcher{}, &captureAudit{})

			rec, err := svc.Approve(context.Background(), "rec-1", "Carol")
			if err != nil {
				t.Fatalf("approve: %v", err)
			}
			if rec.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, rec.Status)
			}
			if tt.wantTimeIn && (rec.TimeIn == nil || !rec.TimeIn.Equal(testClock())) {
				t.Fatalf("expected fresh timeIn %v, got %v", testClock(), rec.TimeIn)
			}
			if !tt.wantTimeIn && rec.TimeIn != nil {
				t.Fatalf("expected nil timeIn, got %v", rec.TimeIn)
			}
			if rec.VerifiedBy == nil || *rec.VerifiedBy != "usr-1" {
				t.Fatalf("expected verifiedBy usr-1, got %v", rec.VerifiedBy)
			}
		})
	}
}

func TestDeclineAlwaysAbsent(t *testing.T) {
	for _, status := range []Status{StatusPresent, StatusLate, StatusAbsent} {
		store := newFakeStore()
		store.records["rec-1"] = Record{ID: "rec-1", StudentID: "stu-1", Status: status, TimeIn: timePtr(testClock())}
		svc := newTestService(store, fakeMatcher{}, &captureAudit{})

		rec, err := svc.Decline(context.Background(), "rec-1", "Carol")
		if err != nil {
			t.Fatalf("decline from %s: %v", status, err)
		}
		if rec.Status != StatusAbsent || rec.TimeIn != nil {
			t.Fatalf("decline from %s: got status=%s timeIn=%v", status, rec.Status, rec.TimeIn)
		}
		if rec.VerifiedBy == nil || *rec.VerifiedBy != "usr-1" {
			t.Fatalf("decline from %s: verifiedBy=%v", status, rec.VerifiedBy)
		}
	}
}

func TestApproveAllIgnoresPriorState(t *testing.T) {
	store := newFakeStore()
	verified := "usr-9"
	store.records["rec-1"] = Record{ID: "rec-1", StudentID: "a", Status: StatusAbsent}
	store.records["rec-2"] = Record{ID: "rec-2", StudentID: "b", Status: StatusLate, TimeIn: timePtr(testClock().Add(-time.Hour))}
	store.records["rec-3"] = Record{ID: "rec-3", StudentID: "c", Status: StatusPresent}
	store.records["rec-4"] = Record{ID: "rec-4", StudentID: "d", Status: StatusPresent, VerifiedBy: &verified}
	svc := newTestService(store, fakeMatcher{}, &captureAudit{})

	updated, err := svc.ApproveAll(context.Background(), "Carol")
	if err != nil {
		t.Fatalf("approve all: %v", err)
	}
	if updated != 3 {
		t.Fatalf("expected 3 updated, got %d", updated)
	}
	for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
		rec := store.records[id]
		if rec.Status != StatusPresent {
			t.Fatalf("%s: expected Present, got %s", id, rec.Status)
		}
		if rec.TimeIn == nil || !rec.TimeIn.Equal(testClock()) {
			t.Fatalf("%s: expected fresh timeIn, got %v", id, rec.TimeIn)
		}
		if rec.VerifiedBy == nil || *rec.VerifiedBy != "usr-1" {
			t.Fatalf("%s: expected verifiedBy usr-1, got %v", id, rec.VerifiedBy)
		}
	}
	// Already-verified record untouched.
	if *store.records["rec-4"].VerifiedBy != "usr-9" {
		t.Fatal("approve-all must skip verified records")
	}
}

func TestReviewerNotFound(t *testing.T) {
	store := newFakeStore()
	store.records["rec-1"] = Record{ID: "rec-1"}
	svc := newTestService(store, fakeMatcher{}, &captureAudit{})

	if _, err := svc.Approve(context.Background(), "rec-1", "Nobody"); !errors.Is(err, ErrReviewerNotFound) {
		t.Fatalf("approve: expected ErrReviewerNotFound, got %v", err)
	}
	if _, err := svc.ApproveAll(context.Background(), "Nobody"); !errors.Is(err, ErrReviewerNotFound) {
		t.Fatalf("approve all: expected ErrReviewerNotFound, got %v", err)
	}
}

func TestGenerateIdempotent(t *testing.T) {
	store := newFakeStore()
	store.roster = []string{"stu-1", "stu-2", "stu-3"}
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// Seeded under a key the fake's generated rec-N ids can never collide with.
	store.records["seed-1"] = Record{ID: "seed-1", StudentID: "stu-1", Day: day, Status: StatusPresent}
	svc := newTestService(store, fakeMatcher{}, &captureAudit{})

	created, err := svc.Generate(context.Background(), day)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 backfilled, got %d", created)
	}
	again, err := svc.Generate(context.Background(), day)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected 0 on re-run, got %d", again)
	}
	if len(store.records) != 3 {
		t.Fatalf("expected 3 records total, got %d", len(store.records))
	}
}

func TestPercentage(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	start, end := day(1), day(10)

	t.Run("no records yields zero", func(t *testing.T) {
		svc := newTestService(newFakeStore(), fakeMatcher{}, &captureAudit{})
		pct, err := svc.Percentage(context.Background(), "stu-1", start, end)
		if err != nil {
			t.Fatalf("percentage: %v", err)
		}
		if pct != 0 {
			t.Fatalf("expected 0, got %v", pct)
		}
	})

	t.Run("all present yields hundred", func(t *testing.T) {
		store := newFakeStore()
		for d := 1; d <= 5; d++ {
			id := fmt.Sprintf("rec-%d", d)
			store.records[id] = Record{ID: id, StudentID: "stu-1", Day: day(d), Status: StatusPresent}
		}
		svc := newTestService(store, fakeMatcher{}, &captureAudit{})
		pct, err := svc.Percentage(context.Background(), "stu-1", start, end)
		if err != nil {
			t.Fatalf("percentage: %v", err)
		}
		if pct != 100 {
			t.Fatalf("expected 100, got %v", pct)
		}
	})

	t.Run("late excluded from numerator", func(t *testing.T) {
		store := newFakeStore()
		store.records["rec-1"] = Record{ID: "rec-1", StudentID: "stu-1", Day: day(1), Status: StatusPresent}
		store.records["rec-2"] = Record{ID: "rec-2", StudentID: "stu-1", Day: day(2), Status: StatusLate}
		store.records["rec-3"] = Record{ID: "rec-3", StudentID: "stu-1", Day: day(3), Status: StatusAbsent}
		store.records["rec-4"] = Record{ID: "rec-4", StudentID: "stu-1", Day: day(4), Status: StatusPresent}
		svc := newTestService(store, fakeMatcher{}, &captureAudit{})
		pct, err := svc.Percentage(context.Background(), "stu-1", start, end)
		if err != nil {
			t.Fatalf("percentage: %v", err)
		}
		if pct != 50 {
			t.Fatalf("expected 50, got %v", pct)
		}
	})
}

func timePtr(t time.Time) *time.Time { return &t }
